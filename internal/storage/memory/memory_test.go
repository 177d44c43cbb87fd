package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sandali-perera/library-server/internal/storage"
	"github.com/sandali-perera/library-server/internal/types"
)

func newBook(t *testing.T, m *Memory, copies int) *types.Book {
	t.Helper()
	category := &types.Category{Name: "Fiction"}
	require.NoError(t, m.CreateCategory(context.Background(), category))

	book := &types.Book{
		Title:       "The Trial",
		Author:      "Franz Kafka",
		ISBN:        "9780805209990",
		Category:    category.ID,
		TotalCopies: copies,
	}
	require.NoError(t, m.CreateBook(context.Background(), book))
	return book
}

func newReader(t *testing.T, m *Memory, name string) *types.Reader {
	t.Helper()
	reader := &types.Reader{Name: name, Email: name + "@example.com"}
	require.NoError(t, m.CreateReader(context.Background(), reader))
	return reader
}

func lend(t *testing.T, m *Memory, book *types.Book, reader *types.Reader, due time.Time) *types.Lending {
	t.Helper()
	lending := &types.Lending{
		Book:       book.ID,
		Reader:     reader.ID,
		BorrowedAt: time.Now(),
		DueDate:    due,
		Status:     types.StatusBorrowed,
	}
	require.NoError(t, m.LendBook(context.Background(), lending))
	return lending
}

func TestCreateBookSetsAvailableCopies(t *testing.T) {
	m := New()
	book := newBook(t, m, 3)

	assert.Equal(t, 3, book.TotalCopies)
	assert.Equal(t, 3, book.AvailableCopies)
}

func TestLendDecrementsExactlyOne(t *testing.T) {
	m := New()
	ctx := context.Background()
	book := newBook(t, m, 2)
	reader := newReader(t, m, "alice")

	lending := lend(t, m, book, reader, time.Now().AddDate(0, 0, 14))

	got, err := m.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)

	stored, err := m.GetLendingByID(ctx, lending.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusBorrowed, stored.Status)
	assert.Nil(t, stored.ReturnedAt)
}

func TestLendOutOfStock(t *testing.T) {
	m := New()
	ctx := context.Background()
	book := newBook(t, m, 1)
	alice := newReader(t, m, "alice")
	bob := newReader(t, m, "bob")

	lend(t, m, book, alice, time.Now().AddDate(0, 0, 14))

	err := m.LendBook(ctx, &types.Lending{
		Book:       book.ID,
		Reader:     bob.ID,
		BorrowedAt: time.Now(),
		DueDate:    time.Now().AddDate(0, 0, 14),
		Status:     types.StatusBorrowed,
	})
	require.ErrorIs(t, err, storage.ErrOutOfStock)

	// The failed lend must not leave a record behind.
	lendings, err := m.ListLendings(ctx)
	require.NoError(t, err)
	assert.Len(t, lendings, 1)

	got, err := m.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)
}

func TestLendUnknownBook(t *testing.T) {
	m := New()
	reader := newReader(t, m, "alice")

	err := m.LendBook(context.Background(), &types.Lending{
		Book:   primitive.NewObjectID(),
		Reader: reader.ID,
		Status: types.StatusBorrowed,
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReturnIncrementsAndSetsReturnedAt(t *testing.T) {
	m := New()
	ctx := context.Background()
	book := newBook(t, m, 1)
	reader := newReader(t, m, "alice")

	lending := lend(t, m, book, reader, time.Now().AddDate(0, 0, 14))

	returnedAt := time.Now()
	returned, err := m.ReturnLending(ctx, lending.ID, returnedAt)
	require.NoError(t, err)
	assert.Equal(t, types.StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, returnedAt, *returned.ReturnedAt)

	got, err := m.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestDoubleReturnRejected(t *testing.T) {
	m := New()
	ctx := context.Background()
	book := newBook(t, m, 1)
	reader := newReader(t, m, "alice")

	lending := lend(t, m, book, reader, time.Now().AddDate(0, 0, 14))

	_, err := m.ReturnLending(ctx, lending.ID, time.Now())
	require.NoError(t, err)

	_, err = m.ReturnLending(ctx, lending.ID, time.Now())
	require.ErrorIs(t, err, storage.ErrAlreadyReturned)

	// Available copies must not climb past the total on a repeated return.
	got, err := m.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
	assert.Equal(t, 1, got.TotalCopies)
}

func TestLastCopyScenario(t *testing.T) {
	m := New()
	ctx := context.Background()
	book := newBook(t, m, 1)
	alice := newReader(t, m, "alice")
	bob := newReader(t, m, "bob")

	first := lend(t, m, book, alice, time.Now().AddDate(0, 0, 14))

	got, _ := m.GetBookByID(ctx, book.ID)
	assert.Equal(t, 0, got.AvailableCopies)

	err := m.LendBook(ctx, &types.Lending{
		Book:       book.ID,
		Reader:     bob.ID,
		BorrowedAt: time.Now(),
		DueDate:    time.Now().AddDate(0, 0, 14),
		Status:     types.StatusBorrowed,
	})
	require.ErrorIs(t, err, storage.ErrOutOfStock)

	_, err = m.ReturnLending(ctx, first.ID, time.Now())
	require.NoError(t, err)

	got, _ = m.GetBookByID(ctx, book.ID)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestOverdueFilter(t *testing.T) {
	m := New()
	ctx := context.Background()
	book := newBook(t, m, 3)
	reader := newReader(t, m, "alice")

	now := time.Now()
	overdue := lend(t, m, book, reader, now.Add(-24*time.Hour))
	current := lend(t, m, book, reader, now.Add(24*time.Hour))
	returnedLate := lend(t, m, book, reader, now.Add(-48*time.Hour))
	_, err := m.ReturnLending(ctx, returnedLate.ID, now)
	require.NoError(t, err)

	got, err := m.ListOverdueLendings(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, overdue.ID, got[0].ID)
	assert.NotEqual(t, current.ID, got[0].ID)
}

func TestOverdueStatusDerivedNotPersisted(t *testing.T) {
	m := New()
	book := newBook(t, m, 1)
	reader := newReader(t, m, "alice")

	now := time.Now()
	lending := lend(t, m, book, reader, now.Add(-time.Hour))

	assert.Equal(t, types.StatusOverdue, lending.StatusAt(now))
	assert.Equal(t, types.StatusBorrowed, lending.StatusAt(now.Add(-2*time.Hour)))

	stored, err := m.GetLendingByID(context.Background(), lending.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusBorrowed, stored.Status)
}

func TestDuplicateEmailRejected(t *testing.T) {
	m := New()
	ctx := context.Background()

	first := &types.User{Name: "Sam", Email: "sam@example.com", Password: "hash"}
	require.NoError(t, m.CreateUser(ctx, first))

	dup := &types.User{Name: "Sam Again", Email: "SAM@example.com", Password: "hash"}
	err := m.CreateUser(ctx, dup)
	require.ErrorIs(t, err, storage.ErrDuplicateEmail)
}

func TestUpdateBookTotalCopiesShiftsAvailable(t *testing.T) {
	m := New()
	ctx := context.Background()
	book := newBook(t, m, 2)
	reader := newReader(t, m, "alice")
	lend(t, m, book, reader, time.Now().AddDate(0, 0, 14))

	five := 5
	updated, err := m.UpdateBook(ctx, book.ID, types.BookPatch{TotalCopies: &five})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.TotalCopies)
	assert.Equal(t, 4, updated.AvailableCopies)

	// One copy is out, so the total cannot shrink below it.
	one := 1
	_, err = m.UpdateBook(ctx, book.ID, types.BookPatch{TotalCopies: &one})
	require.NoError(t, err)

	zeroOut, err := m.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, zeroOut.AvailableCopies)

	// Shrinking past the copies on loan is a conflict.
	zero := 0
	_, err = m.UpdateBook(ctx, book.ID, types.BookPatch{TotalCopies: &zero})
	require.ErrorIs(t, err, storage.ErrConflict)
}

func TestDeleteGuards(t *testing.T) {
	m := New()
	ctx := context.Background()
	book := newBook(t, m, 1)
	reader := newReader(t, m, "alice")
	lending := lend(t, m, book, reader, time.Now().AddDate(0, 0, 14))

	require.ErrorIs(t, m.DeleteCategory(ctx, book.Category), storage.ErrConflict)
	require.ErrorIs(t, m.DeleteBook(ctx, book.ID), storage.ErrConflict)
	require.ErrorIs(t, m.DeleteReader(ctx, reader.ID), storage.ErrConflict)

	_, err := m.ReturnLending(ctx, lending.ID, time.Now())
	require.NoError(t, err)

	require.NoError(t, m.DeleteBook(ctx, book.ID))
	require.NoError(t, m.DeleteReader(ctx, reader.ID))
	require.NoError(t, m.DeleteCategory(ctx, book.Category))
}

func TestInvariantHoldsThroughLifecycle(t *testing.T) {
	m := New()
	ctx := context.Background()
	book := newBook(t, m, 3)
	reader := newReader(t, m, "alice")

	check := func() {
		got, err := m.GetBookByID(ctx, book.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.AvailableCopies, 0)
		assert.LessOrEqual(t, got.AvailableCopies, got.TotalCopies)
	}

	var ids []primitive.ObjectID
	for i := 0; i < 3; i++ {
		l := lend(t, m, book, reader, time.Now().AddDate(0, 0, 14))
		ids = append(ids, l.ID)
		check()
	}
	for _, id := range ids {
		_, err := m.ReturnLending(ctx, id, time.Now())
		require.NoError(t, err)
		check()
	}
}
