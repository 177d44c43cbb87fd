package lendings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sandali-perera/library-server/internal/storage/memory"
	"github.com/sandali-perera/library-server/internal/types"
)

func testMux(store *memory.Memory) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /lendings", Lend(store, 14))
	mux.HandleFunc("PUT /lendings/return/{lendingId}", Return(store))
	mux.HandleFunc("GET /lendings", List(store))
	mux.HandleFunc("GET /lendings/overdue", Overdue(store))
	mux.HandleFunc("GET /lendings/{id}", GetByID(store))
	return mux
}

func seed(t *testing.T, store *memory.Memory, copies int) (*types.Book, *types.Reader) {
	t.Helper()
	ctx := context.Background()

	category := &types.Category{Name: "Fiction"}
	require.NoError(t, store.CreateCategory(ctx, category))

	book := &types.Book{
		Title:       "Beloved",
		Author:      "Toni Morrison",
		ISBN:        "9781400033416",
		Category:    category.ID,
		TotalCopies: copies,
	}
	require.NoError(t, store.CreateBook(ctx, book))

	reader := &types.Reader{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, store.CreateReader(ctx, reader))

	return book, reader
}

func doLend(t *testing.T, mux *http.ServeMux, bookID, readerID string) *httptest.ResponseRecorder {
	t.Helper()
	body := fmt.Sprintf(`{"bookId":%q,"readerId":%q}`, bookID, readerID)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/lendings", strings.NewReader(body)))
	return rec
}

func TestLendCreatesBorrowedLending(t *testing.T) {
	store := memory.New()
	mux := testMux(store)
	book, reader := seed(t, store, 2)

	rec := doLend(t, mux, book.ID.Hex(), reader.ID.Hex())
	require.Equal(t, http.StatusCreated, rec.Code)

	var lending types.Lending
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lending))
	assert.Equal(t, types.StatusBorrowed, lending.Status)
	assert.Equal(t, book.ID, lending.Book)
	assert.Equal(t, reader.ID, lending.Reader)
	assert.Nil(t, lending.ReturnedAt)

	wantDue := lending.BorrowedAt.AddDate(0, 0, 14)
	assert.WithinDuration(t, wantDue, lending.DueDate, time.Second)

	got, err := store.GetBookByID(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestLendCustomDuration(t *testing.T) {
	store := memory.New()
	mux := testMux(store)
	book, reader := seed(t, store, 1)

	body := fmt.Sprintf(`{"bookId":%q,"readerId":%q,"durationDays":7}`, book.ID.Hex(), reader.ID.Hex())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/lendings", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var lending types.Lending
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lending))
	assert.WithinDuration(t, lending.BorrowedAt.AddDate(0, 0, 7), lending.DueDate, time.Second)
}

func TestLendOutOfStock(t *testing.T) {
	store := memory.New()
	mux := testMux(store)
	book, reader := seed(t, store, 1)

	rec := doLend(t, mux, book.ID.Hex(), reader.ID.Hex())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doLend(t, mux, book.ID.Hex(), reader.ID.Hex())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	lendings, err := store.ListLendings(context.Background())
	require.NoError(t, err)
	assert.Len(t, lendings, 1)
}

func TestLendUnknownBookOrReader(t *testing.T) {
	store := memory.New()
	mux := testMux(store)
	book, reader := seed(t, store, 1)

	rec := doLend(t, mux, primitive.NewObjectID().Hex(), reader.ID.Hex())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doLend(t, mux, book.ID.Hex(), primitive.NewObjectID().Hex())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doLend(t, mux, "not-an-id", reader.ID.Hex())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReturnFlow(t *testing.T) {
	store := memory.New()
	mux := testMux(store)
	book, reader := seed(t, store, 1)

	rec := doLend(t, mux, book.ID.Hex(), reader.ID.Hex())
	require.Equal(t, http.StatusCreated, rec.Code)
	var lending types.Lending
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lending))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/lendings/return/"+lending.ID.Hex(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var returned types.Lending
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &returned))
	assert.Equal(t, types.StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)

	got, err := store.GetBookByID(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)

	// A second return on the same lending is rejected.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/lendings/return/"+lending.ID.Hex(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	got, err = store.GetBookByID(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestReturnUnknownLending(t *testing.T) {
	store := memory.New()
	mux := testMux(store)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/lendings/return/"+primitive.NewObjectID().Hex(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLastCopyContention(t *testing.T) {
	store := memory.New()
	mux := testMux(store)
	book, alice := seed(t, store, 1)

	bob := &types.Reader{Name: "Bob", Email: "bob@example.com"}
	require.NoError(t, store.CreateReader(context.Background(), bob))

	rec := doLend(t, mux, book.ID.Hex(), alice.ID.Hex())
	require.Equal(t, http.StatusCreated, rec.Code)
	var first types.Lending
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = doLend(t, mux, book.ID.Hex(), bob.ID.Hex())
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/lendings/return/"+first.ID.Hex(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := store.GetBookByID(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)

	// The copy is back, so Bob can borrow it now.
	rec = doLend(t, mux, book.ID.Hex(), bob.ID.Hex())
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestOverdueEndpoint(t *testing.T) {
	store := memory.New()
	mux := testMux(store)
	book, reader := seed(t, store, 3)
	ctx := context.Background()

	now := time.Now()
	overdue := &types.Lending{
		Book:       book.ID,
		Reader:     reader.ID,
		BorrowedAt: now.AddDate(0, 0, -20),
		DueDate:    now.AddDate(0, 0, -6),
		Status:     types.StatusBorrowed,
	}
	require.NoError(t, store.LendBook(ctx, overdue))

	current := &types.Lending{
		Book:       book.ID,
		Reader:     reader.ID,
		BorrowedAt: now,
		DueDate:    now.AddDate(0, 0, 14),
		Status:     types.StatusBorrowed,
	}
	require.NoError(t, store.LendBook(ctx, current))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lendings/overdue", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []types.Lending
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, overdue.ID, got[0].ID)
	assert.Equal(t, types.StatusOverdue, got[0].Status)
	assert.Equal(t, "Beloved", got[0].BookTitle)
	assert.Equal(t, "Alice", got[0].ReaderName)
}

func TestListDerivesOverdueStatus(t *testing.T) {
	store := memory.New()
	mux := testMux(store)
	book, reader := seed(t, store, 1)

	now := time.Now()
	lending := &types.Lending{
		Book:       book.ID,
		Reader:     reader.ID,
		BorrowedAt: now.AddDate(0, 0, -15),
		DueDate:    now.AddDate(0, 0, -1),
		Status:     types.StatusBorrowed,
	}
	require.NoError(t, store.LendBook(context.Background(), lending))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lendings", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []types.Lending
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, types.StatusOverdue, got[0].Status)
}

func TestGetLendingByID(t *testing.T) {
	store := memory.New()
	mux := testMux(store)
	book, reader := seed(t, store, 1)

	rec := doLend(t, mux, book.ID.Hex(), reader.ID.Hex())
	require.Equal(t, http.StatusCreated, rec.Code)
	var lending types.Lending
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lending))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lendings/"+lending.ID.Hex(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.Lending
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, lending.ID, got.ID)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lendings/"+primitive.NewObjectID().Hex(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
