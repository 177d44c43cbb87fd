// Package memory holds an in-memory Storage used by the handler tests and
// for running the server without a Mongo instance. It enforces the same
// guards as the mongodb package: conditional copy-count updates and the
// returned-lending idempotency boundary.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sandali-perera/library-server/internal/storage"
	"github.com/sandali-perera/library-server/internal/types"
)

type Memory struct {
	mu         sync.Mutex
	users      map[primitive.ObjectID]types.User
	categories map[primitive.ObjectID]types.Category
	books      map[primitive.ObjectID]types.Book
	readers    map[primitive.ObjectID]types.Reader
	lendings   map[primitive.ObjectID]types.Lending
}

func New() *Memory {
	return &Memory{
		users:      map[primitive.ObjectID]types.User{},
		categories: map[primitive.ObjectID]types.Category{},
		books:      map[primitive.ObjectID]types.Book{},
		readers:    map[primitive.ObjectID]types.Reader{},
		lendings:   map[primitive.ObjectID]types.Lending{},
	}
}

// --- users ---

func (m *Memory) CreateUser(_ context.Context, user *types.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range m.users {
		if u.Email == user.Email {
			return storage.ErrDuplicateEmail
		}
	}

	now := time.Now()
	user.ID = primitive.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = *user
	return nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.ToLower(email)
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *Memory) GetUserByID(_ context.Context, id primitive.ObjectID) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]types.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

// --- categories ---

func (m *Memory) CreateCategory(_ context.Context, category *types.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	category.ID = primitive.NewObjectID()
	category.CreatedAt = now
	category.UpdatedAt = now
	m.categories[category.ID] = *category
	return nil
}

func (m *Memory) ListCategories(_ context.Context) ([]types.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	categories := make([]types.Category, 0, len(m.categories))
	for _, c := range m.categories {
		categories = append(categories, c)
	}
	return categories, nil
}

func (m *Memory) GetCategoryByID(_ context.Context, id primitive.ObjectID) (*types.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (m *Memory) UpdateCategory(_ context.Context, id primitive.ObjectID, patch types.CategoryPatch) (*types.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	c.UpdatedAt = time.Now()
	m.categories[id] = c
	return &c, nil
}

func (m *Memory) DeleteCategory(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[id]; !ok {
		return storage.ErrNotFound
	}
	for _, b := range m.books {
		if b.Category == id {
			return storage.ErrConflict
		}
	}
	delete(m.categories, id)
	return nil
}

// --- books ---

func (m *Memory) CreateBook(_ context.Context, book *types.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	book.ID = primitive.NewObjectID()
	book.AvailableCopies = book.TotalCopies
	book.CreatedAt = now
	book.UpdatedAt = now
	m.books[book.ID] = *book
	return nil
}

func (m *Memory) ListBooks(_ context.Context) ([]types.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	books := make([]types.Book, 0, len(m.books))
	for _, b := range m.books {
		books = append(books, b)
	}
	return books, nil
}

func (m *Memory) GetBookByID(_ context.Context, id primitive.ObjectID) (*types.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &b, nil
}

func (m *Memory) UpdateBook(_ context.Context, id primitive.ObjectID, patch types.BookPatch) (*types.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if patch.Title != nil {
		b.Title = *patch.Title
	}
	if patch.Author != nil {
		b.Author = *patch.Author
	}
	if patch.ISBN != nil {
		b.ISBN = *patch.ISBN
	}
	if patch.Category != nil {
		b.Category = *patch.Category
	}
	if patch.TotalCopies != nil {
		delta := *patch.TotalCopies - b.TotalCopies
		if b.AvailableCopies+delta < 0 {
			return nil, storage.ErrConflict
		}
		b.TotalCopies = *patch.TotalCopies
		b.AvailableCopies += delta
	}
	b.UpdatedAt = time.Now()
	m.books[id] = b
	return &b, nil
}

func (m *Memory) DeleteBook(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[id]; !ok {
		return storage.ErrNotFound
	}
	for _, l := range m.lendings {
		if l.Book == id && l.Status != types.StatusReturned {
			return storage.ErrConflict
		}
	}
	delete(m.books, id)
	return nil
}

// --- readers ---

func (m *Memory) CreateReader(_ context.Context, reader *types.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	reader.ID = primitive.NewObjectID()
	reader.CreatedAt = now
	reader.UpdatedAt = now
	m.readers[reader.ID] = *reader
	return nil
}

func (m *Memory) ListReaders(_ context.Context) ([]types.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	readers := make([]types.Reader, 0, len(m.readers))
	for _, r := range m.readers {
		readers = append(readers, r)
	}
	return readers, nil
}

func (m *Memory) GetReaderByID(_ context.Context, id primitive.ObjectID) (*types.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.readers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (m *Memory) UpdateReader(_ context.Context, id primitive.ObjectID, patch types.ReaderPatch) (*types.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.readers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if patch.Name != nil {
		r.Name = *patch.Name
	}
	if patch.Email != nil {
		r.Email = *patch.Email
	}
	if patch.Phone != nil {
		r.Phone = *patch.Phone
	}
	r.UpdatedAt = time.Now()
	m.readers[id] = r
	return &r, nil
}

func (m *Memory) DeleteReader(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.readers[id]; !ok {
		return storage.ErrNotFound
	}
	for _, l := range m.lendings {
		if l.Reader == id && l.Status != types.StatusReturned {
			return storage.ErrConflict
		}
	}
	delete(m.readers, id)
	return nil
}

// --- lendings ---

func (m *Memory) LendBook(_ context.Context, lending *types.Lending) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[lending.Book]
	if !ok {
		return storage.ErrNotFound
	}
	if b.AvailableCopies <= 0 {
		return storage.ErrOutOfStock
	}

	b.AvailableCopies--
	m.books[b.ID] = b

	lending.ID = primitive.NewObjectID()
	m.lendings[lending.ID] = *lending
	return nil
}

func (m *Memory) ReturnLending(_ context.Context, id primitive.ObjectID, returnedAt time.Time) (*types.Lending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lendings[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if l.Status == types.StatusReturned {
		return nil, storage.ErrAlreadyReturned
	}

	l.Status = types.StatusReturned
	l.ReturnedAt = &returnedAt
	m.lendings[id] = l

	if b, ok := m.books[l.Book]; ok && b.AvailableCopies < b.TotalCopies {
		b.AvailableCopies++
		m.books[b.ID] = b
	}
	return &l, nil
}

func (m *Memory) ListLendings(_ context.Context) ([]types.Lending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lendings := make([]types.Lending, 0, len(m.lendings))
	for _, l := range m.lendings {
		m.populateRefs(&l)
		lendings = append(lendings, l)
	}
	return lendings, nil
}

func (m *Memory) ListOverdueLendings(_ context.Context, now time.Time) ([]types.Lending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lendings := []types.Lending{}
	for _, l := range m.lendings {
		if l.Status != types.StatusReturned && l.DueDate.Before(now) {
			m.populateRefs(&l)
			lendings = append(lendings, l)
		}
	}
	return lendings, nil
}

func (m *Memory) GetLendingByID(_ context.Context, id primitive.ObjectID) (*types.Lending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lendings[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	m.populateRefs(&l)
	return &l, nil
}

func (m *Memory) populateRefs(l *types.Lending) {
	if b, ok := m.books[l.Book]; ok {
		l.BookTitle = b.Title
	}
	if r, ok := m.readers[l.Reader]; ok {
		l.ReaderName = r.Name
	}
}
