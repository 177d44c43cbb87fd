package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sandali-perera/library-server/internal/types"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrOutOfStock      = errors.New("no copies available")
	ErrAlreadyReturned = errors.New("lending already returned")
	// ErrConflict covers guarded deletes and concurrent copy-count updates.
	ErrConflict = errors.New("conflicting state")
)

// Storage is the document-store surface the handlers run against. The mongodb
// package is the real implementation, the memory package backs the tests.
type Storage interface {
	CreateUser(ctx context.Context, user *types.User) error
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*types.User, error)
	ListUsers(ctx context.Context) ([]types.User, error)

	CreateCategory(ctx context.Context, category *types.Category) error
	ListCategories(ctx context.Context) ([]types.Category, error)
	GetCategoryByID(ctx context.Context, id primitive.ObjectID) (*types.Category, error)
	UpdateCategory(ctx context.Context, id primitive.ObjectID, patch types.CategoryPatch) (*types.Category, error)
	DeleteCategory(ctx context.Context, id primitive.ObjectID) error

	CreateBook(ctx context.Context, book *types.Book) error
	ListBooks(ctx context.Context) ([]types.Book, error)
	GetBookByID(ctx context.Context, id primitive.ObjectID) (*types.Book, error)
	UpdateBook(ctx context.Context, id primitive.ObjectID, patch types.BookPatch) (*types.Book, error)
	DeleteBook(ctx context.Context, id primitive.ObjectID) error

	CreateReader(ctx context.Context, reader *types.Reader) error
	ListReaders(ctx context.Context) ([]types.Reader, error)
	GetReaderByID(ctx context.Context, id primitive.ObjectID) (*types.Reader, error)
	UpdateReader(ctx context.Context, id primitive.ObjectID, patch types.ReaderPatch) (*types.Reader, error)
	DeleteReader(ctx context.Context, id primitive.ObjectID) error

	// LendBook decrements the book's available copies and records the lending
	// as one atomic unit. Fails with ErrOutOfStock when no copy is available.
	LendBook(ctx context.Context, lending *types.Lending) error
	// ReturnLending marks the lending returned and increments the book's
	// available copies. A second return fails with ErrAlreadyReturned.
	ReturnLending(ctx context.Context, id primitive.ObjectID, returnedAt time.Time) (*types.Lending, error)
	ListLendings(ctx context.Context) ([]types.Lending, error)
	ListOverdueLendings(ctx context.Context, now time.Time) ([]types.Lending, error)
	GetLendingByID(ctx context.Context, id primitive.ObjectID) (*types.Lending, error)
}
