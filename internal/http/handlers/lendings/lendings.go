package lendings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sandali-perera/library-server/internal/http/middleware"
	"github.com/sandali-perera/library-server/internal/storage"
	"github.com/sandali-perera/library-server/internal/types"
	"github.com/sandali-perera/library-server/internal/utils/response"
)

type lendRequest struct {
	BookID       string `json:"bookId" validate:"required"`
	ReaderID     string `json:"readerId" validate:"required"`
	DurationDays int    `json:"durationDays" validate:"omitempty,min=1"`
}

// Lend checks out one copy of a book to a reader. The copy-count decrement
// and the lending record are applied as one atomic unit by the storage
// layer, so a failed lend never leaves a phantom record or a lost copy.
func Lend(store storage.Storage, defaultDurationDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lendRequest

		err := json.NewDecoder(r.Body).Decode(&req)
		if errors.Is(err, io.EOF) {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("empty body")))
			return
		}
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := validator.New().Struct(req); err != nil {
			validateError := err.(validator.ValidationErrors)
			response.WriteJson(w, http.StatusBadRequest, response.ValidationError(validateError))
			return
		}

		bookID, err := primitive.ObjectIDFromHex(req.BookID)
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid book id")))
			return
		}
		readerID, err := primitive.ObjectIDFromHex(req.ReaderID)
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid reader id")))
			return
		}

		if _, err := store.GetReaderByID(r.Context(), readerID); err != nil {
			response.WriteStorageError(w, err)
			return
		}

		days := req.DurationDays
		if days == 0 {
			days = defaultDurationDays
		}

		now := time.Now()
		lending := types.Lending{
			Book:       bookID,
			Reader:     readerID,
			BorrowedAt: now,
			DueDate:    now.AddDate(0, 0, days),
			Status:     types.StatusBorrowed,
		}

		if err := store.LendBook(r.Context(), &lending); err != nil {
			response.WriteStorageError(w, err)
			return
		}

		slog.Info("book lent",
			slog.String("lending", lending.ID.Hex()),
			slog.String("book", lending.Book.Hex()),
			slog.String("reader", lending.Reader.Hex()),
			slog.String("by", middleware.UserID(r.Context())),
		)
		response.WriteJson(w, http.StatusCreated, lending)
	}
}

func Return(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := primitive.ObjectIDFromHex(r.PathValue("lendingId"))
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid lending id")))
			return
		}

		lending, err := store.ReturnLending(r.Context(), id, time.Now())
		if err != nil {
			response.WriteStorageError(w, err)
			return
		}

		slog.Info("book returned",
			slog.String("lending", lending.ID.Hex()),
			slog.String("book", lending.Book.Hex()),
			slog.String("by", middleware.UserID(r.Context())),
		)
		response.WriteJson(w, http.StatusOK, lending)
	}
}

func List(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lendings, err := store.ListLendings(r.Context())
		if err != nil {
			response.WriteJson(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		now := time.Now()
		for i := range lendings {
			lendings[i].Status = lendings[i].StatusAt(now)
		}
		response.WriteJson(w, http.StatusOK, lendings)
	}
}

func Overdue(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		lendings, err := store.ListOverdueLendings(r.Context(), now)
		if err != nil {
			response.WriteJson(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		for i := range lendings {
			lendings[i].Status = types.StatusOverdue
		}
		response.WriteJson(w, http.StatusOK, lendings)
	}
}

func GetByID(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid lending id")))
			return
		}

		lending, err := store.GetLendingByID(r.Context(), id)
		if err != nil {
			response.WriteStorageError(w, err)
			return
		}

		lending.Status = lending.StatusAt(time.Now())
		response.WriteJson(w, http.StatusOK, lending)
	}
}
