package books

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sandali-perera/library-server/internal/storage"
	"github.com/sandali-perera/library-server/internal/types"
	"github.com/sandali-perera/library-server/internal/utils/response"
)

func Create(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var book types.Book

		err := json.NewDecoder(r.Body).Decode(&book)
		if errors.Is(err, io.EOF) {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("empty body")))
			return
		}
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := validator.New().Struct(book); err != nil {
			validateError := err.(validator.ValidationErrors)
			response.WriteJson(w, http.StatusBadRequest, response.ValidationError(validateError))
			return
		}

		// The category reference must resolve before the book is stored.
		if _, err := store.GetCategoryByID(r.Context(), book.Category); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("category not found")))
				return
			}
			response.WriteJson(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		if err := store.CreateBook(r.Context(), &book); err != nil {
			response.WriteStorageError(w, err)
			return
		}

		response.WriteJson(w, http.StatusCreated, book)
	}
}

func List(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		books, err := store.ListBooks(r.Context())
		if err != nil {
			response.WriteJson(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}
		response.WriteJson(w, http.StatusOK, books)
	}
}

func GetByID(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid book id")))
			return
		}

		book, err := store.GetBookByID(r.Context(), id)
		if err != nil {
			response.WriteStorageError(w, err)
			return
		}
		response.WriteJson(w, http.StatusOK, book)
	}
}

func Update(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid book id")))
			return
		}

		var patch types.BookPatch
		err = json.NewDecoder(r.Body).Decode(&patch)
		if errors.Is(err, io.EOF) {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("empty body")))
			return
		}
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := validator.New().Struct(patch); err != nil {
			validateError := err.(validator.ValidationErrors)
			response.WriteJson(w, http.StatusBadRequest, response.ValidationError(validateError))
			return
		}

		if patch.Category != nil {
			if _, err := store.GetCategoryByID(r.Context(), *patch.Category); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("category not found")))
					return
				}
				response.WriteJson(w, http.StatusInternalServerError, response.GeneralError(err))
				return
			}
		}

		book, err := store.UpdateBook(r.Context(), id, patch)
		if err != nil {
			response.WriteStorageError(w, err)
			return
		}
		response.WriteJson(w, http.StatusOK, book)
	}
}

func Delete(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid book id")))
			return
		}

		if err := store.DeleteBook(r.Context(), id); err != nil {
			response.WriteStorageError(w, err)
			return
		}
		response.WriteJson(w, http.StatusOK, map[string]string{"message": "Book deleted!"})
	}
}
