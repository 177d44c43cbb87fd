package readers

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
		var reader types.Reader

		err := json.NewDecoder(r.Body).Decode(&reader)
		if errors.Is(err, io.EOF) {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("empty body")))
			return
		}
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := validator.New().Struct(reader); err != nil {
			validateError := err.(validator.ValidationErrors)
			response.WriteJson(w, http.StatusBadRequest, response.ValidationError(validateError))
			return
		}

		if err := store.CreateReader(r.Context(), &reader); err != nil {
			response.WriteStorageError(w, err)
			return
		}

		response.WriteJson(w, http.StatusCreated, reader)
	}
}

func List(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readers, err := store.ListReaders(r.Context())
		if err != nil {
			response.WriteJson(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}
		response.WriteJson(w, http.StatusOK, readers)
	}
}

func GetByID(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid reader id")))
			return
		}

		reader, err := store.GetReaderByID(r.Context(), id)
		if err != nil {
			response.WriteStorageError(w, err)
			return
		}
		response.WriteJson(w, http.StatusOK, reader)
	}
}

func Update(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid reader id")))
			return
		}

		var patch types.ReaderPatch
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

		reader, err := store.UpdateReader(r.Context(), id, patch)
		if err != nil {
			response.WriteStorageError(w, err)
			return
		}
		response.WriteJson(w, http.StatusOK, reader)
	}
}

func Delete(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid reader id")))
			return
		}

		if err := store.DeleteReader(r.Context(), id); err != nil {
			response.WriteStorageError(w, err)
			return
		}
		response.WriteJson(w, http.StatusOK, map[string]string{"message": "Reader deleted!"})
	}
}
