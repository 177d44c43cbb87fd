package categories

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
		var category types.Category

		err := json.NewDecoder(r.Body).Decode(&category)
		if errors.Is(err, io.EOF) {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("empty body")))
			return
		}
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := validator.New().Struct(category); err != nil {
			validateError := err.(validator.ValidationErrors)
			response.WriteJson(w, http.StatusBadRequest, response.ValidationError(validateError))
			return
		}

		if err := store.CreateCategory(r.Context(), &category); err != nil {
			response.WriteStorageError(w, err)
			return
		}

		response.WriteJson(w, http.StatusCreated, category)
	}
}

func List(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := store.ListCategories(r.Context())
		if err != nil {
			response.WriteJson(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}
		response.WriteJson(w, http.StatusOK, categories)
	}
}

func GetByID(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid category id")))
			return
		}

		category, err := store.GetCategoryByID(r.Context(), id)
		if err != nil {
			response.WriteStorageError(w, err)
			return
		}
		response.WriteJson(w, http.StatusOK, category)
	}
}

func Update(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid category id")))
			return
		}

		var patch types.CategoryPatch
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

		category, err := store.UpdateCategory(r.Context(), id, patch)
		if err != nil {
			response.WriteStorageError(w, err)
			return
		}
		response.WriteJson(w, http.StatusOK, category)
	}
}

func Delete(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("invalid category id")))
			return
		}

		if err := store.DeleteCategory(r.Context(), id); err != nil {
			response.WriteStorageError(w, err)
			return
		}
		response.WriteJson(w, http.StatusOK, map[string]string{"message": "Category deleted!"})
	}
}
