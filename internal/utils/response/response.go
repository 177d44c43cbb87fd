package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sandali-perera/library-server/internal/storage"
)

type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

func WriteJson(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is required", err.Field()))
		case "email":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "min":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is too short", err.Field()))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is invalid", err.Field()))
		}
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(errMsgs, ", "),
	}
}

// WriteStorageError maps the storage sentinels onto the HTTP statuses the
// client expects: missing entities are 404, stock and state conflicts
// surface as 400 like any other rejected write.
func WriteStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		WriteJson(w, http.StatusNotFound, GeneralError(err))
	case errors.Is(err, storage.ErrDuplicateEmail),
		errors.Is(err, storage.ErrOutOfStock),
		errors.Is(err, storage.ErrConflict):
		WriteJson(w, http.StatusBadRequest, GeneralError(err))
	case errors.Is(err, storage.ErrAlreadyReturned):
		WriteJson(w, http.StatusNotFound, GeneralError(err))
	default:
		WriteJson(w, http.StatusInternalServerError, GeneralError(err))
	}
}
