package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/sandali-perera/library-server/internal/storage"
	"github.com/sandali-perera/library-server/internal/types"
	jwtutil "github.com/sandali-perera/library-server/internal/utils/jwt"
	"github.com/sandali-perera/library-server/internal/utils/response"
)

// RefreshCookiePath scopes the refresh-token cookie to the one endpoint
// that reads it.
const RefreshCookiePath = "/auth/refresh-token"

const refreshCookieName = "refreshToken"

func Signup(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name     string `json:"name" validate:"required,min=2"`
			Email    string `json:"email" validate:"required,email"`
			Password string `json:"password" validate:"required,min=6"`
		}

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

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			response.WriteJson(w, http.StatusInternalServerError, response.GeneralError(fmt.Errorf("failed to hash password")))
			return
		}
		user := types.User{
			Name:     req.Name,
			Email:    req.Email,
			Password: string(hashedPassword),
		}

		if err := store.CreateUser(r.Context(), &user); err != nil {
			response.WriteStorageError(w, err)
			return
		}

		response.WriteJson(w, http.StatusCreated, map[string]string{
			"_id":   user.ID.Hex(),
			"name":  user.Name,
			"email": user.Email,
		})
	}
}

func Login(store storage.Storage, tokens *jwtutil.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var loginReq struct {
			Email    string `json:"email" validate:"required,email"`
			Password string `json:"password" validate:"required"`
		}

		err := json.NewDecoder(r.Body).Decode(&loginReq)
		if errors.Is(err, io.EOF) {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(fmt.Errorf("empty body")))
			return
		}
		if err != nil {
			response.WriteJson(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := validator.New().Struct(loginReq); err != nil {
			validateError := err.(validator.ValidationErrors)
			response.WriteJson(w, http.StatusBadRequest, response.ValidationError(validateError))
			return
		}

		user, err := store.GetUserByEmail(r.Context(), loginReq.Email)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				response.WriteJson(w, http.StatusNotFound, response.GeneralError(fmt.Errorf("user not found")))
				return
			}
			response.WriteJson(w, http.StatusInternalServerError, response.GeneralError(fmt.Errorf("failed to retrieve user")))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(loginReq.Password)); err != nil {
			response.WriteJson(w, http.StatusUnauthorized, response.GeneralError(fmt.Errorf("invalid email or password")))
			return
		}

		accessToken, err := tokens.GenerateAccessToken(user.ID.Hex())
		if err != nil {
			response.WriteJson(w, http.StatusInternalServerError, response.GeneralError(fmt.Errorf("failed to generate token")))
			return
		}
		refreshToken, err := tokens.GenerateRefreshToken(user.ID.Hex())
		if err != nil {
			response.WriteJson(w, http.StatusInternalServerError, response.GeneralError(fmt.Errorf("failed to generate token")))
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     refreshCookieName,
			Value:    refreshToken,
			HttpOnly: true,
			Path:     RefreshCookiePath,
			MaxAge:   int(tokens.RefreshTTL().Seconds()),
			SameSite: http.SameSiteLaxMode,
		})

		response.WriteJson(w, http.StatusOK, map[string]string{
			"_id":         user.ID.Hex(),
			"name":        user.Name,
			"email":       user.Email,
			"accessToken": accessToken,
		})
	}
}

func Refresh(store storage.Storage, tokens *jwtutil.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(refreshCookieName)
		if err != nil {
			response.WriteJson(w, http.StatusUnauthorized, response.GeneralError(fmt.Errorf("refresh token missing")))
			return
		}

		userID, err := tokens.VerifyRefreshToken(cookie.Value)
		if err != nil {
			response.WriteJson(w, http.StatusUnauthorized, response.GeneralError(fmt.Errorf("invalid or expired refresh token")))
			return
		}

		id, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			response.WriteJson(w, http.StatusUnauthorized, response.GeneralError(fmt.Errorf("refresh token payload error")))
			return
		}
		if _, err := store.GetUserByID(r.Context(), id); err != nil {
			response.WriteJson(w, http.StatusUnauthorized, response.GeneralError(fmt.Errorf("user not found")))
			return
		}

		// The refresh token is not rotated, a new access token is enough.
		accessToken, err := tokens.GenerateAccessToken(userID)
		if err != nil {
			response.WriteJson(w, http.StatusInternalServerError, response.GeneralError(fmt.Errorf("failed to generate token")))
			return
		}

		response.WriteJson(w, http.StatusOK, map[string]string{
			"accessToken": accessToken,
		})
	}
}

func Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     refreshCookieName,
			Value:    "",
			HttpOnly: true,
			Path:     RefreshCookiePath,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			SameSite: http.SameSiteLaxMode,
		})

		response.WriteJson(w, http.StatusOK, map[string]string{
			"message": "Logout successfully",
		})
	}
}

func ListUsers(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := store.ListUsers(r.Context())
		if err != nil {
			response.WriteJson(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}
		response.WriteJson(w, http.StatusOK, users)
	}
}
