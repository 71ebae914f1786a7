package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/goparty/client/internal/storage"
	"github.com/goparty/client/pkg/validator"
)

// userRecord is the stored user, keyed by "user:<email>". The password is
// kept only as a bcrypt hash.
type userRecord struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	Token        string `json:"token"`
}

type authHandler struct {
	store    storage.Storage
	validate *validator.Validator
	logger   *slog.Logger
}

func newAuthHandler(store storage.Storage, logger *slog.Logger) *authHandler {
	return &authHandler{
		store:    store,
		validate: validator.NewValidator(),
		logger:   logger,
	}
}

type registerInput struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=2,max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authOutput struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token,omitempty"`
}

func (h *authHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var input registerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs, ok := h.validate.Validate(input); !ok {
		writeError(w, http.StatusBadRequest, errs[0].Message)
		return
	}

	ctx := r.Context()
	if _, err := h.store.Get(ctx, "user:"+input.Email); err == nil {
		writeError(w, http.StatusConflict, "user already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	user := userRecord{
		ID:           uuid.New().String(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hash),
		Token:        uuid.New().String(),
	}
	if err := h.saveUser(r, user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	writeJSON(w, http.StatusOK, authOutput{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Token:    user.Token,
	})
}

func (h *authHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var input loginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs, ok := h.validate.Validate(input); !ok {
		writeError(w, http.StatusBadRequest, errs[0].Message)
		return
	}

	ctx := r.Context()
	user, err := h.getUser(r, input.Email)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	// Rotate the bearer token on every login.
	user.Token = uuid.New().String()
	if err := h.saveUser(r, user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	h.logger.InfoContext(ctx, "user logged in", "email", user.Email)
	writeJSON(w, http.StatusOK, authOutput{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Token:    user.Token,
	})
}

func (h *authHandler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "user email is required")
		return
	}

	user, err := h.getUser(r, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "invalid user data")
		return
	}

	writeJSON(w, http.StatusOK, authOutput{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
}

func (h *authHandler) getUser(r *http.Request, email string) (userRecord, error) {
	value, err := h.store.Get(r.Context(), "user:"+email)
	if err != nil {
		return userRecord{}, err
	}

	var user userRecord
	if err := json.Unmarshal([]byte(value), &user); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to unmarshal user", "email", email, "error", err)
		return userRecord{}, err
	}
	return user, nil
}

func (h *authHandler) saveUser(r *http.Request, user userRecord) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := h.store.Set(r.Context(), "user:"+user.Email, string(data)); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to save user", "email", user.Email, "error", err)
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
