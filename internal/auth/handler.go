package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/metrics"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/model"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/store"
)

// Handler serves the account endpoints.
type Handler struct {
	store           store.Store
	issuer          *Issuer
	cookieName      string
	startingBalance decimal.Decimal
	bcryptCost      int
}

// NewHandler creates the account handlers. New accounts are credited
// startingBalance.
func NewHandler(st store.Store, issuer *Issuer, cookieName string, startingBalance decimal.Decimal) *Handler {
	return &Handler{
		store:           st,
		issuer:          issuer,
		cookieName:      cookieName,
		startingBalance: startingBalance,
		bcryptCost:      bcrypt.DefaultCost,
	}
}

// SetBcryptCost overrides the hashing cost (tests use bcrypt.MinCost).
func (h *Handler) SetBcryptCost(cost int) {
	h.bcryptCost = cost
}

// CredentialsRequest is the JSON body for signup and login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChangePasswordRequest is the JSON body for POST /changepassword.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Signup handles POST /signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeMessage(w, http.StatusBadRequest, "Username is required")
		return
	}
	if req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Password is required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		// bcrypt rejects passwords over 72 bytes.
		writeMessage(w, http.StatusBadRequest, "Password is too long")
		return
	}

	account := &model.Account{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Balance:      h.startingBalance,
		CreatedAt:    time.Now().UTC(),
	}
	err = h.store.CreateAccount(r.Context(), account)
	switch {
	case errors.Is(err, store.ErrAccountExists):
		writeMessage(w, http.StatusConflict, "User already exists")
		return
	case err != nil:
		slog.Error("create account failed", "username", username, "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error creating user")
		return
	}

	metrics.Signups.Inc()
	slog.Info("account created", "user", account.ID, "username", username)
	writeMessage(w, http.StatusCreated, "User created successfully")
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.store.GetAccountByUsername(r.Context(), strings.TrimSpace(req.Username))
	switch {
	case errors.Is(err, store.ErrAccountNotFound):
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case err != nil:
		slog.Error("login lookup failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error logging in")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.issuer.Issue(account.ID, account.Username)
	if err != nil {
		slog.Error("issue token failed", "user", account.ID, "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error logging in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.issuer.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeMessage(w, http.StatusOK, "Login successful")
}

// Logout handles POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// ChangePassword handles POST /changepassword. Requires RequireUser.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Access token missing")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.NewPassword == "" {
		writeMessage(w, http.StatusBadRequest, "New password is required")
		return
	}

	ctx := r.Context()
	account, err := h.store.GetAccount(ctx, userID)
	switch {
	case errors.Is(err, store.ErrAccountNotFound):
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	case err != nil:
		slog.Error("change password lookup failed", "user", userID, "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error changing password")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.CurrentPassword)) != nil {
		writeMessage(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), h.bcryptCost)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Password is too long")
		return
	}
	if err := h.store.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		slog.Error("update password failed", "user", userID, "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error changing password")
		return
	}

	writeMessage(w, http.StatusOK, "Password changed successfully")
}

// writeMessage writes a JSON {"message": ...} response.
func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
