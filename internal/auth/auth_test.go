package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/auth"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/store"
)

const cookieName = "token"

func newTestEnv(t *testing.T) (*store.MemoryStore, *auth.Issuer, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	h := auth.NewHandler(ms, issuer, cookieName, decimal.NewFromInt(10000))
	h.SetBcryptCost(bcrypt.MinCost)

	r := chi.NewRouter()
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(issuer, cookieName))
		r.Post("/changepassword", h.ChangePassword)
		r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
			id, _ := auth.UserID(r.Context())
			w.Write([]byte(id))
		})
	})
	return ms, issuer, r
}

func post(t *testing.T, router chi.Router, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", cookieName)
	return nil
}

func TestSignup_CreditsStartingBalance(t *testing.T) {
	ms, _, router := newTestEnv(t)

	w := post(t, router, "/signup", auth.CredentialsRequest{Username: "alice", Password: "pw"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	account, err := ms.GetAccountByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("account not stored: %v", err)
	}
	if !account.Balance.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("expected starting balance 10000, got %s", account.Balance)
	}
	if account.PasswordHash == "pw" {
		t.Error("password stored in plain text")
	}
}

func TestSignup_Validation(t *testing.T) {
	_, _, router := newTestEnv(t)
	post(t, router, "/signup", auth.CredentialsRequest{Username: "alice", Password: "pw"})

	tests := []struct {
		name   string
		body   auth.CredentialsRequest
		status int
	}{
		{"missing password", auth.CredentialsRequest{Username: "bob"}, http.StatusBadRequest},
		{"missing username", auth.CredentialsRequest{Password: "pw"}, http.StatusBadRequest},
		{"duplicate", auth.CredentialsRequest{Username: "alice", Password: "other"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := post(t, router, "/signup", tt.body); w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	ms, issuer, router := newTestEnv(t)
	post(t, router, "/signup", auth.CredentialsRequest{Username: "alice", Password: "pw"})

	w := post(t, router, "/login", auth.CredentialsRequest{Username: "alice", Password: "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	c := sessionCookie(t, w)
	if !c.HttpOnly {
		t.Error("expected HttpOnly cookie")
	}

	claims, err := issuer.Parse(c.Value)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	account, _ := ms.GetAccountByUsername(context.Background(), "alice")
	if claims.Subject != account.ID {
		t.Errorf("expected subject %s, got %s", account.ID, claims.Subject)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	_, _, router := newTestEnv(t)
	post(t, router, "/signup", auth.CredentialsRequest{Username: "alice", Password: "pw"})

	if w := post(t, router, "/login", auth.CredentialsRequest{Username: "alice", Password: "nope"}); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong password, got %d", w.Code)
	}
	if w := post(t, router, "/login", auth.CredentialsRequest{Username: "nobody", Password: "pw"}); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown user, got %d", w.Code)
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := post(t, router, "/logout", nil)
	c := sessionCookie(t, w)
	if c.MaxAge >= 0 || c.Value != "" {
		t.Errorf("expected expired empty cookie, got %+v", c)
	}
}

func TestRequireUser(t *testing.T) {
	ms, issuer, router := newTestEnv(t)
	post(t, router, "/signup", auth.CredentialsRequest{Username: "alice", Password: "pw"})
	account, _ := ms.GetAccountByUsername(context.Background(), "alice")
	token, _ := issuer.Issue(account.ID, account.Username)

	other, _ := auth.NewIssuer("another-secret", time.Hour)
	forged, _ := other.Issue(account.ID, account.Username)

	expired, _ := auth.NewIssuer("test-secret", -time.Minute)
	stale, _ := expired.Issue(account.ID, account.Username)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: cookieName, Value: token}) }, http.StatusOK},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"forged", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: cookieName, Value: forged}) }, http.StatusForbidden},
		{"expired", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: cookieName, Value: stale}) }, http.StatusForbidden},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc.def") }, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			if tt.status == http.StatusOK && w.Body.String() != account.ID {
				t.Errorf("expected user %s, got %s", account.ID, w.Body.String())
			}
		})
	}
}

func TestChangePassword(t *testing.T) {
	_, _, router := newTestEnv(t)
	post(t, router, "/signup", auth.CredentialsRequest{Username: "alice", Password: "old"})
	c := sessionCookie(t, post(t, router, "/login", auth.CredentialsRequest{Username: "alice", Password: "old"}))

	w := post(t, router, "/changepassword", auth.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "new"}, c)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong current password, got %d", w.Code)
	}
	w = post(t, router, "/changepassword", auth.ChangePasswordRequest{CurrentPassword: "old"}, c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty new password, got %d", w.Code)
	}
	w = post(t, router, "/changepassword", auth.ChangePasswordRequest{CurrentPassword: "old", NewPassword: "new"}, c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if w := post(t, router, "/login", auth.CredentialsRequest{Username: "alice", Password: "old"}); w.Code != http.StatusUnauthorized {
		t.Errorf("old password still accepted: %d", w.Code)
	}
	if w := post(t, router, "/login", auth.CredentialsRequest{Username: "alice", Password: "new"}); w.Code != http.StatusOK {
		t.Errorf("new password rejected: %d", w.Code)
	}
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	if _, err := auth.NewIssuer("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}
