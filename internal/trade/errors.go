package trade

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidRequest is returned for a malformed order: empty or invalid
	// symbol, non-positive quantity, or unknown side.
	ErrInvalidRequest = errors.New("trade: invalid request")

	// ErrInsufficientFunds is returned when a buy costs more than the balance.
	ErrInsufficientFunds = errors.New("trade: insufficient funds")

	// ErrInsufficientHoldings is returned when a sell exceeds the position.
	ErrInsufficientHoldings = errors.New("trade: insufficient holdings")

	// ErrUserNotFound is returned when the account does not exist.
	ErrUserNotFound = errors.New("trade: user not found")

	// ErrPersistence is returned when the atomic commit fails. No partial
	// state is retained.
	ErrPersistence = errors.New("trade: persistence failure")
)

// Kind returns the stable wire name of err's category.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "InvalidRequest"
	case errors.Is(err, ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, ErrInsufficientHoldings):
		return "InsufficientHoldings"
	case errors.Is(err, ErrUserNotFound):
		return "UserNotFound"
	case errors.Is(err, ErrPersistence):
		return "PersistenceFailure"
	default:
		return "InternalError"
	}
}

// StatusCode maps err's category to an HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientHoldings):
		return http.StatusBadRequest
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
