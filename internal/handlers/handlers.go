package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"marketplace/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError translates the service error taxonomy into HTTP
// statuses. Unknown errors stay opaque 500s.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrListingNotFound):
		respondError(w, http.StatusNotFound, "listing_not_found")
	case errors.Is(err, services.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "user_not_found")
	case errors.Is(err, services.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrListingUnavailable):
		respondError(w, http.StatusConflict, "listing_not_available")
	case errors.Is(err, services.ErrOwnListing):
		respondError(w, http.StatusBadRequest, "cannot_buy_own_listing")
	case errors.Is(err, services.ErrInsufficientFunds):
		respondError(w, http.StatusBadRequest, "insufficient_funds")
	case errors.Is(err, services.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "invalid_amount")
	case errors.Is(err, services.ErrRenewTooEarly):
		respondError(w, http.StatusBadRequest, "renew_too_early")
	case errors.Is(err, services.ErrAdminProtected):
		respondError(w, http.StatusBadRequest, "cannot_target_admin")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error")
	}
}
