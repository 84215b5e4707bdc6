package handlers

import (
	"encoding/json"
	"net/http"

	"marketplace/internal/middleware"
	"marketplace/internal/money"
	"marketplace/internal/services"
	"marketplace/internal/validator"

	"github.com/go-chi/chi/v5"
)

type createListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	Facets      json.RawMessage `json:"facets"`
	PhotoPaths  []string `json:"photo_paths"`
}

func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateTitle(req.Title); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateCategory(req.Category); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	priceMinor, err := money.ParseMinor(req.Price)
	if err != nil || validator.ValidatePriceMinor(priceMinor) != nil {
		respondError(w, http.StatusBadRequest, "invalid_price")
		return
	}
	listingID, err := h.listings.Create(r.Context(), userID, services.CreateListingInput{
		Title:       req.Title,
		Description: req.Description,
		PriceMinor:  priceMinor,
		Category:    req.Category,
		Location:    req.Location,
		Facets:      string(req.Facets),
		PhotoPaths:  req.PhotoPaths,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"listing_id": listingID})
}

func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	listing, photos, err := h.listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	paths := make([]string, 0, len(photos))
	for _, photo := range photos {
		paths = append(paths, photo.Path)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":          listing.ID,
		"user_id":     listing.UserID,
		"title":       listing.Title,
		"description": listing.Description,
		"price":       money.FormatMinor(listing.Price),
		"category":    listing.Category,
		"location":    listing.Location,
		"facets":      json.RawMessage(nullableJSON(listing.Facets)),
		"active":      listing.Active,
		"created_at":  listing.CreatedAt,
		"expires_at":  listing.ExpiresAt,
		"photos":      paths,
	})
}

func (h *Handler) ListMyListings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	listings, err := h.listings.ListByOwner(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load listings")
		return
	}
	respondJSON(w, http.StatusOK, listings)
}

type updateListingRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       string          `json:"price"`
	Location    string          `json:"location"`
	Facets      json.RawMessage `json:"facets"`
}

func (h *Handler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req updateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateTitle(req.Title); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	priceMinor, err := money.ParseMinor(req.Price)
	if err != nil || validator.ValidatePriceMinor(priceMinor) != nil {
		respondError(w, http.StatusBadRequest, "invalid_price")
		return
	}
	err = h.listings.Update(r.Context(), chi.URLParam(r, "id"), userID, services.UpdateListingInput{
		Title:       req.Title,
		Description: req.Description,
		PriceMinor:  priceMinor,
		Location:    req.Location,
		Facets:      string(req.Facets),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) RenewListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	newExpiry, err := h.listings.Renew(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"expires_at": newExpiry})
}

func (h *Handler) ActivateListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	newExpiry, err := h.listings.Activate(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"expires_at": newExpiry})
}

func (h *Handler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	err = h.listings.Delete(r.Context(), chi.URLParam(r, "id"), services.Actor{
		ID:   user.ID,
		Name: user.Username,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func nullableJSON(raw string) string {
	if raw == "" {
		return "null"
	}
	return raw
}
