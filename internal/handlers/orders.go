package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"marketplace/internal/middleware"
	"marketplace/internal/money"
	"marketplace/internal/services"
)

type purchaseRequest struct {
	ListingID       string  `json:"listing_id"`
	DeliveryMethod  string  `json:"delivery_method"`
	DeliveryPoint   *string `json:"delivery_point"`
	DeliveryAddress *string `json:"delivery_address"`
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.ListingID == "" {
		respondError(w, http.StatusBadRequest, "listing_id is required")
		return
	}
	result, err := h.settlement.Purchase(r.Context(), services.PurchaseRequest{
		BuyerID:         userID,
		ListingID:       req.ListingID,
		DeliveryMethod:  req.DeliveryMethod,
		DeliveryPoint:   req.DeliveryPoint,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"order_id":    result.OrderID,
		"amount_paid": money.FormatMinor(result.AmountPaid),
		"balance":     money.FormatMinor(result.RemainingBalance),
	})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := paging(r)
	orders, err := h.settlement.ListOrders(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	balance, err := h.settlement.GetBalance(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"balance": money.FormatMinor(balance)})
}

type topUpRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amountMinor, err := money.ParseMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	balance, err := h.settlement.TopUp(r.Context(), userID, amountMinor)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"balance": money.FormatMinor(balance)})
}

// paging reads limit/offset query params with sane bounds.
func paging(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
