package handlers

import (
	"net/http"

	"marketplace/internal/middleware"
	"marketplace/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) adminActor(r *http.Request) (services.Actor, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return services.Actor{}, false
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		return services.Actor{}, false
	}
	return services.Actor{ID: user.ID, Name: user.Username, Admin: true}, true
}

func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	users, err := h.admin.ListUsers(r.Context(), r.URL.Query().Get("search"), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *Handler) AdminListListings(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	listings, err := h.admin.ListListings(r.Context(), r.URL.Query().Get("search"), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load listings")
		return
	}
	respondJSON(w, http.StatusOK, listings)
}

func (h *Handler) AdminToggleBan(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.adminActor(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	banned, err := h.admin.ToggleBan(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"banned": banned})
}

func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.adminActor(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.admin.DeleteUser(r.Context(), chi.URLParam(r, "id"), actor); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) AdminDeleteListing(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.adminActor(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.listings.Delete(r.Context(), chi.URLParam(r, "id"), actor); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) AdminSyncSearch(w http.ResponseWriter, r *http.Request) {
	count, err := h.listings.SyncAll(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "search sync failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"synced": count})
}

// AdminOutboxDepth reports how many index intents are waiting. A depth
// that keeps growing means the search provider is down or rejecting
// writes.
func (h *Handler) AdminOutboxDepth(w http.ResponseWriter, r *http.Request) {
	pending, err := h.outbox.CountPending(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to read outbox")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"pending": pending})
}

func (h *Handler) AdminListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	logs, err := h.admin.ListAuditLogs(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}
