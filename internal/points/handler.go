package points

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/passage-quiz/backend/internal/middleware"
	"github.com/passage-quiz/backend/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	balance, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get point balance"})
		return
	}

	writeJSON(w, http.StatusOK, balance)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	q := r.URL.Query()
	limit := intQueryParam(q, "limit", 20)
	if limit == 0 || limit > 100 {
		limit = 20
	}
	offset := intQueryParam(q, "offset", 0)

	resp, err := h.service.Events(r.Context(), userID, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list point events"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetCosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.costs.Table())
}

// ── Helpers ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func intQueryParam(query url.Values, key string, defaultVal int) int {
	s := query.Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
