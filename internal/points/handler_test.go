package points

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/passage-quiz/backend/internal/logger"
	"github.com/passage-quiz/backend/internal/middleware"
	"github.com/passage-quiz/backend/internal/models"
)

func newTestHandler(store *memStore) *Handler {
	return NewHandler(NewService(store, NewCosts(map[string]int{CostOCR: 2}), logger.Nop()))
}

func serve(h http.HandlerFunc, target string, userID int64) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	if userID != 0 {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestGetBalanceHandler(t *testing.T) {
	store := newMemStore()
	store.balances[3] = 12

	tests := []struct {
		name       string
		userID     int64
		balanceErr error
		want       int
	}{
		{"ok", 3, nil, http.StatusOK},
		{"unauthenticated", 0, nil, http.StatusUnauthorized},
		{"store failure", 3, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.balanceErr = tt.balanceErr
			rr := serve(newTestHandler(store).GetBalance, "/points", tt.userID)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.want != http.StatusOK {
				return
			}
			var b models.PointBalance
			if err := json.NewDecoder(rr.Body).Decode(&b); err != nil {
				t.Fatal(err)
			}
			if b.Balance != 12 {
				t.Errorf("Balance = %d, want 12", b.Balance)
			}
		})
	}
}

func TestListEventsHandler(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(store)
	if _, err := h.service.Grant(context.Background(), 3, 5, "seed"); err != nil {
		t.Fatal(err)
	}

	rr := serve(h.ListEvents, "/points/events?limit=500&offset=abc", 3)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp models.PointEventsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Events) != 1 || resp.Balance != 5 {
		t.Errorf("got %d events, balance %d; want 1 and 5", len(resp.Events), resp.Balance)
	}

	if rr := serve(h.ListEvents, "/points/events", 0); rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", rr.Code)
	}
}

func TestGetCostsHandler(t *testing.T) {
	rr := serve(newTestHandler(newMemStore()).GetCosts, "/points/costs", 0)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var table map[string]int
	if err := json.NewDecoder(rr.Body).Decode(&table); err != nil {
		t.Fatal(err)
	}
	if table[CostOCR] != 2 || table[CostFillBlank] != 1 {
		t.Errorf("costs = %v", table)
	}
}
