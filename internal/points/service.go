package points

import (
	"context"
	"fmt"

	"github.com/passage-quiz/backend/internal/logger"
	"github.com/passage-quiz/backend/internal/models"
)

type ledgerStore interface {
	GetOrCreateBalance(ctx context.Context, userID int64) (*models.PointBalance, error)
	Deduct(ctx context.Context, userID int64, amount int, meta Meta) (*models.DeductResult, error)
	Refund(ctx context.Context, userID int64, amount int, meta Meta) (*models.RefundResult, error)
	Grant(ctx context.Context, userID int64, amount int, meta Meta) (int, error)
	ListEvents(ctx context.Context, userID int64, limit, offset int) ([]models.PointEvent, error)
}

type Service struct {
	store ledgerStore
	costs Costs
	log   *logger.Logger
}

func NewService(store ledgerStore, costs Costs, log *logger.Logger) *Service {
	return &Service{store: store, costs: costs, log: log}
}

func (s *Service) Cost(kind string) int {
	return s.costs.Cost(kind)
}

func (s *Service) Balance(ctx context.Context, userID int64) (*models.PointBalance, error) {
	return s.store.GetOrCreateBalance(ctx, userID)
}

func (s *Service) Events(ctx context.Context, userID int64, limit, offset int) (*models.PointEventsResponse, error) {
	events, err := s.store.ListEvents(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.PointEvent{}
	}
	balance, err := s.store.GetOrCreateBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.PointEventsResponse{Events: events, Balance: balance.Balance}, nil
}

// Charge deducts the cost of kind and returns the amount taken. A zero-cost
// kind never touches the ledger. Success=false in the result means the
// balance was too low and nothing was taken.
func (s *Service) Charge(ctx context.Context, userID int64, kind string, meta Meta) (*models.DeductResult, int, error) {
	cost := s.costs.Cost(kind)
	if cost == 0 {
		b, err := s.store.GetOrCreateBalance(ctx, userID)
		if err != nil {
			return nil, 0, err
		}
		return &models.DeductResult{Success: true, RemainingPoints: b.Balance}, 0, nil
	}

	res, err := s.store.Deduct(ctx, userID, cost, withKind(meta, kind))
	if err != nil {
		return nil, 0, fmt.Errorf("charge %s: %w", kind, err)
	}
	if !res.Success {
		s.log.Info("Insufficient points", "user_id", userID, "kind", kind, "cost", cost, "balance", res.RemainingPoints)
		return res, 0, nil
	}
	s.log.Debug("Points deducted", "user_id", userID, "kind", kind, "cost", cost, "remaining", res.RemainingPoints)
	return res, cost, nil
}

// Refund gives back amount after a failed generation attempt.
func (s *Service) Refund(ctx context.Context, userID int64, amount int, meta Meta) (*models.RefundResult, error) {
	if amount == 0 {
		return &models.RefundResult{Success: true}, nil
	}
	res, err := s.store.Refund(ctx, userID, amount, meta)
	if err != nil {
		s.log.Error("Refund failed", "user_id", userID, "amount", amount, "error", err)
		return nil, err
	}
	s.log.Info("Points refunded", "user_id", userID, "amount", amount, "remaining", res.RemainingPoints)
	return res, nil
}

func (s *Service) Grant(ctx context.Context, userID int64, amount int, reason string) (int, error) {
	return s.store.Grant(ctx, userID, amount, Meta{"reason": reason})
}

func withKind(meta Meta, kind string) Meta {
	out := make(Meta, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["kind"] = kind
	return out
}
