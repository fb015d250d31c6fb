package points

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/passage-quiz/backend/internal/models"
)

var ErrInvalidAmount = errors.New("point amount must be positive")

// Meta is stored as JSONB on the point event row.
type Meta map[string]any

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ── Balance ─────────────────────────────────────────────

func (s *Store) GetOrCreateBalance(ctx context.Context, userID int64) (*models.PointBalance, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_points (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert points: %w", err)
	}

	var b models.PointBalance
	err = s.db.QueryRowContext(ctx,
		`SELECT user_id, balance, total_spent, created_at, updated_at
		 FROM user_points WHERE user_id = $1`,
		userID,
	).Scan(&b.UserID, &b.Balance, &b.TotalSpent, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get points: %w", err)
	}
	return &b, nil
}

// ── Mutations ───────────────────────────────────────────

// Deduct removes amount from the balance in a single conditional UPDATE, so
// concurrent deductions can never drive the balance below zero. An
// insufficient balance is reported through Success=false, not an error.
func (s *Store) Deduct(ctx context.Context, userID int64, amount int, meta Meta) (*models.DeductResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin deduct: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_points (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID,
	); err != nil {
		return nil, fmt.Errorf("upsert points: %w", err)
	}

	var balance int
	err = tx.QueryRowContext(ctx,
		`UPDATE user_points SET
		    balance = balance - $2,
		    total_spent = total_spent + $2,
		    updated_at = NOW()
		 WHERE user_id = $1 AND balance >= $2
		 RETURNING balance`,
		userID, amount,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		var current int
		if err := tx.QueryRowContext(ctx,
			`SELECT balance FROM user_points WHERE user_id = $1`, userID,
		).Scan(&current); err != nil {
			return nil, fmt.Errorf("read balance: %w", err)
		}
		return &models.DeductResult{Success: false, RemainingPoints: current}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("deduct points: %w", err)
	}

	if err := logEvent(ctx, tx, userID, models.PointEventDeduct, -amount, balance, meta); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit deduct: %w", err)
	}
	return &models.DeductResult{Success: true, RemainingPoints: balance}, nil
}

// Refund returns amount to the balance and reverses it from total_spent.
func (s *Store) Refund(ctx context.Context, userID int64, amount int, meta Meta) (*models.RefundResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin refund: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRowContext(ctx,
		`UPDATE user_points SET
		    balance = balance + $2,
		    total_spent = GREATEST(total_spent - $2, 0),
		    updated_at = NOW()
		 WHERE user_id = $1
		 RETURNING balance`,
		userID, amount,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.RefundResult{Success: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refund points: %w", err)
	}

	if err := logEvent(ctx, tx, userID, models.PointEventRefund, amount, balance, meta); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit refund: %w", err)
	}
	return &models.RefundResult{Success: true, RemainingPoints: balance}, nil
}

// Grant credits points without touching total_spent (signup bonus, seeding).
func (s *Store) Grant(ctx context.Context, userID int64, amount int, meta Meta) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin grant: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO user_points (user_id, balance) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET
		    balance = user_points.balance + EXCLUDED.balance,
		    updated_at = NOW()
		 RETURNING balance`,
		userID, amount,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("grant points: %w", err)
	}

	if err := logEvent(ctx, tx, userID, models.PointEventGrant, amount, balance, meta); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit grant: %w", err)
	}
	return balance, nil
}

func logEvent(ctx context.Context, tx *sql.Tx, userID int64, eventType string, amount, balance int, meta Meta) error {
	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO point_events (user_id, event_type, amount, balance, metadata)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, eventType, amount, balance, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("log point event: %w", err)
	}
	return nil
}

// encodeMeta renders meta for the JSONB column; nil meta stores NULL.
func encodeMeta(meta Meta) (*string, error) {
	if meta == nil {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode point event metadata: %w", err)
	}
	s := string(b)
	return &s, nil
}

// ── History ─────────────────────────────────────────────

func (s *Store) ListEvents(ctx context.Context, userID int64, limit, offset int) ([]models.PointEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, event_type, amount, balance, metadata, created_at
		 FROM point_events
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list point events: %w", err)
	}
	defer rows.Close()

	var events []models.PointEvent
	for rows.Next() {
		var e models.PointEvent
		var meta []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &e.Amount, &e.Balance, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan point event: %w", err)
		}
		if len(meta) > 0 {
			e.Metadata = meta
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
