package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/passage-quiz/backend/internal/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, q *models.Quiz) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO quizzes (user_id, kind, source_text, payload, model_used,
		                      prompt_tokens, output_tokens, points_spent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		q.UserID, q.Kind, q.SourceText, []byte(q.Payload), q.ModelUsed,
		q.PromptTokens, q.OutputTokens, q.PointsSpent,
	).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

// Get returns the quiz only when it belongs to userID.
func (s *Store) Get(ctx context.Context, userID, quizID int64) (*models.Quiz, error) {
	var q models.Quiz
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, kind, source_text, payload, COALESCE(model_used, ''),
		        prompt_tokens, output_tokens, points_spent, created_at
		 FROM quizzes
		 WHERE id = $1 AND user_id = $2`,
		quizID, userID,
	).Scan(&q.ID, &q.UserID, &q.Kind, &q.SourceText, &payload, &q.ModelUsed,
		&q.PromptTokens, &q.OutputTokens, &q.PointsSpent, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	q.Payload = payload
	return &q, nil
}

func (s *Store) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Quiz, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quizzes WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count quizzes: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, source_text, COALESCE(model_used, ''),
		        prompt_tokens, output_tokens, points_spent, created_at
		 FROM quizzes
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []models.Quiz
	for rows.Next() {
		var q models.Quiz
		if err := rows.Scan(&q.ID, &q.UserID, &q.Kind, &q.SourceText, &q.ModelUsed,
			&q.PromptTokens, &q.OutputTokens, &q.PointsSpent, &q.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan quiz: %w", err)
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, total, rows.Err()
}
