package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/passage-quiz/backend/internal/blanks"
	"github.com/passage-quiz/backend/internal/export"
	"github.com/passage-quiz/backend/internal/generator"
	"github.com/passage-quiz/backend/internal/layout"
	"github.com/passage-quiz/backend/internal/logger"
	"github.com/passage-quiz/backend/internal/models"
	"github.com/passage-quiz/backend/internal/points"
)

var (
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrNotFound           = errors.New("quiz not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrGeneration         = errors.New("generation failed")
	ErrRefundFailed       = errors.New("refund failed")
)

const (
	MaxPassageRunes = 6000
	MaxImageBytes   = 8 << 20
	previewRunes    = 80
	refundTimeout   = 10 * time.Second
)

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// Ledger charges and refunds generation costs.
type Ledger interface {
	Charge(ctx context.Context, userID int64, kind string, meta points.Meta) (*models.DeductResult, int, error)
	Refund(ctx context.Context, userID int64, amount int, meta points.Meta) (*models.RefundResult, error)
}

type QuizGenerator interface {
	ModelName() string
	GenerateFillBlank(ctx context.Context, passage string, excluded []string) (*generator.GeneratedFillBlank, *generator.LLMResponse, error)
	GenerateMultipleChoice(ctx context.Context, passage string) (*generator.GeneratedMultipleChoice, *generator.LLMResponse, error)
	GenerateVocabulary(ctx context.Context, passage string) (*generator.GeneratedVocabulary, *generator.LLMResponse, error)
	TranslateSentences(ctx context.Context, passage string) (*generator.GeneratedTranslation, *generator.LLMResponse, error)
	ExtractText(ctx context.Context, image []byte, mediaType string) (string, *generator.LLMResponse, error)
}

type Repository interface {
	Create(ctx context.Context, q *models.Quiz) error
	Get(ctx context.Context, userID, quizID int64) (*models.Quiz, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Quiz, int, error)
}

type Service struct {
	ledger   Ledger
	gen      QuizGenerator
	repo     Repository
	layout   *layout.Model
	renderer *export.Renderer
	log      *logger.Logger
}

func NewService(ledger Ledger, gen QuizGenerator, repo Repository, model *layout.Model, renderer *export.Renderer, log *logger.Logger) *Service {
	return &Service{
		ledger:   ledger,
		gen:      gen,
		repo:     repo,
		layout:   model,
		renderer: renderer,
		log:      log.With("component", "quiz"),
	}
}

// ── Generation ──────────────────────────────────────────

type producer func(ctx context.Context) (payload any, resp *generator.LLMResponse, err error)

func (s *Service) GenerateFillBlank(ctx context.Context, userID int64, passage string) (*models.QuizResponse, error) {
	passage, err := normalizePassage(passage)
	if err != nil {
		return nil, err
	}
	if err := blanks.CheckParentheses(passage); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	return s.generate(ctx, userID, models.QuizFillBlank, passage, func(ctx context.Context) (any, *generator.LLMResponse, error) {
		excluded := blanks.ExtractExcludedSpans(passage)
		out, resp, err := s.gen.GenerateFillBlank(ctx, passage, excluded)
		if err != nil {
			return nil, resp, err
		}

		answer := out.Answer()
		blanked, err := blanks.Blank(passage, answer)
		if err != nil {
			return nil, resp, fmt.Errorf("answer %q: %w", answer, err)
		}
		s.logOptionQuality(userID, models.QuizFillBlank, out.Options, out.AnswerIndex, true)

		return models.FillBlankQuiz{
			Passage:        passage,
			BlankedPassage: blanked,
			Options:        out.Options,
			AnswerIndex:    out.AnswerIndex,
			Answer:         answer,
			Explanation:    out.Explanation,
			ExcludedSpans:  excluded,
		}, resp, nil
	})
}

func (s *Service) GenerateMultipleChoice(ctx context.Context, userID int64, passage string) (*models.QuizResponse, error) {
	passage, err := normalizePassage(passage)
	if err != nil {
		return nil, err
	}

	return s.generate(ctx, userID, models.QuizMultipleChoice, passage, func(ctx context.Context) (any, *generator.LLMResponse, error) {
		out, resp, err := s.gen.GenerateMultipleChoice(ctx, passage)
		if err != nil {
			return nil, resp, err
		}
		s.logOptionQuality(userID, models.QuizMultipleChoice, out.Options, out.AnswerIndex, false)

		return models.MultipleChoiceQuiz{
			Passage:     passage,
			Question:    out.Question,
			Options:     out.Options,
			AnswerIndex: out.AnswerIndex,
			Explanation: out.Explanation,
		}, resp, nil
	})
}

func (s *Service) GenerateVocabulary(ctx context.Context, userID int64, passage string) (*models.QuizResponse, error) {
	passage, err := normalizePassage(passage)
	if err != nil {
		return nil, err
	}

	return s.generate(ctx, userID, models.QuizVocabulary, passage, func(ctx context.Context) (any, *generator.LLMResponse, error) {
		out, resp, err := s.gen.GenerateVocabulary(ctx, passage)
		if err != nil {
			return nil, resp, err
		}
		return models.VocabularyQuiz{Passage: passage, Entries: out.Entries}, resp, nil
	})
}

func (s *Service) GenerateTranslation(ctx context.Context, userID int64, passage string) (*models.QuizResponse, error) {
	passage, err := normalizePassage(passage)
	if err != nil {
		return nil, err
	}

	return s.generate(ctx, userID, models.QuizTranslation, passage, func(ctx context.Context) (any, *generator.LLMResponse, error) {
		out, resp, err := s.gen.TranslateSentences(ctx, passage)
		if err != nil {
			return nil, resp, err
		}
		return models.TranslationQuiz{Passage: passage, Sentences: out.Sentences}, resp, nil
	})
}

// generate charges the kind's cost, runs produce and persists the result.
// Every failure after the charge refunds it; the attempt is not retried.
func (s *Service) generate(ctx context.Context, userID int64, kind models.QuizKind, passage string, produce producer) (*models.QuizResponse, error) {
	charge, taken, err := s.ledger.Charge(ctx, userID, string(kind), points.Meta{"passage_runes": utf8.RuneCountInString(passage)})
	if err != nil {
		return nil, fmt.Errorf("charge points: %w", err)
	}
	if !charge.Success {
		return nil, fmt.Errorf("%w: balance %d", ErrInsufficientPoints, charge.RemainingPoints)
	}

	start := time.Now()
	payload, resp, err := produce(ctx)
	if err != nil {
		return nil, s.fail(ctx, userID, taken, string(kind), fmt.Errorf("%w: %w", ErrGeneration, err))
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, s.fail(ctx, userID, taken, string(kind), fmt.Errorf("encode quiz: %w", err))
	}

	q := &models.Quiz{
		UserID:      userID,
		Kind:        kind,
		SourceText:  passage,
		Payload:     data,
		ModelUsed:   s.gen.ModelName(),
		PointsSpent: taken,
	}
	if resp != nil {
		q.PromptTokens = resp.PromptTokens
		q.OutputTokens = resp.OutputTokens
	}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, s.fail(ctx, userID, taken, string(kind), fmt.Errorf("save quiz: %w", err))
	}

	s.log.Info("Quiz generated",
		"user_id", userID,
		"quiz_id", q.ID,
		"kind", kind,
		"model", q.ModelUsed,
		"prompt_tokens", q.PromptTokens,
		"output_tokens", q.OutputTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &models.QuizResponse{Quiz: q, RemainingPoints: charge.RemainingPoints}, nil
}

// fail refunds amount and returns cause, marked with ErrRefundFailed when the
// refund did not go through.
func (s *Service) fail(ctx context.Context, userID int64, amount int, kind string, cause error) error {
	if err := s.refund(ctx, userID, amount, kind, cause); err != nil {
		return fmt.Errorf("%w (%w: %v)", cause, ErrRefundFailed, err)
	}
	return cause
}

// refund runs detached from the request context so a client disconnect
// cannot cancel it.
func (s *Service) refund(ctx context.Context, userID int64, amount int, kind string, cause error) error {
	if amount == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refundTimeout)
	defer cancel()

	s.log.Warn("Generation failed, refunding", "user_id", userID, "kind", kind, "amount", amount, "error", cause)
	if _, err := s.ledger.Refund(ctx, userID, amount, points.Meta{"kind": kind, "reason": cause.Error()}); err != nil {
		s.log.Error("Refund failed", "user_id", userID, "kind", kind, "amount", amount, "error", err)
		return err
	}
	return nil
}

func (s *Service) logOptionQuality(userID int64, kind models.QuizKind, options []string, answerIndex int, singleWord bool) {
	report := generator.CheckOptions(options, answerIndex, singleWord)
	if len(report.Warnings) == 0 {
		return
	}
	s.log.Warn("Generated options need review",
		"user_id", userID,
		"kind", kind,
		"quality", generator.ClassifyOptions(report),
		"warnings", report.Warnings,
	)
}

// ── OCR ─────────────────────────────────────────────────

func (s *Service) ExtractText(ctx context.Context, userID int64, image []byte, mediaType string) (*models.OCRResponse, error) {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidInput)
	}
	if len(image) > MaxImageBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidInput, MaxImageBytes)
	}
	if !allowedImageTypes[mediaType] {
		return nil, fmt.Errorf("%w: unsupported media type %q", ErrInvalidInput, mediaType)
	}

	charge, taken, err := s.ledger.Charge(ctx, userID, points.CostOCR, points.Meta{"image_bytes": len(image)})
	if err != nil {
		return nil, fmt.Errorf("charge points: %w", err)
	}
	if !charge.Success {
		return nil, fmt.Errorf("%w: balance %d", ErrInsufficientPoints, charge.RemainingPoints)
	}

	text, _, err := s.gen.ExtractText(ctx, image, mediaType)
	if err != nil {
		return nil, s.fail(ctx, userID, taken, points.CostOCR, fmt.Errorf("%w: %w", ErrGeneration, err))
	}

	s.log.Info("Text extracted", "user_id", userID, "runes", utf8.RuneCountInString(text))
	return &models.OCRResponse{Text: text, RemainingPoints: charge.RemainingPoints}, nil
}

// ── Preview ─────────────────────────────────────────────

// PreviewBlank runs the substitution locally without charging points.
func (s *Service) PreviewBlank(passage, word string) (*models.BlankPreviewResponse, error) {
	if strings.TrimSpace(passage) == "" || strings.TrimSpace(word) == "" {
		return nil, fmt.Errorf("%w: passage and word are required", ErrInvalidInput)
	}
	if err := blanks.CheckParentheses(passage); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	blanked := blanks.SubstituteFirstOutsideBrackets(passage, word)
	matched := blanked != passage
	_, err := blanks.Blank(passage, word)
	return &models.BlankPreviewResponse{
		Blanked:       blanked,
		ExcludedSpans: blanks.ExtractExcludedSpans(passage),
		Matched:       matched,
		RoundTrip:     matched && err == nil,
	}, nil
}

// ── Retrieval ───────────────────────────────────────────

func (s *Service) Get(ctx context.Context, userID, quizID int64) (*models.Quiz, error) {
	return s.repo.Get(ctx, userID, quizID)
}

func (s *Service) List(ctx context.Context, userID int64, limit, offset int) (*models.QuizListResponse, error) {
	quizzes, total, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	summaries := lo.Map(quizzes, func(q models.Quiz, _ int) models.QuizSummary {
		return models.QuizSummary{
			ID:          q.ID,
			Kind:        q.Kind,
			Preview:     preview(q.SourceText),
			PointsSpent: q.PointsSpent,
			CreatedAt:   q.CreatedAt,
		}
	})
	return &models.QuizListResponse{Quizzes: summaries, Total: total}, nil
}

// ── Layout & export ─────────────────────────────────────

// Layout estimates block heights and splits the quiz into printed pages.
func (s *Service) Layout(ctx context.Context, userID, quizID int64) (*models.LayoutResponse, error) {
	q, err := s.repo.Get(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	doc, err := buildDocument(q)
	if err != nil {
		return nil, err
	}
	pages, heights, err := s.paginate(doc)
	if err != nil {
		return nil, err
	}

	var blocks []string
	if doc.sequential() {
		blocks = lo.Map(doc.Items, func(it layout.Item, _ int) string { return string(layout.KindSentence) })
	} else {
		blocks = lo.Map(doc.Sections, func(sec export.Section, _ int) string { return string(sec.Kind) })
	}

	return &models.LayoutResponse{
		QuizID:  q.ID,
		Kind:    q.Kind,
		Budget:  s.layout.UsableHeight(),
		Blocks:  blocks,
		Heights: heights,
		Pages:   pages,
	}, nil
}

func (s *Service) paginate(doc *document) (layout.Layout, []float64, error) {
	budget := s.layout.UsableHeight()
	if doc.sequential() {
		heights := lo.Map(doc.Items, func(it layout.Item, _ int) float64 {
			return s.layout.ItemHeight(it, doc.ShowTranslation)
		})
		pages, err := layout.PartitionSequentialItems(heights, budget, layout.DefaultSafetyMargin)
		return pages, heights, err
	}

	heights := lo.Map(doc.Sections, func(sec export.Section, _ int) float64 {
		return s.layout.TextHeight(sec.Kind, sec.Lines...)
	})
	pages, err := layout.PartitionFixedSections(heights, budget)
	return pages, heights, err
}

// ExportPDF renders the quiz as an A4 PDF paginated by Layout.
func (s *Service) ExportPDF(ctx context.Context, userID, quizID int64, w io.Writer) error {
	q, err := s.repo.Get(ctx, userID, quizID)
	if err != nil {
		return err
	}
	doc, err := buildDocument(q)
	if err != nil {
		return err
	}
	pages, _, err := s.paginate(doc)
	if err != nil {
		return err
	}

	if doc.sequential() {
		return s.renderer.RenderSentences(w, doc.Title, doc.Items, doc.ShowTranslation, pages, doc.AnswerKey)
	}
	return s.renderer.RenderSections(w, doc.Title, doc.Sections, pages, doc.AnswerKey)
}

// ── Helpers ─────────────────────────────────────────────

func normalizePassage(passage string) (string, error) {
	passage = strings.TrimSpace(passage)
	if passage == "" {
		return "", fmt.Errorf("%w: passage is required", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(passage); n > MaxPassageRunes {
		return "", fmt.Errorf("%w: passage has %d characters, limit is %d", ErrInvalidInput, n, MaxPassageRunes)
	}
	return passage, nil
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	return string([]rune(text)[:previewRunes]) + "…"
}
