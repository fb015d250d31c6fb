package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/passage-quiz/backend/internal/blanks"
	"github.com/passage-quiz/backend/internal/export"
	"github.com/passage-quiz/backend/internal/generator"
	"github.com/passage-quiz/backend/internal/layout"
	"github.com/passage-quiz/backend/internal/logger"
	"github.com/passage-quiz/backend/internal/models"
	"github.com/passage-quiz/backend/internal/points"
)

const foxPassage = "The quick brown fox (a small animal) jumps over the lazy dog."

type fakeLedger struct {
	balance   int
	cost      int
	chargeErr error
	refundErr error
	charges   int
	refunded  int
}

func (l *fakeLedger) Charge(ctx context.Context, userID int64, kind string, meta points.Meta) (*models.DeductResult, int, error) {
	if l.chargeErr != nil {
		return nil, 0, l.chargeErr
	}
	l.charges++
	if l.balance < l.cost {
		return &models.DeductResult{Success: false, RemainingPoints: l.balance}, 0, nil
	}
	l.balance -= l.cost
	return &models.DeductResult{Success: true, RemainingPoints: l.balance}, l.cost, nil
}

func (l *fakeLedger) Refund(ctx context.Context, userID int64, amount int, meta points.Meta) (*models.RefundResult, error) {
	if l.refundErr != nil {
		return nil, l.refundErr
	}
	l.balance += amount
	l.refunded += amount
	return &models.RefundResult{Success: true, RemainingPoints: l.balance}, nil
}

type fakeGenerator struct {
	fillBlank *generator.GeneratedFillBlank
	text      string
	err       error
	calls     int
}

func (g *fakeGenerator) ModelName() string { return "fake" }

func (g *fakeGenerator) GenerateFillBlank(ctx context.Context, passage string, excluded []string) (*generator.GeneratedFillBlank, *generator.LLMResponse, error) {
	g.calls++
	if g.err != nil {
		return nil, nil, g.err
	}
	return g.fillBlank, &generator.LLMResponse{PromptTokens: 120, OutputTokens: 40}, nil
}

func (g *fakeGenerator) GenerateMultipleChoice(ctx context.Context, passage string) (*generator.GeneratedMultipleChoice, *generator.LLMResponse, error) {
	g.calls++
	if g.err != nil {
		return nil, nil, g.err
	}
	return &generator.GeneratedMultipleChoice{
		Question:    "What does the fox do?",
		Options:     []string{"It sleeps.", "It jumps.", "It runs away.", "It hides.", "It eats."},
		AnswerIndex: 1,
	}, &generator.LLMResponse{}, nil
}

func (g *fakeGenerator) GenerateVocabulary(ctx context.Context, passage string) (*generator.GeneratedVocabulary, *generator.LLMResponse, error) {
	g.calls++
	if g.err != nil {
		return nil, nil, g.err
	}
	return &generator.GeneratedVocabulary{Entries: []models.VocabularyEntry{
		{Word: "quick", Meaning: "빠른", Example: "The quick brown fox."},
	}}, &generator.LLMResponse{}, nil
}

func (g *fakeGenerator) TranslateSentences(ctx context.Context, passage string) (*generator.GeneratedTranslation, *generator.LLMResponse, error) {
	g.calls++
	if g.err != nil {
		return nil, nil, g.err
	}
	return &generator.GeneratedTranslation{Sentences: []models.SentencePair{
		{Text: "Bees dance.", Translation: "벌들은 춤을 춘다."},
		{Text: "Other bees follow.", Translation: "다른 벌들이 따라간다."},
	}}, &generator.LLMResponse{}, nil
}

func (g *fakeGenerator) ExtractText(ctx context.Context, image []byte, mediaType string) (string, *generator.LLMResponse, error) {
	g.calls++
	if g.err != nil {
		return "", nil, g.err
	}
	return g.text, &generator.LLMResponse{}, nil
}

type fakeRepo struct {
	quizzes   []models.Quiz
	createErr error
}

func (r *fakeRepo) Create(ctx context.Context, q *models.Quiz) error {
	if r.createErr != nil {
		return r.createErr
	}
	q.ID = int64(len(r.quizzes) + 1)
	r.quizzes = append(r.quizzes, *q)
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, userID, quizID int64) (*models.Quiz, error) {
	for _, q := range r.quizzes {
		if q.ID == quizID && q.UserID == userID {
			return &q, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Quiz, int, error) {
	var out []models.Quiz
	for _, q := range r.quizzes {
		if q.UserID == userID {
			out = append(out, q)
		}
	}
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func foxOptions(answerIndex int) *generator.GeneratedFillBlank {
	return &generator.GeneratedFillBlank{
		Options:     []string{"lazy", "quick", "bright", "loud", "heavy"},
		AnswerIndex: answerIndex,
		Explanation: "The dog is resting.",
	}
}

func newTestService(t *testing.T, ledger *fakeLedger, gen *fakeGenerator, repo *fakeRepo) *Service {
	t.Helper()
	renderer, err := export.NewRenderer(export.Config{})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return NewService(ledger, gen, repo, layout.DefaultModel(), renderer, logger.Nop())
}

func TestGenerateFillBlank(t *testing.T) {
	ledger := &fakeLedger{balance: 3, cost: 1}
	gen := &fakeGenerator{fillBlank: foxOptions(0)}
	repo := &fakeRepo{}
	svc := newTestService(t, ledger, gen, repo)

	resp, err := svc.GenerateFillBlank(context.Background(), 7, "  "+foxPassage+"\n")
	if err != nil {
		t.Fatalf("GenerateFillBlank: %v", err)
	}
	if resp.RemainingPoints != 2 {
		t.Errorf("RemainingPoints = %d, want 2", resp.RemainingPoints)
	}
	if resp.Quiz.PointsSpent != 1 || resp.Quiz.ModelUsed != "fake" || resp.Quiz.PromptTokens != 120 {
		t.Errorf("unexpected quiz metadata: %+v", resp.Quiz)
	}

	var payload models.FillBlankQuiz
	if err := json.Unmarshal(resp.Quiz.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	want := "The quick brown fox (a small animal) jumps over the " + blanks.Placeholder + " dog."
	if payload.BlankedPassage != want {
		t.Errorf("BlankedPassage = %q, want %q", payload.BlankedPassage, want)
	}
	if payload.Answer != "lazy" {
		t.Errorf("Answer = %q, want lazy", payload.Answer)
	}
	if len(payload.ExcludedSpans) != 1 || payload.ExcludedSpans[0] != "a small animal" {
		t.Errorf("ExcludedSpans = %v", payload.ExcludedSpans)
	}
	if ledger.refunded != 0 {
		t.Errorf("refunded %d on success", ledger.refunded)
	}
}

func TestGenerateFillBlankPassageWithExistingBlank(t *testing.T) {
	ledger := &fakeLedger{balance: 1, cost: 1}
	gen := &fakeGenerator{fillBlank: &generator.GeneratedFillBlank{
		Options: []string{"cat", "dog", "cow", "hen", "owl"},
	}}
	svc := newTestService(t, ledger, gen, &fakeRepo{})

	resp, err := svc.GenerateFillBlank(context.Background(), 1, "Fill (______) first, then the cat sat.")
	if err != nil {
		t.Fatalf("GenerateFillBlank: %v", err)
	}
	var payload models.FillBlankQuiz
	if err := json.Unmarshal(resp.Quiz.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if want := "Fill (______) first, then the " + blanks.Placeholder + " sat."; payload.BlankedPassage != want {
		t.Errorf("BlankedPassage = %q, want %q", payload.BlankedPassage, want)
	}
	if ledger.refunded != 0 {
		t.Errorf("refunded %d on success", ledger.refunded)
	}
}

func TestGenerateRefundsOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		gen     *fakeGenerator
		repo    *fakeRepo
		wantErr error
	}{
		{
			name:    "generator error",
			gen:     &fakeGenerator{err: errors.New("upstream timeout")},
			repo:    &fakeRepo{},
			wantErr: ErrGeneration,
		},
		{
			name: "answer not in passage",
			gen: &fakeGenerator{fillBlank: &generator.GeneratedFillBlank{
				Options: []string{"zebra", "lazy", "quick", "loud", "heavy"},
			}},
			repo:    &fakeRepo{},
			wantErr: blanks.ErrMatchNotFound,
		},
		{
			name:    "answer only inside parentheses",
			gen:     &fakeGenerator{fillBlank: &generator.GeneratedFillBlank{Options: []string{"small", "lazy", "quick", "loud", "heavy"}}},
			repo:    &fakeRepo{},
			wantErr: ErrGeneration,
		},
		{
			name:    "save fails",
			gen:     &fakeGenerator{fillBlank: foxOptions(0)},
			repo:    &fakeRepo{createErr: errors.New("connection reset")},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{balance: 5, cost: 2}
			svc := newTestService(t, ledger, tt.gen, tt.repo)

			_, err := svc.GenerateFillBlank(context.Background(), 1, foxPassage)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if ledger.balance != 5 || ledger.refunded != 2 {
				t.Errorf("balance = %d refunded = %d, want 5 and 2", ledger.balance, ledger.refunded)
			}
			if len(tt.repo.quizzes) != 0 {
				t.Errorf("stored %d quizzes after failure", len(tt.repo.quizzes))
			}
		})
	}
}

func TestGenerateReportsFailedRefund(t *testing.T) {
	tests := []struct {
		name       string
		ledger     *fakeLedger
		wantMarked bool
	}{
		{"refund fails", &fakeLedger{balance: 2, cost: 1, refundErr: errors.New("db down")}, true},
		{"nothing charged", &fakeLedger{balance: 2, cost: 0, refundErr: errors.New("db down")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.ledger, &fakeGenerator{err: errors.New("upstream timeout")}, &fakeRepo{})
			_, err := svc.GenerateFillBlank(context.Background(), 1, foxPassage)
			if !errors.Is(err, ErrGeneration) {
				t.Fatalf("err = %v, want ErrGeneration", err)
			}
			if got := errors.Is(err, ErrRefundFailed); got != tt.wantMarked {
				t.Errorf("errors.Is(err, ErrRefundFailed) = %v, want %v", got, tt.wantMarked)
			}
		})
	}
}

func TestGenerateInsufficientPoints(t *testing.T) {
	ledger := &fakeLedger{balance: 0, cost: 1}
	gen := &fakeGenerator{fillBlank: foxOptions(0)}
	svc := newTestService(t, ledger, gen, &fakeRepo{})

	_, err := svc.GenerateFillBlank(context.Background(), 1, foxPassage)
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("err = %v, want ErrInsufficientPoints", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times without points", gen.calls)
	}
}

func TestGenerateRejectsInputBeforeCharging(t *testing.T) {
	tests := []struct {
		name    string
		passage string
	}{
		{"empty", "   "},
		{"nested parentheses", "A (very (deeply) nested) aside."},
		{"unbalanced", "An (open aside."},
		{"too long", strings.Repeat("a", MaxPassageRunes+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{balance: 5, cost: 1}
			gen := &fakeGenerator{fillBlank: foxOptions(0)}
			svc := newTestService(t, ledger, gen, &fakeRepo{})

			_, err := svc.GenerateFillBlank(context.Background(), 1, tt.passage)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
			if ledger.charges != 0 || gen.calls != 0 {
				t.Errorf("charges = %d calls = %d, want none", ledger.charges, gen.calls)
			}
		})
	}
}

func TestGenerateOtherKinds(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{balance: 10, cost: 1}
	repo := &fakeRepo{}
	svc := newTestService(t, ledger, &fakeGenerator{}, repo)

	tests := []struct {
		kind models.QuizKind
		run  func() (*models.QuizResponse, error)
	}{
		{models.QuizMultipleChoice, func() (*models.QuizResponse, error) { return svc.GenerateMultipleChoice(ctx, 1, foxPassage) }},
		{models.QuizVocabulary, func() (*models.QuizResponse, error) { return svc.GenerateVocabulary(ctx, 1, foxPassage) }},
		{models.QuizTranslation, func() (*models.QuizResponse, error) { return svc.GenerateTranslation(ctx, 1, "Bees dance. Other bees follow.") }},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			resp, err := tt.run()
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if resp.Quiz.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", resp.Quiz.Kind, tt.kind)
			}
		})
	}
	if ledger.balance != 7 {
		t.Errorf("balance = %d, want 7", ledger.balance)
	}
}

func TestExtractText(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")

	t.Run("success", func(t *testing.T) {
		ledger := &fakeLedger{balance: 1, cost: 0}
		svc := newTestService(t, ledger, &fakeGenerator{text: "Bees dance."}, &fakeRepo{})
		resp, err := svc.ExtractText(context.Background(), 1, png, "IMAGE/PNG")
		if err != nil {
			t.Fatalf("ExtractText: %v", err)
		}
		if resp.Text != "Bees dance." {
			t.Errorf("Text = %q", resp.Text)
		}
	})

	t.Run("rejects unsupported type", func(t *testing.T) {
		ledger := &fakeLedger{balance: 1, cost: 0}
		svc := newTestService(t, ledger, &fakeGenerator{}, &fakeRepo{})
		_, err := svc.ExtractText(context.Background(), 1, png, "application/pdf")
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
		if ledger.charges != 0 {
			t.Error("charged for invalid input")
		}
	})

	t.Run("refunds failed call", func(t *testing.T) {
		ledger := &fakeLedger{balance: 3, cost: 1}
		svc := newTestService(t, ledger, &fakeGenerator{err: generator.ErrVisionUnsupported}, &fakeRepo{})
		_, err := svc.ExtractText(context.Background(), 1, png, "image/png")
		if !errors.Is(err, ErrGeneration) || !errors.Is(err, generator.ErrVisionUnsupported) {
			t.Errorf("err = %v", err)
		}
		if ledger.balance != 3 {
			t.Errorf("balance = %d, want 3", ledger.balance)
		}
	})
}

func TestPreviewBlank(t *testing.T) {
	svc := newTestService(t, &fakeLedger{}, &fakeGenerator{}, &fakeRepo{})

	tests := []struct {
		name        string
		passage     string
		word        string
		wantMatched bool
		wantErr     error
	}{
		{"outside parentheses", foxPassage, "lazy", true, nil},
		{"only inside parentheses", foxPassage, "small", false, nil},
		{"passage already has a blank", "Fill (______) first, then the cat sat.", "cat", true, nil},
		{"non-ASCII word", "We visited a café today.", "café", true, nil},
		{"missing word", foxPassage, "", false, ErrInvalidInput},
		{"nested parentheses", "A (b (c) d) e", "e", false, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.PreviewBlank(tt.passage, tt.word)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("PreviewBlank: %v", err)
			}
			if resp.Matched != tt.wantMatched || resp.RoundTrip != tt.wantMatched {
				t.Errorf("Matched = %v RoundTrip = %v, want %v", resp.Matched, resp.RoundTrip, tt.wantMatched)
			}
		})
	}
}

func TestListSummaries(t *testing.T) {
	repo := &fakeRepo{quizzes: []models.Quiz{
		{ID: 1, UserID: 1, Kind: models.QuizFillBlank, SourceText: strings.Repeat("word ", 40), PointsSpent: 1},
		{ID: 2, UserID: 2, Kind: models.QuizVocabulary, SourceText: "other user"},
		{ID: 3, UserID: 1, Kind: models.QuizTranslation, SourceText: "Short\n  text."},
	}}
	svc := newTestService(t, &fakeLedger{}, &fakeGenerator{}, repo)

	resp, err := svc.List(context.Background(), 1, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Quizzes) != 2 {
		t.Fatalf("got %d of %d, want 2 of 2", len(resp.Quizzes), resp.Total)
	}
	if !strings.HasSuffix(resp.Quizzes[0].Preview, "…") {
		t.Errorf("long preview not truncated: %q", resp.Quizzes[0].Preview)
	}
	if resp.Quizzes[1].Preview != "Short text." {
		t.Errorf("Preview = %q", resp.Quizzes[1].Preview)
	}
}

func storeQuiz(t *testing.T, repo *fakeRepo, kind models.QuizKind, payload any) int64 {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	q := &models.Quiz{UserID: 1, Kind: kind, Payload: data}
	if err := repo.Create(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	return q.ID
}

func TestLayout(t *testing.T) {
	repo := &fakeRepo{}
	fillID := storeQuiz(t, repo, models.QuizFillBlank, models.FillBlankQuiz{
		BlankedPassage: "The quick brown fox jumps over the " + blanks.Placeholder + " dog.",
		Options:        []string{"lazy", "quick", "bright", "loud", "heavy"},
	})
	transID := storeQuiz(t, repo, models.QuizTranslation, models.TranslationQuiz{
		Sentences: []models.SentencePair{
			{Text: "Bees dance.", Translation: "벌들은 춤을 춘다."},
			{Text: "Other bees follow.", Translation: "다른 벌들이 따라간다."},
			{Text: "The hive eats."},
		},
	})
	svc := newTestService(t, &fakeLedger{}, &fakeGenerator{}, repo)

	tests := []struct {
		name       string
		quizID     int64
		wantBlocks []string
	}{
		{"fill blank sections", fillID, []string{string(layout.KindInstruction), string(layout.KindBody), string(layout.KindOptions)}},
		{"translation items", transID, []string{string(layout.KindSentence), string(layout.KindSentence), string(layout.KindSentence)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Layout(context.Background(), 1, tt.quizID)
			if err != nil {
				t.Fatalf("Layout: %v", err)
			}
			if strings.Join(resp.Blocks, ",") != strings.Join(tt.wantBlocks, ",") {
				t.Errorf("Blocks = %v, want %v", resp.Blocks, tt.wantBlocks)
			}
			if len(resp.Heights) != len(tt.wantBlocks) {
				t.Errorf("got %d heights", len(resp.Heights))
			}

			next := 0
			for _, page := range resp.Pages {
				for _, idx := range page {
					if idx != next {
						t.Fatalf("pages out of order: %v", resp.Pages)
					}
					next++
				}
			}
			if next != len(tt.wantBlocks) {
				t.Errorf("pages cover %d blocks, want %d", next, len(tt.wantBlocks))
			}
		})
	}

	if _, err := svc.Layout(context.Background(), 2, fillID); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user's quiz: err = %v, want ErrNotFound", err)
	}
}

func TestExportPDF(t *testing.T) {
	repo := &fakeRepo{}
	id := storeQuiz(t, repo, models.QuizVocabulary, models.VocabularyQuiz{
		Entries: []models.VocabularyEntry{{Word: "dance", Meaning: "춤추다", Example: "Bees dance."}},
	})
	svc := newTestService(t, &fakeLedger{}, &fakeGenerator{}, repo)

	var buf bytes.Buffer
	if err := svc.ExportPDF(context.Background(), 1, id, &buf); err != nil {
		t.Fatalf("ExportPDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
}

func TestBuildDocument(t *testing.T) {
	payload, _ := json.Marshal(models.MultipleChoiceQuiz{
		Passage:     foxPassage,
		Question:    "What does the fox do?",
		Options:     []string{"sleeps", "jumps"},
		AnswerIndex: 1,
		Explanation: "It jumps.",
	})
	doc, err := buildDocument(&models.Quiz{Kind: models.QuizMultipleChoice, Payload: payload})
	if err != nil {
		t.Fatal(err)
	}
	if doc.sequential() {
		t.Error("multiple choice should be laid out as sections")
	}
	if len(doc.AnswerKey) != 2 || doc.AnswerKey[0] != "Answer: (2) jumps" {
		t.Errorf("AnswerKey = %v", doc.AnswerKey)
	}

	if _, err := buildDocument(&models.Quiz{Kind: "essay", Payload: []byte("{}")}); err == nil {
		t.Error("expected unknown kind to fail")
	}
}
