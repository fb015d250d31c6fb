package models

import (
	"encoding/json"
	"time"
)

type QuizKind string

const (
	QuizFillBlank      QuizKind = "fill_blank"
	QuizMultipleChoice QuizKind = "multiple_choice"
	QuizVocabulary     QuizKind = "vocabulary"
	QuizTranslation    QuizKind = "translation"
)

var ValidQuizKinds = map[QuizKind]bool{
	QuizFillBlank:      true,
	QuizMultipleChoice: true,
	QuizVocabulary:     true,
	QuizTranslation:    true,
}

// Quiz is a persisted generation result. Payload holds one of the
// kind-specific structs below.
type Quiz struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Kind         QuizKind        `json:"kind"`
	SourceText   string          `json:"source_text"`
	Payload      json.RawMessage `json:"payload"`
	ModelUsed    string          `json:"model_used"`
	PromptTokens int             `json:"prompt_tokens"`
	OutputTokens int             `json:"output_tokens"`
	PointsSpent  int             `json:"points_spent"`
	CreatedAt    time.Time       `json:"created_at"`
}

type FillBlankQuiz struct {
	Passage        string   `json:"passage"`
	BlankedPassage string   `json:"blanked_passage"`
	Options        []string `json:"options"`
	AnswerIndex    int      `json:"answer_index"`
	Answer         string   `json:"answer"`
	Explanation    string   `json:"explanation,omitempty"`
	ExcludedSpans  []string `json:"excluded_spans,omitempty"`
}

type MultipleChoiceQuiz struct {
	Passage     string   `json:"passage"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation,omitempty"`
}

type VocabularyEntry struct {
	Word    string `json:"word"`
	Meaning string `json:"meaning"`
	Example string `json:"example,omitempty"`
}

type VocabularyQuiz struct {
	Passage string            `json:"passage"`
	Entries []VocabularyEntry `json:"entries"`
}

type SentencePair struct {
	Text        string `json:"text"`
	Translation string `json:"translation"`
}

type TranslationQuiz struct {
	Passage   string         `json:"passage"`
	Sentences []SentencePair `json:"sentences"`
}

// ── API Request/Response Types ────────────────────────────

type QuizRequest struct {
	Passage string `json:"passage"`
}

type QuizResponse struct {
	Quiz            *Quiz `json:"quiz"`
	RemainingPoints int   `json:"remaining_points"`
}

type QuizSummary struct {
	ID          int64     `json:"id"`
	Kind        QuizKind  `json:"kind"`
	Preview     string    `json:"preview"`
	PointsSpent int       `json:"points_spent"`
	CreatedAt   time.Time `json:"created_at"`
}

type QuizListResponse struct {
	Quizzes []QuizSummary `json:"quizzes"`
	Total   int           `json:"total"`
}

// OCRRequest carries a base64-encoded image in Image.
type OCRRequest struct {
	Image     []byte `json:"image"`
	MediaType string `json:"media_type"`
}

type OCRResponse struct {
	Text            string `json:"text"`
	RemainingPoints int    `json:"remaining_points"`
}

type BlankPreviewRequest struct {
	Passage string `json:"passage"`
	Word    string `json:"word"`
}

type BlankPreviewResponse struct {
	Blanked       string   `json:"blanked"`
	ExcludedSpans []string `json:"excluded_spans"`
	Matched       bool     `json:"matched"`
	RoundTrip     bool     `json:"round_trip"`
}

type LayoutResponse struct {
	QuizID  int64     `json:"quiz_id"`
	Kind    QuizKind  `json:"kind"`
	Budget  float64   `json:"budget"`
	Blocks  []string  `json:"blocks"`
	Heights []float64 `json:"heights"`
	Pages   [][]int   `json:"pages"`
}
