package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ── MockClient: local development ─────────────────────────

// MockClient answers every task with deterministic JSON derived from the
// passage in the prompt, so the whole pipeline runs without an API key.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	passage := passageFromPrompt(userPrompt)

	var payload any
	switch task := taskFromPrompt(userPrompt); task {
	case TaskFillBlank:
		payload = mockFillBlank(passage)
	case TaskMultipleChoice:
		payload = mockMultipleChoice(passage)
	case TaskVocabulary:
		payload = mockVocabulary(passage)
	case TaskTranslation:
		payload = mockTranslation(passage)
	default:
		return nil, fmt.Errorf("mock client: unknown task %q", task)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &LLMResponse{
		Content:      string(data),
		PromptTokens: len(userPrompt) / 4,
		OutputTokens: len(data) / 4,
	}, nil
}

func (m *MockClient) Vision(ctx context.Context, systemPrompt string, userPrompt string, image []byte, mediaType string) (*LLMResponse, error) {
	return &LLMResponse{
		Content:      fmt.Sprintf("[Mock] Transcribed %d bytes of %s. The quick brown fox (a small animal) jumps over the lazy dog.", len(image), mediaType),
		PromptTokens: 800,
		OutputTokens: 40,
	}, nil
}

var (
	bracketedSpan = regexp.MustCompile(`\([^()]*\)`)
	sentenceEnd   = regexp.MustCompile(`[^.!?]+[.!?]*`)
)

// candidateWords returns the purely alphabetic words outside parentheses, in
// order, without duplicates.
func candidateWords(passage string) []string {
	outside := bracketedSpan.ReplaceAllString(passage, " ")
	seen := make(map[string]bool)
	var words []string
	for _, field := range strings.Fields(outside) {
		w := strings.TrimFunc(field, func(r rune) bool { return !unicode.IsLetter(r) })
		if len(w) < 4 || seen[w] || strings.IndexFunc(w, func(r rune) bool { return r > unicode.MaxASCII || !unicode.IsLetter(r) }) >= 0 {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

func mockFillBlank(passage string) map[string]any {
	words := candidateWords(passage)
	answer := ""
	for _, w := range words {
		if len(w) > len(answer) {
			answer = w
		}
	}
	if answer == "" {
		answer = "example"
	}

	distractors := []string{"ordinary", "careless", "distant", "fragile"}
	answerIndex := len(passage) % 5
	options := make([]string, 0, 5)
	options = append(options, distractors[:answerIndex]...)
	options = append(options, answer)
	options = append(options, distractors[answerIndex:]...)

	return map[string]any{
		"options":     options,
		"answerIndex": answerIndex,
		"explanation": fmt.Sprintf("[Mock] %q is the only option consistent with the surrounding context.", answer),
	}
}

func mockMultipleChoice(passage string) map[string]any {
	topic := "the passage"
	if words := candidateWords(passage); len(words) > 0 {
		topic = words[0]
	}
	return map[string]any{
		"question": "[Mock] What is the main idea of the passage?",
		"options": []string{
			fmt.Sprintf("The passage explains %s in detail.", topic),
			"The author argues against a popular opinion.",
			"The passage describes a historical event.",
			"The author compares two scientific theories.",
			"The passage gives instructions for a task.",
		},
		"answerIndex": 0,
		"explanation": "[Mock] The first option summarizes the passage as a whole.",
	}
}

func mockVocabulary(passage string) map[string]any {
	words := candidateWords(passage)
	if len(words) > 8 {
		words = words[:8]
	}
	entries := make([]map[string]string, 0, len(words))
	for _, w := range words {
		entries = append(entries, map[string]string{
			"word":    strings.ToLower(w),
			"meaning": "[Mock] " + w + "의 뜻",
			"example": fmt.Sprintf("This sentence uses the word %s.", strings.ToLower(w)),
		})
	}
	return map[string]any{"entries": entries}
}

func mockTranslation(passage string) map[string]any {
	var sentences []map[string]string
	for _, s := range SplitSentences(passage) {
		sentences = append(sentences, map[string]string{
			"text":        s,
			"translation": "[Mock] " + s + " (번역)",
		})
	}
	return map[string]any{"sentences": sentences}
}

// SplitSentences breaks text at terminal punctuation.
func SplitSentences(text string) []string {
	var out []string
	for _, m := range sentenceEnd.FindAllString(text, -1) {
		if s := strings.TrimSpace(m); s != "" {
			out = append(out, s)
		}
	}
	return out
}
