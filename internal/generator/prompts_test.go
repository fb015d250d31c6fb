package generator

import (
	"strings"
	"testing"
)

func TestSystemPrompts(t *testing.T) {
	tests := []struct {
		name     string
		prompt   string
		required []string
	}{
		{"fill blank", FillBlankSystemPrompt(), []string{"ONE word", "parentheses", "EXCLUDED", "5 options", "answerIndex", "JSON"}},
		{"multiple choice", MultipleChoiceSystemPrompt(), []string{"multiple-choice", "5 options", "answerIndex", "JSON"}},
		{"vocabulary", VocabularySystemPrompt(), []string{"Korean meaning", "example", "JSON"}},
		{"translation", TranslationSystemPrompt(), []string{"Korean", "sentences", "JSON"}},
		{"ocr", OCRSystemPrompt(), []string{"parentheses", "paragraph"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, keyword := range tt.required {
				if !strings.Contains(tt.prompt, keyword) {
					t.Errorf("%s system prompt missing keyword %q", tt.name, keyword)
				}
			}
		})
	}
}

func TestBuildFillBlankUserPrompt(t *testing.T) {
	passage := "The fox (a wild animal) ran into the (dark) forest."
	prompt := BuildFillBlankUserPrompt(passage, []string{"a wild animal", "dark"})

	required := []string{"TASK: fill_blank", "<passage>", passage, "- a wild animal", "- dark", `"answerIndex"`}
	for _, keyword := range required {
		if !strings.Contains(prompt, keyword) {
			t.Errorf("fill-blank user prompt missing %q", keyword)
		}
	}
}

func TestBuildFillBlankUserPrompt_NoExclusions(t *testing.T) {
	prompt := BuildFillBlankUserPrompt("Plain passage.", nil)
	if strings.Contains(prompt, "EXCLUDED") {
		t.Error("prompt should not list exclusions when there are none")
	}
}

func TestPromptRoundTrip(t *testing.T) {
	passage := "First line.\nSecond line with (note)."
	builders := map[string]func(string) string{
		TaskFillBlank:      func(p string) string { return BuildFillBlankUserPrompt(p, nil) },
		TaskMultipleChoice: BuildMultipleChoiceUserPrompt,
		TaskVocabulary:     BuildVocabularyUserPrompt,
		TaskTranslation:    BuildTranslationUserPrompt,
	}

	for task, build := range builders {
		prompt := build("  " + passage + "\n")
		if got := taskFromPrompt(prompt); got != task {
			t.Errorf("taskFromPrompt = %q, want %q", got, task)
		}
		if got := passageFromPrompt(prompt); got != passage {
			t.Errorf("%s: passageFromPrompt = %q, want %q", task, got, passage)
		}
	}
}
