package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyTranscription = errors.New("no text found in image")

// Generator wraps an LLMClient and adds quiz-specific methods.
type Generator struct {
	llm   LLMClient
	model string
}

func NewGenerator(llm LLMClient, model string) *Generator {
	return &Generator{llm: llm, model: model}
}

func (g *Generator) ModelName() string {
	return g.model
}

// GenerateFillBlank asks for an answer word and four distractors. excluded
// lists the passage's parenthesized spans, which the model must avoid.
func (g *Generator) GenerateFillBlank(ctx context.Context, passage string, excluded []string) (*GeneratedFillBlank, *LLMResponse, error) {
	resp, err := g.llm.Generate(ctx, FillBlankSystemPrompt(), BuildFillBlankUserPrompt(passage, excluded))
	if err != nil {
		return nil, nil, fmt.Errorf("generate fill-blank: %w", err)
	}

	out, err := ParseFillBlank(resp.Content)
	if err != nil {
		return nil, resp, fmt.Errorf("parse fill-blank response: %w", err)
	}
	return out, resp, nil
}

func (g *Generator) GenerateMultipleChoice(ctx context.Context, passage string) (*GeneratedMultipleChoice, *LLMResponse, error) {
	resp, err := g.llm.Generate(ctx, MultipleChoiceSystemPrompt(), BuildMultipleChoiceUserPrompt(passage))
	if err != nil {
		return nil, nil, fmt.Errorf("generate multiple-choice: %w", err)
	}

	out, err := ParseMultipleChoice(resp.Content)
	if err != nil {
		return nil, resp, fmt.Errorf("parse multiple-choice response: %w", err)
	}
	return out, resp, nil
}

func (g *Generator) GenerateVocabulary(ctx context.Context, passage string) (*GeneratedVocabulary, *LLMResponse, error) {
	resp, err := g.llm.Generate(ctx, VocabularySystemPrompt(), BuildVocabularyUserPrompt(passage))
	if err != nil {
		return nil, nil, fmt.Errorf("generate vocabulary: %w", err)
	}

	out, err := ParseVocabulary(resp.Content)
	if err != nil {
		return nil, resp, fmt.Errorf("parse vocabulary response: %w", err)
	}
	return out, resp, nil
}

func (g *Generator) TranslateSentences(ctx context.Context, passage string) (*GeneratedTranslation, *LLMResponse, error) {
	resp, err := g.llm.Generate(ctx, TranslationSystemPrompt(), BuildTranslationUserPrompt(passage))
	if err != nil {
		return nil, nil, fmt.Errorf("translate sentences: %w", err)
	}

	out, err := ParseTranslation(resp.Content)
	if err != nil {
		return nil, resp, fmt.Errorf("parse translation response: %w", err)
	}
	return out, resp, nil
}

// ExtractText transcribes the passage in an image.
func (g *Generator) ExtractText(ctx context.Context, image []byte, mediaType string) (string, *LLMResponse, error) {
	resp, err := g.llm.Vision(ctx, OCRSystemPrompt(), OCRUserPrompt(), image, mediaType)
	if err != nil {
		return "", nil, fmt.Errorf("extract text: %w", err)
	}

	text := strings.TrimSpace(stripCodeFences(resp.Content))
	if text == "" {
		return "", resp, ErrEmptyTranscription
	}
	return text, resp, nil
}
