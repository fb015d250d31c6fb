package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/passage-quiz/backend/internal/models"
)

type GeneratedFillBlank struct {
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answerIndex"`
	Explanation string   `json:"explanation"`
}

// Answer returns the option at AnswerIndex. Callers parse through
// ParseFillBlank, which guarantees the index is in range.
func (g *GeneratedFillBlank) Answer() string {
	return g.Options[g.AnswerIndex]
}

type GeneratedMultipleChoice struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answerIndex"`
	Explanation string   `json:"explanation"`
}

type GeneratedVocabulary struct {
	Entries []models.VocabularyEntry `json:"entries"`
}

type GeneratedTranslation struct {
	Sentences []models.SentencePair `json:"sentences"`
}

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

const optionsSchemaJSON = `{
  "type": "object",
  "required": ["options", "answerIndex"],
  "properties": {
    "options": {
      "type": "array",
      "minItems": 2,
      "items": {"type": "string", "minLength": 1}
    },
    "answerIndex": {"type": "integer", "minimum": 0},
    "explanation": {"type": "string"}
  }
}`

const multipleChoiceSchemaJSON = `{
  "type": "object",
  "required": ["question", "options", "answerIndex"],
  "properties": {
    "question": {"type": "string", "minLength": 1},
    "options": {
      "type": "array",
      "minItems": 2,
      "items": {"type": "string", "minLength": 1}
    },
    "answerIndex": {"type": "integer", "minimum": 0},
    "explanation": {"type": "string"}
  }
}`

const vocabularySchemaJSON = `{
  "type": "object",
  "required": ["entries"],
  "properties": {
    "entries": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["word", "meaning"],
        "properties": {
          "word": {"type": "string", "minLength": 1},
          "meaning": {"type": "string", "minLength": 1},
          "example": {"type": "string"}
        }
      }
    }
  }
}`

const translationSchemaJSON = `{
  "type": "object",
  "required": ["sentences"],
  "properties": {
    "sentences": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["text", "translation"],
        "properties": {
          "text": {"type": "string", "minLength": 1},
          "translation": {"type": "string"}
        }
      }
    }
  }
}`

var (
	optionsSchema        = mustSchema(optionsSchemaJSON)
	multipleChoiceSchema = mustSchema(multipleChoiceSchemaJSON)
	vocabularySchema     = mustSchema(vocabularySchemaJSON)
	translationSchema    = mustSchema(translationSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid response schema: %v", err))
	}
	return schema
}

func ParseFillBlank(responseBody string) (*GeneratedFillBlank, error) {
	var out GeneratedFillBlank
	if err := decodeValidated(responseBody, optionsSchema, &out); err != nil {
		return nil, err
	}
	if err := checkAnswerIndex(out.AnswerIndex, len(out.Options)); err != nil {
		return nil, err
	}
	return &out, nil
}

func ParseMultipleChoice(responseBody string) (*GeneratedMultipleChoice, error) {
	var out GeneratedMultipleChoice
	if err := decodeValidated(responseBody, multipleChoiceSchema, &out); err != nil {
		return nil, err
	}
	if err := checkAnswerIndex(out.AnswerIndex, len(out.Options)); err != nil {
		return nil, err
	}
	return &out, nil
}

func ParseVocabulary(responseBody string) (*GeneratedVocabulary, error) {
	var out GeneratedVocabulary
	if err := decodeValidated(responseBody, vocabularySchema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func ParseTranslation(responseBody string) (*GeneratedTranslation, error) {
	var out GeneratedTranslation
	if err := decodeValidated(responseBody, translationSchema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func checkAnswerIndex(index, optionCount int) error {
	if index >= optionCount {
		return &ValidationError{Errors: []string{
			fmt.Sprintf("answerIndex %d out of range for %d options", index, optionCount),
		}}
	}
	return nil
}

func decodeValidated(responseBody string, schema *gojsonschema.Schema, out any) error {
	cleaned := extractJSON(responseBody)

	result, err := schema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return &ValidationError{Errors: errs}
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// extractJSON strips markdown fences and any prose around the outermost
// JSON object.
func extractJSON(s string) string {
	s = stripCodeFences(s)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
