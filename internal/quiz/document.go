package quiz

import (
	"encoding/json"
	"fmt"

	"github.com/passage-quiz/backend/internal/export"
	"github.com/passage-quiz/backend/internal/layout"
	"github.com/passage-quiz/backend/internal/models"
)

// document is the printable form of a quiz. Fill-blank and multiple-choice
// quizzes are a few fixed sections; translation and vocabulary quizzes are a
// sequence of items.
type document struct {
	Title           string
	Sections        []export.Section
	Items           []layout.Item
	ShowTranslation bool
	AnswerKey       []string
}

func (d *document) sequential() bool {
	return d.Sections == nil
}

func buildDocument(q *models.Quiz) (*document, error) {
	switch q.Kind {
	case models.QuizFillBlank:
		var p models.FillBlankQuiz
		if err := json.Unmarshal(q.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode fill-blank payload: %w", err)
		}
		return &document{
			Title: "fill in the blank",
			Sections: []export.Section{
				{Kind: layout.KindInstruction, Lines: []string{"Read the passage and choose the word that best fits the blank."}},
				{Kind: layout.KindBody, Lines: []string{p.BlankedPassage}},
				{Kind: layout.KindOptions, Lines: p.Options},
			},
			AnswerKey: answerLines(p.AnswerIndex, p.Answer, p.Explanation),
		}, nil

	case models.QuizMultipleChoice:
		var p models.MultipleChoiceQuiz
		if err := json.Unmarshal(q.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode multiple-choice payload: %w", err)
		}
		answer := ""
		if p.AnswerIndex >= 0 && p.AnswerIndex < len(p.Options) {
			answer = p.Options[p.AnswerIndex]
		}
		return &document{
			Title: "reading comprehension",
			Sections: []export.Section{
				{Kind: layout.KindInstruction, Lines: []string{p.Question}},
				{Kind: layout.KindBody, Lines: []string{p.Passage}},
				{Kind: layout.KindOptions, Lines: p.Options},
			},
			AnswerKey: answerLines(p.AnswerIndex, answer, p.Explanation),
		}, nil

	case models.QuizTranslation:
		var p models.TranslationQuiz
		if err := json.Unmarshal(q.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode translation payload: %w", err)
		}
		items := make([]layout.Item, len(p.Sentences))
		for i, s := range p.Sentences {
			items[i] = layout.Item{Text: s.Text, Translation: s.Translation}
		}
		return &document{Title: "sentence translation", Items: items, ShowTranslation: true}, nil

	case models.QuizVocabulary:
		var p models.VocabularyQuiz
		if err := json.Unmarshal(q.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode vocabulary payload: %w", err)
		}
		items := make([]layout.Item, len(p.Entries))
		for i, e := range p.Entries {
			text := e.Word
			if e.Example != "" {
				text += ": " + e.Example
			}
			items[i] = layout.Item{Text: text, Translation: e.Meaning}
		}
		return &document{Title: "vocabulary", Items: items, ShowTranslation: true}, nil
	}
	return nil, fmt.Errorf("unknown quiz kind %q", q.Kind)
}

func answerLines(index int, answer, explanation string) []string {
	lines := []string{fmt.Sprintf("Answer: (%d) %s", index+1, answer)}
	if explanation != "" {
		lines = append(lines, explanation)
	}
	return lines
}
