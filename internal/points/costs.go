package points

import (
	"maps"

	"github.com/passage-quiz/backend/internal/models"
)

// Cost kinds. Quiz kinds cost their own name; OCR has a separate entry.
const (
	CostFillBlank      = string(models.QuizFillBlank)
	CostMultipleChoice = string(models.QuizMultipleChoice)
	CostVocabulary     = string(models.QuizVocabulary)
	CostTranslation    = string(models.QuizTranslation)
	CostOCR            = "ocr"
)

// unknownKindCost applies to kinds missing from the table so a new kind is
// never free by accident.
const unknownKindCost = 1

// Costs maps a generation kind to the points it consumes.
type Costs map[string]int

func DefaultCosts() Costs {
	return Costs{
		CostFillBlank:      1,
		CostMultipleChoice: 1,
		CostVocabulary:     1,
		CostTranslation:    1,
		CostOCR:            0,
	}
}

// NewCosts returns the defaults with overrides applied. Negative overrides
// are ignored.
func NewCosts(overrides map[string]int) Costs {
	c := DefaultCosts()
	for kind, n := range overrides {
		if n >= 0 {
			c[kind] = n
		}
	}
	return c
}

func (c Costs) Cost(kind string) int {
	if n, ok := c[kind]; ok {
		return n
	}
	return unknownKindCost
}

// Table returns a copy safe to hand to callers.
func (c Costs) Table() map[string]int {
	return maps.Clone(c)
}
