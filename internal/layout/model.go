package layout

import (
	"errors"
	"fmt"
	"math"
	"os"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Kind identifies a renderable content block.
type Kind string

const (
	KindInstruction Kind = "instruction"
	KindBody        Kind = "body"
	KindOptions     Kind = "options"
	KindTranslation Kind = "translation"
	KindSentence    Kind = "sentence"
)

// Script selects the characters-per-line constant used for a block.
type Script string

const (
	ScriptLatin  Script = "latin"
	ScriptHangul Script = "hangul"
)

// KindMetrics holds the structural overhead and line metrics of one block
// kind, in pixels.
type KindMetrics struct {
	Overhead   float64 `yaml:"overhead"`
	Margin     float64 `yaml:"margin"`
	Padding    float64 `yaml:"padding"`
	LineHeight float64 `yaml:"line_height"`
	Script     Script  `yaml:"script"`
}

// Model is the height-estimation calibration. The numbers approximate one
// print stylesheet (A4 at 96 dpi) and are meant to be tuned per surface.
type Model struct {
	LatinCharsPerLine  float64              `yaml:"latin_chars_per_line"`
	HangulCharsPerLine float64              `yaml:"hangul_chars_per_line"`
	TranslationRatio   float64              `yaml:"translation_ratio"`
	PageHeight         float64              `yaml:"page_height"`
	MarginTop          float64              `yaml:"margin_top"`
	MarginBottom       float64              `yaml:"margin_bottom"`
	Kinds              map[Kind]KindMetrics `yaml:"kinds"`
}

// DefaultModel returns the built-in calibration.
func DefaultModel() *Model {
	return &Model{
		LatinCharsPerLine:  70,
		HangulCharsPerLine: 42,
		TranslationRatio:   0.6,
		PageHeight:         1123,
		MarginTop:          76,
		MarginBottom:       76,
		Kinds: map[Kind]KindMetrics{
			KindInstruction: {Overhead: 40, Margin: 16, Padding: 8, LineHeight: 22, Script: ScriptLatin},
			KindBody:        {Overhead: 0, Margin: 16, Padding: 16, LineHeight: 26, Script: ScriptLatin},
			KindOptions:     {Overhead: 0, Margin: 16, Padding: 8, LineHeight: 28, Script: ScriptLatin},
			KindTranslation: {Overhead: 28, Margin: 12, Padding: 12, LineHeight: 24, Script: ScriptHangul},
			KindSentence:    {Overhead: 0, Margin: 10, Padding: 4, LineHeight: 26, Script: ScriptLatin},
		},
	}
}

// LoadModel reads a YAML calibration file on top of DefaultModel. Any kind
// listed in the file replaces the built-in metrics for that kind entirely.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout model: %w", err)
	}

	m := DefaultModel()
	kinds := m.Kinds
	m.Kinds = nil
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse layout model: %w", err)
	}
	for k, km := range m.Kinds {
		kinds[k] = km
	}
	m.Kinds = kinds

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks that every constant is usable for estimation.
func (m *Model) Validate() error {
	var errs []error
	if m.LatinCharsPerLine <= 0 {
		errs = append(errs, errors.New("latin_chars_per_line must be positive"))
	}
	if m.HangulCharsPerLine <= 0 {
		errs = append(errs, errors.New("hangul_chars_per_line must be positive"))
	}
	if m.TranslationRatio < 0 {
		errs = append(errs, errors.New("translation_ratio must not be negative"))
	}
	if m.MarginTop < 0 || m.MarginBottom < 0 {
		errs = append(errs, errors.New("page margins must not be negative"))
	}
	if m.UsableHeight() <= 0 {
		errs = append(errs, errors.New("page_height must exceed the page margins"))
	}
	for kind, km := range m.Kinds {
		if km.LineHeight <= 0 {
			errs = append(errs, fmt.Errorf("kind %q: line_height must be positive", kind))
		}
		if km.Overhead < 0 || km.Margin < 0 || km.Padding < 0 {
			errs = append(errs, fmt.Errorf("kind %q: overhead, margin and padding must not be negative", kind))
		}
		if km.Script != ScriptLatin && km.Script != ScriptHangul {
			errs = append(errs, fmt.Errorf("kind %q: unknown script %q", kind, km.Script))
		}
	}
	if _, ok := m.Kinds[KindBody]; !ok {
		errs = append(errs, fmt.Errorf("kind %q must be defined", KindBody))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid layout model: %w", errors.Join(errs...))
	}
	return nil
}

// UsableHeight is the vertical space available for content on one page.
func (m *Model) UsableHeight() float64 {
	return m.PageHeight - m.MarginTop - m.MarginBottom
}

// metrics falls back to the body metrics for kinds the model does not know.
func (m *Model) metrics(kind Kind) KindMetrics {
	if km, ok := m.Kinds[kind]; ok {
		return km
	}
	return m.Kinds[KindBody]
}

func (m *Model) charsPerLine(s Script) float64 {
	if s == ScriptHangul {
		return m.HangulCharsPerLine
	}
	return m.LatinCharsPerLine
}

func (m *Model) lines(textLength int, s Script) float64 {
	if textLength <= 0 {
		return 0
	}
	return math.Ceil(float64(textLength) / m.charsPerLine(s))
}

// CalculateContentHeight estimates the rendered height of a block of the
// given kind holding textLength characters. With hasTranslation, an
// estimated translation block is added below it.
func (m *Model) CalculateContentHeight(kind Kind, textLength int, hasTranslation bool) float64 {
	km := m.metrics(kind)
	h := km.Overhead + km.Margin + km.Padding + m.lines(textLength, km.Script)*km.LineHeight

	if hasTranslation && kind != KindTranslation {
		translated := int(math.Ceil(float64(textLength) * m.TranslationRatio))
		h += m.CalculateContentHeight(KindTranslation, translated, false)
	}
	return h
}

// TextHeight estimates the height of a block from its actual text. Each
// text starts on a new line; the script is detected from the characters.
func (m *Model) TextHeight(kind Kind, texts ...string) float64 {
	km := m.metrics(kind)
	h := km.Overhead + km.Margin + km.Padding
	for _, t := range texts {
		h += m.lines(utf8.RuneCountInString(t), DetectScript(t)) * km.LineHeight
	}
	return h
}

// Item is one sentence with its optional translation.
type Item struct {
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
}

// ItemHeight estimates the height of one sentence entry. When the
// translation is shown but not yet known, its size is estimated from the
// sentence length.
func (m *Model) ItemHeight(item Item, showTranslation bool) float64 {
	if !showTranslation {
		return m.TextHeight(KindSentence, item.Text)
	}
	if item.Translation == "" {
		return m.CalculateContentHeight(KindSentence, utf8.RuneCountInString(item.Text), true)
	}
	return m.TextHeight(KindSentence, item.Text) + m.TextHeight(KindTranslation, item.Translation)
}

// DetectScript reports Hangul when Hangul letters outnumber other letters.
func DetectScript(s string) Script {
	hangul, other := 0, 0
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.IsLetter(r):
			other++
		}
	}
	if hangul > other {
		return ScriptHangul
	}
	return ScriptLatin
}
