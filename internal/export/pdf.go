package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/passage-quiz/backend/internal/layout"
)

var ErrPageOutOfRange = errors.New("layout references a block that does not exist")

type Config struct {
	// FontPath is an optional UTF-8 TTF. Without it the core Helvetica font
	// is used and characters outside cp1252, Hangul included, are lost.
	FontPath  string
	MarginsMM float64
	PageSize  string
}

// Section is one fixed block of a quiz sheet. Lines are printed in order.
type Section struct {
	Kind  layout.Kind
	Lines []string
}

type Renderer struct {
	cfg Config
}

func NewRenderer(cfg Config) (*Renderer, error) {
	if cfg.MarginsMM <= 0 {
		cfg.MarginsMM = 20
	}
	if cfg.PageSize == "" {
		cfg.PageSize = "A4"
	}
	if cfg.FontPath != "" {
		if _, err := os.Stat(cfg.FontPath); err != nil {
			return nil, fmt.Errorf("pdf font: %w", err)
		}
	}
	return &Renderer{cfg: cfg}, nil
}

// RenderSections writes one PDF page per layout page, each holding the
// sections the layout assigned to it, followed by an answer key page.
func (r *Renderer) RenderSections(w io.Writer, title string, sections []Section, pages layout.Layout, answerKey []string) error {
	pdf, err := r.buildSections(title, sections, pages, answerKey)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

// RenderSentences writes numbered sentence entries page by page, with the
// translation under each sentence when showTranslation is set.
func (r *Renderer) RenderSentences(w io.Writer, title string, items []layout.Item, showTranslation bool, pages layout.Layout, answerKey []string) error {
	pdf, err := r.buildSentences(title, items, showTranslation, pages, answerKey)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

type sheet struct {
	pdf    *fpdf.Fpdf
	family string
	tr     func(string) string
}

func (r *Renderer) newSheet(title string) *sheet {
	pdf := fpdf.New("P", "mm", r.cfg.PageSize, "")
	pdf.SetMargins(r.cfg.MarginsMM, r.cfg.MarginsMM, r.cfg.MarginsMM)
	pdf.SetAutoPageBreak(true, r.cfg.MarginsMM)

	s := &sheet{pdf: pdf, family: "Helvetica", tr: pdf.UnicodeTranslatorFromDescriptor("")}
	if r.cfg.FontPath != "" {
		pdf.AddUTF8Font("body", "", r.cfg.FontPath)
		pdf.AddUTF8Font("body", "B", r.cfg.FontPath)
		s.family = "body"
		s.tr = func(v string) string { return v }
	}

	pdf.SetTitle(title, true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(s.family, "", 9)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})
	return s
}

func (s *sheet) heading(text string) {
	s.pdf.SetFont(s.family, "B", 18)
	s.pdf.CellFormat(0, 12, s.tr(text), "", 1, "C", false, 0, "")
	s.pdf.Ln(4)
}

func (s *sheet) section(sec Section) {
	pdf := s.pdf
	switch sec.Kind {
	case layout.KindInstruction:
		pdf.SetFont(s.family, "B", 12)
		pdf.SetFillColor(235, 235, 235)
		for _, line := range sec.Lines {
			pdf.MultiCell(0, 7, s.tr(line), "", "L", true)
		}
	case layout.KindOptions:
		pdf.SetFont(s.family, "", 11)
		for i, line := range sec.Lines {
			pdf.MultiCell(0, 7, s.tr(fmt.Sprintf("(%d) %s", i+1, line)), "", "L", false)
		}
	case layout.KindTranslation:
		pdf.SetFont(s.family, "", 10)
		pdf.SetTextColor(90, 90, 90)
		for _, line := range sec.Lines {
			pdf.MultiCell(0, 6, s.tr(line), "", "L", false)
		}
		pdf.SetTextColor(0, 0, 0)
	default:
		pdf.SetFont(s.family, "", 11)
		for _, line := range sec.Lines {
			pdf.MultiCell(0, 6.5, s.tr(line), "", "J", false)
		}
	}
	pdf.Ln(4)
}

func (s *sheet) answerKey(title string, answers []string) {
	if len(answers) == 0 {
		return
	}
	s.pdf.AddPage()
	s.heading(title + " " + cases.Title(language.English).String("answer key"))
	s.pdf.SetFont(s.family, "", 11)
	for _, a := range answers {
		s.pdf.MultiCell(0, 7, s.tr(a), "", "L", false)
	}
}

func (r *Renderer) buildSections(title string, sections []Section, pages layout.Layout, answerKey []string) (*fpdf.Fpdf, error) {
	if err := checkPages(pages, len(sections)); err != nil {
		return nil, err
	}
	title = displayTitle(title)
	s := r.newSheet(title)

	if len(pages) == 0 {
		s.pdf.AddPage()
		s.heading(title)
	}
	for i, page := range pages {
		s.pdf.AddPage()
		if i == 0 {
			s.heading(title)
		}
		for _, idx := range page {
			s.section(sections[idx])
		}
	}
	s.answerKey(title, answerKey)

	if err := s.pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return s.pdf, nil
}

func (r *Renderer) buildSentences(title string, items []layout.Item, showTranslation bool, pages layout.Layout, answerKey []string) (*fpdf.Fpdf, error) {
	if err := checkPages(pages, len(items)); err != nil {
		return nil, err
	}
	title = displayTitle(title)
	s := r.newSheet(title)

	if len(pages) == 0 {
		s.pdf.AddPage()
		s.heading(title)
	}
	for i, page := range pages {
		s.pdf.AddPage()
		if i == 0 {
			s.heading(title)
		}
		for _, idx := range page {
			item := items[idx]
			s.section(Section{Kind: layout.KindSentence, Lines: []string{fmt.Sprintf("%d. %s", idx+1, item.Text)}})
			if showTranslation && item.Translation != "" {
				s.section(Section{Kind: layout.KindTranslation, Lines: []string{item.Translation}})
			}
		}
	}
	s.answerKey(title, answerKey)

	if err := s.pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return s.pdf, nil
}

func checkPages(pages layout.Layout, n int) error {
	for _, page := range pages {
		for _, idx := range page {
			if idx < 0 || idx >= n {
				return fmt.Errorf("%w: index %d of %d", ErrPageOutOfRange, idx, n)
			}
		}
	}
	return nil
}

func displayTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Quiz"
	}
	return cases.Title(language.English).String(title)
}
