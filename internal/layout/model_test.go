package layout

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCalculateContentHeight(t *testing.T) {
	m := DefaultModel()

	tests := []struct {
		name           string
		kind           Kind
		textLength     int
		hasTranslation bool
		want           float64
	}{
		// 16 margin + 16 padding + 2 lines * 26
		{"body two lines", KindBody, 140, false, 84},
		// body 84 + translation of ceil(140*0.6)=84 hangul chars: 28+12+12+2*24
		{"body with translation", KindBody, 140, true, 184},
		{"empty body keeps structure", KindBody, 0, false, 32},
		// 40 banner + 16 + 8 + 1 line * 22
		{"instruction banner", KindInstruction, 30, false, 86},
		// hangul packs fewer characters per line: ceil(100/42)=3
		{"translation uses hangul width", KindTranslation, 100, false, 124},
		{"translation ignores hasTranslation", KindTranslation, 100, true, 124},
		{"unknown kind falls back to body", Kind("sidebar"), 140, false, 84},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.CalculateContentHeight(tt.kind, tt.textLength, tt.hasTranslation)
			if got != tt.want {
				t.Errorf("CalculateContentHeight(%s, %d, %v) = %v, want %v", tt.kind, tt.textLength, tt.hasTranslation, got, tt.want)
			}
		})
	}
}

func TestTextHeightDetectsScript(t *testing.T) {
	m := DefaultModel()
	latin := "abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij" // 54 runes, one latin line
	hangul := "가나다라마바사아자차 가나다라마바사아자차 가나다라마바사아자차 가나다라마바사아자차 가나다라"

	if got := m.TextHeight(KindBody, latin); got != 32+26 {
		t.Errorf("latin text height = %v, want %v", got, 32+26)
	}
	// 48 runes over 42 per line
	if got := m.TextHeight(KindBody, hangul); got != 32+2*26 {
		t.Errorf("hangul text height = %v, want %v", got, 32+2*26)
	}
	if got := m.TextHeight(KindOptions, "A", "B", "C"); got != 16+8+3*28 {
		t.Errorf("options height = %v, want %v", got, 16+8+3*28)
	}
}

func TestDetectScript(t *testing.T) {
	if got := DetectScript("Hello world"); got != ScriptLatin {
		t.Errorf("expected latin, got %s", got)
	}
	if got := DetectScript("안녕하세요 반가워요 world"); got != ScriptHangul {
		t.Errorf("expected hangul, got %s", got)
	}
	if got := DetectScript("12345 !?"); got != ScriptLatin {
		t.Errorf("expected latin for digits, got %s", got)
	}
}

func TestItemHeight(t *testing.T) {
	m := DefaultModel()
	item := Item{Text: "Short sentence.", Translation: "짧은 문장."}

	plain := m.ItemHeight(item, false)
	withKnown := m.ItemHeight(item, true)
	withEstimated := m.ItemHeight(Item{Text: item.Text}, true)

	if plain != 10+4+26 {
		t.Errorf("plain height = %v, want %v", plain, 10+4+26)
	}
	if withKnown != plain+28+12+12+24 {
		t.Errorf("known translation height = %v, want %v", withKnown, plain+28+12+12+24)
	}
	if withEstimated <= plain {
		t.Errorf("estimated translation should add height: %v <= %v", withEstimated, plain)
	}
}

func TestLoadModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.yaml")
	content := `
latin_chars_per_line: 65
hangul_chars_per_line: 40
kinds:
  body:
    overhead: 0
    margin: 20
    padding: 10
    line_height: 30
    script: latin
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if m.LatinCharsPerLine != 65 || m.HangulCharsPerLine != 40 {
		t.Errorf("chars per line not loaded: %v / %v", m.LatinCharsPerLine, m.HangulCharsPerLine)
	}
	if m.PageHeight != 1123 {
		t.Errorf("expected default page height to survive, got %v", m.PageHeight)
	}
	// 20 + 10 + ceil(130/65)=2 lines * 30
	if got := m.CalculateContentHeight(KindBody, 130, false); got != 90 {
		t.Errorf("body height with loaded model = %v, want 90", got)
	}
	if _, ok := m.Kinds[KindTranslation]; !ok {
		t.Error("expected default translation metrics to be kept")
	}
}

func TestLoadModelRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	content := `
latin_chars_per_line: 0
kinds:
  body:
    margin: 10
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadModel(path); err == nil {
		t.Fatal("expected invalid model to be rejected")
	}
	if _, err := LoadModel(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected missing file to fail")
	}
}

func TestUsableHeight(t *testing.T) {
	m := DefaultModel()
	if got := m.UsableHeight(); got != 1123-76-76 {
		t.Errorf("UsableHeight() = %v, want %v", got, 1123-76-76)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("default model should validate: %v", err)
	}
}
