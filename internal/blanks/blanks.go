package blanks

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder replaces the answer word in a blanked passage.
const Placeholder = "(__________)"

var (
	ErrEmptyWord             = errors.New("answer word is empty")
	ErrNestedParentheses     = errors.New("nested parentheses are not supported")
	ErrUnbalancedParentheses = errors.New("unbalanced parentheses")
	ErrMatchNotFound         = errors.New("answer word not found outside parentheses")
	ErrRoundTripMismatch     = errors.New("blanked passage does not restore to the original")
)

var (
	spanPattern        = regexp.MustCompile(`\(([^()]*)\)`)
	placeholderPattern = regexp.MustCompile(`\(\s*_{6,}\s*\)`)
)

// ExtractExcludedSpans returns the trimmed contents of every parenthesized
// span in passage, left to right. A ")" always closes the nearest open "(".
// Spans that are blank after trimming are skipped.
func ExtractExcludedSpans(passage string) []string {
	matches := spanPattern.FindAllStringSubmatch(passage, -1)
	spans := make([]string, 0, len(matches))
	for _, m := range matches {
		s := strings.TrimSpace(m[1])
		if s == "" {
			continue
		}
		spans = append(spans, s)
	}
	return spans
}

// CheckParentheses rejects passages whose parentheses nest or do not pair up.
func CheckParentheses(passage string) error {
	depth := 0
	for _, r := range passage {
		switch r {
		case '(':
			if depth > 0 {
				return ErrNestedParentheses
			}
			depth++
		case ')':
			if depth == 0 {
				return ErrUnbalancedParentheses
			}
			depth--
		}
	}
	if depth != 0 {
		return ErrUnbalancedParentheses
	}
	return nil
}

// tokenize splits s at every "(" and ")", keeping each delimiter as its own token.
func tokenize(s string) []string {
	var tokens []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] != '(' && s[i] != ')' {
			continue
		}
		if i > start {
			tokens = append(tokens, s[start:i])
		}
		tokens = append(tokens, s[i:i+1])
		start = i + 1
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

// SubstituteFirstOutsideBrackets replaces the first case-sensitive,
// whole-word occurrence of word that is not inside parentheses with
// Placeholder. If there is no such occurrence, or word is empty, passage is
// returned unchanged.
func SubstituteFirstOutsideBrackets(passage, word string) string {
	blanked, _ := substitute(passage, word)
	return blanked
}

// substitute also returns the byte offset of the inserted placeholder in the
// result, or -1 when nothing was replaced.
func substitute(passage, word string) (string, int) {
	if word == "" {
		return passage, -1
	}

	inside := false
	at := -1

	var sb strings.Builder
	sb.Grow(len(passage) + len(Placeholder))
	for _, tok := range tokenize(passage) {
		switch tok {
		case "(":
			inside = true
		case ")":
			inside = false
		default:
			if !inside && at < 0 {
				if i := indexWord(tok, word); i >= 0 {
					at = sb.Len() + i
					tok = tok[:i] + Placeholder + tok[i+len(word):]
				}
			}
		}
		sb.WriteString(tok)
	}
	return sb.String(), at
}

// indexWord finds the first occurrence of word in s that is not part of a
// longer word. Boundaries are only enforced on the edges of word that are
// themselves word characters, so "U.S." matches before a space or a period.
func indexWord(s, word string) int {
	first, _ := utf8.DecodeRuneInString(word)
	last, _ := utf8.DecodeLastRuneInString(word)

	for from := 0; from+len(word) <= len(s); {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(word)

		before, _ := utf8.DecodeLastRuneInString(s[:i])
		after, _ := utf8.DecodeRuneInString(s[end:])
		startOK := !isWordRune(first) || i == 0 || !isWordRune(before)
		endOK := !isWordRune(last) || end == len(s) || !isWordRune(after)
		if startOK && endOK {
			return i
		}

		_, size := utf8.DecodeRuneInString(s[i:])
		from = i + size
	}
	return -1
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_'
}

// ValidateRoundTrip puts answer back into the first placeholder of blanked
// and reports whether the result equals original, ignoring surrounding
// whitespace.
func ValidateRoundTrip(original, blanked, answer string) bool {
	loc := placeholderPattern.FindStringIndex(blanked)
	if loc == nil {
		return false
	}
	restored := blanked[:loc[0]] + answer + blanked[loc[1]:]
	return strings.TrimSpace(restored) == strings.TrimSpace(original)
}

// Blank substitutes word into passage and checks that the result is a real,
// reversible substitution. Unlike ValidateRoundTrip it restores the
// placeholder it inserted, so passages that already contain blanks work.
func Blank(passage, word string) (string, error) {
	if strings.TrimSpace(word) == "" {
		return "", ErrEmptyWord
	}
	blanked, at := substitute(passage, word)
	if at < 0 {
		return "", ErrMatchNotFound
	}
	// Restore at the inserted placeholder, not the first placeholder-shaped
	// span, since the passage may already contain worksheet blanks.
	restored := blanked[:at] + word + blanked[at+len(Placeholder):]
	if restored != passage {
		return "", ErrRoundTripMismatch
	}
	return blanked, nil
}
