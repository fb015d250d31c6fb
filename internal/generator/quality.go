package generator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// OptionReport holds the structural checks for one set of answer options.
// Problems are advisory; callers log them and keep the quiz.
type OptionReport struct {
	DistinctOptions bool
	SingleWords     bool
	LengthBalanced  bool
	Warnings        []string
}

// CheckOptions inspects options for duplicates, multi-word entries (when
// singleWord is set) and an answer whose length gives it away.
func CheckOptions(options []string, answerIndex int, singleWord bool) OptionReport {
	report := OptionReport{DistinctOptions: true, SingleWords: true, LengthBalanced: true}

	seen := make(map[string]int)
	for i, o := range options {
		key := strings.ToLower(strings.TrimSpace(o))
		if j, ok := seen[key]; ok {
			report.DistinctOptions = false
			report.Warnings = append(report.Warnings, fmt.Sprintf("options %d and %d are identical", j+1, i+1))
			continue
		}
		seen[key] = i

		if singleWord && len(strings.Fields(o)) != 1 {
			report.SingleWords = false
			report.Warnings = append(report.Warnings, fmt.Sprintf("option %d %q is not a single word", i+1, o))
		}
	}

	if answerIndex >= 0 && answerIndex < len(options) && len(options) > 1 {
		answerLen := utf8.RuneCountInString(options[answerIndex])
		longest := 0
		for i, o := range options {
			if i != answerIndex {
				longest = max(longest, utf8.RuneCountInString(o))
			}
		}
		// An answer twice as long as every distractor stands out.
		if longest > 0 && answerLen > 2*longest {
			report.LengthBalanced = false
			report.Warnings = append(report.Warnings, fmt.Sprintf("answer length %d far exceeds longest distractor %d", answerLen, longest))
		}
	}

	return report
}

// ClassifyOptions maps a report to a label stored alongside log lines.
func ClassifyOptions(r OptionReport) string {
	switch {
	case !r.DistinctOptions:
		return "broken"
	case len(r.Warnings) > 0:
		return "weak"
	default:
		return "ok"
	}
}
