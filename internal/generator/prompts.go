package generator

import (
	"fmt"
	"strings"
)

// Task names written into every user prompt on a "TASK:" line.
const (
	TaskFillBlank      = "fill_blank"
	TaskMultipleChoice = "multiple_choice"
	TaskVocabulary     = "vocabulary"
	TaskTranslation    = "translation"
)

const jsonOnlyRule = `
OUTPUT RULES:
- Respond with a single JSON object and nothing else
- Do not wrap the JSON in markdown fences
- Do not add commentary before or after the JSON`

// FillBlankSystemPrompt instructs the model to pick one answer word from the
// passage and four distractors.
func FillBlankSystemPrompt() string {
	return `You are an experienced English teacher writing fill-in-the-blank questions for Korean secondary school students.

Given an English passage, choose ONE word from the passage that tests reading comprehension. The word will be removed from the passage and replaced by a blank.

ANSWER WORD RULES:
- The answer must be a single word copied exactly as it appears in the passage (same spelling, same case)
- The answer must appear outside of parentheses
- Never choose a word listed as EXCLUDED
- Prefer content words (verbs, adjectives, nouns) whose meaning follows from context
- Avoid proper nouns, numbers and function words

OPTION RULES:
- Provide exactly 5 options, each a single word
- Exactly one option is the answer word; the other four are plausible but wrong in context
- Distractors share the answer's part of speech and approximate length
- answerIndex is the zero-based position of the answer in options
` + jsonOnlyRule
}

// BuildFillBlankUserPrompt embeds the passage and the bracketed spans the
// model must not use as answers.
func BuildFillBlankUserPrompt(passage string, excluded []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TASK: %s\n\n", TaskFillBlank)
	writePassage(&b, passage)

	if len(excluded) > 0 {
		b.WriteString("\nEXCLUDED (text inside parentheses, never use these as the answer):\n")
		for _, span := range excluded {
			fmt.Fprintf(&b, "- %s\n", span)
		}
	}

	b.WriteString(`
Return JSON with this structure:
{"options": ["word1", "word2", "word3", "word4", "word5"], "answerIndex": 0, "explanation": "why the answer fits the context"}
`)
	return b.String()
}

func MultipleChoiceSystemPrompt() string {
	return `You are an experienced English teacher writing reading comprehension questions for Korean secondary school students.

Given an English passage, write ONE multiple-choice question about it.

QUESTION RULES:
- Ask about the main idea, the author's purpose, an inference or a specific detail
- The question must be answerable from the passage alone
- Write the question and options in English

OPTION RULES:
- Provide exactly 5 options
- Exactly one option is correct
- Wrong options are plausible to a careless reader but contradicted or unsupported by the passage
- answerIndex is the zero-based position of the correct option
` + jsonOnlyRule
}

func BuildMultipleChoiceUserPrompt(passage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TASK: %s\n\n", TaskMultipleChoice)
	writePassage(&b, passage)
	b.WriteString(`
Return JSON with this structure:
{"question": "...", "options": ["...", "...", "...", "...", "..."], "answerIndex": 0, "explanation": "..."}
`)
	return b.String()
}

func VocabularySystemPrompt() string {
	return `You are an English vocabulary tutor for Korean secondary school students.

Given an English passage, select the words a student at this level is least likely to know.

RULES:
- Select between 5 and 15 words, in the order they first appear
- Copy each word in its dictionary form
- Give the Korean meaning that fits the passage context
- Give one short English example sentence that is not copied from the passage
` + jsonOnlyRule
}

func BuildVocabularyUserPrompt(passage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TASK: %s\n\n", TaskVocabulary)
	writePassage(&b, passage)
	b.WriteString(`
Return JSON with this structure:
{"entries": [{"word": "...", "meaning": "Korean meaning", "example": "..."}]}
`)
	return b.String()
}

func TranslationSystemPrompt() string {
	return `You are a professional English to Korean translator preparing study material.

Split the passage into sentences and translate each one into natural Korean.

RULES:
- Keep every sentence of the passage, in order, copied exactly
- Do not merge or split sentences
- Translate each sentence on its own; do not add notes
` + jsonOnlyRule
}

func BuildTranslationUserPrompt(passage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TASK: %s\n\n", TaskTranslation)
	writePassage(&b, passage)
	b.WriteString(`
Return JSON with this structure:
{"sentences": [{"text": "original English sentence", "translation": "Korean translation"}]}
`)
	return b.String()
}

func OCRSystemPrompt() string {
	return `You transcribe printed English study material from photos.

RULES:
- Output only the transcribed text, no commentary
- Preserve paragraph breaks and parentheses exactly
- Join words hyphenated across line breaks
- Skip page numbers, headers and handwritten marks`
}

func OCRUserPrompt() string {
	return "Transcribe the English passage in this image."
}

func writePassage(b *strings.Builder, passage string) {
	b.WriteString("<passage>\n")
	b.WriteString(strings.TrimSpace(passage))
	b.WriteString("\n</passage>\n")
}

// passageFromPrompt recovers the passage written by writePassage.
func passageFromPrompt(prompt string) string {
	start := strings.Index(prompt, "<passage>\n")
	end := strings.LastIndex(prompt, "\n</passage>")
	if start < 0 || end < start {
		return ""
	}
	return prompt[start+len("<passage>\n") : end]
}

// taskFromPrompt reads the TASK line of a user prompt.
func taskFromPrompt(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if rest, ok := strings.CutPrefix(line, "TASK: "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
