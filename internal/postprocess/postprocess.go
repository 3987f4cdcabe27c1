// Package postprocess reads backend replies that must be interpreted as a
// label or a number rather than passed on verbatim.
//
// Replies are cleaned before they are read: reasoning blocks, short
// lead-in phrases and quote wrapping are removed.
package postprocess

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Clean removes LLM artifacts from text in three phases and returns the
// trimmed result:
//  1. Thinking / reasoning block removal
//  2. Lead-in removal ("Score:", "Answer:", "Here is my answer:")
//  3. Quote wrapping removal
func Clean(text string) string {
	text = norm.NFC.String(text)
	text = removeThinkingBlocks(text)
	text = removeLeadIns(text)
	text = removeQuoteWrapping(text)
	return strings.TrimSpace(text)
}

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// Each tag variant is listed explicitly because Go's RE2 engine does not
// support backreferences.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened thinking tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// leadInPatterns are anchored to the start of the reply and require a colon
// so that legitimate content is left alone.
var leadInPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.!]?\s+`),
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: my| the)? (?:answer|score|rating|choice)\s*:`),
	regexp.MustCompile(`(?i)^(?:final )?(?:answer|score|rating|choice)\s*:`),
}

func removeLeadIns(text string) string {
	for _, re := range leadInPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// removeQuoteWrapping strips a matching pair of outer quotes when the entire
// text is wrapped in them. Supported pairs:
//
//	"…"  '…'  «…»  “…”  ‘…’  `…`
func removeQuoteWrapping(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '`' && last == '`') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}

// Mentions reports whether label occurs in text, ignoring case and Unicode
// normalization differences.
func Mentions(text, label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	return strings.Contains(fold(text), fold(label))
}

func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// ParseScore reads a bare number in [min, max] from a reply. Anything else,
// including "8/10" or "about 7", is rejected.
func ParseScore(text string, min, max float64) (float64, bool) {
	text = strings.TrimRight(Clean(text), ".")
	if text == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < min || v > max {
		return 0, false
	}
	return v, true
}
