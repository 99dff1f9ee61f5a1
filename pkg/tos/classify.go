package tos

import (
	"regexp"
	"unicode/utf8"

	"github.com/sw33tLie/spotscope/pkg/verdict"
	"github.com/sw33tLie/spotscope/pkg/whttp"
)

const snippetWidth = 140

type family struct {
	patterns []*regexp.Regexp
	status   verdict.TosStatus
	reason   verdict.Reason
}

var families = []family{
	{forbidPatterns, verdict.TosForbidden, verdict.ReasonMatchedForbid},
	{allowPatterns, verdict.TosAllowed, verdict.ReasonMatchedAllow},
	{conditionalPatterns, verdict.TosConditional, verdict.ReasonMatchedConditional},
}

// Classify runs page text through the forbid, allow and conditional families in that order.
// Without a match it returns unknown/no_signal and an empty snippet.
func Classify(text string) (verdict.TosStatus, verdict.Reason, string) {
	for _, f := range families {
		for _, re := range f.patterns {
			if loc := re.FindStringIndex(text); loc != nil {
				return f.status, f.reason, Snippet(text, loc[0], loc[1], snippetWidth)
			}
		}
	}
	return verdict.TosUnknown, verdict.ReasonNoSignal, ""
}

// Snippet returns up to width runes of text centred on the byte span [start, end).
func Snippet(text string, start, end, width int) string {
	runes := []rune(text)
	rs := utf8.RuneCountInString(text[:start])
	re := rs + utf8.RuneCountInString(text[start:end])

	from := rs - width/2
	if from < 0 {
		from = 0
	}
	to := re + width/2
	if to > len(runes) {
		to = len(runes)
	}
	return whttp.Truncate(whttp.CollapseSpace(string(runes[from:to])), width)
}
