// Package sqltext holds the text primitives shared by the rewrite
// processors: a balanced-span scanner, placeholder tokens and ordered
// protected sections.
package sqltext

import "strings"

// StringsBetween returns every balanced span of text that opens with start
// and closes with end, delimiters included, in the order the spans close.
//
// Nesting is honoured only by counting: a span closes when the number of
// end tokens seen equals the number of start tokens since the span began.
// Close tokens before the first open are ignored. An unbalanced tail is
// dropped.
func StringsBetween(text, start, end string) []string {
	if text == "" || start == "" || end == "" {
		return nil
	}

	var (
		spans  []string
		opens  int
		closes int
		from   int
	)

	for i := 0; i < len(text); i++ {
		rest := text[i:]
		switch {
		case opens > 0 && strings.HasPrefix(rest, end):
			closes++
		case strings.HasPrefix(rest, start):
			if opens == 0 {
				from = i
			}
			opens++
		}

		if opens > 0 && opens == closes {
			spans = append(spans, text[from:i+len(end)])
			opens, closes = 0, 0
		}
	}

	return spans
}

// Distinct returns spans with duplicates removed, first occurrence wins.
func Distinct(spans []string) []string {
	seen := make(map[string]bool, len(spans))
	out := make([]string, 0, len(spans))
	for _, s := range spans {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
