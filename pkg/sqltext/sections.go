package sqltext

import "strings"

// markupTags are protected as whole spans before quoted literals so that
// quotes inside embedded markup never start a literal.
var markupTags = []string{"html", "script", "div"}

// Section is one protected span and the placeholder standing in for it.
type Section struct {
	Key   string
	Value string
}

// Sections is an ordered set of protected spans. Hide substitutes in
// insertion order and Show restores in reverse, so a span containing an
// earlier placeholder is restored before the placeholder inside it.
type Sections struct {
	items []Section
}

// Add registers value under a new placeholder and returns the placeholder.
func (s *Sections) Add(value string) string {
	key := NewPlaceholder()
	s.items = append(s.items, Section{Key: key, Value: value})
	return key
}

// Lookup returns the placeholder already registered for value.
func (s *Sections) Lookup(value string) (string, bool) {
	for _, item := range s.items {
		if item.Value == value {
			return item.Key, true
		}
	}
	return "", false
}

// Len returns the number of protected spans.
func (s *Sections) Len() int {
	return len(s.items)
}

// Items returns the sections in insertion order.
func (s *Sections) Items() []Section {
	out := make([]Section, len(s.items))
	copy(out, s.items)
	return out
}

// Hide replaces each protected value still present in text with its key.
func (s *Sections) Hide(text string) string {
	for _, item := range s.items {
		if item.Value == "" || !strings.Contains(text, item.Value) {
			continue
		}
		text = strings.ReplaceAll(text, item.Value, item.Key)
	}
	return text
}

// Show restores each key present in text, last added first.
func (s *Sections) Show(text string) string {
	for i := len(s.items) - 1; i >= 0; i-- {
		item := s.items[i]
		if !strings.Contains(text, item.Key) {
			continue
		}
		text = strings.ReplaceAll(text, item.Key, item.Value)
	}
	return text
}

// Protect collects the spans of text that rewrites must not touch: the
// <html>, <script> and <div> blocks, then every single-quoted literal.
func Protect(text string) *Sections {
	s := &Sections{}
	for _, tag := range markupTags {
		for _, span := range StringsBetween(text, "<"+tag+">", "</"+tag+">") {
			s.Add(span)
		}
	}
	for _, literal := range StringsBetween(text, "'", "'") {
		s.Add(literal)
	}
	return s
}
