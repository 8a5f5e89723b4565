// Package annotations parses jetlite directives embedded in SQL files.
//
// Directives are SQL comments with a special prefix, so a file stays valid
// for the legacy engine:
//
//	-- @jetlite:param @since:date=#12/01/2016#
//	-- @jetlite:param @limit:int=10
//	SELECT TOP 10 * FROM Orders WHERE OrderDate > @since
//
// Syntax:
//   - `-- @jetlite:<key>` is a boolean flag (presence means true)
//   - `-- @jetlite:<key>=<value>` or `-- @jetlite:<key> <value>` is a
//     setting; a key may repeat
//   - Contiguous `-- @jetlite:` lines apply to the statement that follows
//   - A blank line breaks the association
package annotations

import (
	"sort"
	"strings"

	"github.com/ha1tch/jetlite/pkg/command"
)

// Prefix identifies jetlite directives.
const Prefix = "-- @jetlite:"

// Directive keys.
const (
	KeyParam = "param"
	KeySkip  = "skip"
)

// Known lists the recognised keys for validation and documentation.
var Known = map[string]string{
	KeyParam: "@name[:type]=value: bind a parameter (repeatable)",
	KeySkip:  "bool: pass the statement through untranslated",
}

// Annotation represents a single parsed directive.
type Annotation struct {
	Key   string
	Value string // Empty for boolean flags
	Line  int    // 1-indexed line number
}

// Set is the ordered list of directives attached to one statement.
type Set []Annotation

// Has returns true if the key is present.
func (s Set) Has(key string) bool {
	for _, a := range s {
		if a.Key == key {
			return true
		}
	}
	return false
}

// Get returns the last value given for a key.
func (s Set) Get(key string) (string, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Key == key {
			return s[i].Value, true
		}
	}
	return "", false
}

// All returns every value given for a key, in order.
func (s Set) All(key string) []string {
	var values []string
	for _, a := range s {
		if a.Key == key {
			values = append(values, a.Value)
		}
	}
	return values
}

// GetBool returns true if the key is present as a flag or with a true value.
func (s Set) GetBool(key string) bool {
	v, ok := s.Get(key)
	if !ok {
		return false
	}
	if v == "" {
		return true
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// Unknown returns the sorted distinct keys not listed in Known.
func (s Set) Unknown() []string {
	seen := make(map[string]bool)
	var unknown []string
	for _, a := range s {
		if _, ok := Known[a.Key]; !ok && !seen[a.Key] {
			seen[a.Key] = true
			unknown = append(unknown, a.Key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// Params parses every param directive.
func (s Set) Params() ([]command.Parameter, error) {
	var params []command.Parameter
	for _, spec := range s.All(KeyParam) {
		p, err := command.ParseParameter(spec)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

// Parser extracts directives from SQL source.
type Parser struct {
	// StopOnBlank controls whether blank lines break directive blocks.
	// Default: true
	StopOnBlank bool
}

// NewParser creates a new parser with default settings.
func NewParser() *Parser {
	return &Parser{
		StopOnBlank: true,
	}
}

// Extract returns the directives attached to the first statement of source
// and the source with every directive line removed.
func (p *Parser) Extract(source string) (Set, string) {
	lines := strings.Split(source, "\n")
	kept := make([]string, 0, len(lines))

	var (
		current  Set
		attached Set
		found    bool
	)

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, Prefix) {
			if a := parseLine(trimmed, i+1); a != nil && !found {
				current = append(current, *a)
			}
			continue
		}
		kept = append(kept, line)

		if found {
			continue
		}
		switch {
		case trimmed == "":
			if p.StopOnBlank {
				current = nil
			}
		case strings.HasPrefix(trimmed, "--"):
			// Other comments neither attach nor break the block
		default:
			attached, found = current, true
		}
	}

	return attached, strings.Join(kept, "\n")
}

// Parse extracts with the default parser.
func Parse(source string) (Set, string) {
	return NewParser().Extract(source)
}

func parseLine(line string, lineNum int) *Annotation {
	content := strings.TrimSpace(strings.TrimPrefix(line, Prefix))
	if content == "" {
		return nil
	}

	// The key ends at the first '=' or blank: key=value and key value
	// are both accepted.
	if idx := strings.IndexAny(content, "= \t"); idx > 0 {
		return &Annotation{
			Key:   strings.TrimSpace(content[:idx]),
			Value: strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(content[idx:]), "=")),
			Line:  lineNum,
		}
	}

	return &Annotation{Key: content, Line: lineNum}
}

// MergeParams returns base with each override replacing the parameter of the
// same name, or appended when base has none.
func MergeParams(base, overrides []command.Parameter) []command.Parameter {
	merged := append([]command.Parameter(nil), base...)
	for _, o := range overrides {
		replaced := false
		for i := range merged {
			if merged[i].Name == o.Name {
				merged[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, o)
		}
	}
	return merged
}
