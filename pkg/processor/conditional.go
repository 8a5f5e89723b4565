package processor

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/ha1tch/jetlite/pkg/command"
	"github.com/ha1tch/jetlite/pkg/sqltext"
)

// conditional matches "<clause> <column> <operator> <value>". The lazy
// column group grows until the first operator, and a clause already
// wrapped in COALESCE is not matched again.
var conditional = regexp2.MustCompile(
	`(?:\b(WHERE|AND|OR|ON))(?!\s+COALESCE)\s+(?:(.*?))([\<\>]?[=>]|[\<\>]|(?:\s+(?:IS(?:\s+NOT)?|(?:NOT\s+)?(?:LIKE|IN))))\s*((?:'[^']*'|[^\s+?;])*)`,
	regexp2.IgnoreCase|regexp2.Singleline)

var (
	spaces    = regexp.MustCompile(`\s+`)
	paramName = regexp.MustCompile(`^@\w+`)
	nullWord  = regexp.MustCompile(`(?i)null`)
)

var (
	skipClauses    = map[string]bool{"ON": true}
	skipOperations = map[string]bool{"LIKE": true, "NOT LIKE": true, "IN": true, "NOT IN": true}
)

// ConditionalParameters wraps the left side of WHERE/AND/OR comparisons in
// COALESCE so that NULL columns compare the way the legacy engine did. Join
// conditions, LIKE/IN tests, CASE expressions and IS NULL checks are left
// alone.
type ConditionalParameters struct{}

func (ConditionalParameters) Name() string { return "conditional-parameters" }

func (ConditionalParameters) Process(_ context.Context, cmd *command.Command, _ command.Database) error {
	result := cmd.Text

	m, err := conditional.FindStringMatch(cmd.Text)
	for ; m != nil && err == nil; m, err = conditional.FindNextMatch(m) {
		original := m.String()
		clause := strings.ToUpper(strings.TrimSpace(m.GroupByNumber(1).String()))
		column := removeWrappingParens(strings.TrimSpace(m.GroupByNumber(2).String()))
		op := strings.TrimSpace(m.GroupByNumber(3).String())
		value := removeWrappingParens(strings.TrimSpace(m.GroupByNumber(4).String()))

		normOp := strings.ToUpper(spaces.ReplaceAllString(op, " "))
		if skipClauses[clause] || skipOperations[normOp] {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(column), "CASE WHEN") {
			continue
		}
		if strings.Contains(normOp, "IS") && sqltext.ContainsFold(value, "NULL") {
			continue
		}

		column, prefix := splitOpenParens(column)

		if name := paramName.FindString(value); name != "" {
			if p := cmd.Lookup(name); p != nil && p.IsNull() {
				p.Value = 0
			}
		}

		if nullWord.MatchString(value) {
			value = sqltext.ReplaceFold(value, "null", "0")
		}

		fallback := "0"
		if normOp == "IS NOT" || normOp == "<>" {
			fallback = strings.Trim(value, "()")
		}

		altered := clause + " " + prefix + "COALESCE(" + column + ", " + fallback + ") " + op + " " + value
		altered = sqltext.ReplaceFold(altered, "IS NOT", "<>")
		altered = sqltext.ReplaceFold(altered, "IS 0", "= 0")

		result = strings.ReplaceAll(result, original, altered)
	}
	if err != nil {
		return err
	}

	cmd.Text = result
	return nil
}

// removeWrappingParens strips one '(' and one ')' at a time while s is
// wrapped in both.
func removeWrappingParens(s string) string {
	for len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = s[1 : len(s)-1]
	}
	return s
}

// splitOpenParens detaches the unmatched opening parentheses in front of a
// column, returning the bare column and the parentheses to put back in front
// of the rewritten expression. Every '(' in the column counts towards the
// cut, so a column that contains its own call parentheses is cut short.
// The cut counts characters, not bytes.
func splitOpenParens(column string) (string, string) {
	if !strings.HasPrefix(column, "(") {
		return column, ""
	}

	runes := []rune(column)
	left := strings.Count(column, "(")
	if left > len(runes) {
		left = len(runes)
	}
	tmp := string(runes[left:])
	diff := len(runes)
	if tmp != "" {
		diff = utf8.RuneCountInString(strings.ReplaceAll(column, tmp, ""))
	}
	prefix := strings.Repeat("(", diff)

	if prefix != "" {
		tmp = strings.ReplaceAll(tmp, prefix, "")
	}
	return tmp, prefix
}
