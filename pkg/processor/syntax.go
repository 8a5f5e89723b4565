package processor

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/ha1tch/jetlite/pkg/command"
)

var (
	autoIncrementRules = []rule{
		{"autoincrement", regexp.MustCompile(`(?is)AUTOINCREMENT`), "INTEGER"},
	}

	booleanRules = []rule{
		{"true", regexp.MustCompile(`(?is)\btrue\b`), "1"},
		{"false", regexp.MustCompile(`(?is)\bfalse\b`), "0"},
	}

	deleteRules = []rule{
		{"delete", regexp.MustCompile(`(?is)DELETE(.*?)\bFROM`), "DELETE FROM"},
	}

	// Either operand may carry an alias; the right operand may also be a
	// parenthesised join, which is why the rule is applied to a fixed point.
	rightJoin = regexp.MustCompile(`(?is)(\[?\w*\]?(?:\s+AS\s\[?\w*\]?)?)\s+RIGHT\s+JOIN\s+((?:\(.*?\)|(?:\[?\w*\]?(?:\s+AS\s\[?\w*\]?)?)*)(?:\s+AS\s\[?\w*\]?)?)`)

	// The subquery form must run first so a nested TOP gets its LIMIT inside
	// the parentheses.
	topRules = []rule{
		{"top in subquery", regexp.MustCompile(`(?is)\((SELECT)\s+TOP\s+(\d+)\s+(.*?FROM.*?)\)`), "(${1} ${3} LIMIT ${2})"},
		{"top", regexp.MustCompile(`(?is)(SELECT)\s+TOP\s+(\d+)\s+(.*?FROM.*[^;])`), "${1} ${3} LIMIT ${2}"},
	}

	functionRules = []rule{
		{"first", regexp.MustCompile(`(?is)first\((.*?)\)`), "${1}"},
		{"lcase", regexp.MustCompile(`(?is)lcase\((.*?)\)`), "LOWER(${1})"},
		{"ucase", regexp.MustCompile(`(?is)ucase\((.*?)\)`), "UPPER(${1})"},
		{"len", regexp.MustCompile(`(?is)len\((.*?)\)`), "LENGTH(${1})"},
		{"left", regexp.MustCompile(`(?is)left\((.*?)\)`), "SUBSTR(${1})"},
		{"isnull", regexp.MustCompile(`(?is)isnull\((.*?)\)`), "COALESCE(${1}, 0) = 0"},
		{"now", regexp.MustCompile(`(?is)now\(\)`), "date('now', 'localtime')"},
		{"iif", regexp.MustCompile(`(?is)\bIIF\((.*),\s*(.*),\s*(.*?)\)`), "(CASE WHEN ${1} THEN ${2} ELSE ${3} END)"},
	}

	strComp = regexp.MustCompile(`(?is)strcomp\((.*?),\s*(.*?),\s*\d+\)\s*(.*?)\s*(\d+)`)
)

// Syntax replaces legacy keywords and functions with their SQLite
// equivalents. The rules are order sensitive.
type Syntax struct{}

func (Syntax) Name() string { return "syntax" }

func (Syntax) Process(_ context.Context, cmd *command.Command, _ command.Database) error {
	text := cmd.Text
	text = applyRules(text, autoIncrementRules)
	text = applyRules(text, booleanRules)
	text = applyRules(text, deleteRules)
	text = fixRightJoin(text)
	text = applyRules(text, topRules)
	text = applyRules(text, functionRules)
	text = fixStrComp(text)
	cmd.Text = text
	return nil
}

// fixRightJoin rewrites "a RIGHT JOIN b" as "b LEFT JOIN a" until no RIGHT
// JOIN is left. Each pass removes at least one RIGHT JOIN, so the loop ends.
func fixRightJoin(text string) string {
	for rightJoin.MatchString(text) {
		text = rightJoin.ReplaceAllString(text, "${2} LEFT JOIN ${1}")
	}
	return text
}

// fixStrComp rewrites StrComp(a, b, mode) <op> n as INSTR(LOWER(a), b) <op> n+1.
func fixStrComp(text string) string {
	result := text
	for _, m := range strComp.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[4])
		if err != nil {
			continue
		}
		change := "INSTR(LOWER(" + m[1] + "), " + m[2] + ") " + m[3] + " " + strconv.Itoa(n+1)
		result = strings.ReplaceAll(result, m[0], change)
	}
	return result
}
