package processor

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/ha1tch/jetlite/pkg/command"
	"github.com/ha1tch/jetlite/pkg/sqltext"
)

var (
	projection    = regexp.MustCompile(`(?is)(?:UNION\s+)?SELECT(?:\s+DISTINCT)?\s+(.*?)\s+FROM\b`)
	hasAlias      = regexp.MustCompile(`(?is)\s+AS\s+`)
	doubleBracket = regexp.MustCompile(`(?is)\[(\[.*?\])\]`)
	quotedBracket = regexp.MustCompile(`(?is)'\[(.*?)\]'`)
)

// ColumnAlias gives every bare column of a SELECT list an explicit alias,
// [name] AS 'name', so result column names do not depend on how SQLite
// derives them. Parenthesised expressions, qualified names, stars and
// columns that already carry an alias are left alone.
type ColumnAlias struct{}

func (ColumnAlias) Name() string { return "column-alias" }

func (ColumnAlias) Process(_ context.Context, cmd *command.Command, _ command.Database) error {
	sections := &sqltext.Sections{}
	for _, span := range sqltext.Distinct(sqltext.StringsBetween(cmd.Text, "(", ")")) {
		sections.Add(span)
	}
	query := sections.Hide(cmd.Text)
	result := query

	for _, m := range projection.FindAllStringSubmatch(query, -1) {
		original := m[0]
		change := original

		for _, column := range projectedColumns(m[1]) {
			if hasAlias.MatchString(column) {
				key, ok := sections.Lookup(column)
				if !ok {
					key = sections.Add(column)
				}
				change = strings.ReplaceAll(change, column, key)
				continue
			}

			re, err := aliasPattern(column)
			if err != nil {
				continue
			}
			if change, err = re.Replace(change, "$1 [$2] AS '$2'$3$4", -1, -1); err != nil {
				return err
			}
		}

		change = doubleBracket.ReplaceAllString(change, "${1}")
		change = quotedBracket.ReplaceAllString(change, "'${1}'")
		result = strings.ReplaceAll(result, original, change)
	}

	cmd.Text = sections.Show(result)
	return nil
}

// projectedColumns returns the distinct aliasable columns of a SELECT list
// with their brackets removed, longest first.
func projectedColumns(list string) []string {
	var columns []string
	seen := make(map[string]bool)

	for _, c := range strings.Split(list, ",") {
		c = strings.TrimSpace(c)
		name := strings.Trim(c, "[]")
		switch {
		case name == "":
		case strings.ContainsAny(c, "*.{}"):
		case seen[name]:
		default:
			seen[name] = true
			columns = append(columns, name)
		}
	}

	sort.SliceStable(columns, func(i, j int) bool {
		return len(columns[i]) > len(columns[j])
	})
	return columns
}

// aliasPattern matches column inside a SELECT ... FROM span, bracketed or
// on a word boundary, unless an AS follows it.
func aliasPattern(column string) (*regexp2.Regexp, error) {
	return regexp2.Compile(
		`(SELECT.*?)\s*((?:\[|\b)`+regexp2.Escape(column)+`(?:\]|\b)(?!\s+AS))([,]?\s*)(.*?FROM)`,
		regexp2.IgnoreCase|regexp2.Singleline)
}
