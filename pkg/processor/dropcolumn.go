package processor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ha1tch/jetlite/pkg/command"
	"github.com/ha1tch/jetlite/pkg/errors"
)

// SchemaQuery fetches a table's CREATE statement from SQLite.
const SchemaQuery = "SELECT sql FROM sqlite_master WHERE type=@type AND name LIKE @name"

// NoOp replaces a DROP COLUMN whose column does not exist.
const NoOp = "SELECT 1;"

var (
	dropColumn    = regexp.MustCompile(`(?is)alter table\s+(.*)\s+drop column\s+(.*)`)
	columnList    = regexp.MustCompile(`(?is)CREATE TABLE\s+.*?\s+\((.*)\)`)
	createTable   = regexp.MustCompile(`(?i)CREATE TABLE\s+(.*?)\s+`)
	bracketStrips = strings.NewReplacer("[", "", "]", "")
)

// DropColumn emulates ALTER TABLE ... DROP COLUMN, which SQLite lacks, by
// rebuilding the table without the column: create a copy, move the
// surviving columns, drop the original and rename the copy.
type DropColumn struct{}

func (DropColumn) Name() string { return "drop-column" }

func (DropColumn) Process(ctx context.Context, cmd *command.Command, db command.Database) error {
	m := dropColumn.FindStringSubmatch(cmd.Text)
	if m == nil {
		return nil
	}

	table := strings.TrimSpace(bracketStrips.Replace(m[1]))
	column := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(bracketStrips.Replace(m[2])), ";"))

	schema, err := tableSchema(ctx, db, table)
	if err != nil {
		return err
	}

	defs := columnDefinitions(schema)
	dropped, ok := defs.get(column)
	if !ok {
		cmd.Text = NoOp
		return nil
	}

	newTable := table + "_new"
	created := removeDefinition(createTable.ReplaceAllLiteralString(schema, "CREATE TABLE ["+newTable+"] "), dropped.def)
	created = strings.TrimRight(strings.ReplaceAll(created, "  ", " "), ";") + ";"

	var kept []string
	for _, d := range defs {
		if d.name != dropped.name {
			kept = append(kept, d.name)
		}
	}

	var sb strings.Builder
	sb.WriteString(created)
	fmt.Fprintf(&sb, "INSERT INTO [%s] SELECT [%s] FROM [%s];", newTable, strings.Join(kept, "],["), table)
	fmt.Fprintf(&sb, "DROP TABLE [%s];", table)
	fmt.Fprintf(&sb, "ALTER TABLE [%s] RENAME TO [%s];", newTable, table)
	cmd.Text = sb.String()
	return nil
}

// tableSchema returns the CREATE statement for table, or "" when the lookup
// yields nothing usable.
func tableSchema(ctx context.Context, db command.Database, table string) (string, error) {
	if db == nil {
		return "", nil
	}

	lookup := command.New(SchemaQuery,
		command.NewParameter("@type", "table"),
		command.NewParameter("@name", strings.ToLower(table)),
	)

	v, err := db.ExecuteScalar(ctx, lookup)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSchemaLookup, "schema lookup failed").
			WithField("table", table).
			WithOp("DropColumn").
			Err()
	}

	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", nil
	}
}

type columnDefinition struct {
	name string
	def  string
}

type columnDefs []columnDefinition

// get finds a column by name, ignoring case as SQLite does.
func (c columnDefs) get(name string) (columnDefinition, bool) {
	for _, d := range c {
		if strings.EqualFold(d.name, name) {
			return d, true
		}
	}
	return columnDefinition{}, false
}

// columnDefinitions parses the column list of a CREATE TABLE statement in
// declaration order. Table constraints starting with FOREIGN KEY are not
// columns and stay part of the statement text only.
func columnDefinitions(schema string) columnDefs {
	m := columnList.FindStringSubmatch(schema)
	if m == nil {
		return nil
	}

	var defs columnDefs
	for _, part := range splitTopLevel(m[1]) {
		part = strings.TrimSpace(part)
		if part == "" || strings.Contains(strings.ToUpper(part), "FOREIGN KEY") {
			continue
		}
		name := strings.TrimSpace(bracketStrips.Replace(strings.Fields(part)[0]))
		if _, dup := defs.get(name); dup {
			continue
		}
		defs = append(defs, columnDefinition{name: name, def: part})
	}
	return defs
}

// splitTopLevel splits s on commas outside parentheses, so DECIMAL(10,2)
// stays in one piece.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// removeDefinition deletes def and the comma that separates it from its
// neighbour: the following one, or the preceding one for the last column.
func removeDefinition(stmt, def string) string {
	if strings.Contains(stmt, def+",") {
		return strings.ReplaceAll(stmt, def+",", "")
	}

	i := strings.LastIndex(stmt, def)
	if i < 0 {
		return stmt
	}
	head := strings.TrimRight(stmt[:i], " \t\r\n")
	head = strings.TrimSuffix(head, ",")
	return head + stmt[i+len(def):]
}
