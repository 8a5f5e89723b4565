// Package processor contains the rewrite rules that turn legacy desktop
// database SQL into SQLite SQL.
//
// Each Processor rewrites a command in place. Primary processors (DropColumn,
// DateTime) see raw text; secondary processors (Format, Syntax, ColumnAlias,
// ConditionalParameters) run while quoted literals are hidden behind
// placeholders. Processors are stateless and safe for concurrent use on
// distinct commands.
package processor

import (
	"context"
	"regexp"

	"github.com/ha1tch/jetlite/pkg/command"
)

// Processor rewrites a single command in place.
type Processor interface {
	// Name identifies the processor in logs.
	Name() string
	// Process rewrites cmd. db is only consulted by schema-aware processors.
	Process(ctx context.Context, cmd *command.Command, db command.Database) error
}

// Primary returns the processors that run before literal protection, in order.
func Primary() []Processor {
	return []Processor{
		DropColumn{},
		DateTime{},
	}
}

// Secondary returns the processors that run under literal protection, in order.
func Secondary() []Processor {
	return []Processor{
		Format{},
		Syntax{},
		ColumnAlias{},
		ConditionalParameters{},
	}
}

// rule is a single regular-expression substitution.
type rule struct {
	name string
	re   *regexp.Regexp
	repl string
}

func applyRules(text string, rules []rule) string {
	for _, r := range rules {
		text = r.re.ReplaceAllString(text, r.repl)
	}
	return text
}
