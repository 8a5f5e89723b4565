package processor

import (
	"context"
	"regexp"

	"github.com/ha1tch/jetlite/pkg/command"
)

var formatRules = []rule{
	{"space after closing parenthesis", regexp.MustCompile(`(?s)\)(\w)`), ") ${1}"},
	{"split dotted bracket name", regexp.MustCompile(`(?s)\[(\w+)[.](\w+)`), "[${1}].[${2}"},
	{"not equals", regexp.MustCompile(`!=`), "<>"},
}

// Format applies small lexical normalisations: a space after ')' before a
// word, [a.b] split into [a].[b], and != written as <>.
type Format struct{}

func (Format) Name() string { return "format" }

func (Format) Process(_ context.Context, cmd *command.Command, _ command.Database) error {
	cmd.Text = applyRules(cmd.Text, formatRules)
	return nil
}
