package processor

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/ha1tch/jetlite/pkg/command"
	"github.com/ha1tch/jetlite/pkg/sqltime"
)

const (
	dayPart   = `(0[1-9]|[12]\d|3[01]|[1-9]|[12]\d|3[01])`
	monthPart = `(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec|January|February|March|April|June|July|August|September|October|November|December|[1-9]|[0][1-9]|[12]\d)`
	yearPart  = `(\d{4})`
	sepPart   = `[\-\/\s+]`
	timePart  = `(?:(?:([01]?\d|2[0-3]):)([0-5]?\d):)([0-5]?\d)`
	datePart  = dayPart + sepPart + monthPart + sepPart + yearPart
)

var (
	inlineDate     = regexp.MustCompile(`(?is)[#']` + datePart + `[#']`)
	inlineTime     = regexp.MustCompile(`(?is)[#']` + timePart + `[#']`)
	inlineDateTime = regexp.MustCompile(`(?is)(?:[#']` + datePart + `)\s+(?:` + timePart + `[#'])`)
	hashDelimited  = regexp.MustCompile(`#.*#`)
)

// DateTime rewrites legacy date and time literals into SQLite's canonical
// 'yyyy-MM-dd HH:mm:ss' text, both inline and in date-like parameters.
type DateTime struct{}

func (DateTime) Name() string { return "datetime" }

func (DateTime) Process(_ context.Context, cmd *command.Command, _ command.Database) error {
	cmd.Text = fixInlineDates(cmd.Text, inlineDate)
	cmd.Text = fixInlineTimes(cmd.Text)
	cmd.Text = fixInlineDates(cmd.Text, inlineDateTime)
	fixDateTimeParameters(cmd)
	return nil
}

func fixInlineDates(text string, re *regexp.Regexp) string {
	result := text
	for _, m := range re.FindAllString(text, -1) {
		t, ok := sqltime.Parse(sqltime.Strip(m))
		if !ok {
			continue
		}
		result = strings.ReplaceAll(result, m, "'"+t.Format(sqltime.Layout)+"'")
	}
	return result
}

// Bare times are not reformatted, only requoted.
func fixInlineTimes(text string) string {
	result := text
	for _, m := range inlineTime.FindAllString(text, -1) {
		result = strings.ReplaceAll(result, m, strings.ReplaceAll(m, "#", "'"))
	}
	return result
}

func fixDateTimeParameters(cmd *command.Command) {
	for i, p := range cmd.Parameters {
		if !isDateTimeParameter(p) {
			continue
		}
		cmd.Parameters[i] = command.NewTypedParameter(p.Name, p.Type, dateTimeParameterValue(p.Value))
	}
}

func isDateTimeParameter(p command.Parameter) bool {
	if p.IsNull() {
		return false
	}
	if _, ok := p.Value.(time.Time); ok {
		return true
	}
	return p.Type.IsDateTime() || hashDelimited.MatchString(command.ValueString(p.Value))
}

func dateTimeParameterValue(v interface{}) string {
	if t, ok := v.(time.Time); ok {
		return sqltime.Format(t)
	}

	s := sqltime.FixMinYear(sqltime.Strip(command.ValueString(v)))
	if sqltime.IsTimeOnly(s) {
		return s
	}

	t, ok := sqltime.Parse(s)
	if !ok {
		return s
	}
	return sqltime.Format(t)
}
