package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/jetlite/pkg/command"
)

func TestDateTimeInlineDates(t *testing.T) {
	for _, in := range []string{
		"#12/01/2016#",
		"#12-01-2016#",
		"#12/Jan/2016#",
		"#12-Jan-2016#",
		"#12 Jan 2016#",
		"#12 January 2016#",
		"'12/01/2016'",
	} {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, "'2016-01-12 00:00:00'", process(t, DateTime{}, in).Text)
		})
	}
}

func TestDateTimeInlineTimes(t *testing.T) {
	assert.Equal(t, "'10:11:12'", process(t, DateTime{}, "#10:11:12#").Text)
	assert.Equal(t, "'14:11:12'", process(t, DateTime{}, "#14:11:12#").Text)
}

func TestDateTimeInlineDateTimes(t *testing.T) {
	for _, in := range []string{
		"#12/01/2016 10:11:12#",
		"#12-01-2016 10:11:12#",
		"#12/Jan/2016 10:11:12#",
		"#12-Jan-2016 10:11:12#",
		"#12 January 2016 10:11:12#",
	} {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, "'2016-01-12 10:11:12'", process(t, DateTime{}, in).Text)
		})
	}
}

func TestDateTimeInlineInContext(t *testing.T) {
	cmd := process(t, DateTime{}, "SELECT * FROM [orders] WHERE [placed] >= #01/02/2016# AND [placed] < #01/03/2016#")
	assert.Equal(t, "SELECT * FROM [orders] WHERE [placed] >= '2016-02-01 00:00:00' AND [placed] < '2016-03-01 00:00:00'", cmd.Text)
}

func TestDateTimeUnparseableInlineDateIsKept(t *testing.T) {
	assert.Equal(t, "#31/02/2016#", process(t, DateTime{}, "#31/02/2016#").Text)
}

func TestDateTimeParameters(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"#12/01/2016#", "2016-01-12 00:00:00"},
		{"#12-01-2016#", "2016-01-12 00:00:00"},
		{"#12/Jan/2016#", "2016-01-12 00:00:00"},
		{"#12-Jan-2016#", "2016-01-12 00:00:00"},
		{"#12 January 2016#", "2016-01-12 00:00:00"},
		{"#10:11:12#", "10:11:12"},
		{"#14:11:12#", "14:11:12"},
		{"#12/01/2016 10:11:12#", "2016-01-12 10:11:12"},
		{"#12-01-2016 10:11:12#", "2016-01-12 10:11:12"},
		{"#12/Jan/2016 10:11:12#", "2016-01-12 10:11:12"},
		{"#12-Jan-2016 10:11:12#", "2016-01-12 10:11:12"},
		{"#12 January 2016 10:11:12#", "2016-01-12 10:11:12"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cmd := process(t, DateTime{}, "@test", command.NewParameter("@test", tt.value))
			require.Len(t, cmd.Parameters, 1)
			assert.Equal(t, "@test", cmd.Parameters[0].Name)
			assert.Equal(t, tt.want, cmd.Parameters[0].Value)
		})
	}
}

func TestDateTimeMinimumValue(t *testing.T) {
	for _, value := range []string{
		"#01/01/0001#",
		"#01-01-0001#",
		"#01/Jan/0001#",
		"#01-Jan-0001#",
		"#01 January 0001#",
		"#01/01/0001 00:00:00#",
		"#01-01-0001 00:00:00#",
		"#01/Jan/0001 00:00:00#",
		"#01-Jan-0001 00:00:00#",
		"#01 January 0001 00:00:00#",
	} {
		t.Run(value, func(t *testing.T) {
			cmd := process(t, DateTime{}, "@test", command.NewParameter("@test", value))
			assert.Equal(t, "1970-01-01 00:00:00", cmd.Parameters[0].Value)
		})
	}
}

func TestDateTimeTypedParameters(t *testing.T) {
	t.Run("native time is clamped", func(t *testing.T) {
		cmd := process(t, DateTime{}, "@d", command.NewParameter("@d", time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, "1970-01-01 00:00:00", cmd.Parameters[0].Value)
		assert.Equal(t, command.DbTypeDateTime, cmd.Parameters[0].Type)
	})

	t.Run("declared date type without delimiters", func(t *testing.T) {
		cmd := process(t, DateTime{}, "@d", command.NewTypedParameter("@d", command.DbTypeDate, "23/05/2000"))
		assert.Equal(t, "2000-05-23 00:00:00", cmd.Parameters[0].Value)
		assert.Equal(t, command.DbTypeDate, cmd.Parameters[0].Type)
	})

	t.Run("unparseable value is stripped only", func(t *testing.T) {
		cmd := process(t, DateTime{}, "@d", command.NewTypedParameter("@d", command.DbTypeDateTime, "'soon'"))
		assert.Equal(t, "soon", cmd.Parameters[0].Value)
	})

	t.Run("null stays null", func(t *testing.T) {
		cmd := process(t, DateTime{}, "@d", command.NewTypedParameter("@d", command.DbTypeDate, nil))
		assert.Nil(t, cmd.Parameters[0].Value)
	})

	t.Run("plain string is untouched", func(t *testing.T) {
		cmd := process(t, DateTime{}, "@s", command.NewParameter("@s", "12/01/2016"))
		assert.Equal(t, "12/01/2016", cmd.Parameters[0].Value)
	})

	t.Run("time type is not a date type", func(t *testing.T) {
		cmd := process(t, DateTime{}, "@t", command.NewTypedParameter("@t", command.DbTypeTime, "10:11:12"))
		assert.Equal(t, "10:11:12", cmd.Parameters[0].Value)
	})
}
