package processor

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/ha1tch/jetlite/pkg/command"
)

func TestConditionalParametersSkips(t *testing.T) {
	for _, in := range []string{
		"FROM [test] ON (SELECT [x] FROM [test_2] WHERE [myvar]='x')",
		"WHERE [test].[condition] LIKE '%new%'",
		"WHERE [test].[condition] NOT LIKE '%new%'",
		"WHERE [test].[brand] IN ('ekm', 'powershop')",
		"WHERE [test].[brand] NOT IN ('ekm', 'powershop')",
		"WHERE CASE WHEN [test].[price] > 10 THEN 'x' ELSE 'y' END",
		"WHERE [test].[description] IS NULL",
		"WHERE [test].[description] IS NOT NULL",
		"SELECT * FROM [a] INNER JOIN [b] ON [a].[id] = [b].[id]",
	} {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, in, process(t, ConditionalParameters{}, in).Text)
		})
	}
}

func TestConditionalParametersRewrites(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"equals parameter", "WHERE [test].[id]=@id", "WHERE COALESCE([test].[id], 0) = @id"},
		{"equals", "WHERE [test].[column] = @value", "WHERE COALESCE([test].[column], 0) = @value"},
		{"greater or equal", "WHERE [test].[column] >= @value", "WHERE COALESCE([test].[column], 0) >= @value"},
		{"less or equal", "WHERE [test].[column] <= @value", "WHERE COALESCE([test].[column], 0) <= @value"},
		{"is not", "WHERE [test].[column] IS NOT @value", "WHERE COALESCE([test].[column], @value) <> @value"},
		{"not equal", "WHERE [test].[column] <> @value", "WHERE COALESCE([test].[column], @value) <> @value"},
		{"null becomes zero", "WHERE [test].[description]=NULL", "WHERE COALESCE([test].[description], 0) = 0"},
		{"wrapped condition", "WHERE ([test].[column]=@value)", "WHERE (COALESCE([test].[column], 0) = @value)"},
		{"wrapped column", "WHERE ([test].[price]) > 20", "WHERE COALESCE([test].[price], 0) > 20"},
		{"double wrapped column", "WHERE (([test].[price])) > 20", "WHERE COALESCE([test].[price], 0) > 20"},
		{"deeply wrapped column", "WHERE (((((([test].[price])))))) > 20", "WHERE COALESCE([test].[price], 0) > 20"},
		{
			"wrapped condition and column",
			"WHERE ((([test].[price]) > 20))",
			"WHERE ((COALESCE([test].[price], 0) > 20))",
		},
		{
			"nested query",
			"WHERE [test].[id] IN (SELECT [test_2].[id] FROM [test_2] WHERE [test_2].[price] > 20)",
			"WHERE [test].[id] IN (SELECT [test_2].[id] FROM [test_2] WHERE COALESCE([test_2].[price], 0) > 20)",
		},
		{
			"deep nested queries",
			"WHERE [x].[id] IN (SELECT [y].[id] FROM [y] WHERE [y].[price] > 20 AND [y].[category_id] IN (SELECT [z].[id] FROM [z] WHERE [z].[department]='Electronics'))",
			"WHERE [x].[id] IN (SELECT [y].[id] FROM [y] WHERE COALESCE([y].[price], 0) > 20 AND [y].[category_id] IN (SELECT [z].[id] FROM [z] WHERE COALESCE([z].[department], 0) = 'Electronics'))",
		},
		{
			"multiple conditions",
			"WHERE [test].[price] > 20 AND [test].[name] LIKE '%car%' AND [test].[condition] IS NOT 'used'",
			"WHERE COALESCE([test].[price], 0) > 20 AND [test].[name] LIKE '%car%' AND COALESCE([test].[condition], 'used') <> 'used'",
		},
		{
			"wrapped conditionals",
			"WHERE ((([test].[price] > 20) AND ([test].[price] < 50) AND [test].[name] LIKE '%car%')",
			"WHERE (((COALESCE([test].[price], 0) > 20) AND (COALESCE([test].[price], 0) < 50) AND [test].[name] LIKE '%car%')",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, process(t, ConditionalParameters{}, tt.in).Text)
		})
	}
}

func TestConditionalParametersIsIdempotent(t *testing.T) {
	once := process(t, ConditionalParameters{}, "WHERE [test].[id]=@id").Text
	twice := process(t, ConditionalParameters{}, once).Text
	assert.Equal(t, once, twice)
}

func TestConditionalParametersMakesNullParametersSafe(t *testing.T) {
	cmd := process(t, ConditionalParameters{}, "WHERE [a]=@a AND [b]=@b AND [c] LIKE @c",
		command.NewParameter("@a", nil),
		command.NewParameter("@b", "x"),
		command.NewParameter("@c", nil),
	)

	assert.Equal(t, 0, cmd.Parameters[0].Value)
	assert.Equal(t, "x", cmd.Parameters[1].Value)
	assert.Nil(t, cmd.Parameters[2].Value, "LIKE comparisons are not rewritten")
}

func TestConditionalParametersWrappedParameterIsFound(t *testing.T) {
	cmd := process(t, ConditionalParameters{}, "WHERE ([a]=@a)", command.NewParameter("@a", nil))
	assert.Equal(t, 0, cmd.Parameters[0].Value)
}

func TestSplitOpenParens(t *testing.T) {
	tests := []struct {
		in     string
		column string
		prefix string
	}{
		{"[a]", "[a]", ""},
		{"([a]", "[a]", "("},
		{"((([a]", "[a]", "((("},
		{"(é(x", "(x", "(("},
		{"((ü", "ü", "(("},
	}
	for _, tt := range tests {
		column, prefix := splitOpenParens(tt.in)
		assert.True(t, utf8.ValidString(column), tt.in)
		assert.Equal(t, tt.column, column, tt.in)
		assert.Equal(t, tt.prefix, prefix, tt.in)
	}
}

func TestRemoveWrappingParens(t *testing.T) {
	assert.Equal(t, "[a]", removeWrappingParens("(([a]))"))
	assert.Equal(t, "([a]", removeWrappingParens("([a]"))
	assert.Equal(t, "", removeWrappingParens("()"))
}
