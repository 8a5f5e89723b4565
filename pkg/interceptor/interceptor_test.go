package interceptor

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/jetlite/pkg/command"
	"github.com/ha1tch/jetlite/pkg/errors"
	"github.com/ha1tch/jetlite/pkg/log"
	"github.com/ha1tch/jetlite/pkg/processor"
)

const testSchema = "CREATE TABLE [test] ([id] INTEGER PRIMARY KEY, [column_1] INTEGER, [remove_me] BOOLEAN NOT NULL, [column_2] VARCHAR(255))"

func schemaDB(schema interface{}, err error) command.Database {
	return command.DatabaseFunc(func(ctx context.Context, cmd *command.Command) (interface{}, error) {
		return schema, err
	})
}

func intercept(t *testing.T, text string, params ...command.Parameter) *command.Command {
	t.Helper()
	cmd := command.New(text, params...)
	require.NoError(t, New().Intercept(context.Background(), cmd, schemaDB(nil, nil)))
	return cmd
}

func TestIntercept(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"alias", "SELECT [name] FROM [test]", "SELECT [name] AS 'name' FROM [test];"},
		{"semicolons", "SELECT 1;;;", "SELECT 1;"},
		{"plain", "DELETE * FROM [test]", "DELETE FROM [test];"},
		{
			"literal is not rewritten",
			"SELECT * FROM [people] WHERE [name] = 'a != b' AND [active] = true",
			"SELECT * FROM [people] WHERE COALESCE([name], 0) = 'a != b' AND COALESCE([active], 0) = 1;",
		},
		{
			"markup is not rewritten",
			"UPDATE [pages] SET [body] = '<div>x != y</div>' WHERE [id]=@id",
			"UPDATE [pages] SET [body] = '<div>x != y</div>' WHERE COALESCE([id], 0) = @id;",
		},
		{
			"dates become literals before protection",
			"SELECT [id] FROM [orders] WHERE [placed] > #12/01/2016#",
			"SELECT [id] AS 'id' FROM [orders] WHERE COALESCE([placed], 0) > '2016-01-12 00:00:00';",
		},
		{
			"not equals with parameter",
			"SELECT * FROM [t] WHERE [a] != @a",
			"SELECT * FROM [t] WHERE COALESCE([a], @a) <> @a;",
		},
		{
			"top and right join",
			"SELECT TOP 10 * FROM [a] RIGHT JOIN [b] ON [a].[id] = [b].[id]",
			"SELECT * FROM [b] LEFT JOIN [a] ON [a].[id] = [b].[id] LIMIT 10;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, intercept(t, tt.in).Text)
		})
	}
}

func TestInterceptDropColumn(t *testing.T) {
	cmd := command.New("ALTER TABLE [test] DROP COLUMN [remove_me]")
	require.NoError(t, New().Intercept(context.Background(), cmd, schemaDB(testSchema, nil)))

	assert.Equal(t,
		"CREATE TABLE [test_new] ([id] INTEGER PRIMARY KEY, [column_1] INTEGER, [column_2] VARCHAR(255));"+
			"INSERT INTO [test_new] SELECT [id] AS 'id', [column_1] AS 'column_1', [column_2] AS 'column_2' FROM [test];"+
			"DROP TABLE [test];"+
			"ALTER TABLE [test_new] RENAME TO [test];",
		cmd.Text)
}

func TestInterceptDropColumnMissing(t *testing.T) {
	cmd := command.New("ALTER TABLE [test] DROP COLUMN [nope]")
	require.NoError(t, New().Intercept(context.Background(), cmd, schemaDB(testSchema, nil)))
	assert.Equal(t, "SELECT 1;", cmd.Text)
}

func TestInterceptLookupFailure(t *testing.T) {
	cause := stderrors.New("no such database")
	cmd := command.New("ALTER TABLE [test] DROP COLUMN [remove_me]")

	err := New().Intercept(context.Background(), cmd, schemaDB(nil, cause))
	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.IsCode(err, errors.ErrCodeSchemaLookup))
	assert.Equal(t, "E7002: schema lookup failed: no such database", err.Error())

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "DropColumn", e.OpName)
}

type failing struct{ err error }

func (failing) Name() string { return "failing" }

func (f failing) Process(context.Context, *command.Command, command.Database) error {
	return f.err
}

type panicking struct{}

func (panicking) Name() string { return "panicking" }

func (panicking) Process(context.Context, *command.Command, command.Database) error {
	panic("index out of range")
}

func TestInterceptProcessorError(t *testing.T) {
	cause := stderrors.New("match timeout")
	i := New(WithProcessors(nil, []processor.Processor{failing{cause}}))

	err := i.Intercept(context.Background(), command.New("SELECT 1"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.ErrCodeTranslation, e.Code)
	assert.Equal(t, "failing", e.OpName)
	assert.NotEmpty(t, e.Stack)
}

func TestInterceptCodedErrorGetsOp(t *testing.T) {
	coded := errors.New(errors.ErrCodeInvalidParameter, "bad value").Err()
	i := New(WithProcessors([]processor.Processor{failing{coded}}, nil))

	err := i.Intercept(context.Background(), command.New("SELECT 1"), nil)
	assert.Equal(t, "E7003: bad value", err.Error())

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "failing", e.OpName)
}

func TestInterceptRecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{DefaultLevel: log.LevelDebug, Output: &buf})
	i := New(WithLogger(logger), WithProcessors(nil, []processor.Processor{panicking{}}))

	cmd := command.New("SELECT 'x'")
	err := i.Intercept(context.Background(), cmd, nil)
	require.Error(t, err)

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.ErrCodeInternal, e.Code)
	assert.Equal(t, errors.SeverityCritical, e.Severity)
	assert.Equal(t, "panicking", e.OpName)
	assert.Equal(t, "index out of range", e.Fields["panic"])
	assert.NotEmpty(t, e.Stack)

	assert.Equal(t, "SELECT 'x'", cmd.Text)
	assert.Contains(t, buf.String(), "secondary processor failed")
	assert.Contains(t, buf.String(), "Operation: panicking")
}

func TestInterceptParameters(t *testing.T) {
	cmd := intercept(t, "SELECT * FROM [t] WHERE [a] = @a AND [d] > @d",
		command.NewParameter("@a", nil),
		command.NewTypedParameter("@d", command.DbTypeDate, "#01/01/0001#"),
	)

	require.Len(t, cmd.Parameters, 2)
	assert.Equal(t, 0, cmd.Parameters[0].Value)
	assert.Equal(t, "1970-01-01 00:00:00", cmd.Parameters[1].Value)
	assert.Equal(t, command.DbTypeDate, cmd.Parameters[1].Type)
}

func TestInterceptNilCommand(t *testing.T) {
	err := New().Intercept(context.Background(), nil, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParameter))
}

func TestInterceptCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := command.New("SELECT 1")
	err := New().Intercept(ctx, cmd, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranslateLeavesInputAlone(t *testing.T) {
	params := []command.Parameter{command.NewParameter("@a", nil)}

	cmd, err := New().Translate(context.Background(), nil, "SELECT * FROM [t] WHERE [a]=@a", params...)
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM [t] WHERE COALESCE([a], 0) = @a;", cmd.Text)
	assert.Equal(t, 0, cmd.Parameters[0].Value)
	assert.Nil(t, params[0].Value)
}

func TestWithProcessors(t *testing.T) {
	i := New(WithProcessors(nil, []processor.Processor{processor.Format{}}))

	cmd := command.New("SELECT [a] FROM [t] WHERE [a] != 'x != y'")
	require.NoError(t, i.Intercept(context.Background(), cmd, nil))
	assert.Equal(t, "SELECT [a] FROM [t] WHERE [a] <> 'x != y';", cmd.Text)
}

func TestInterceptLogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{DefaultLevel: log.LevelDebug, Output: &buf})

	cmd := command.New("SELECT 1")
	require.NoError(t, New(WithLogger(logger)).Intercept(context.Background(), cmd, nil))

	assert.Contains(t, buf.String(), "[translation] command translated")
	assert.Contains(t, buf.String(), "output=SELECT 1;")
}
