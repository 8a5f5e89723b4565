package command

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/jetlite/pkg/errors"
)

func TestNewParameterInfersType(t *testing.T) {
	tests := []struct {
		value interface{}
		want  DbType
	}{
		{"x", DbTypeString},
		{42, DbTypeInt32},
		{int64(42), DbTypeInt64},
		{1.5, DbTypeDouble},
		{true, DbTypeBoolean},
		{time.Now(), DbTypeDateTime},
		{nil, DbTypeObject},
		{[]byte("x"), DbTypeObject},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewParameter("@p", tt.value).Type, "%T", tt.value)
	}
}

func TestDbType(t *testing.T) {
	assert.Equal(t, "datetime2", DbTypeDateTime2.String())
	assert.Equal(t, "unknown", DbType(99).String())

	for _, typ := range []DbType{DbTypeDate, DbTypeDateTime, DbTypeDateTime2, DbTypeDateTimeOffset} {
		assert.True(t, typ.IsDateTime(), typ.String())
	}
	assert.False(t, DbTypeTime.IsDateTime())
	assert.False(t, DbTypeString.IsDateTime())
}

func TestLookupAndClone(t *testing.T) {
	cmd := New("SELECT @a", NewParameter("@a", 1), NewParameter("@b", nil))

	p := cmd.Lookup("@a")
	require.NotNil(t, p)
	p.Value = 2
	assert.Equal(t, 2, cmd.Parameters[0].Value)
	assert.Nil(t, cmd.Lookup("@A"))

	clone := cmd.Clone()
	clone.Text = "changed"
	clone.Parameters[0].Value = 3
	assert.Equal(t, "SELECT @a", cmd.Text)
	assert.Equal(t, 2, cmd.Parameters[0].Value)
	assert.True(t, clone.Parameters[1].IsNull())
}

func TestIsNullValue(t *testing.T) {
	assert.True(t, IsNullValue(nil))
	assert.True(t, IsNullValue(sql.NullString{}))
	assert.False(t, IsNullValue(sql.NullString{String: "x", Valid: true}))
	assert.False(t, IsNullValue(0))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "", ValueString(nil))
	assert.Equal(t, "12", ValueString(12))
	assert.Equal(t, "1.5", ValueString(1.5))
	assert.Equal(t, "true", ValueString(true))
	assert.Equal(t, "2016-12-01 10:30:00", ValueString(time.Date(2016, 12, 1, 10, 30, 0, 0, time.UTC)))
}

func TestArgName(t *testing.T) {
	assert.Equal(t, "id", ArgName("@id"))
	assert.Equal(t, "id", ArgName(":id"))
	assert.Equal(t, "id", ArgName("$id"))
	assert.Equal(t, "id", ArgName("id"))
}

func TestDatabaseFunc(t *testing.T) {
	var got *Command
	db := DatabaseFunc(func(_ context.Context, cmd *Command) (interface{}, error) {
		got = cmd
		return "ok", nil
	})

	v, err := db.ExecuteScalar(context.Background(), New("SELECT 1"))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, "SELECT 1", got.Text)
}

func TestParseParameter(t *testing.T) {
	tests := []struct {
		spec  string
		name  string
		typ   DbType
		value interface{}
	}{
		{"@name=abc", "@name", DbTypeString, "abc"},
		{"name=a=b", "@name", DbTypeString, "a=b"},
		{"@n:int=-4", "@n", DbTypeInt64, int64(-4)},
		{"@f:double=2.5", "@f", DbTypeDouble, 2.5},
		{"@b:BOOL=true", "@b", DbTypeBoolean, true},
		{"@d:date=#12/01/2016#", "@d", DbTypeDate, "#12/01/2016#"},
		{"@dt:datetime=12/01/2016 10:00:00", "@dt", DbTypeDateTime, "12/01/2016 10:00:00"},
		{"@t:time=10:00:00", "@t", DbTypeTime, "10:00:00"},
		{"@x:null=", "@x", DbTypeObject, nil},
		{"@s:string=", "@s", DbTypeString, ""},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			p, err := ParseParameter(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.name, p.Name)
			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, tt.value, p.Value)
		})
	}
}

func TestParseParameterDecimal(t *testing.T) {
	p, err := ParseParameter("@price:decimal=10.25")
	require.NoError(t, err)
	assert.Equal(t, DbTypeDecimal, p.Type)
	assert.True(t, decimal.RequireFromString("10.25").Equal(p.Value.(decimal.Decimal)))
	assert.Equal(t, "10.25", DriverValue(p.Value))
}

func TestParseParameterErrors(t *testing.T) {
	for _, spec := range []string{"nonsense", "=1", "@=1", "@n:int=x", "@n:decimal=x", "@n:bool=maybe", "@n:double=x", "@n:blob=1"} {
		_, err := ParseParameter(spec)
		require.Error(t, err, spec)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParameter), spec)
	}
}

func TestDriverValue(t *testing.T) {
	assert.Equal(t, "2016-12-01 00:00:00", DriverValue(time.Date(2016, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 5, DriverValue(5))
	assert.Nil(t, DriverValue(nil))
}
