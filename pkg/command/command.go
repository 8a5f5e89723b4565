// Package command defines the mutable command container that flows through the
// translation pipeline, and the database capability the pipeline consumes.
package command

import (
	"context"
	"database/sql/driver"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// DbType is the declared type tag of a bound parameter.
type DbType int

const (
	DbTypeObject DbType = iota
	DbTypeString
	DbTypeInt32
	DbTypeInt64
	DbTypeDecimal
	DbTypeDouble
	DbTypeBoolean
	DbTypeDate
	DbTypeDateTime
	DbTypeDateTime2
	DbTypeDateTimeOffset
	DbTypeTime
)

var dbTypeNames = map[DbType]string{
	DbTypeObject:         "object",
	DbTypeString:         "string",
	DbTypeInt32:          "int32",
	DbTypeInt64:          "int64",
	DbTypeDecimal:        "decimal",
	DbTypeDouble:         "double",
	DbTypeBoolean:        "boolean",
	DbTypeDate:           "date",
	DbTypeDateTime:       "datetime",
	DbTypeDateTime2:      "datetime2",
	DbTypeDateTimeOffset: "datetimeoffset",
	DbTypeTime:           "time",
}

func (t DbType) String() string {
	if s, ok := dbTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// IsDateTime reports whether t belongs to the date/time family that the
// target engine stores as canonical text. DbTypeTime is deliberately excluded.
func (t DbType) IsDateTime() bool {
	switch t {
	case DbTypeDate, DbTypeDateTime, DbTypeDateTime2, DbTypeDateTimeOffset:
		return true
	default:
		return false
	}
}

// Parameter is a named, typed value bound to a command.
type Parameter struct {
	Name  string // including the leading '@'
	Type  DbType
	Value interface{}
}

// NewParameter creates a parameter whose type is inferred from the value.
func NewParameter(name string, value interface{}) Parameter {
	return Parameter{Name: name, Type: inferType(value), Value: value}
}

// NewTypedParameter creates a parameter with an explicit declared type.
func NewTypedParameter(name string, typ DbType, value interface{}) Parameter {
	return Parameter{Name: name, Type: typ, Value: value}
}

// IsNull reports whether the parameter carries a null marker.
func (p Parameter) IsNull() bool {
	return IsNullValue(p.Value)
}

// Command is the text of a single SQL operation plus its ordered parameters.
// The pipeline rewrites Text in place and may replace entries of Parameters,
// but never reorders or resizes the slice.
type Command struct {
	Text       string
	Parameters []Parameter
}

// New creates a command with the given text and parameters.
func New(text string, params ...Parameter) *Command {
	return &Command{Text: text, Parameters: params}
}

// Lookup returns a pointer to the parameter with the given name, or nil.
// Names are compared exactly.
func (c *Command) Lookup(name string) *Parameter {
	for i := range c.Parameters {
		if c.Parameters[i].Name == name {
			return &c.Parameters[i]
		}
	}
	return nil
}

// Clone returns a deep-enough copy: a new parameter slice with the same values.
func (c *Command) Clone() *Command {
	params := make([]Parameter, len(c.Parameters))
	copy(params, c.Parameters)
	return &Command{Text: c.Text, Parameters: params}
}

// Database is the one capability the pipeline needs from the driver layer:
// run a query and return the first column of the first row, or nil.
type Database interface {
	ExecuteScalar(ctx context.Context, cmd *Command) (interface{}, error)
}

// DatabaseFunc adapts a function to the Database interface.
type DatabaseFunc func(ctx context.Context, cmd *Command) (interface{}, error)

func (f DatabaseFunc) ExecuteScalar(ctx context.Context, cmd *Command) (interface{}, error) {
	return f(ctx, cmd)
}

// IsNullValue reports whether v is nil or a driver value that resolves to NULL.
func IsNullValue(v interface{}) bool {
	if v == nil {
		return true
	}
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		return err == nil && dv == nil
	}
	return false
}

// ValueString renders a dynamic parameter value as text. Nulls render empty.
func ValueString(v interface{}) string {
	if IsNullValue(v) {
		return ""
	}
	if t, ok := v.(time.Time); ok {
		return t.Format("2006-01-02 15:04:05")
	}
	return cast.ToString(v)
}

// ArgName returns the parameter name without its '@', ':' or '$' prefix.
func ArgName(name string) string {
	return strings.TrimLeft(name, "@:$")
}

func inferType(v interface{}) DbType {
	switch v.(type) {
	case string:
		return DbTypeString
	case int, int32, int16, int8:
		return DbTypeInt32
	case int64:
		return DbTypeInt64
	case float32, float64:
		return DbTypeDouble
	case bool:
		return DbTypeBoolean
	case time.Time:
		return DbTypeDateTime
	default:
		return DbTypeObject
	}
}
