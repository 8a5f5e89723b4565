package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ha1tch/jetlite/pkg/errors"
)

// ParseParameter parses a parameter binding of the form
//
//	@name[:type]=value
//
// where type is one of string, int, decimal, double, bool, date, datetime,
// time or null. Without a type the value is bound as a string. Date-family
// values are kept as text so the DateTime processor sees the legacy form.
func ParseParameter(spec string) (Parameter, error) {
	eq := strings.IndexByte(spec, '=')
	if eq <= 0 {
		return Parameter{}, errors.InvalidInput("parameter", "expected @name[:type]=value, got "+strconv.Quote(spec)).Err()
	}

	name, typ := spec[:eq], "string"
	value := spec[eq+1:]
	if colon := strings.IndexByte(name, ':'); colon > 0 {
		name, typ = name[:colon], strings.ToLower(name[colon+1:])
	}
	if !strings.HasPrefix(name, "@") {
		name = "@" + name
	}
	if len(name) == 1 {
		return Parameter{}, errors.InvalidInput("parameter", "empty parameter name").Err()
	}

	switch typ {
	case "string", "str", "text":
		return NewTypedParameter(name, DbTypeString, value), nil
	case "int", "integer":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Parameter{}, errors.Wrapf(err, errors.ErrCodeInvalidParameter, "parameter %s: invalid int", name).Err()
		}
		return NewTypedParameter(name, DbTypeInt64, n), nil
	case "decimal", "money", "currency":
		d, err := decimal.NewFromString(value)
		if err != nil {
			return Parameter{}, errors.Wrapf(err, errors.ErrCodeInvalidParameter, "parameter %s: invalid decimal", name).Err()
		}
		return NewTypedParameter(name, DbTypeDecimal, d), nil
	case "double", "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Parameter{}, errors.Wrapf(err, errors.ErrCodeInvalidParameter, "parameter %s: invalid double", name).Err()
		}
		return NewTypedParameter(name, DbTypeDouble, f), nil
	case "bool", "boolean":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return Parameter{}, errors.Wrapf(err, errors.ErrCodeInvalidParameter, "parameter %s: invalid bool", name).Err()
		}
		return NewTypedParameter(name, DbTypeBoolean, b), nil
	case "date":
		return NewTypedParameter(name, DbTypeDate, value), nil
	case "datetime":
		return NewTypedParameter(name, DbTypeDateTime, value), nil
	case "time":
		return NewTypedParameter(name, DbTypeTime, value), nil
	case "null":
		return NewTypedParameter(name, DbTypeObject, nil), nil
	default:
		return Parameter{}, errors.InvalidInput("parameter type", typ).WithField("parameter", name).Err()
	}
}

// DriverValue converts a parameter value into something database/sql drivers
// accept. Decimals travel as their exact text form.
func DriverValue(v interface{}) interface{} {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return v
	}
}
