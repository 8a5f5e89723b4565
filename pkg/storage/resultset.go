package storage

import (
	"database/sql"
	"strings"
)

// ColumnInfo describes one result column.
type ColumnInfo struct {
	Name     string
	Type     string
	Ordinal  int
	Nullable bool
}

// ResultSet is a fully buffered query result.
type ResultSet struct {
	Columns []ColumnInfo
	Rows    [][]interface{}
}

// ColumnNames returns the column names in order.
func (rs *ResultSet) ColumnNames() []string {
	names := make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		names[i] = c.Name
	}
	return names
}

func scanResultSet(rows *sql.Rows) (*ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{
		Columns: make([]ColumnInfo, len(columns)),
	}

	for i, col := range columns {
		rs.Columns[i] = ColumnInfo{
			Name:    col,
			Type:    legacyTypeName(colTypes[i].DatabaseTypeName()),
			Ordinal: i,
		}
		if nullable, ok := colTypes[i].Nullable(); ok {
			rs.Columns[i].Nullable = nullable
		}
	}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		rs.Rows = append(rs.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rs, nil
}

// legacyTypeName maps a SQLite declared type to the name a desktop
// database client expects.
func legacyTypeName(sqliteType string) string {
	switch strings.ToUpper(sqliteType) {
	case "INTEGER", "INT":
		return "LONG"
	case "REAL", "DOUBLE", "FLOAT":
		return "DOUBLE"
	case "TEXT", "VARCHAR", "NVARCHAR":
		return "TEXT"
	case "BLOB":
		return "BINARY"
	case "NUMERIC", "DECIMAL":
		return "CURRENCY"
	case "BOOLEAN":
		return "YESNO"
	case "DATE", "DATETIME":
		return "DATETIME"
	case "":
		// SQLite may return empty type for expressions like SELECT 1
		return "VARIANT"
	default:
		return strings.ToUpper(sqliteType)
	}
}
