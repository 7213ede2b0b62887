// Package dbvalue defines the tagged value union and query result shape
// shared by the database client and everything that renders rows.
package dbvalue

import (
	"fmt"
	"time"
)

// Kind tags which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindBytes
)

// Value is a tagged union over {null, bool, i64, f64, text, bytes}.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	text  string
	bytes []byte
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(v bool) Value          { return Value{kind: KindBool, b: v} }
func Int(v int64) Value          { return Value{kind: KindInt, i: v} }
func Float(v float64) Value      { return Value{kind: KindFloat, f: v} }
func Text(v string) Value        { return Value{kind: KindText, text: v} }
func Bytes(v []byte) Value       { return Value{kind: KindBytes, bytes: v} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) Int() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) Float() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) Text() (string, bool)     { return v.text, v.kind == KindText }
func (v Value) BytesVal() ([]byte, bool) { return v.bytes, v.kind == KindBytes }

// Display renders the value the way result tables show it: NULL for null,
// "<N bytes>" for byte strings, and the natural string form otherwise.
func (v Value) Display() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindText:
		return v.text
	case KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.bytes))
	default:
		return ""
	}
}

// Column describes one result column by name and PostgreSQL type name.
type Column struct {
	Name     string
	TypeName string
}

// QueryResult is the outcome of executing a single SQL statement.
type QueryResult struct {
	Columns       []Column
	Rows          [][]Value
	ExecutionTime time.Duration
	RowCount      int
	TotalRows     *int
	WasTruncated  bool
}

// Validate checks the documented invariants: RowCount equals len(Rows), and
// a truncated result reports a total strictly larger than what was kept.
func (r QueryResult) Validate() error {
	if r.RowCount != len(r.Rows) {
		return fmt.Errorf("row_count %d does not match len(rows) %d", r.RowCount, len(r.Rows))
	}
	if r.WasTruncated {
		if r.TotalRows == nil || *r.TotalRows <= r.RowCount {
			return fmt.Errorf("was_truncated requires total_rows > row_count")
		}
	}
	return nil
}
