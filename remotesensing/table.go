/*
Copyright © 2018 the datatools authors.
This file is part of datatools.

datatools is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

datatools is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with datatools.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package remotesensing reads wind measurements from lidar, radar wind
// profiler and sodar instruments into time series tables.
//
// No effort is made to standardize column names across instruments; the
// names in each instrument's own headers are kept wherever possible.
package remotesensing

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/Knetic/govaluate"
)

// TimeColumn is the name of the timestamp column in CSV and database
// output.
const TimeColumn = "date_time"

// Row is one record of a Table.
type Row struct {
	Time time.Time
	// Values holds one value per table column. Missing data is NaN.
	Values []float64
}

// Table is a time series of records with a fixed set of columns.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Append adds a row. There must be one value per column.
func (t *Table) Append(tm time.Time, values ...float64) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("remotesensing: row has %d values for %d columns", len(values), len(t.Columns))
	}
	t.Rows = append(t.Rows, Row{Time: tm, Values: values})
	return nil
}

// Concat appends the rows of o, which must have the same columns as t.
func (t *Table) Concat(o *Table) error {
	if len(o.Columns) != len(t.Columns) {
		return fmt.Errorf("remotesensing: can't join tables with columns %v and %v", t.Columns, o.Columns)
	}
	for i, c := range o.Columns {
		if c != t.Columns[i] {
			return fmt.Errorf("remotesensing: can't join tables with columns %v and %v", t.Columns, o.Columns)
		}
	}
	t.Rows = append(t.Rows, o.Rows...)
	return nil
}

// Column returns a copy of the values in the named column.
func (t *Table) Column(name string) ([]float64, error) {
	j := t.Index(name)
	if j < 0 {
		return nil, fmt.Errorf("remotesensing: no column %q", name)
	}
	v := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		v[i] = r.Values[j]
	}
	return v, nil
}

// Times returns the timestamps of every row.
func (t *Table) Times() []time.Time {
	v := make([]time.Time, len(t.Rows))
	for i, r := range t.Rows {
		v[i] = r.Time
	}
	return v
}

// SetMissing replaces every occurrence of the bad values in the named
// column with NaN. Other columns are left alone.
func (t *Table) SetMissing(name string, bad ...float64) error {
	j := t.Index(name)
	if j < 0 {
		return fmt.Errorf("remotesensing: no column %q", name)
	}
	for _, r := range t.Rows {
		for _, b := range bad {
			if r.Values[j] == b {
				r.Values[j] = math.NaN()
				break
			}
		}
	}
	return nil
}

var deriveFuncs = map[string]govaluate.ExpressionFunction{
	"sqrt":  unary("sqrt", math.Sqrt),
	"exp":   unary("exp", math.Exp),
	"abs":   unary("abs", math.Abs),
	"log":   unary("log", math.Log),
	"hypot": binary("hypot", math.Hypot),
	"speed": binary("speed", WindSpeed),
	"dir":   binary("dir", WindDirection),
}

func unary(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("remotesensing: got %d arguments for function '%s', but needs 1", len(args), name)
		}
		x, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("remotesensing: function '%s' needs a number", name)
		}
		return f(x), nil
	}
}

func binary(name string, f func(float64, float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("remotesensing: got %d arguments for function '%s', but needs 2", len(args), name)
		}
		x, ok1 := args[0].(float64)
		y, ok2 := args[1].(float64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("remotesensing: function '%s' needs numbers", name)
		}
		return f(x, y), nil
	}
}

// Derive adds a column calculated from an arithmetic expression of the
// existing columns, evaluated row by row. Column names that aren't valid
// identifiers can be written in brackets, as in "[wind speed] * 2". The
// functions sqrt, exp, abs, log, hypot, speed(u, v) and dir(u, v) are
// available.
func (t *Table) Derive(name, expression string) error {
	if t.Index(name) >= 0 {
		return fmt.Errorf("remotesensing: column %q already exists", name)
	}
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(expression, deriveFuncs)
	if err != nil {
		return fmt.Errorf("remotesensing: parsing %q: %w", expression, err)
	}
	for _, v := range expr.Vars() {
		if t.Index(v) < 0 {
			return fmt.Errorf("remotesensing: expression %q uses unknown column %q", expression, v)
		}
	}
	derived := make([]float64, len(t.Rows))
	params := make(map[string]interface{}, len(t.Columns))
	for i, r := range t.Rows {
		for j, c := range t.Columns {
			params[c] = r.Values[j]
		}
		result, err := expr.Evaluate(params)
		if err != nil {
			return fmt.Errorf("remotesensing: evaluating %q at row %d: %w", expression, i, err)
		}
		v, ok := result.(float64)
		if !ok {
			return fmt.Errorf("remotesensing: expression %q gives %T, not a number", expression, result)
		}
		derived[i] = v
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i].Values = append(t.Rows[i].Values, derived[i])
	}
	return nil
}

// WriteCSV writes the table with a leading timestamp column. Missing
// values are written as empty fields.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	rec := make([]string, len(t.Columns)+1)
	rec[0] = TimeColumn
	copy(rec[1:], t.Columns)
	if err := cw.Write(rec); err != nil {
		return err
	}
	for _, r := range t.Rows {
		rec[0] = r.Time.Format(time.RFC3339Nano)
		for j, v := range r.Values {
			if math.IsNaN(v) {
				rec[j+1] = ""
			} else {
				rec[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
