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

// Package vtk reads and writes structured-grid data in the legacy VTK
// STRUCTURED_POINTS text layout written by the LES samplers.
//
// The header occupies nine lines at fixed positions:
//
//	# vtk DataFile Version 2.0
//	<data set name>
//	ASCII
//	DATASET STRUCTURED_POINTS
//	DIMENSIONS nx ny nz
//	ORIGIN x0 y0 z0
//	SPACING dx dy dz
//	POINT_DATA n
//	FIELD attributes nFields
//
// Each field starts with a "name rank n float" line followed by one row per
// grid point, x varying slowest, then z, then y. Fields after the first are
// preceded by a separator line.
package vtk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"

	"github.com/spatialmodel/datatools/internal/textio"
)

// ErrHeader is returned when a header line doesn't match the expected layout.
var ErrHeader = errors.New("vtk: malformed header")

// Field is one named quantity sampled on the grid.
type Field struct {
	Name string
	// Rank is the number of components: 1 for scalars, 3 for vectors,
	// 9 for tensors.
	Rank int
	// Data has shape [Rank, nx, ny, nz].
	Data *sparse.DenseArray
}

// StructuredData holds a structured grid and the fields sampled on it.
type StructuredData struct {
	Name    string
	Dims    [3]int
	Origin  [3]float64
	Spacing [3]float64

	// X, Y and Z are the grid point coordinates along each axis.
	X, Y, Z []float64

	Fields []Field
}

// NumFields returns the number of fields in d.
func (d *StructuredData) NumFields() int { return len(d.Fields) }

// Field returns the field with the given name, or false if there isn't one.
func (d *StructuredData) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Axis returns n evenly spaced coordinates starting at origin. A single
// point axis holds just the origin and an empty one is nil.
func Axis(origin, spacing float64, n int) []float64 {
	if n < 1 {
		return nil
	}
	if n == 1 {
		return []float64{origin}
	}
	return floats.Span(make([]float64, n), origin, origin+spacing*float64(n-1))
}

// Read reads the structured grid file at path.
func Read(path string) (*StructuredData, error) {
	f, err := textio.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w (file %s)", err, path)
	}
	return d, nil
}

// Decode reads structured grid data from r.
func Decode(r io.Reader) (*StructuredData, error) {
	l := textio.NewLines(r)
	d := new(StructuredData)

	if err := l.Skip(1); err != nil {
		return nil, fmt.Errorf("vtk: reading version line: %w", err)
	}
	name, err := l.MustNext()
	if err != nil {
		return nil, fmt.Errorf("vtk: reading data set name: %w", err)
	}
	d.Name = strings.TrimSpace(name)
	if err := l.Skip(2); err != nil {
		return nil, fmt.Errorf("vtk: reading format lines: %w", err)
	}

	dims, err := headerValues(l, "DIMENSIONS")
	if err != nil {
		return nil, err
	}
	for i, s := range dims {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: line %d: invalid dimension %q", ErrHeader, l.Line(), s)
		}
		d.Dims[i] = n
	}
	if err := headerFloats(l, "ORIGIN", &d.Origin); err != nil {
		return nil, err
	}
	if err := headerFloats(l, "SPACING", &d.Spacing); err != nil {
		return nil, err
	}
	d.X = Axis(d.Origin[0], d.Spacing[0], d.Dims[0])
	d.Y = Axis(d.Origin[1], d.Spacing[1], d.Dims[1])
	d.Z = Axis(d.Origin[2], d.Spacing[2], d.Dims[2])

	if err := l.Skip(1); err != nil { // POINT_DATA
		return nil, fmt.Errorf("vtk: reading point data line: %w", err)
	}
	line, err := l.MustNext()
	if err != nil {
		return nil, fmt.Errorf("vtk: reading field header: %w", err)
	}
	tok := strings.Fields(line)
	if len(tok) != 3 || tok[0] != "FIELD" {
		return nil, fmt.Errorf("%w: line %d: want FIELD <name> <count>, got %q", ErrHeader, l.Line(), line)
	}
	nFields, err := strconv.Atoi(tok[2])
	if err != nil || nFields < 0 {
		return nil, fmt.Errorf("%w: line %d: invalid field count %q", ErrHeader, l.Line(), tok[2])
	}

	d.Fields = make([]Field, nFields)
	for m := range d.Fields {
		if m > 0 {
			if err := l.Skip(1); err != nil {
				return nil, fmt.Errorf("vtk: field %d: %w", m, err)
			}
		}
		if d.Fields[m], err = decodeField(l, d.Dims); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func decodeField(l *textio.Lines, dims [3]int) (Field, error) {
	line, err := l.MustNext()
	if err != nil {
		return Field{}, fmt.Errorf("vtk: reading field name: %w", err)
	}
	tok := strings.Fields(line)
	if len(tok) < 2 {
		return Field{}, fmt.Errorf("%w: line %d: want <name> <rank>, got %q", ErrHeader, l.Line(), line)
	}
	f := Field{Name: tok[0]}
	if f.Rank, err = strconv.Atoi(tok[1]); err != nil || f.Rank < 1 {
		return Field{}, fmt.Errorf("%w: line %d: invalid rank %q", ErrHeader, l.Line(), tok[1])
	}
	f.Data = sparse.ZerosDense(f.Rank, dims[0], dims[1], dims[2])
	for i := 0; i < dims[0]; i++ {
		for k := 0; k < dims[2]; k++ {
			for j := 0; j < dims[1]; j++ {
				line, err := l.MustNext()
				if err != nil {
					return Field{}, fmt.Errorf("vtk: field %s: %w", f.Name, err)
				}
				tok := strings.Fields(line)
				if len(tok) < f.Rank {
					return Field{}, fmt.Errorf("vtk: field %s: line %d has %d values, want %d",
						f.Name, l.Line(), len(tok), f.Rank)
				}
				for n := 0; n < f.Rank; n++ {
					v, err := strconv.ParseFloat(tok[n], 64)
					if err != nil {
						return Field{}, fmt.Errorf("vtk: field %s: line %d: %w", f.Name, l.Line(), err)
					}
					f.Data.Set(v, n, i, j, k)
				}
			}
		}
	}
	return f, nil
}

// headerValues reads a "KEYWORD a b c" line and returns the three values.
func headerValues(l *textio.Lines, keyword string) ([]string, error) {
	line, err := l.MustNext()
	if err != nil {
		return nil, fmt.Errorf("vtk: reading %s: %w", keyword, err)
	}
	if !strings.HasPrefix(line, keyword+" ") {
		return nil, fmt.Errorf("%w: line %d: want %s, got %q", ErrHeader, l.Line(), keyword, line)
	}
	tok := strings.Fields(line[len(keyword)+1:])
	if len(tok) != 3 {
		return nil, fmt.Errorf("%w: line %d: %s needs 3 values, got %d", ErrHeader, l.Line(), keyword, len(tok))
	}
	return tok, nil
}

func headerFloats(l *textio.Lines, keyword string, dst *[3]float64) error {
	tok, err := headerValues(l, keyword)
	if err != nil {
		return err
	}
	for i, s := range tok {
		if dst[i], err = strconv.ParseFloat(s, 64); err != nil {
			return fmt.Errorf("%w: line %d: %s: %v", ErrHeader, l.Line(), keyword, err)
		}
	}
	return nil
}

// Write writes d to a new file at path.
func Write(path string, d *StructuredData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes d to w in the layout Decode reads.
func Encode(w io.Writer, d *StructuredData) error {
	ew := &errWriter{w: w}
	n := d.Dims[0] * d.Dims[1] * d.Dims[2]
	ew.printf("# vtk DataFile Version 2.0\n%s\nASCII\nDATASET STRUCTURED_POINTS\n", d.Name)
	ew.printf("DIMENSIONS %d %d %d\n", d.Dims[0], d.Dims[1], d.Dims[2])
	ew.printf("ORIGIN %s %s %s\n", fmtFloat(d.Origin[0]), fmtFloat(d.Origin[1]), fmtFloat(d.Origin[2]))
	ew.printf("SPACING %s %s %s\n", fmtFloat(d.Spacing[0]), fmtFloat(d.Spacing[1]), fmtFloat(d.Spacing[2]))
	ew.printf("POINT_DATA %d\nFIELD attributes %d\n", n, len(d.Fields))
	for m, f := range d.Fields {
		if want := []int{f.Rank, d.Dims[0], d.Dims[1], d.Dims[2]}; !sameShape(f.Data.Shape, want) {
			return fmt.Errorf("vtk: field %s has shape %v, want %v", f.Name, f.Data.Shape, want)
		}
		if m > 0 {
			ew.printf("\n")
		}
		ew.printf("%s %d %d float\n", f.Name, f.Rank, n)
		row := make([]string, f.Rank)
		for i := 0; i < d.Dims[0]; i++ {
			for k := 0; k < d.Dims[2]; k++ {
				for j := 0; j < d.Dims[1]; j++ {
					for c := 0; c < f.Rank; c++ {
						row[c] = fmtFloat(f.Data.Get(c, i, j, k))
					}
					ew.printf("%s\n", strings.Join(row, " "))
				}
			}
		}
	}
	return ew.err
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
