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

// Package ensight reads point clouds and the fields sampled on them from
// Ensight geometry and variable files.
package ensight

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/spatialmodel/datatools/internal/textio"
)

// ErrFieldType is returned when a field file's type tag isn't
// scalar, vector or tensor.
var ErrFieldType = errors.New("ensight: unknown field type")

const (
	geometryPreamble = 8
	fieldPreamble    = 4
)

// Data is a field sampled at N points.
type Data struct {
	// N is the number of sample points.
	N int
	// X, Y and Z are the point coordinates. They are nil when only the
	// field was read.
	X, Y, Z []float64
	// Rank is the number of components per point.
	Rank int
	// Field has N rows and Rank columns.
	Field *mat.Dense
}

// Rank returns the number of components for a field type tag.
func Rank(tag string) (int, error) {
	switch strings.TrimSpace(tag) {
	case "scalar":
		return 1, nil
	case "vector":
		return 3, nil
	case "tensor":
		return 9, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrFieldType, tag)
	}
}

// Read reads the field in fieldPath. Unless fieldOnly is true, the point
// count and coordinates are read from meshPath and n is ignored; otherwise
// meshPath is ignored and n gives the point count.
func Read(meshPath, fieldPath string, fieldOnly bool, n int) (*Data, error) {
	d := new(Data)
	if fieldOnly {
		if n < 1 {
			return nil, fmt.Errorf("ensight: invalid point count %d", n)
		}
		d.N = n
	} else {
		if err := d.readGeometry(meshPath); err != nil {
			return nil, err
		}
	}
	if err := d.readField(fieldPath); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Data) readGeometry(path string) error {
	f, err := textio.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	l := textio.NewLines(f)
	if err := l.Skip(geometryPreamble); err != nil {
		return fmt.Errorf("ensight: %s: %w", path, err)
	}
	line, err := l.MustNext()
	if err != nil {
		return fmt.Errorf("ensight: %s: reading point count: %w", path, err)
	}
	if d.N, err = strconv.Atoi(strings.TrimSpace(line)); err != nil || d.N < 1 {
		return fmt.Errorf("ensight: %s: invalid point count %q", path, line)
	}
	v, err := readValues(l, 3*d.N)
	if err != nil {
		return fmt.Errorf("ensight: %s: %w", path, err)
	}
	d.X, d.Y, d.Z = v[:d.N:d.N], v[d.N:2*d.N:2*d.N], v[2*d.N:]
	return nil
}

func (d *Data) readField(path string) error {
	f, err := textio.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	l := textio.NewLines(f)
	tag, err := l.MustNext()
	if err != nil {
		return fmt.Errorf("ensight: %s: reading type tag: %w", path, err)
	}
	if d.Rank, err = Rank(tag); err != nil {
		return fmt.Errorf("%w (file %s)", err, path)
	}
	if err := l.Skip(fieldPreamble - 1); err != nil {
		return fmt.Errorf("ensight: %s: %w", path, err)
	}
	v, err := readValues(l, d.Rank*d.N)
	if err != nil {
		return fmt.Errorf("ensight: %s: %w", path, err)
	}
	// Components are stored as contiguous runs of N values.
	d.Field = mat.NewDense(d.N, d.Rank, nil)
	for c := 0; c < d.Rank; c++ {
		d.Field.SetCol(c, v[c*d.N:(c+1)*d.N])
	}
	return nil
}

// readValues reads n whitespace separated numbers from consecutive lines.
func readValues(l *textio.Lines, n int) ([]float64, error) {
	v := make([]float64, 0, n)
	for len(v) < n {
		line, err := l.MustNext()
		if err != nil {
			return nil, fmt.Errorf("read %d of %d values: %w", len(v), n, err)
		}
		for _, s := range strings.Fields(line) {
			if len(v) == n {
				break
			}
			x, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", l.Line(), err)
			}
			v = append(v, x)
		}
	}
	return v, nil
}
