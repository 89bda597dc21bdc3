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

package vtk

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

const twoFields = `# vtk DataFile Version 2.0
sample
ASCII
DATASET STRUCTURED_POINTS
DIMENSIONS 2 3 1
ORIGIN 0 10 5
SPACING 2 0.5 1
POINT_DATA 6
FIELD attributes 2
U 3 6 float
1 0 0
2 0 0
3 0 0
4 0 0
5 0 0
6 0 -1

p 1 6 float
10
20
30
40
50
60
`

func TestDecode(t *testing.T) {
	d, err := Decode(strings.NewReader(twoFields))
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "sample" {
		t.Errorf("name: %q", d.Name)
	}
	if d.Dims != [3]int{2, 3, 1} {
		t.Errorf("dims: %v", d.Dims)
	}
	if !floats.Equal(d.X, []float64{0, 2}) {
		t.Errorf("x: %v", d.X)
	}
	if !floats.EqualApprox(d.Y, []float64{10, 10.5, 11}, 1e-12) {
		t.Errorf("y: %v", d.Y)
	}
	if !floats.Equal(d.Z, []float64{5}) {
		t.Errorf("z: %v", d.Z)
	}
	if d.NumFields() != 2 {
		t.Fatalf("fields: %d", d.NumFields())
	}
	u := d.Fields[0]
	if u.Name != "U" || u.Rank != 3 {
		t.Errorf("U header: %s %d", u.Name, u.Rank)
	}
	// Rows run y fastest, so the fourth row is i=1, j=0.
	if v := u.Data.Get(0, 1, 0, 0); v != 4 {
		t.Errorf("U[0,1,0,0] = %g", v)
	}
	if v := u.Data.Get(2, 1, 2, 0); v != -1 {
		t.Errorf("U[2,1,2,0] = %g", v)
	}
	p, ok := d.Field("p")
	if !ok {
		t.Fatal("missing p")
	}
	if v := p.Data.Get(0, 0, 2, 0); v != 30 {
		t.Errorf("p[0,0,2,0] = %g", v)
	}
}

func TestAxis(t *testing.T) {
	if a := Axis(3, 1, 1); !floats.Equal(a, []float64{3}) {
		t.Errorf("single point axis: %v", a)
	}
	for _, n := range []int{0, -1} {
		if a := Axis(3, 1, n); a != nil {
			t.Errorf("n=%d: %v, want nil", n, a)
		}
	}
	if a := Axis(0, 0.25, 5); !floats.EqualApprox(a, []float64{0, 0.25, 0.5, 0.75, 1}, 1e-12) {
		t.Errorf("axis: %v", a)
	}
}

func TestRoundTrip(t *testing.T) {
	d := &StructuredData{
		Name:    "round trip",
		Dims:    [3]int{2, 2, 2},
		Origin:  [3]float64{1, 2, 3},
		Spacing: [3]float64{0.1, 0.2, 0.3},
	}
	d.X = Axis(1, 0.1, 2)
	d.Y = Axis(2, 0.2, 2)
	d.Z = Axis(3, 0.3, 2)
	T := sparse.ZerosDense(1, 2, 2, 2)
	for i := range T.Elements {
		T.Elements[i] = 290 + float64(i)/3
	}
	d.Fields = []Field{{Name: "T", Rank: 1, Data: T}}

	path := filepath.Join(t.TempDir(), "T.vtk")
	if err := Write(path, d); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != d.Name || got.Dims != d.Dims || got.Origin != d.Origin || got.Spacing != d.Spacing {
		t.Errorf("header mismatch: %+v", got)
	}
	if !floats.Equal(got.Fields[0].Data.Elements, T.Elements) {
		t.Errorf("data mismatch: %v != %v", got.Fields[0].Data.Elements, T.Elements)
	}
}

func TestEncodeShapeMismatch(t *testing.T) {
	d := &StructuredData{Dims: [3]int{2, 1, 1}}
	d.Fields = []Field{{Name: "p", Rank: 1, Data: sparse.ZerosDense(1, 3, 1, 1)}}
	var b bytes.Buffer
	if err := Encode(&b, d); err == nil {
		t.Error("expected shape error")
	}
}

func TestShortRow(t *testing.T) {
	in := strings.Replace(twoFields, "6 0 -1", "6 0", 1)
	if _, err := Decode(strings.NewReader(in)); err == nil {
		t.Error("expected error for short row")
	}
}

func TestTruncated(t *testing.T) {
	in := twoFields[:strings.Index(twoFields, "40")]
	if _, err := Decode(strings.NewReader(in)); err == nil {
		t.Error("expected error for truncated field")
	}
}

func TestBadHeader(t *testing.T) {
	for name, in := range map[string]string{
		"dimensions": strings.Replace(twoFields, "DIMENSIONS 2 3 1", "DIMS 2 3 1", 1),
		"origin":     strings.Replace(twoFields, "ORIGIN 0 10 5", "ORIGIN 0 10", 1),
		"field":      strings.Replace(twoFields, "FIELD attributes 2", "FIELD attributes", 1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(in))
			if !errors.Is(err, ErrHeader) {
				t.Errorf("want ErrHeader, got %v", err)
			}
		})
	}
}
