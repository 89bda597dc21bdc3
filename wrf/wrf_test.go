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

package wrf

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/ctessum/cdf"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/vg"
)

const tol = 1e-3

// writeWRF writes a WRF-like file with one time step on a 3x2x2 grid.
// Staggered U, V and W equal their staggered x, y and z index, T equals
// tval and the geopotential puts level k at (k+0.5)*100 m.
func writeWRF(t *testing.T, path string, tval float32) {
	t.Helper()
	dims := []string{"Time", "bottom_top", "bottom_top_stag", "south_north", "south_north_stag", "west_east", "west_east_stag"}
	lengths := []int{1, 2, 3, 2, 3, 3, 4}
	h := cdf.NewHeader(dims, lengths)
	type variable struct {
		name  string
		dims  []string
		value func(k, j, i int) float32
	}
	vars := []variable{
		{"U", []string{"Time", "bottom_top", "south_north", "west_east_stag"}, func(k, j, i int) float32 { return float32(i) }},
		{"V", []string{"Time", "bottom_top", "south_north_stag", "west_east"}, func(k, j, i int) float32 { return float32(j) }},
		{"W", []string{"Time", "bottom_top_stag", "south_north", "west_east"}, func(k, j, i int) float32 { return float32(k) }},
		{"T", []string{"Time", "bottom_top", "south_north", "west_east"}, func(k, j, i int) float32 { return tval }},
		{"PH", []string{"Time", "bottom_top_stag", "south_north", "west_east"}, func(k, j, i int) float32 { return 0 }},
		{"PHB", []string{"Time", "bottom_top_stag", "south_north", "west_east"}, func(k, j, i int) float32 { return float32(k) * 100 * gravity }},
	}
	for _, v := range vars {
		h.AddVariable(v.name, v.dims, []float32{0})
	}
	h.Define()
	ff, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vars {
		shape := f.Header.Lengths(v.name)
		var data []float32
		for k := 0; k < shape[1]; k++ {
			for j := 0; j < shape[2]; j++ {
				for i := 0; i < shape[3]; i++ {
					data = append(data, v.value(k, j, i))
				}
			}
		}
		if err := writeNCF(f, v.name, data); err != nil {
			t.Fatal(err)
		}
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		t.Fatal(err)
	}
}

func testDataset(t *testing.T) *Dataset {
	t.Helper()
	dir := t.TempDir()
	writeWRF(t, filepath.Join(dir, "wrfout_d01_2018-01-01_00:10:00"), 1)
	writeWRF(t, filepath.Join(dir, "wrfout_d01_2018-01-01_00:00:00"), 0)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not netcdf\n"), 0644); err != nil {
		t.Fatal(err)
	}
	d, err := Open(Config{Ds: 10, TimeLayout: "wrfout_d01_2006-01-02_15:04:05"}, filepath.Join(dir, "*"))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestOpen(t *testing.T) {
	d := testDataset(t)
	if len(d.Files) != 2 {
		t.Fatalf("files: %v", d.Files)
	}
	if !strings.HasSuffix(d.Files[0], "00:00:00") {
		t.Errorf("files not sorted: %v", d.Files)
	}
	if d.Nt != 2 || d.Nx != 3 || d.Ny != 2 || d.Nz != 2 {
		t.Errorf("dims: nt=%d nx=%d ny=%d nz=%d", d.Nt, d.Nx, d.Ny, d.Nz)
	}
	if v := d.TimeValue(1); v != 600 {
		t.Errorf("time value: %g", v)
	}
	s := d.String()
	if !strings.Contains(s, "2 times read") || !strings.Contains(s, "Dimensions: (3, 2, 2)") {
		t.Errorf("string:\n%s", s)
	}
}

func TestOpenNoFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(Config{}, filepath.Join(dir, "*")); err == nil {
		t.Error("expected error")
	}
}

func TestUnsupportedPlane(t *testing.T) {
	_, err := Open(Config{Plane: "x"}, "whatever")
	if !errors.Is(err, ErrUnsupportedPlane) {
		t.Errorf("got %v", err)
	}
}

func TestParseField(t *testing.T) {
	for i, n := range []string{"U", "v", "W", "t"} {
		f, err := ParseField(n)
		if err != nil || f != Field(i) {
			t.Errorf("%s: got %v, %v", n, f, err)
		}
	}
	if _, err := ParseField("Q"); err == nil {
		t.Error("expected error")
	}
	if s := Field(7).String(); s != "Field(7)" {
		t.Error(s)
	}
}

func TestFields(t *testing.T) {
	d := testDataset(t)
	u, _ := d.Data(U)
	for i := 0; i < d.Nx; i++ {
		if v := u.Get(1, 1, 1, i); v != float64(i)+0.5 {
			t.Errorf("U[%d] = %g", i, v)
		}
	}
	tt, _ := d.Data(T)
	if v := tt.Get(1, 0, 0, 0); v != 301 {
		t.Errorf("T = %g", v)
	}
	w, _ := d.Data(W)
	if v := w.Get(0, 1, 0, 0); v != 1.5 {
		t.Errorf("W = %g", v)
	}
	for k, want := range []float64{50, 150} {
		if z := d.ZEst(1, k); !scalar.EqualWithinAbs(z, want, tol) {
			t.Errorf("zEst[%d] = %g", k, z)
		}
		if z := d.Height().Get(0, k, 1, 2); !scalar.EqualWithinAbs(z, want, tol) {
			t.Errorf("z[%d] = %g", k, z)
		}
	}
}

func TestMeanProfile(t *testing.T) {
	d := testDataset(t)
	tests := []struct {
		name   string
		sel    Selection
		values []float64
	}{
		{"domain U", Selection{Field: U, Region: d.Domain()}, []float64{1.5, 1.5}},
		{"column U", Selection{Field: U, Region: Region{XMin: 2, XMax: 2, YMax: 1}}, []float64{2.5, 2.5}},
		{"V", Selection{Field: V, Region: d.Domain()}, []float64{1, 1}},
		{"W", Selection{Time: 1, Field: W, Region: d.Domain()}, []float64{0.5, 1.5}},
		{"T", Selection{Time: 1, Field: T, Region: d.Domain()}, []float64{301, 301}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p, err := d.MeanProfile(test.sel)
			if err != nil {
				t.Fatal(err)
			}
			if !floats.EqualApprox(p.Values, test.values, 1e-12) {
				t.Errorf("values %v, want %v", p.Values, test.values)
			}
			if !floats.EqualApprox(p.Z, []float64{50, 150}, tol) {
				t.Errorf("z %v", p.Z)
			}
		})
	}
}

func TestBadSelection(t *testing.T) {
	d := testDataset(t)
	for _, sel := range []Selection{
		{Time: 2, Region: d.Domain()},
		{Field: Field(4), Region: d.Domain()},
		{Region: Region{XMax: 3, YMax: 1}},
		{Region: Region{XMin: 2, XMax: 1, YMax: 1}},
	} {
		if _, err := d.MeanProfile(sel); err == nil {
			t.Errorf("%+v: expected error", sel)
		}
	}
	if _, err := d.PlotSlice(Selection{Level: 2, Region: d.Domain()}); err == nil {
		t.Error("expected level error")
	}
}

func TestMeanProfiles(t *testing.T) {
	d := testDataset(t)
	v, z, err := d.MeanProfiles(T, d.Domain())
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(v, mat.NewDense(2, 2, []float64{300, 300, 301, 301})) {
		t.Errorf("values %v", mat.Formatted(v))
	}
	if !mat.EqualApprox(z, mat.NewDense(2, 2, []float64{50, 150, 50, 150}), tol) {
		t.Errorf("z %v", mat.Formatted(z))
	}
}

func TestForcingTable(t *testing.T) {
	d := testDataset(t)
	ft, err := d.ForcingTable(d.Domain())
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(ft.Times, []float64{0, 600}) {
		t.Errorf("times %v", ft.Times)
	}
	if err := ft.RegularizeHeights([]float64{0, 100, 200}); err != nil {
		t.Fatal(err)
	}
	if w := mat.Row(nil, 0, ft.W); !floats.EqualApprox(w, []float64{0.5, 1, 1.5}, tol) {
		t.Errorf("w %v", w)
	}

	dir := t.TempDir()
	if err := d.SaveForcingTable(d.Domain(), []float64{0, 100, 200}, dir, "forcingTable"); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"forcingTable", "forcingTable.csv"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Error(err)
		}
	}
}

func TestWriteProfiles(t *testing.T) {
	d := testDataset(t)
	path := filepath.Join(t.TempDir(), "profiles.nc")
	if err := d.WriteProfiles(path, d.Domain()); err != nil {
		t.Fatal(err)
	}
	nc, err := netcdf.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	getter, err := nc.GetVarGetter("T")
	if err != nil {
		t.Fatal(err)
	}
	v, err := getter.Values()
	if err != nil {
		t.Fatal(err)
	}
	got, ok := v.([][]float32)
	if !ok {
		t.Fatalf("type %T", v)
	}
	if got[1][0] != 301 || got[0][1] != 300 {
		t.Errorf("T %v", got)
	}
	tg, err := nc.GetVarGetter("time")
	if err != nil {
		t.Fatal(err)
	}
	tv, err := tg.Values()
	if err != nil {
		t.Fatal(err)
	}
	if times := tv.([]float64); times[1] != 600 {
		t.Errorf("time %v", times)
	}
}

func TestPlots(t *testing.T) {
	d := testDataset(t)
	p, err := d.PlotSlice(Selection{Field: U, Level: 1, Region: Region{XMin: 1, XMax: 2, YMax: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Save(4*vg.Inch, 3*vg.Inch, filepath.Join(t.TempDir(), "slice.png")); err != nil {
		t.Fatal(err)
	}
	if p.X.Label.Text != "x [m]" {
		t.Errorf("label %q", p.X.Label.Text)
	}
	if _, err := d.PlotMeanProfile(Selection{Field: W, Region: d.Domain()}); err != nil {
		t.Error(err)
	}
	if _, err := d.PlotMeanProfilesOverTime(V, d.Domain()); err != nil {
		t.Error(err)
	}
	if _, err := d.PlotTimeHeight(T, d.Domain()); err != nil {
		t.Error(err)
	}
}

func TestAxisScale(t *testing.T) {
	for _, test := range []struct {
		nx, ny int
		ds     float64
		unit   string
	}{
		{nx: 3, ny: 2, ds: 10, unit: "m"},
		{nx: 101, ny: 2, ds: 100, unit: "m"},
		{nx: 102, ny: 2, ds: 100, unit: "km"},
		{nx: 2, ny: 201, ds: 50, unit: "m"},
		{nx: 2, ny: 202, ds: 50, unit: "km"},
	} {
		d := &Dataset{Nx: test.nx, Ny: test.ny, Ds: test.ds}
		scale, unit := d.axisScale()
		if unit != test.unit {
			t.Errorf("%dx%d at %g m: unit %s, want %s", test.nx, test.ny, test.ds, unit, test.unit)
		}
		if want := map[string]float64{"m": 1, "km": 1e-3}[unit]; scale != want {
			t.Errorf("%dx%d at %g m: scale %g, want %g", test.nx, test.ny, test.ds, scale, want)
		}
	}
}
