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

package sowfa

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

var testHeights = []float64{50, 100, 150}

// writeVar writes varName in dir/td with one row per time.
func writeVar(t *testing.T, dir, td, varName string, times []float64, f func(t, z float64) float64) {
	t.Helper()
	d := filepath.Join(dir, td)
	if err := os.MkdirAll(d, 0755); err != nil {
		t.Fatal(err)
	}
	var hb strings.Builder
	for _, z := range testHeights {
		fmt.Fprintf(&hb, "%g ", z)
	}
	if err := os.WriteFile(filepath.Join(d, HeightsFile), []byte(hb.String()+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	for _, ti := range times {
		fmt.Fprintf(&b, "%g 1", ti)
		for _, z := range testHeights {
			fmt.Fprintf(&b, " %g", f(ti, z))
		}
		b.WriteString("\n")
	}
	if err := os.WriteFile(filepath.Join(d, varName), []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
}

func span(lo, hi float64) []float64 {
	var v []float64
	for x := lo; x <= hi; x++ {
		v = append(v, x)
	}
	return v
}

func constant(c float64) func(t, z float64) float64 {
	return func(_, _ float64) float64 { return c }
}

func TestOutputTimes(t *testing.T) {
	dir := t.TempDir()
	for _, td := range []string{"1000", "0", "500"} {
		writeVar(t, dir, td, "U_mean", []float64{1}, constant(1))
	}
	if err := os.MkdirAll(filepath.Join(dir, "2000"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "boundaryData"), 0755); err != nil {
		t.Fatal(err)
	}
	got, err := OutputTimes(dir)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"0", "500", "1000"}; strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestReadPlanarAverageRestarts(t *testing.T) {
	dir := t.TempDir()
	value := func(ti, z float64) float64 { return ti + z/1000 }
	writeVar(t, dir, "0", "U_mean", span(1, 12), value)
	writeVar(t, dir, "10", "U_mean", span(10, 22), value)
	writeVar(t, dir, "20", "U_mean", span(20, 30), value)

	s, err := ReadPlanarAverage(dir, "U_mean")
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(s.Heights, testHeights) {
		t.Errorf("heights: %v", s.Heights)
	}
	if !floats.Equal(s.Times, span(1, 30)) {
		t.Errorf("times: %v", s.Times)
	}
	for i := 1; i < len(s.Times); i++ {
		if s.Times[i] <= s.Times[i-1] {
			t.Fatalf("times not increasing at %d: %v", i, s.Times)
		}
	}
	if r, c := s.Values.Dims(); r != 30 || c != 3 {
		t.Fatalf("values %dx%d", r, c)
	}
	if v := s.Values.At(14, 2); math.Abs(v-15.15) > 1e-9 {
		t.Errorf("value at t=15 z=150: %g", v)
	}
	if len(s.Dts) != 30 {
		t.Errorf("dts: %d", len(s.Dts))
	}
}

func TestReadPlanarAverageNoOverlap(t *testing.T) {
	dir := t.TempDir()
	writeVar(t, dir, "0", "T_mean", span(1, 5), constant(300))
	writeVar(t, dir, "10", "T_mean", span(10, 12), constant(301))
	s, err := ReadPlanarAverage(dir, "T_mean")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 2, 3, 4, 5, 10, 11, 12}
	if !floats.Equal(s.Times, want) {
		t.Errorf("times: got %v, want %v", s.Times, want)
	}
}

func TestReadPlanarAverageBadRow(t *testing.T) {
	dir := t.TempDir()
	writeVar(t, dir, "0", "U_mean", span(1, 3), constant(1))
	path := filepath.Join(dir, "0", "U_mean")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintln(f, "4 1 1 1")
	f.Close()
	if _, err := ReadPlanarAverage(dir, "U_mean"); err == nil {
		t.Error("expected error for short row")
	}
}

func TestReadAveragesTrim(t *testing.T) {
	dir := t.TempDir()
	writeVar(t, dir, "0", "U_mean", span(1, 10), constant(8))
	writeVar(t, dir, "0", "V_mean", span(1, 7), constant(0))
	a, err := ReadAverages(dir, "U_mean", "V_mean")
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Times) != 7 {
		t.Errorf("times: %v", a.Times)
	}
	for name, v := range a.Vars {
		if r, _ := v.Dims(); r != 7 {
			t.Errorf("%s has %d rows", name, r)
		}
	}
	if _, err := a.Var("W_mean"); err == nil {
		t.Error("expected error for unread variable")
	}
}

func TestMovingAverage(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	got := movingAverage(x, 2)
	// Even windows cover [i-1, i]; index -1 mirrors to 0.
	want := []float64{1, 1.5, 2.5, 3.5, 4.5}
	if !floats.EqualApprox(got, want, 1e-12) {
		t.Errorf("got %v, want %v", got, want)
	}
	got = movingAverage(x, 3)
	want = []float64{4. / 3, 2, 3, 4, 14. / 3}
	if !floats.EqualApprox(got, want, 1e-12) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func isotropicCase(t *testing.T) *Averages {
	t.Helper()
	dir := t.TempDir()
	times := span(1, 100)
	for name, v := range map[string]float64{
		"U_mean": 10, "V_mean": 0, "W_mean": 0,
		"uu_mean": 1, "vv_mean": 1, "ww_mean": 1,
		"uv_mean": 0, "uw_mean": 0, "vw_mean": 0,
	} {
		writeVar(t, dir, "0", name, times, constant(v))
	}
	a, err := ReadAverages(dir, TIVars(false)...)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestTIHistory(t *testing.T) {
	a := isotropicCase(t)
	h, err := a.TIHistory(TIOptions{Heights: []float64{75, 200}, Window: 10, Dt: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Times) != 90 {
		t.Errorf("averaging times: %d", len(h.Times))
	}
	if h.Times[0] != 7 {
		t.Errorf("first averaging time: %g", h.Times[0])
	}
	for name, m := range map[string]*mat.Dense{
		"TIx": h.TIx, "TIy": h.TIy, "TIz": h.TIz, "TIdir": h.TIdir, "TIxyz": h.TIxyz,
	} {
		if v := m.At(len(h.Times)-1, 0); math.Abs(v-0.1) > 1e-12 {
			t.Errorf("%s = %g, want 0.1", name, v)
		}
	}
	if v := h.TKE.At(0, 1); math.Abs(v-1.5) > 1e-12 {
		t.Errorf("TKE = %g", v)
	}

	var b bytes.Buffer
	if err := h.WriteCSV(&b, 0); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if lines[0] != "Time,TI,TKE" || len(lines) != 91 {
		t.Errorf("csv: %q ... (%d lines)", lines[0], len(lines))
	}

	p, err := h.Plot()
	if err != nil {
		t.Fatal(err)
	}
	if p.Y.Label.Text != "TI [%]" {
		t.Errorf("label %q", p.Y.Label.Text)
	}
	path := filepath.Join(t.TempDir(), "TIhist.png")
	if err := h.SavePlot(path); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("plot not written: %v", err)
	}
}

func TestTIHistoryNeedsSFS(t *testing.T) {
	a := isotropicCase(t)
	if _, err := a.TIHistory(TIOptions{Heights: []float64{75}, Window: 10, Dt: 1, SFS: true}); err == nil {
		t.Error("expected error for missing sub-filter stresses")
	}
}

func TestTIHistoryWindowTooLong(t *testing.T) {
	a := isotropicCase(t)
	if _, err := a.TIHistory(TIOptions{Heights: []float64{75}, Window: 1000, Dt: 1}); err == nil {
		t.Error("expected error for window longer than the record")
	}
}

func TestTIProfile(t *testing.T) {
	a := isotropicCase(t)
	p, err := a.TIProfile(math.Inf(1), TIOptions{Window: 10, Dt: 1})
	if err != nil {
		t.Fatal(err)
	}
	if p.Time != 96 {
		t.Errorf("time: %g", p.Time)
	}
	if !floats.EqualApprox(p.TI, []float64{0.1, 0.1, 0.1}, 1e-12) {
		t.Errorf("TI: %v", p.TI)
	}
	if !floats.EqualApprox(p.TKE, []float64{1.5, 1.5, 1.5}, 1e-12) {
		t.Errorf("TKE: %v", p.TKE)
	}
}

func TestShearAndVeer(t *testing.T) {
	dir := t.TempDir()
	const alpha = 0.2
	dir0 := map[float64]float64{50: 270, 100: 280, 150: 290}
	times := span(1, 3)
	speed := func(z float64) float64 { return 8 * math.Pow(z/100, alpha) }
	writeVar(t, dir, "0", "U_mean", times, func(_, z float64) float64 {
		return -speed(z) * math.Sin(dir0[z]*math.Pi/180)
	})
	writeVar(t, dir, "0", "V_mean", times, func(_, z float64) float64 {
		return -speed(z) * math.Cos(dir0[z]*math.Pi/180)
	})
	a, err := ReadAverages(dir, "U_mean", "V_mean")
	if err != nil {
		t.Fatal(err)
	}
	got, err := a.Shear([]float64{40, 150}, 100, 8)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-alpha) > 1e-4 {
		t.Errorf("shear: %g, want %g", got, alpha)
	}
	if _, err := a.Shear([]float64{150, 160}, 100, 8); err == nil {
		t.Error("expected error when heights map to one cell")
	}
	veer, err := a.Veer(100, 100)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(veer-20) > 1e-4 {
		t.Errorf("veer: %g", veer)
	}
}

func TestForcingTable(t *testing.T) {
	times := []float64{0, 3600}
	heights := mat.NewDense(2, 2, []float64{10, 110, 20, 120})
	u := mat.NewDense(2, 2, []float64{5, 5, 7, 7})
	v := mat.NewDense(2, 2, []float64{1, 11, 2, 12})
	zero := mat.NewDense(2, 2, nil)
	th := mat.NewDense(2, 2, []float64{300, 300, 300, 300})
	ft, err := NewForcingTable(times, heights, u, v, zero, th)
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if err := ft.WriteNative(&b); err == nil {
		t.Error("expected error for time-varying heights")
	}
	if err := ft.RegularizeHeights([]float64{20, 60, 110}); err != nil {
		t.Fatal(err)
	}
	if got := mat.Row(nil, 0, ft.V); !floats.EqualApprox(got, []float64{2, 6, 11}, 1e-12) {
		t.Errorf("V at t=0: %v", got)
	}
	if got := mat.Row(nil, 1, ft.V); !floats.EqualApprox(got, []float64{2, 6, 11}, 1e-12) {
		t.Errorf("V at t=3600: %v", got)
	}
	b.Reset()
	if err := ft.WriteNative(&b); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, want := range []string{
		"sourceHeightsMomentum\n(\n    20\n    60\n    110\n);\n",
		"sourceTableMomentumX\n(\n    (0 5 5 5)\n    (3600 7 7 7)\n);\n",
		"sourceTableTemperature\n(\n    (0 300 300 300)\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("native output missing %q:\n%s", want, out)
		}
	}

	path := filepath.Join(t.TempDir(), "forcingTable")
	if err := ft.Save(path); err != nil {
		t.Fatal(err)
	}
	csvData, err := os.ReadFile(path + ".csv")
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(csvData)), "\n"); len(lines) != 7 {
		t.Errorf("csv has %d lines", len(lines))
	}
}

func TestNewForcingTableShape(t *testing.T) {
	m := mat.NewDense(2, 2, nil)
	if _, err := NewForcingTable([]float64{0, 1}, m, mat.NewDense(2, 3, nil), m, m, m); err == nil {
		t.Error("expected shape error")
	}
}

// profileAverages returns single-time averages at testHeights with each
// variable given by its values at every height.
func profileAverages(vars map[string][]float64) *Averages {
	a := &Averages{Heights: testHeights, Times: []float64{1}, Vars: make(map[string]*mat.Dense)}
	for name, v := range vars {
		a.Vars[name] = mat.NewDense(1, len(v), v)
	}
	return a
}

func TestTGrad(t *testing.T) {
	a := profileAverages(map[string][]float64{"T_mean": {300, 300, 301.5}})
	for _, test := range []struct {
		zi, inv float64
	}{
		{zi: 40, inv: 0},
		{zi: 100, inv: 0.03},
		{zi: 500, inv: 0.03},
	} {
		inv, upper, err := a.TGrad(test.zi)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(inv-test.inv) > 1e-12 {
			t.Errorf("zi=%g: inversion gradient %g, want %g", test.zi, inv, test.inv)
		}
		if math.Abs(upper-0.03) > 1e-12 {
			t.Errorf("zi=%g: upper gradient %g, want 0.03", test.zi, upper)
		}
	}
}

func TestRichardson(t *testing.T) {
	for _, test := range []struct {
		name    string
		heights []float64
		T, U    []float64
		d       float64
		want    float64
		wantErr bool
	}{
		{
			name: "linear", heights: testHeights,
			T: []float64{300.5, 301, 301.5}, U: []float64{1, 2, 3}, d: 126,
			want: 9.81 / 301 * 0.01 / (0.02 * 0.02),
		},
		{
			name: "rotor top", heights: testHeights,
			T: []float64{300, 302, 304}, U: []float64{1, 2, 3}, d: 20,
			want: 9.81 / 301 * 0.04 / (0.02 * 0.02),
		},
		{
			name: "nonuniform", heights: []float64{50, 100, 200},
			T: []float64{300, 301, 302}, U: []float64{1, 2, 3}, d: 126, wantErr: true,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			a := profileAverages(map[string][]float64{"T_mean": test.T, "U_mean": test.U, "V_mean": {0, 0, 0}})
			a.Heights = test.heights
			got, err := a.Richardson(9.81, 90, test.d)
			if test.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !scalar.EqualWithinRel(got, test.want, 1e-9) {
				t.Errorf("Ri = %g, want %g", got, test.want)
			}
		})
	}
}

func TestRotateTensors(t *testing.T) {
	zero := []float64{0, 0, 0}
	vars := map[string][]float64{
		"U_mean": {1, 0, -1}, "V_mean": {0, 1, 0},
		"uu_mean": {1, 1, 1}, "vv_mean": {4, 4, 4}, "ww_mean": {9, 9, 9},
		"uv_mean": zero, "uw_mean": {0.5, 0.5, 0.5}, "vw_mean": {0.3, 0.3, 0.3},
	}
	for i, name := range sfsVars {
		vars[name] = []float64{float64(i), float64(i), float64(i)}
	}
	r, err := profileAverages(vars).RotateTensors(0)
	if err != nil {
		t.Fatal(err)
	}
	for k, want := range [][]float64{
		// Flow along x leaves the tensor unchanged.
		{1, 0, 0.5, 0, 4, 0.3, 0.5, 0.3, 9},
		// Flow along y swaps x and y.
		{4, 0, 0.3, 0, 1, -0.5, 0.3, -0.5, 9},
		// Flow along -x flips the sign of the xz and yz terms.
		{1, 0, -0.5, 0, 4, -0.3, -0.5, -0.3, 9},
	} {
		if !mat.EqualApprox(r.Resolved[k], mat.NewDense(3, 3, want), 1e-12) {
			t.Errorf("height %g: resolved stresses\n%v\nwant %v",
				testHeights[k], mat.Formatted(r.Resolved[k]), want)
		}
	}
	if tr := mat.Trace(r.SFS[1]); math.Abs(tr-3) > 1e-12 {
		t.Errorf("SFS trace %g, want 3", tr)
	}
	if _, err := profileAverages(vars).RotateTensors(1); err == nil {
		t.Error("expected error for time index out of range")
	}
}
