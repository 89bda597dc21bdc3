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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Variables needed for turbulence statistics.
var (
	stressVars = []string{"uu_mean", "vv_mean", "ww_mean", "uv_mean", "uw_mean", "vw_mean"}
	sfsVars    = []string{"R11_mean", "R22_mean", "R33_mean", "R12_mean", "R13_mean", "R23_mean"}
	// ProfileVars are the columns of a mean profile CSV file, in order.
	ProfileVars = []string{"U_mean", "V_mean", "W_mean", "T_mean",
		"uu_mean", "vv_mean", "ww_mean", "uv_mean", "uw_mean", "vw_mean", "Tw_mean",
		"R11_mean", "R22_mean", "R33_mean", "R12_mean", "R13_mean", "R23_mean"}
)

// TIVars returns the variables TIHistory and TIProfile need.
func TIVars(sfs bool) []string {
	v := append(append([]string{}, DefaultVars[:3]...), stressVars...)
	if sfs {
		v = append(v, sfsVars...)
	}
	return v
}

// TIOptions configures the turbulence intensity calculation.
type TIOptions struct {
	// Heights are the heights [m] at which to calculate the history.
	Heights []float64
	// Window is the length of the moving average window [s].
	Window float64
	// Dt is the spacing [s] of the uniform time axis the series are
	// resampled onto before averaging.
	Dt float64
	// SFS adds the modeled sub-filter stresses to the resolved ones.
	SFS bool
}

// DefaultTIOptions returns the options used for precursor convergence
// checks.
func DefaultTIOptions() TIOptions {
	return TIOptions{
		Heights: []float64{90, 200, 400, 600, 800},
		Window:  600,
		Dt:      1,
		SFS:     true,
	}
}

// TIHistory holds moving-averaged turbulence statistics. Each matrix has
// one row per averaging time and one column per height.
type TIHistory struct {
	Heights []float64
	Times   []float64

	TIx, TIy, TIz *mat.Dense
	// TIdir is the turbulence intensity resolved to the mean flow direction.
	TIdir *mat.Dense
	// TIxyz assumes isotropic turbulence.
	TIxyz *mat.Dense
	TKE   *mat.Dense
}

// window is a uniform time axis and the moving average window over it.
type window struct {
	uniform []float64
	n, half int
}

func (a *Averages) window(o TIOptions) (window, error) {
	if o.Dt <= 0 || o.Window <= 0 {
		return window{}, fmt.Errorf("sowfa: invalid averaging window %g s with dt %g s", o.Window, o.Dt)
	}
	t0, t1 := a.Times[0], a.Times[len(a.Times)-1]
	nt := int(math.Ceil((t1 - t0) / o.Dt))
	w := window{n: int(o.Window / o.Dt)}
	w.half = w.n / 2
	if w.n < 2 || nt-2*w.half+1 < 1 {
		return window{}, fmt.Errorf("sowfa: averaging window %g s doesn't fit in [%g, %g] at dt %g s",
			o.Window, t0, t1, o.Dt)
	}
	w.uniform = make([]float64, nt)
	for i := range w.uniform {
		w.uniform[i] = t0 + float64(i+1)*o.Dt
	}
	return w, nil
}

// times returns the uniform times at which a full window is available.
func (w window) times() []float64 {
	return w.uniform[w.half : len(w.uniform)-w.half+1]
}

// average resamples the series y(t) onto the uniform axis and returns its
// moving average at w.times().
func (w window) average(t, y []float64) ([]float64, error) {
	var pl interp.PiecewiseLinear
	if err := pl.Fit(t, y); err != nil {
		return nil, fmt.Errorf("sowfa: resampling series: %w", err)
	}
	u := make([]float64, len(w.uniform))
	for i, x := range w.uniform {
		u[i] = pl.Predict(x)
	}
	return movingAverage(u, w.n)[w.half : len(u)-w.half+1], nil
}

// movingAverage returns the size-n centered moving average of x, with the
// input mirrored about its end points.
func movingAverage(x []float64, n int) []float64 {
	out := make([]float64, len(x))
	lo := n / 2
	for i := range x {
		var sum float64
		for j := i - lo; j < i-lo+n; j++ {
			sum += x[reflect(j, len(x))]
		}
		out[i] = sum / float64(n)
	}
	return out
}

func reflect(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}

// column returns the values of v at height index k, or interpolated
// between k-1 and k with weight frac when frac is not NaN.
func column(v *mat.Dense, k int, frac float64) []float64 {
	hi := mat.Col(nil, k, v)
	if math.IsNaN(frac) {
		return hi
	}
	lo := mat.Col(nil, k-1, v)
	for i := range hi {
		hi[i] = lo[i] + frac*(hi[i]-lo[i])
	}
	return hi
}

// bracket returns the upper index and weight for linear interpolation to
// height h, extrapolating from the two nearest levels outside the range.
func bracket(z []float64, h float64) (int, float64) {
	k := sort.Search(len(z), func(i int) bool { return z[i] > h })
	switch {
	case k == len(z):
		k = len(z) - 1
	case k == 0:
		k = 1
	}
	return k, (h - z[k-1]) / (z[k] - z[k-1])
}

// stats holds windowed means at one height.
type stats struct {
	u, v, w, uu, vv, ww, uv []float64
}

func (a *Averages) windowed(w window, k int, frac float64, sfs bool) (*stats, error) {
	names := []string{"U_mean", "V_mean", "W_mean", "uu_mean", "vv_mean", "ww_mean", "uv_mean"}
	out := make([][]float64, len(names))
	for i, name := range names {
		v, err := a.Var(name)
		if err != nil {
			return nil, err
		}
		if out[i], err = w.average(a.Times, column(v, k, frac)); err != nil {
			return nil, err
		}
	}
	s := &stats{u: out[0], v: out[1], w: out[2], uu: out[3], vv: out[4], ww: out[5], uv: out[6]}
	if sfs {
		for _, p := range []struct {
			name string
			dst  []float64
		}{{"R11_mean", s.uu}, {"R22_mean", s.vv}, {"R12_mean", s.uv}, {"R33_mean", s.ww}} {
			v, err := a.Var(p.name)
			if err != nil {
				return nil, err
			}
			r, err := w.average(a.Times, column(v, k, frac))
			if err != nil {
				return nil, err
			}
			floats.Add(p.dst, r)
		}
	}
	return s, nil
}

// at returns (TIx, TIy, TIz, TIdir, TIxyz, TKE) at averaging time i.
func (s *stats) at(i int) [6]float64 {
	umag := math.Sqrt(s.u[i]*s.u[i] + s.v[i]*s.v[i] + s.w[i]*s.w[i])
	dir := math.Abs(math.Atan2(s.v[i], s.u[i]))
	sin, cos := math.Sincos(dir)
	tke := 0.5 * (s.uu[i] + s.vv[i] + s.ww[i])
	tidir := s.uu[i]*cos*cos + 2*s.uv[i]*sin*cos + s.vv[i]*sin*sin
	return [6]float64{
		math.Sqrt(s.uu[i]) / umag,
		math.Sqrt(s.vv[i]) / umag,
		math.Sqrt(s.ww[i]) / umag,
		math.Sqrt(tidir) / umag,
		math.Sqrt(2./3.*tke) / umag,
		tke,
	}
}

// TIHistory calculates the turbulence intensity and turbulent kinetic
// energy at o.Heights over a moving window.
func (a *Averages) TIHistory(o TIOptions) (*TIHistory, error) {
	if len(o.Heights) == 0 {
		return nil, fmt.Errorf("sowfa: no heights for turbulence intensity")
	}
	if len(a.Heights) < 2 {
		return nil, fmt.Errorf("sowfa: need at least 2 heights to interpolate, have %d", len(a.Heights))
	}
	w, err := a.window(o)
	if err != nil {
		return nil, err
	}
	h := &TIHistory{Heights: o.Heights, Times: w.times()}
	nt, nh := len(h.Times), len(o.Heights)
	m := make([]*mat.Dense, 6)
	for i := range m {
		m[i] = mat.NewDense(nt, nh, nil)
	}
	for j, z := range o.Heights {
		k, frac := bracket(a.Heights, z)
		s, err := a.windowed(w, k, frac, o.SFS)
		if err != nil {
			return nil, err
		}
		for i := 0; i < nt; i++ {
			for q, v := range s.at(i) {
				m[q].Set(i, j, v)
			}
		}
	}
	h.TIx, h.TIy, h.TIz, h.TIdir, h.TIxyz, h.TKE = m[0], m[1], m[2], m[3], m[4], m[5]
	return h, nil
}

// WriteCSV writes the flow-direction turbulence intensity and TKE history
// at height index j.
func (h *TIHistory) WriteCSV(w io.Writer, j int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Time", "TI", "TKE"}); err != nil {
		return err
	}
	for i, t := range h.Times {
		if err := cw.Write(formatRow(t, h.TIdir.At(i, j), h.TKE.At(i, j))); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes one CSV file per height, named prefix_z<height>.csv, and
// returns the file names.
func (h *TIHistory) Save(prefix string) ([]string, error) {
	var names []string
	for j, z := range h.Heights {
		name := fmt.Sprintf("%s_z%.1f.csv", prefix, z)
		f, err := os.Create(name)
		if err != nil {
			return names, err
		}
		if err := h.WriteCSV(f, j); err != nil {
			f.Close()
			return names, err
		}
		if err := f.Close(); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

// TIProfile is the flow-direction turbulence intensity and TKE at every
// height at one averaging time.
type TIProfile struct {
	Time    float64
	Heights []float64
	TI      []float64
	TKE     []float64
}

// TIProfile calculates the turbulence intensity profile at the averaging
// time nearest to t. Pass math.Inf(1) for the last averaging time.
func (a *Averages) TIProfile(t float64, o TIOptions) (*TIProfile, error) {
	w, err := a.window(o)
	if err != nil {
		return nil, err
	}
	times := w.times()
	i := nearest(times, t)
	p := &TIProfile{
		Time:    times[i],
		Heights: a.Heights,
		TI:      make([]float64, len(a.Heights)),
		TKE:     make([]float64, len(a.Heights)),
	}
	for k := range a.Heights {
		s, err := a.windowed(w, k, math.NaN(), o.SFS)
		if err != nil {
			return nil, err
		}
		v := s.at(i)
		p.TI[k], p.TKE[k] = v[3], v[5]
	}
	return p, nil
}

// nearest returns the index of the value in x closest to v.
func nearest(x []float64, v float64) int {
	if v >= x[len(x)-1] {
		return len(x) - 1
	}
	best := 0
	for i := range x {
		if math.Abs(x[i]-v) < math.Abs(x[best]-v) {
			best = i
		}
	}
	return best
}

// Shear estimates the power-law exponent of the horizontal wind speed at
// the last time, fitted at the cells nearest to heights, for the reference
// height zref [m] and speed uref [m/s].
func (a *Averages) Shear(heights []float64, zref, uref float64) (float64, error) {
	uh, err := a.horizontalSpeed()
	if err != nil {
		return 0, err
	}
	sorted := append([]float64{}, heights...)
	sort.Float64s(sorted)
	var lnz, lnu []float64
	seen := make(map[int]bool)
	for _, h := range sorted {
		k := nearest(a.Heights, h)
		seen[k] = true
		lnz = append(lnz, math.Log(a.Heights[k]/zref))
		lnu = append(lnu, math.Log(uh[k]/uref))
	}
	if len(seen) < 2 {
		return 0, fmt.Errorf("sowfa: shear needs at least 2 distinct cells, heights %v map to %d", heights, len(seen))
	}
	_, alpha := stat.LinearRegression(lnz, lnu, nil, true)
	return alpha, nil
}

func (a *Averages) horizontalSpeed() ([]float64, error) {
	u, err := a.Var("U_mean")
	if err != nil {
		return nil, err
	}
	v, err := a.Var("V_mean")
	if err != nil {
		return nil, err
	}
	last := len(a.Times) - 1
	uh := mat.Row(nil, last, u)
	for k, vk := range mat.Row(nil, last, v) {
		uh[k] = math.Hypot(uh[k], vk)
	}
	return uh, nil
}

// WindDirection returns the meteorological wind direction [deg] at every
// height at the last time.
func (a *Averages) WindDirection() ([]float64, error) {
	u, err := a.Var("U_mean")
	if err != nil {
		return nil, err
	}
	v, err := a.Var("V_mean")
	if err != nil {
		return nil, err
	}
	last := len(a.Times) - 1
	dir := make([]float64, len(a.Heights))
	for k := range dir {
		d := math.Atan2(-u.At(last, k), -v.At(last, k))
		if d < 0 {
			d += 2 * math.Pi
		}
		dir[k] = d * 180 / math.Pi
	}
	return dir, nil
}

// Veer returns the change in wind direction [deg] across a rotor of
// diameter d centered at zhub. Positive veer is clockwise seen from above.
func (a *Averages) Veer(zhub, d float64) (float64, error) {
	dir, err := a.WindDirection()
	if err != nil {
		return 0, err
	}
	var rotor []float64
	for k, z := range a.Heights {
		if z >= zhub-d/2 && z <= zhub+d/2 {
			rotor = append(rotor, dir[k])
		}
	}
	if len(rotor) == 0 {
		return 0, fmt.Errorf("sowfa: no cells between %g and %g m", zhub-d/2, zhub+d/2)
	}
	return rotor[len(rotor)-1] - rotor[0], nil
}

// WriteProfileCSV writes the profiles of ProfileVars at the time nearest
// to t. All of ProfileVars must have been read.
func (a *Averages) WriteProfileCSV(w io.Writer, t float64) error {
	i := nearest(a.Times, t)
	cols := make([]*mat.Dense, len(ProfileVars))
	header := []string{"z"}
	for c, name := range ProfileVars {
		v, err := a.Var(name)
		if err != nil {
			return err
		}
		cols[c] = v
		header = append(header, name[:len(name)-len("_mean")])
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]float64, len(cols)+1)
	for k, z := range a.Heights {
		row[0] = z
		for c, v := range cols {
			row[c+1] = v.At(i, k)
		}
		if err := cw.Write(formatRow(row...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatRow(v ...float64) []string {
	s := make([]string, len(v))
	for i, x := range v {
		s[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return s
}
