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
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// kmThreshold is the domain extent [m] above which slice axes are in km.
const kmThreshold = 10000

// grid adapts a matrix with rows along y and columns along x to
// plotter.GridXYZ.
type grid struct {
	z    *mat.Dense
	x, y []float64
}

func (g grid) Dims() (c, r int)   { return len(g.x), len(g.y) }
func (g grid) Z(c, r int) float64 { return g.z.At(r, c) }
func (g grid) X(c int) float64    { return g.x[c] }
func (g grid) Y(r int) float64    { return g.y[r] }

// heatPalette returns a blue-red palette spanning the values of m.
func heatPalette(m *mat.Dense) palette.Palette {
	v := m.RawMatrix().Data
	lo, hi := floats.Min(v), floats.Max(v)
	if hi <= lo {
		lo, hi = lo-0.5, hi+0.5
	}
	cm := moreland.SmoothBlueRed()
	cm.SetMin(lo)
	cm.SetMax(hi)
	return cm.Palette(64)
}

// lineColors returns n colors running from blue to red.
func lineColors(n int) []color.Color {
	cm := moreland.SmoothBlueRed()
	cm.SetMin(0)
	cm.SetMax(1)
	if n < 2 {
		return cm.Palette(2).Colors()[:n]
	}
	return cm.Palette(n).Colors()
}

// axisScale returns the factor from m to the slice axis unit and its name.
func (d *Dataset) axisScale() (float64, string) {
	if float64(d.Nx-1)*d.Ds > kmThreshold || float64(d.Ny-1)*d.Ds > kmThreshold {
		return 1e-3, "km"
	}
	return 1, "m"
}

// PlotSlice returns a heat map of sel.Field on level sel.Level at time
// sel.Time. When sel.Region is smaller than the domain it is outlined by
// a dashed rectangle.
func (d *Dataset) PlotSlice(sel Selection) (*plot.Plot, error) {
	if err := d.checkSelection(sel); err != nil {
		return nil, err
	}
	scale, unit := d.axisScale()
	g := grid{
		z: mat.NewDense(d.Ny, d.Nx, nil),
		x: make([]float64, d.Nx),
		y: make([]float64, d.Ny),
	}
	for i := range g.x {
		g.x[i] = float64(i) * d.Ds * scale
	}
	for j := range g.y {
		g.y[j] = float64(j) * d.Ds * scale
	}
	a := d.fields[sel.Field]
	for j := 0; j < d.Ny; j++ {
		for i := 0; i < d.Nx; i++ {
			g.z.Set(j, i, a.Get(sel.Time, sel.Level, j, i))
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%v, z=%.1f m, %s", sel.Field, d.ZEst(sel.Time, sel.Level), d.TimeLabel(sel.Time))
	p.X.Label.Text = "x [" + unit + "]"
	p.Y.Label.Text = "y [" + unit + "]"
	p.Add(plotter.NewHeatMap(g, heatPalette(g.z)))

	if sel.Region != d.Domain() {
		r := sel.Region
		x0, x1 := float64(r.XMin)*d.Ds*scale, float64(r.XMax)*d.Ds*scale
		y0, y1 := float64(r.YMin)*d.Ds*scale, float64(r.YMax)*d.Ds*scale
		l, err := plotter.NewLine(plotter.XYs{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}})
		if err != nil {
			return nil, fmt.Errorf("wrf: %w", err)
		}
		l.Color = color.Black
		l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(l)
	}
	return p, nil
}

func profileLine(values, z []float64, c color.Color) (*plotter.Line, error) {
	xy := make(plotter.XYs, len(z))
	for k := range z {
		xy[k].X, xy[k].Y = values[k], z[k]
	}
	l, err := plotter.NewLine(xy)
	if err != nil {
		return nil, fmt.Errorf("wrf: %w", err)
	}
	l.Color = c
	return l, nil
}

// PlotMeanProfile returns a plot of the region-mean profile of sel.Field
// at time sel.Time.
func (d *Dataset) PlotMeanProfile(sel Selection) (*plot.Plot, error) {
	pr, err := d.MeanProfile(sel)
	if err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("mean %v, %s", sel.Field, d.TimeLabel(sel.Time))
	p.X.Label.Text = sel.Field.String()
	p.Y.Label.Text = "z [m]"
	l, err := profileLine(pr.Values, pr.Z, color.Black)
	if err != nil {
		return nil, err
	}
	p.Add(l)
	return p, nil
}

// PlotMeanProfilesOverTime returns a plot with the region-mean profile of
// f at every time, colored from blue (first) to red (last).
func (d *Dataset) PlotMeanProfilesOverTime(f Field, r Region) (*plot.Plot, error) {
	values, z, err := d.MeanProfiles(f, r)
	if err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("mean %v", f)
	p.X.Label.Text = f.String()
	p.Y.Label.Text = "z [m]"
	colors := lineColors(d.Nt)
	for n := 0; n < d.Nt; n++ {
		l, err := profileLine(mat.Row(nil, n, values), mat.Row(nil, n, z), colors[n])
		if err != nil {
			return nil, err
		}
		p.Add(l)
		if n == 0 || n == d.Nt-1 {
			p.Legend.Add(d.TimeLabel(n), l)
		}
	}
	return p, nil
}

// PlotTimeHeight returns a heat map of the region-mean profiles of f with
// time along x and the domain-mean level height along y.
func (d *Dataset) PlotTimeHeight(f Field, r Region) (*plot.Plot, error) {
	if d.Nt < 2 || d.Nz < 2 {
		return nil, fmt.Errorf("wrf: time-height plot needs at least 2 times and 2 levels, have %d and %d", d.Nt, d.Nz)
	}
	values, _, err := d.MeanProfiles(f, r)
	if err != nil {
		return nil, err
	}
	g := grid{z: mat.NewDense(d.Nz, d.Nt, nil), x: d.times(), y: make([]float64, d.Nz)}
	g.z.Copy(values.T())
	for k := range g.y {
		var sum float64
		for n := 0; n < d.Nt; n++ {
			sum += d.zEst.At(n, k)
		}
		g.y[k] = sum / float64(d.Nt)
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("mean %v", f)
	if d.Times == nil {
		p.X.Label.Text = "time index"
	} else {
		p.X.Label.Text = "time [s]"
	}
	p.Y.Label.Text = "z [m]"
	p.Add(plotter.NewHeatMap(g, heatPalette(g.z)))
	return p, nil
}
