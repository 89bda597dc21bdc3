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
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot returns the flow-direction turbulence intensity history at every
// height.
func (h *TIHistory) Plot() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Turbulence intensity"
	p.X.Label.Text = "time [s]"
	p.Y.Label.Text = "TI [%]"
	p.Legend.Top = true

	cm := moreland.SmoothBlueRed()
	cm.SetMin(0)
	cm.SetMax(1)
	colors := cm.Palette(max(len(h.Heights), 2)).Colors()
	for j, z := range h.Heights {
		ti := mat.Col(nil, j, h.TIdir)
		xy := make(plotter.XYs, len(h.Times))
		for i, t := range h.Times {
			xy[i].X, xy[i].Y = t, 100*ti[i]
		}
		l, err := plotter.NewLine(xy)
		if err != nil {
			return nil, fmt.Errorf("sowfa: %w", err)
		}
		l.Color = colors[j]
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("z=%.1f m", z), l)
	}
	return p, nil
}

// SavePlot writes the turbulence intensity history plot to path. The
// format follows the file extension.
func (h *TIHistory) SavePlot(path string) error {
	p, err := h.Plot()
	if err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
