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
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

// ForcingTable holds time-varying mean profiles of velocity and potential
// temperature. Heights and the value matrices have one row per time and
// one column per level.
type ForcingTable struct {
	Times   []float64
	Heights *mat.Dense

	U, V, W, T *mat.Dense
}

// NewForcingTable returns a forcing table, checking that every matrix has
// one row per time and the same number of levels.
func NewForcingTable(times []float64, heights, u, v, w, t *mat.Dense) (*ForcingTable, error) {
	nt, nz := heights.Dims()
	if nt != len(times) {
		return nil, fmt.Errorf("sowfa: forcing table has %d times but %d height rows", len(times), nt)
	}
	for name, m := range map[string]*mat.Dense{"U": u, "V": v, "W": w, "T": t} {
		if r, c := m.Dims(); r != nt || c != nz {
			return nil, fmt.Errorf("sowfa: forcing table %s is %dx%d, want %dx%d", name, r, c, nt, nz)
		}
	}
	return &ForcingTable{Times: times, Heights: heights, U: u, V: v, W: w, T: t}, nil
}

// RegularizeHeights linearly interpolates every profile onto the heights z,
// holding the end values outside each profile's range.
func (f *ForcingTable) RegularizeHeights(z []float64) error {
	nt := len(f.Times)
	heights := mat.NewDense(nt, len(z), nil)
	in := []*mat.Dense{f.U, f.V, f.W, f.T}
	out := make([]*mat.Dense, len(in))
	for j := range out {
		out[j] = mat.NewDense(nt, len(z), nil)
	}
	for i := 0; i < nt; i++ {
		heights.SetRow(i, z)
		zi := mat.Row(nil, i, f.Heights)
		for j, m := range in {
			var pl interp.PiecewiseLinear
			if err := pl.Fit(zi, mat.Row(nil, i, m)); err != nil {
				return fmt.Errorf("sowfa: regularizing heights at time %g: %w", f.Times[i], err)
			}
			for k, h := range z {
				out[j].Set(i, k, pl.Predict(h))
			}
		}
	}
	f.Heights = heights
	f.U, f.V, f.W, f.T = out[0], out[1], out[2], out[3]
	return nil
}

// levels returns the heights shared by every time, or an error if the
// profiles are on different heights.
func (f *ForcingTable) levels() ([]float64, error) {
	z := mat.Row(nil, 0, f.Heights)
	for i := 1; i < len(f.Times); i++ {
		if !floats.Equal(z, mat.Row(nil, i, f.Heights)) {
			return nil, fmt.Errorf("sowfa: forcing table heights vary in time; regularize them first")
		}
	}
	return z, nil
}

// WriteCSV writes one row per time and level.
func (f *ForcingTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"t", "z", "u", "v", "w", "theta"}); err != nil {
		return err
	}
	_, nz := f.Heights.Dims()
	for i, t := range f.Times {
		for k := 0; k < nz; k++ {
			row := formatRow(t, f.Heights.At(i, k), f.U.At(i, k), f.V.At(i, k), f.W.At(i, k), f.T.At(i, k))
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteNative writes the table in the dictionary format read by the SOWFA
// solvers. The heights must be the same at every time.
func (f *ForcingTable) WriteNative(w io.Writer) error {
	z, err := f.levels()
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	writeList(bw, "sourceHeightsMomentum", z)
	writeTable(bw, "sourceTableMomentumX", f.Times, f.U)
	writeTable(bw, "sourceTableMomentumY", f.Times, f.V)
	writeTable(bw, "sourceTableMomentumZ", f.Times, f.W)
	writeList(bw, "sourceHeightsTemperature", z)
	writeTable(bw, "sourceTableTemperature", f.Times, f.T)
	return bw.Flush()
}

func writeList(w *bufio.Writer, name string, v []float64) {
	fmt.Fprintf(w, "%s\n(\n", name)
	for _, x := range v {
		fmt.Fprintf(w, "    %g\n", x)
	}
	fmt.Fprint(w, ");\n\n")
}

func writeTable(w *bufio.Writer, name string, t []float64, m *mat.Dense) {
	fmt.Fprintf(w, "%s\n(\n", name)
	_, nz := m.Dims()
	for i, ti := range t {
		fmt.Fprintf(w, "    (%g", ti)
		for k := 0; k < nz; k++ {
			fmt.Fprintf(w, " %g", m.At(i, k))
		}
		fmt.Fprint(w, ")\n")
	}
	fmt.Fprint(w, ");\n\n")
}

// Save writes the table to path in the native format and to path.csv.
func (f *ForcingTable) Save(path string) error {
	if err := writeFile(path+".csv", f.WriteCSV); err != nil {
		return err
	}
	return writeFile(path, f.WriteNative)
}

func writeFile(path string, write func(io.Writer) error) error {
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
