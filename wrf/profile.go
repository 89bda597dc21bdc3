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
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/spatialmodel/datatools/sowfa"
)

// Profile is a region-mean vertical profile at one time.
type Profile struct {
	Field Field
	Time  int
	// Z and Values have one entry per level.
	Z, Values []float64
}

// MeanProfile returns the mean of sel.Field over sel.Region at every level
// of time step sel.Time. sel.Level is ignored.
func (d *Dataset) MeanProfile(sel Selection) (*Profile, error) {
	sel.Level = 0
	if err := d.checkSelection(sel); err != nil {
		return nil, err
	}
	p := &Profile{
		Field:  sel.Field,
		Time:   sel.Time,
		Z:      make([]float64, d.Nz),
		Values: make([]float64, d.Nz),
	}
	a := d.fields[sel.Field]
	for k := 0; k < d.Nz; k++ {
		p.Z[k] = regionMean(d.z, sel.Time, k, sel.Region)
		p.Values[k] = regionMean(a, sel.Time, k, sel.Region)
	}
	return p, nil
}

// MeanProfiles returns the mean of f over the region at every time and
// level, with the matching mean heights. Both matrices are time by level.
func (d *Dataset) MeanProfiles(f Field, r Region) (values, z *mat.Dense, err error) {
	if _, err := d.Data(f); err != nil {
		return nil, nil, err
	}
	if err := d.checkRegion(r); err != nil {
		return nil, nil, err
	}
	values = mat.NewDense(d.Nt, d.Nz, nil)
	z = mat.NewDense(d.Nt, d.Nz, nil)
	a := d.fields[f]
	for n := 0; n < d.Nt; n++ {
		for k := 0; k < d.Nz; k++ {
			values.Set(n, k, regionMean(a, n, k, r))
			z.Set(n, k, regionMean(d.z, n, k, r))
		}
	}
	return values, z, nil
}

// times returns TimeValue for every step.
func (d *Dataset) times() []float64 {
	t := make([]float64, d.Nt)
	for n := range t {
		t[n] = d.TimeValue(n)
	}
	return t
}

// ForcingTable returns the region-mean profiles of U, V, W and T at every
// time as a SOWFA forcing table.
func (d *Dataset) ForcingTable(r Region) (*sowfa.ForcingTable, error) {
	var m [4]*mat.Dense
	var z *mat.Dense
	for f := U; f <= T; f++ {
		var err error
		if m[f], z, err = d.MeanProfiles(f, r); err != nil {
			return nil, err
		}
	}
	return sowfa.NewForcingTable(d.times(), z, m[U], m[V], m[W], m[T])
}

// SaveForcingTable interpolates the region-mean profiles onto heights z and
// writes dir/name (SOWFA format) and dir/name.csv.
func (d *Dataset) SaveForcingTable(r Region, z []float64, dir, name string) error {
	ft, err := d.ForcingTable(r)
	if err != nil {
		return err
	}
	if len(z) > 0 {
		if err := ft.RegularizeHeights(z); err != nil {
			return err
		}
	}
	path := filepath.Join(dir, name)
	if err := ft.Save(path); err != nil {
		return err
	}
	d.log.WithFields(logrus.Fields{"file": path, "n": len(ft.Times)}).Info("wrf: wrote forcing table")
	return nil
}

// WriteProfiles writes the region-mean profiles of every field to a
// netCDF file at path, with dimensions time and bottom_top.
func (d *Dataset) WriteProfiles(path string, r Region) error {
	if err := d.checkRegion(r); err != nil {
		return err
	}
	data := map[string]*mat.Dense{}
	for f := U; f <= T; f++ {
		v, z, err := d.MeanProfiles(f, r)
		if err != nil {
			return err
		}
		data[f.String()] = v
		data["Z"] = z
	}

	h := cdf.NewHeader([]string{"time", "bottom_top"}, []int{d.Nt, d.Nz})
	h.AddAttribute("", "title", "region-mean profiles")
	h.AddAttribute("", "region", fmt.Sprintf("i=[%d,%d] j=[%d,%d]", r.XMin, r.XMax, r.YMin, r.YMax))
	h.AddVariable("time", []string{"time"}, []float64{0})
	if d.Times == nil {
		h.AddAttribute("time", "units", "index")
	} else {
		h.AddAttribute("time", "units", "seconds since "+d.Times[0].Format("2006-01-02 15:04:05"))
	}
	units := map[string]string{"Z": "m", "U": "m/s", "V": "m/s", "W": "m/s", "T": "K"}
	names := []string{"Z", "U", "V", "W", "T"}
	for _, name := range names {
		h.AddVariable(name, []string{"time", "bottom_top"}, []float32{0})
		h.AddAttribute(name, "units", units[name])
	}
	h.Define()

	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wrf: writing profiles: %w", err)
	}
	f, err := cdf.Create(ff, h)
	if err != nil {
		ff.Close()
		return fmt.Errorf("wrf: writing profiles: %w", err)
	}
	if err := writeNCF(f, "time", d.times()); err != nil {
		ff.Close()
		return err
	}
	for _, name := range names {
		m := data[name]
		v32 := make([]float32, 0, d.Nt*d.Nz)
		for n := 0; n < d.Nt; n++ {
			for k := 0; k < d.Nz; k++ {
				v32 = append(v32, float32(m.At(n, k)))
			}
		}
		if err := writeNCF(f, name, v32); err != nil {
			ff.Close()
			return err
		}
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		ff.Close()
		return fmt.Errorf("wrf: writing profiles: %w", err)
	}
	if err := ff.Close(); err != nil {
		return fmt.Errorf("wrf: writing profiles: %w", err)
	}
	d.log.WithFields(logrus.Fields{"file": path}).Info("wrf: wrote profiles")
	return nil
}

func writeNCF(f *cdf.File, name string, data interface{}) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("wrf: writing variable %s: %w", name, err)
	}
	return nil
}
