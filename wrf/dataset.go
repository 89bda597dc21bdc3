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

// Package wrf loads series of WRF output files and summarizes the
// resolved flow over horizontal regions: slices, mean profiles,
// time-height diagrams and forcing tables for microscale simulations.
package wrf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// gravity is gravitational acceleration [m/s2].
const gravity = 9.81

// thetaOffset converts WRF perturbation potential temperature to
// potential temperature [K].
const thetaOffset = 300.0

// ErrUnsupportedPlane is returned for slice planes other than "z".
var ErrUnsupportedPlane = errors.New("wrf: only z planes are supported")

// Config holds the dataset options.
type Config struct {
	// Ds is the horizontal grid spacing [m], assumed uniform. Zero means 1.
	Ds float64
	// TimeLayout, if set, is the time.Parse layout used to read the
	// time of each file from its base name.
	TimeLayout string
	// Plane is the normal direction of the slices. Only "z" is
	// supported; empty means "z".
	Plane string
	// Log receives probe and progress messages. Nil means the logrus
	// standard logger.
	Log logrus.FieldLogger
}

// Field is a variable held by a Dataset.
type Field int

// Fields held by a Dataset, all on cell centers.
const (
	U Field = iota // west-east velocity [m/s]
	V              // south-north velocity [m/s]
	W              // vertical velocity [m/s]
	T              // potential temperature [K]
)

var fieldNames = [...]string{"U", "V", "W", "T"}

func (f Field) String() string {
	if f < U || f > T {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// ParseField returns the field with the given name.
func ParseField(name string) (Field, error) {
	for i, n := range fieldNames {
		if strings.EqualFold(n, name) {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("wrf: unknown field %q; want one of %v", name, fieldNames)
}

// Region is a horizontal index range, inclusive at both ends.
type Region struct {
	XMin, XMax int
	YMin, YMax int
}

// Selection identifies one horizontal slice of a field and the region
// that profiles are averaged over.
type Selection struct {
	Time   int
	Field  Field
	Level  int
	Region Region
}

// Dataset holds the destaggered fields of a series of WRF output files
// joined along time. Arrays have shape [time, bottom_top, south_north,
// west_east].
type Dataset struct {
	// Files are the files that were read, in order.
	Files []string
	// Times holds the time of each step when Config.TimeLayout is set.
	Times []time.Time

	Nt, Nx, Ny, Nz int
	Ds             float64

	fields [4]*sparse.DenseArray
	// z is the height [m] of each cell center.
	z *sparse.DenseArray
	// zEst is the horizontal mean of z, time by level.
	zEst *mat.Dense

	log logrus.FieldLogger
}

// Open reads the WRF output files named by paths. Each path is a file or,
// otherwise, a glob pattern; with no paths the current directory is
// searched. Files that can't be read as netCDF are logged and skipped.
// The remaining files are sorted by name and joined along time.
func Open(cfg Config, paths ...string) (*Dataset, error) {
	if cfg.Plane == "" {
		cfg.Plane = "z"
	}
	if cfg.Plane != "z" {
		return nil, fmt.Errorf("%w (got %q)", ErrUnsupportedPlane, cfg.Plane)
	}
	if cfg.Ds == 0 {
		cfg.Ds = 1
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	candidates, err := expand(paths)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range candidates {
		if err := probe(f); err != nil {
			cfg.Log.WithFields(logrus.Fields{"file": f, "reason": err}).Warn("wrf: skipping file")
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("wrf: no readable netCDF files in %v", paths)
	}
	sort.Strings(files)

	d := &Dataset{Files: files, Ds: cfg.Ds, log: cfg.Log}
	if err := d.load(); err != nil {
		return nil, err
	}
	if cfg.TimeLayout != "" {
		if err := d.parseTimes(cfg.TimeLayout); err != nil {
			return nil, err
		}
	}
	d.log.WithFields(logrus.Fields{
		"files": len(files), "times": d.Nt, "nx": d.Nx, "ny": d.Ny, "nz": d.Nz,
	}).Info("wrf: loaded dataset")
	return d, nil
}

func expand(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"*"}
	}
	var out []string
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			out = append(out, p)
			continue
		}
		m, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("wrf: %w", err)
		}
		for _, f := range m {
			if fi, err := os.Stat(f); err == nil && fi.Mode().IsRegular() {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

func probe(path string) error {
	nc, err := netcdf.Open(path)
	if err != nil {
		return err
	}
	nc.Close()
	return nil
}

// load reads every file and joins the fields along time.
func (d *Dataset) load() error {
	vars := []string{"U", "V", "W", "T", "PH", "PHB"}
	raw := make(map[string]*sparse.DenseArray)
	for _, f := range d.Files {
		nc, err := netcdf.Open(f)
		if err != nil {
			return fmt.Errorf("wrf: %w", err)
		}
		for _, v := range vars {
			a, err := readVar(nc, v)
			if err != nil {
				nc.Close()
				return fmt.Errorf("wrf: %s: %w", f, err)
			}
			if raw[v], err = concatTime(raw[v], a); err != nil {
				nc.Close()
				return fmt.Errorf("wrf: %s: %s: %w", f, v, err)
			}
		}
		nc.Close()
	}

	t := raw["T"]
	d.Nt, d.Nz, d.Ny, d.Nx = t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	for v, want := range map[string][]int{
		"U":   {d.Nt, d.Nz, d.Ny, d.Nx + 1},
		"V":   {d.Nt, d.Nz, d.Ny + 1, d.Nx},
		"W":   {d.Nt, d.Nz + 1, d.Ny, d.Nx},
		"PH":  {d.Nt, d.Nz + 1, d.Ny, d.Nx},
		"PHB": {d.Nt, d.Nz + 1, d.Ny, d.Nx},
	} {
		if !sameShape(raw[v].Shape, want) {
			return fmt.Errorf("wrf: %s has shape %v, want %v", v, raw[v].Shape, want)
		}
	}

	for i, e := range t.Elements {
		t.Elements[i] = e + thetaOffset
	}
	d.fields[T] = t
	d.fields[U] = destagger(raw["U"], 3)
	d.fields[V] = destagger(raw["V"], 2)
	d.fields[W] = destagger(raw["W"], 1)
	d.z = geopotentialToHeight(raw["PH"], raw["PHB"])

	d.zEst = mat.NewDense(d.Nt, d.Nz, nil)
	full := d.Domain()
	for n := 0; n < d.Nt; n++ {
		for k := 0; k < d.Nz; k++ {
			d.zEst.Set(n, k, regionMean(d.z, n, k, full))
		}
	}
	return nil
}

// readVar reads a 4-D variable as float64.
func readVar(nc api.Group, name string) (*sparse.DenseArray, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	switch x := v.(type) {
	case [][][][]float32:
		return dense4(x)
	case [][][][]float64:
		return dense4(x)
	default:
		return nil, fmt.Errorf("variable %s has type %T, want 4-D float", name, v)
	}
}

func dense4[E float32 | float64](x [][][][]E) (*sparse.DenseArray, error) {
	if len(x) == 0 || len(x[0]) == 0 || len(x[0][0]) == 0 {
		return nil, fmt.Errorf("empty variable")
	}
	out := sparse.ZerosDense(len(x), len(x[0]), len(x[0][0]), len(x[0][0][0]))
	i := 0
	for _, a := range x {
		for _, b := range a {
			for _, c := range b {
				for _, e := range c {
					out.Elements[i] = float64(e)
					i++
				}
			}
		}
	}
	return out, nil
}

// concatTime appends b to a along the first dimension.
func concatTime(a, b *sparse.DenseArray) (*sparse.DenseArray, error) {
	if a == nil {
		return b, nil
	}
	if !sameShape(a.Shape[1:], b.Shape[1:]) {
		return nil, fmt.Errorf("shape %v doesn't match earlier files %v", b.Shape, a.Shape)
	}
	shape := append([]int{a.Shape[0] + b.Shape[0]}, a.Shape[1:]...)
	out := sparse.ZerosDense(shape...)
	copy(out.Elements, a.Elements)
	copy(out.Elements[len(a.Elements):], b.Elements)
	return out, nil
}

// destagger averages adjacent pairs along axis, moving values from cell
// faces to cell centers.
func destagger(in *sparse.DenseArray, axis int) *sparse.DenseArray {
	shape := append([]int{}, in.Shape...)
	shape[axis]--
	out := sparse.ZerosDense(shape...)
	idx := make([]int, 4)
	for idx[0] = 0; idx[0] < shape[0]; idx[0]++ {
		for idx[1] = 0; idx[1] < shape[1]; idx[1]++ {
			for idx[2] = 0; idx[2] < shape[2]; idx[2]++ {
				for idx[3] = 0; idx[3] < shape[3]; idx[3]++ {
					v := in.Get(idx...)
					idx[axis]++
					v += in.Get(idx...)
					idx[axis]--
					out.Set(v/2, idx...)
				}
			}
		}
	}
	return out
}

// geopotentialToHeight returns the height [m] of cell centers from the
// perturbation and base geopotential [m2/s2] on vertically staggered
// levels.
func geopotentialToHeight(ph, phb *sparse.DenseArray) *sparse.DenseArray {
	sum := sparse.ZerosDense(ph.Shape...)
	for i, v := range ph.Elements {
		sum.Elements[i] = (v + phb.Elements[i]) / gravity
	}
	return destagger(sum, 1)
}

func (d *Dataset) parseTimes(layout string) error {
	if d.Nt != len(d.Files) {
		return fmt.Errorf("wrf: can't read times from file names: %d times in %d files", d.Nt, len(d.Files))
	}
	d.Times = make([]time.Time, len(d.Files))
	for i, f := range d.Files {
		t, err := time.Parse(layout, filepath.Base(f))
		if err != nil {
			return fmt.Errorf("wrf: file time: %w", err)
		}
		d.Times[i] = t
	}
	return nil
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

// Domain returns the region covering the whole horizontal grid.
func (d *Dataset) Domain() Region {
	return Region{XMax: d.Nx - 1, YMax: d.Ny - 1}
}

// Data returns the array holding field f.
func (d *Dataset) Data(f Field) (*sparse.DenseArray, error) {
	if f < U || f > T {
		return nil, fmt.Errorf("wrf: invalid field %v", f)
	}
	return d.fields[f], nil
}

// Height returns the cell center heights [m].
func (d *Dataset) Height() *sparse.DenseArray { return d.z }

// ZEst returns the domain-mean height [m] of level k at time step n.
func (d *Dataset) ZEst(n, k int) float64 { return d.zEst.At(n, k) }

// TimeValue returns time step n in seconds since the first step when file
// times are known, and the step index otherwise.
func (d *Dataset) TimeValue(n int) float64 {
	if d.Times == nil {
		return float64(n)
	}
	return d.Times[n].Sub(d.Times[0]).Seconds()
}

// TimeLabel returns a label for time step n.
func (d *Dataset) TimeLabel(n int) string {
	if d.Times == nil {
		return fmt.Sprintf("itime=%d", n)
	}
	return d.Times[n].Format("2006-01-02 15:04:05")
}

func (d *Dataset) checkRegion(r Region) error {
	if r.XMin < 0 || r.XMax >= d.Nx || r.XMin > r.XMax ||
		r.YMin < 0 || r.YMax >= d.Ny || r.YMin > r.YMax {
		return fmt.Errorf("wrf: region i in [%d %d], j in [%d %d] outside %dx%d grid",
			r.XMin, r.XMax, r.YMin, r.YMax, d.Nx, d.Ny)
	}
	return nil
}

func (d *Dataset) checkSelection(s Selection) error {
	if s.Time < 0 || s.Time >= d.Nt {
		return fmt.Errorf("wrf: time index %d outside [0, %d)", s.Time, d.Nt)
	}
	if s.Level < 0 || s.Level >= d.Nz {
		return fmt.Errorf("wrf: level %d outside [0, %d)", s.Level, d.Nz)
	}
	if _, err := d.Data(s.Field); err != nil {
		return err
	}
	return d.checkRegion(s.Region)
}

// regionMean returns the mean of a over the region at time n and level k.
func regionMean(a *sparse.DenseArray, n, k int, r Region) float64 {
	var sum float64
	for j := r.YMin; j <= r.YMax; j++ {
		for i := r.XMin; i <= r.XMax; i++ {
			sum += a.Get(n, k, j, i)
		}
	}
	return sum / float64((r.XMax-r.XMin+1)*(r.YMax-r.YMin+1))
}

// String summarizes the loaded files and grid.
func (d *Dataset) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d times read:\n", d.Nt)
	head := d.Files
	if len(head) > 3 {
		head = head[:3]
	}
	for _, f := range head {
		fmt.Fprintf(&b, "  %s\n", filepath.Base(f))
	}
	if len(d.Files) > 5 {
		b.WriteString("  ...\n")
	}
	if len(d.Files) > 3 {
		tail := d.Files[3:]
		if len(tail) > 2 {
			tail = tail[len(tail)-2:]
		}
		for _, f := range tail {
			fmt.Fprintf(&b, "  %s\n", filepath.Base(f))
		}
	}
	fmt.Fprintf(&b, "Dimensions: (%d, %d, %d)", d.Nx, d.Ny, d.Nz)
	return b.String()
}
