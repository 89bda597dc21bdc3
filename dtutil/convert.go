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

package dtutil

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/spatialmodel/datatools/ensight"
	"github.com/spatialmodel/datatools/internal/store"
	"github.com/spatialmodel/datatools/remotesensing"
	"github.com/spatialmodel/datatools/sowfa"
	"github.com/spatialmodel/datatools/vtk"
)

// withOutput calls write with the OutputFile, or with the command's
// standard output when OutputFile is empty.
func withOutput(cmd *cobra.Command, write func(io.Writer) error) error {
	path := os.ExpandEnv(Cfg.GetString("OutputFile"))
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("datatools: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("datatools: %w", err)
	}
	return f.Close()
}

func format(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// VTK writes the points of the VTK structured points file at path as CSV:
// x, y, z and then every component of every field.
func VTK(w io.Writer, path string) error {
	d, err := vtk.Read(path)
	if err != nil {
		return err
	}
	names := make([]string, d.NumFields())
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	logrus.WithFields(logrus.Fields{
		"file": path, "dims": d.Dims, "fields": names,
	}).Info("datatools: read VTK file")

	cw := csv.NewWriter(w)
	header := []string{"x", "y", "z"}
	for _, f := range d.Fields {
		for c := 0; c < f.Rank; c++ {
			header = append(header, fmt.Sprintf("%s_%d", f.Name, c))
		}
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("datatools: %w", err)
	}
	row := make([]string, len(header))
	for k, z := range d.Z {
		for j, y := range d.Y {
			for i, x := range d.X {
				row = append(row[:0], format(x), format(y), format(z))
				for _, f := range d.Fields {
					for c := 0; c < f.Rank; c++ {
						row = append(row, format(f.Data.Get(c, i, j, k)))
					}
				}
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("datatools: %w", err)
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Ensight writes the points of an Ensight geometry and field pair as CSV:
// x, y, z and then the field components.
func Ensight(w io.Writer, meshPath, fieldPath string) error {
	d, err := ensight.Read(meshPath, fieldPath, false, 0)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"file": fieldPath, "n": d.N, "rank": d.Rank,
	}).Info("datatools: read Ensight field")

	cw := csv.NewWriter(w)
	header := []string{"x", "y", "z"}
	for c := 0; c < d.Rank; c++ {
		header = append(header, fmt.Sprintf("f_%d", c))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("datatools: %w", err)
	}
	row := make([]string, len(header))
	for i := 0; i < d.N; i++ {
		row = append(row[:0], format(d.X[i]), format(d.Y[i]), format(d.Z[i]))
		for c := 0; c < d.Rank; c++ {
			row = append(row, format(d.Field.At(i, c)))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("datatools: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Planar reads the planar averages in dir and writes the mean profiles at
// the last time as CSV.
func Planar(w io.Writer, dir string, vars []string) error {
	a, err := sowfa.ReadAverages(dir, vars...)
	if err != nil {
		return err
	}
	logrus.Info(a.String())
	return a.WriteProfileCSV(w, a.Times[len(a.Times)-1])
}

// TI writes turbulence intensity histories for the planar averages in dir
// to files named prefix_z{height}.csv, plots them to prefix_hist.png and
// returns the names of the files written.
func TI(dir, prefix string, o sowfa.TIOptions) ([]string, error) {
	a, err := sowfa.ReadAverages(dir, sowfa.TIVars(o.SFS)...)
	if err != nil {
		return nil, err
	}
	h, err := a.TIHistory(o)
	if err != nil {
		return nil, err
	}
	files, err := h.Save(prefix)
	if err != nil {
		return files, err
	}
	png := prefix + "_hist.png"
	if err := h.SavePlot(png); err != nil {
		return files, err
	}
	return append(files, png), nil
}

// ReadTables reads files with read, at most workers at a time, and joins
// the tables in the order of files.
func ReadTables(files []string, workers int, read func(string) (*remotesensing.Table, error)) (*remotesensing.Table, error) {
	tables := make([]*remotesensing.Table, len(files))
	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			t, err := read(f)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"file": f, "n": t.Len()}).Debug("datatools: read table")
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := tables[0]
	for _, t := range tables[1:] {
		if err := out.Concat(t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Derive adds the columns given as name=expression to t.
func Derive(t *remotesensing.Table, exprs []string) error {
	for _, e := range exprs {
		name, expr, ok := strings.Cut(e, "=")
		if !ok {
			return fmt.Errorf("datatools: derived column %q isn't of the form name=expression", e)
		}
		if err := t.Derive(strings.TrimSpace(name), strings.TrimSpace(expr)); err != nil {
			return err
		}
	}
	return nil
}

// convertTables reads the instrument files, derives columns, and writes the
// result as CSV, or as a workbook when OutputFile ends in ".xlsx". If SQLite
// is set the result is also saved into the table named name.
func convertTables(cmd *cobra.Command, name string, files []string, read func(string) (*remotesensing.Table, error)) error {
	t, err := ReadTables(files, Cfg.GetInt("Workers"), read)
	if err != nil {
		return err
	}
	if err := Derive(t, Cfg.GetStringSlice("Derive")); err != nil {
		return err
	}
	if db := os.ExpandEnv(Cfg.GetString("SQLite")); db != "" {
		if err := store.SaveTable(db, name, t); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{"file": db, "table": name, "n": t.Len()}).Info("datatools: saved table")
	}
	if out := os.ExpandEnv(Cfg.GetString("OutputFile")); strings.HasSuffix(out, ".xlsx") {
		return store.SaveXLSX(out, name, t)
	}
	return withOutput(cmd, t.WriteCSV)
}
