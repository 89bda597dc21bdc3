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
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// TGrad returns the potential temperature gradients [K/m] at the last time:
// inv is taken across the cell nearest the inversion height zi and upper
// across the top two cells.
func (a *Averages) TGrad(zi float64) (inv, upper float64, err error) {
	T, err := a.Var("T_mean")
	if err != nil {
		return 0, 0, err
	}
	z := a.Heights
	if len(z) < 2 {
		return 0, 0, fmt.Errorf("sowfa: temperature gradient needs at least 2 heights, have %d", len(z))
	}
	last := len(a.Times) - 1
	i := nearest(z, zi)
	if i == len(z)-1 {
		i--
	}
	n := len(z) - 1
	inv = (T.At(last, i+1) - T.At(last, i)) / (z[i+1] - z[i])
	upper = (T.At(last, n) - T.At(last, n-1)) / (z[n] - z[n-1])
	return inv, upper, nil
}

// Richardson returns the gradient Richardson number at the surface at the
// last time. The temperature and speed gradients at the lowest three cells
// are extrapolated to z = 0 and normalized by the mean temperature
// below the top of a rotor of diameter d centered at zref. The lowest
// cells must be uniformly spaced.
func (a *Averages) Richardson(g, zref, d float64) (float64, error) {
	T, err := a.Var("T_mean")
	if err != nil {
		return 0, err
	}
	uh, err := a.horizontalSpeed()
	if err != nil {
		return 0, err
	}
	z := a.Heights
	if len(z) < 3 {
		return 0, fmt.Errorf("sowfa: Richardson number needs at least 3 heights, have %d", len(z))
	}
	dz := z[1] - z[0]
	if !scalar.EqualWithinAbsOrRel(z[2]-z[1], dz, 1e-9, 1e-9) {
		return 0, fmt.Errorf("sowfa: Richardson number needs uniform spacing, have %g and %g", dz, z[2]-z[1])
	}
	t := mat.Row(nil, len(a.Times)-1, T)

	var sum float64
	var n int
	for k, zk := range z {
		if zk <= zref+d/2 {
			sum += t[k]
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("sowfa: no heights below rotor top %g m", zref+d/2)
	}
	tmean := sum / float64(n)

	dTdz := extrapolateGradient(t, z[0], dz)
	dUdz := extrapolateGradient(uh, z[0], dz)
	return g / tmean * dTdz / (dUdz * dUdz), nil
}

// extrapolateGradient linearly extrapolates to z = 0 the one-sided gradient
// at the first cell and the central gradient at the second.
func extrapolateGradient(y []float64, z0, dz float64) float64 {
	g0 := (-3*y[0] + 4*y[1] - y[2]) / (2 * dz)
	g1 := (y[2] - y[0]) / (2 * dz)
	return (g1-g0)/dz*(-z0) + g0
}

// RotatedStresses holds the Reynolds stress tensors at one time, rotated so
// that x is aligned with the mean horizontal flow at each height.
type RotatedStresses struct {
	Heights []float64
	// Resolved and SFS have one symmetric 3x3 tensor per height.
	Resolved, SFS []*mat.Dense
}

// RotateTensors rotates the resolved and modeled sub-filter stress tensors
// at time index itime into the mean flow direction.
func (a *Averages) RotateTensors(itime int) (*RotatedStresses, error) {
	if itime < 0 || itime >= len(a.Times) {
		return nil, fmt.Errorf("sowfa: time index %d out of range [0, %d)", itime, len(a.Times))
	}
	u, err := a.Var("U_mean")
	if err != nil {
		return nil, err
	}
	v, err := a.Var("V_mean")
	if err != nil {
		return nil, err
	}
	res, err := a.tensors(itime, stressVars)
	if err != nil {
		return nil, err
	}
	sfs, err := a.tensors(itime, sfsVars)
	if err != nil {
		return nil, err
	}
	r := &RotatedStresses{Heights: a.Heights}
	for k := range a.Heights {
		ang := math.Atan2(v.At(itime, k), u.At(itime, k))
		c, s := math.Cos(ang), math.Sin(ang)
		rot := mat.NewDense(3, 3, []float64{
			c, s, 0,
			-s, c, 0,
			0, 0, 1,
		})
		r.Resolved = append(r.Resolved, rotate(rot, res[k]))
		r.SFS = append(r.SFS, rotate(rot, sfs[k]))
	}
	return r, nil
}

func rotate(rot, s mat.Matrix) *mat.Dense {
	var tmp, out mat.Dense
	tmp.Mul(rot, s)
	out.Mul(&tmp, rot.T())
	return &out
}

// tensors assembles one symmetric tensor per height from the xx, yy, zz,
// xy, xz, yz components named by vars.
func (a *Averages) tensors(itime int, vars []string) ([]*mat.SymDense, error) {
	c := make([][]float64, len(vars))
	for i, name := range vars {
		m, err := a.Var(name)
		if err != nil {
			return nil, err
		}
		c[i] = mat.Row(nil, itime, m)
	}
	out := make([]*mat.SymDense, len(a.Heights))
	for k := range out {
		out[k] = mat.NewSymDense(3, []float64{
			c[0][k], c[3][k], c[4][k],
			c[3][k], c[1][k], c[5][k],
			c[4][k], c[5][k], c[2][k],
		})
	}
	return out, nil
}
