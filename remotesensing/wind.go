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

package remotesensing

import "math"

// WindSpeed returns the horizontal wind speed for west-east and
// south-north components u and v.
func WindSpeed(u, v float64) float64 {
	return math.Hypot(u, v)
}

// WindDirection returns the direction [deg] the wind blows from, for
// west-east and south-north components u and v, in (0, 360].
func WindDirection(u, v float64) float64 {
	return wrapOnce(270 - math.Atan2(v, u)*180/math.Pi)
}

// wrapOnce subtracts 360 from directions above 360. It is applied once
// only: 361 becomes 1 and 720 becomes 360.
func wrapOnce(d float64) float64 {
	if d > 360 {
		d -= 360
	}
	return d
}
