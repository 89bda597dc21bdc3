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

// Package datatools reads and post-processes atmospheric simulation output
// and wind profiling measurements. The readers live in the subpackages;
// the datatools command in cmd/datatools exposes them.
package datatools

// Version is the version of datatools.
const Version = "0.1.0"
