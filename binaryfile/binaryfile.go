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

// Package binaryfile provides a typed cursor over binary solver output:
// fixed-width integers and IEEE floats in the host byte order, read one
// value or n values at a time.
package binaryfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Reader decodes consecutive values from an underlying stream.
type Reader struct {
	r     io.Reader
	order binary.ByteOrder
	pos   int64
}

// NewReader returns a Reader over r using the native byte order.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, order: binary.NativeEndian}
}

// NewReaderOrder returns a Reader over r using the given byte order.
func NewReaderOrder(r io.Reader, order binary.ByteOrder) *Reader {
	return &Reader{r: r, order: order}
}

// File is a Reader that owns an open file.
type File struct {
	*Reader
	f    *os.File
	Path string
}

// Open opens the named file for typed reading.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{Reader: NewReader(f), f: f, Path: path}, nil
}

// Close releases the underlying file.
func (f *File) Close() error { return f.f.Close() }

// With opens path, calls fn with a Reader over it and closes the file
// however fn returns.
func With(path string, fn func(*Reader) error) (err error) {
	f, err := Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(f.Reader)
}

// Pos returns the number of bytes consumed so far.
func (r *Reader) Pos() int64 { return r.pos }

// Read reads exactly n raw bytes.
func (r *Reader) Read(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	m, err := io.ReadFull(r.r, buf)
	r.pos += int64(m)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("binaryfile: reading %d bytes at offset %d: %w", n, r.pos-int64(m), err)
	}
	return buf, nil
}

// records reads n values of the given width.
func (r *Reader) records(n, width int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("binaryfile: negative count %d", n)
	}
	return r.Read(n * width)
}

// ReadInt1 reads one signed 8-bit integer.
func (r *Reader) ReadInt1() (int8, error) {
	v, err := r.ReadInt1s(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// ReadInt1s reads n signed 8-bit integers.
func (r *Reader) ReadInt1s(n int) ([]int8, error) {
	buf, err := r.records(n, 1)
	if err != nil {
		return nil, err
	}
	out := make([]int8, n)
	for i, b := range buf {
		out[i] = int8(b)
	}
	return out, nil
}

// ReadInt2 reads one signed 16-bit integer.
func (r *Reader) ReadInt2() (int16, error) {
	v, err := r.ReadInt2s(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// ReadInt2s reads n signed 16-bit integers.
func (r *Reader) ReadInt2s(n int) ([]int16, error) {
	buf, err := r.records(n, 2)
	if err != nil {
		return nil, err
	}
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(r.order.Uint16(buf[2*i:]))
	}
	return out, nil
}

// ReadInt4 reads one signed 32-bit integer.
func (r *Reader) ReadInt4() (int32, error) {
	v, err := r.ReadInt4s(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// ReadInt4s reads n signed 32-bit integers.
func (r *Reader) ReadInt4s(n int) ([]int32, error) {
	buf, err := r.records(n, 4)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(r.order.Uint32(buf[4*i:]))
	}
	return out, nil
}

// ReadInt8 reads one signed 64-bit integer.
func (r *Reader) ReadInt8() (int64, error) {
	v, err := r.ReadInt8s(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// ReadInt8s reads n signed 64-bit integers.
func (r *Reader) ReadInt8s(n int) ([]int64, error) {
	buf, err := r.records(n, 8)
	if err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(r.order.Uint64(buf[8*i:]))
	}
	return out, nil
}

// ReadInt is an alias for ReadInt4.
func (r *Reader) ReadInt() (int32, error) { return r.ReadInt4() }

// ReadInts is an alias for ReadInt4s.
func (r *Reader) ReadInts(n int) ([]int32, error) { return r.ReadInt4s(n) }

// ReadFloat reads one 4-byte IEEE float.
func (r *Reader) ReadFloat() (float32, error) {
	v, err := r.ReadFloats(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// ReadFloats reads n 4-byte IEEE floats.
func (r *Reader) ReadFloats(n int) ([]float32, error) {
	buf, err := r.records(n, 4)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(r.order.Uint32(buf[4*i:]))
	}
	return out, nil
}

// ReadDouble reads one 8-byte IEEE float.
func (r *Reader) ReadDouble() (float64, error) {
	v, err := r.ReadDoubles(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// ReadDoubles reads n 8-byte IEEE floats.
func (r *Reader) ReadDoubles(n int) ([]float64, error) {
	buf, err := r.records(n, 8)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(r.order.Uint64(buf[8*i:]))
	}
	return out, nil
}

// ReadReal4 reads n 4-byte floats widened to float64.
func (r *Reader) ReadReal4(n int) ([]float64, error) {
	v, err := r.ReadFloats(n)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i, f := range v {
		out[i] = float64(f)
	}
	return out, nil
}

// ReadReal8 reads n 8-byte floats.
func (r *Reader) ReadReal8(n int) ([]float64, error) { return r.ReadDoubles(n) }
