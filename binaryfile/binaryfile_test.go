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

package binaryfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func encode(t *testing.T, values ...interface{}) []byte {
	t.Helper()
	var b bytes.Buffer
	for _, v := range values {
		if err := binary.Write(&b, binary.NativeEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	return b.Bytes()
}

func TestIntsThenFloat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.bin")
	if err := os.WriteFile(path, encode(t, []int32{1, 2, 3}, float32(2.5)), 0o644); err != nil {
		t.Fatal(err)
	}
	err := With(path, func(r *Reader) error {
		for want := int32(1); want <= 3; want++ {
			have, err := r.ReadInt4()
			if err != nil {
				return err
			}
			if have != want {
				t.Errorf("int: have %d, want %d", have, want)
			}
		}
		f, err := r.ReadFloat()
		if err != nil {
			return err
		}
		if f != 2.5 {
			t.Errorf("float: have %g, want 2.5", f)
		}
		if r.Pos() != 16 {
			t.Errorf("position: have %d, want 16", r.Pos())
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSequences(t *testing.T) {
	data := encode(t,
		[]int8{-1, 2},
		[]int16{-300, 301},
		[]int64{math.MaxInt64, -5},
		[]float64{1.25, -0.5},
		[]float32{0.5, 4},
	)
	r := NewReader(bytes.NewReader(data))

	i1, err := r.ReadInt1s(2)
	if err != nil || i1[0] != -1 || i1[1] != 2 {
		t.Errorf("int1: %v %v", i1, err)
	}
	i2, err := r.ReadInt2s(2)
	if err != nil || i2[0] != -300 || i2[1] != 301 {
		t.Errorf("int2: %v %v", i2, err)
	}
	i8, err := r.ReadInt8s(2)
	if err != nil || i8[0] != math.MaxInt64 || i8[1] != -5 {
		t.Errorf("int8: %v %v", i8, err)
	}
	d, err := r.ReadReal8(2)
	if err != nil || d[0] != 1.25 || d[1] != -0.5 {
		t.Errorf("double: %v %v", d, err)
	}
	f, err := r.ReadReal4(2)
	if err != nil || f[0] != 0.5 || f[1] != 4 {
		t.Errorf("real4: %v %v", f, err)
	}
	if r.Pos() != int64(len(data)) {
		t.Errorf("position: have %d, want %d", r.Pos(), len(data))
	}
}

func TestShortRead(t *testing.T) {
	r := NewReader(bytes.NewReader(encode(t, []int32{7, 8})))
	if _, err := r.ReadInt4s(3); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("have %v, want ErrUnexpectedEOF", err)
	}

	r = NewReader(bytes.NewReader(nil))
	if _, err := r.ReadDouble(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("empty stream: have %v, want ErrUnexpectedEOF", err)
	}
}

func TestWithClosesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	if err := os.WriteFile(path, []byte{1}, 0o644); err != nil {
		t.Fatal(err)
	}
	var inner *Reader
	err := With(path, func(r *Reader) error {
		inner = r
		_, err := r.ReadInt8()
		return err
	})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("have %v, want ErrUnexpectedEOF", err)
	}
	f := inner.r.(*os.File)
	if _, err := f.Read(make([]byte, 1)); !errors.Is(err, os.ErrClosed) {
		t.Errorf("file should be closed after With returns, read gave %v", err)
	}
}

func TestByteOrder(t *testing.T) {
	r := NewReaderOrder(bytes.NewReader([]byte{0x00, 0x00, 0x01, 0x02}), binary.BigEndian)
	v, err := r.ReadInt4()
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x0102 {
		t.Errorf("have %#x, want 0x102", v)
	}
}
