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

// Package textio opens instrument and solver text files, which are often
// archived compressed, and reads them one line at a time.
package textio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// readCloser closes both a decompressor and the file beneath it.
type readCloser struct {
	io.Reader
	closers []func() error
}

func (rc *readCloser) Close() error {
	var err error
	for _, c := range rc.closers {
		if cerr := c(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Open opens the named file for reading. Files with a ".gz" or ".zst"
// extension are decompressed transparently. The caller must close the
// returned reader.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("textio: opening gzip stream %s: %w", path, err)
		}
		return &readCloser{Reader: zr, closers: []func() error{zr.Close, f.Close}}, nil
	case ".zst":
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(0))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("textio: opening zstd stream %s: %w", path, err)
		}
		return &readCloser{Reader: zr, closers: []func() error{
			func() error { zr.Close(); return nil },
			f.Close,
		}}, nil
	}
	return f, nil
}

// Lines reads a text stream line by line, keeping count of the lines
// consumed so that decode errors can point at the offending line.
type Lines struct {
	r *bufio.Reader
	n int
}

// NewLines returns a line reader for r.
func NewLines(r io.Reader) *Lines {
	return &Lines{r: bufio.NewReader(r)}
}

// Next returns the next line with its line terminator removed.
// A final line without a terminator is returned normally; io.EOF is
// returned only once nothing remains.
func (l *Lines) Next() (string, error) {
	s, err := l.r.ReadString('\n')
	if err != nil {
		if err != io.EOF || s == "" {
			return "", err
		}
	}
	l.n++
	return strings.TrimRight(s, "\r\n"), nil
}

// Skip discards the next n lines. Running out of input is reported as
// io.ErrUnexpectedEOF.
func (l *Lines) Skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := l.Next(); err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}

// MustNext is like Next but treats the end of input as
// io.ErrUnexpectedEOF, for layouts where the line is required.
func (l *Lines) MustNext() (string, error) {
	s, err := l.Next()
	if err == io.EOF {
		return "", io.ErrUnexpectedEOF
	}
	return s, err
}

// Line returns the number of lines read so far.
func (l *Lines) Line() int { return l.n }
