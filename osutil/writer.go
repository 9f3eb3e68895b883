// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2024 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package osutil

import (
	"errors"
	"io"
)

// ErrBufferCapacityExceeded is returned by writes that would exceed
// the remaining capacity of a limited writer.
var ErrBufferCapacityExceeded = errors.New("buffer capacity exceeded")

type limitedWriter struct {
	w io.Writer

	left int
}

// NewLimitedWriter returns a writer that fails with
// ErrBufferCapacityExceeded once more than maxSize bytes have been
// written to it. Writes that would exceed the limit are not passed on
// to the underlying writer at all.
func NewLimitedWriter(w io.Writer, maxSize int) io.Writer {
	return &limitedWriter{w: w, left: maxSize}
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if len(p) > lw.left {
		return 0, ErrBufferCapacityExceeded
	}
	n, err := lw.w.Write(p)
	lw.left -= n
	return n, err
}
