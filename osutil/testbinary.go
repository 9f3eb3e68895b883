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
	"os"
	"strings"
)

// IsTestBinary returns true if executing inside a test binary.
func IsTestBinary() bool {
	return len(os.Args) > 0 && strings.HasSuffix(os.Args[0], ".test")
}

// MustBeTestBinary checks that the current process is a unit test binary,
// panics with the given message otherwise.
func MustBeTestBinary(panicMsg string) {
	if !IsTestBinary() {
		panic(panicMsg)
	}
}
