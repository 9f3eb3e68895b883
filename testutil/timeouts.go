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

package testutil

import (
	"os"
	"runtime"
	"time"
)

var runtimeGOARCH = runtime.GOARCH

// HostScaledTimeout stretches the given test timeout on systems known
// to run tests much slower than the usual CI machines.
func HostScaledTimeout(t time.Duration) time.Duration {
	switch {
	case runtimeGOARCH == "riscv64":
		// emulated riscv64 builders miss even generous deadlines
		return t * 6
	case os.Getenv("GO_TEST_RACE") == "1":
		// the race detector slows execution down considerably
		return t * 5
	default:
		return t
	}
}
