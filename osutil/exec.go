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
	"os/exec"
)

var lookPath = exec.LookPath

// ExecutableExists returns whether there is an executable with the given name
// somewhere on $PATH.
func ExecutableExists(name string) bool {
	_, err := lookPath(name)
	return err == nil
}

// MockLookPath replaces the logic for looking up executables on $PATH,
// for testing.
func MockLookPath(new func(string) (string, error)) (restore func()) {
	MustBeTestBinary("MockLookPath can only be used in tests")
	old := lookPath
	lookPath = new
	return func() {
		lookPath = old
	}
}

// ExitCode extracts the exit code from the error of a failed cmd.Run(),
// or returns the original error if it is not an exec.ExitError.
func ExitCode(runErr error) (e int, err error) {
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 0, runErr
}
