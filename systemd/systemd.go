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

// Package systemd wraps the small subset of systemctl needed to start
// the per-user unlock services, plus service readiness notification.
package systemd

import (
	"fmt"
	"os/exec"

	"github.com/snapcore/keepassxc-unlock/osutil"
)

// run calls systemctl with the given args, returning its combined
// output (and wrapped error).
func run(args ...string) ([]byte, error) {
	bs, err := exec.Command("systemctl", args...).CombinedOutput()
	if err != nil {
		exitCode, _ := osutil.ExitCode(err)
		return nil, &Error{cmd: args, exitCode: exitCode, msg: bs}
	}

	return bs, nil
}

// SystemctlCmd is called to actually call out to systemctl. It's
// exported so it can be overridden by testing.
var SystemctlCmd = run

// Start the given unit.
func Start(unit string) error {
	_, err := SystemctlCmd("start", unit)
	return err
}

// Error is returned if the systemd action failed.
type Error struct {
	cmd      []string
	msg      []byte
	exitCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v failed with exit status %d: %s", e.cmd, e.exitCode, e.msg)
}

// MockSystemctlCmd lets mock and intercept calls to systemctl from the
// package.
func MockSystemctlCmd(f func(args ...string) ([]byte, error)) (restore func()) {
	old := SystemctlCmd
	SystemctlCmd = f
	return func() {
		SystemctlCmd = old
	}
}
