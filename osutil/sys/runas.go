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

package sys

import (
	"fmt"
	"runtime"
	"syscall"
)

// UnrecoverableError flags that the process identity is in an unknown
// state and the process must die. Recovering a panic whose value is an
// UnrecoverableError and carrying on would run further code with
// credentials nobody asked for.
type UnrecoverableError struct {
	Call string
	Err  error
}

func (e UnrecoverableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Call, e.Err)
}

// RunAsUidGid pins a fresh goroutine to its OS thread, switches the
// effective uid and gid there, runs the function, and switches back.
// The real ids stay untouched so the switch back is always permitted.
// The unlock pipeline runs under this so that the per-user session bus
// accepts its connections.
//
// On the kernel level user and group IDs are per-thread attributes,
// but POSIX requires all threads to share the same credentials, and
// the syscall.Setreuid() helpers enforce the POSIX view across the
// whole process. Hence the RawSyscall() on the locked thread.
//
// If restoring the original euid or egid fails this panics with an
// UnrecoverableError. Do not recover from it.
func RunAsUidGid(uid UserID, gid GroupID, f func() error) error {
	ch := make(chan error, 1)
	go func() {
		// while the goroutine holds the lock no other goroutine can
		// run on this thread, so the thread-local credential changes
		// below cannot leak into unrelated code
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		ruid := Getuid()
		rgid := Getgid()

		// gid first, changing it is not permitted anymore once the
		// effective uid is no longer root
		if _, _, errno := syscall.RawSyscall(_SYS_SETREGID, FlagID, uintptr(gid), 0); errno != 0 {
			ch <- fmt.Errorf("setregid: %v", errno)
			return
		}

		defer func() {
			if _, _, errno := syscall.RawSyscall(_SYS_SETREGID, FlagID, uintptr(rgid), 0); errno != 0 {
				panic(UnrecoverableError{Call: "setregid", Err: errno})
			}
		}()

		if _, _, errno := syscall.RawSyscall(_SYS_SETREUID, FlagID, uintptr(uid), 0); errno != 0 {
			ch <- fmt.Errorf("setreuid: %v", errno)
			return
		}

		defer func() {
			if _, _, errno := syscall.RawSyscall(_SYS_SETREUID, FlagID, uintptr(ruid), 0); errno != 0 {
				panic(UnrecoverableError{Call: "setreuid", Err: errno})
			}
		}()

		ch <- f()
	}()
	return <-ch
}
