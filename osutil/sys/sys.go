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

// Package sys provides glue for system-level interactions where the
// standard library's types get in the way of how the kernel sees
// things, in particular around user and group identifiers.
package sys

import (
	"syscall"
)

// FlagID can be passed to chown-ish functions to mean "no change",
// and can be returned from getuid-ish functions to mean "not found".
const FlagID = 1<<32 - 1

// UserID is the type of the system's user identifiers (in POSIX, uid_t).
//
// We give it its own explicit type so you don't have to remember that
// it's a uint32 (because it is, on every platform we care about).
type UserID uint32

// GroupID is the type of the system's group identifiers (in POSIX, gid_t).
type GroupID uint32

// Getuid returns the real user id of the calling process.
func Getuid() UserID {
	return UserID(syscall.Getuid())
}

// Geteuid returns the effective user id of the calling process.
func Geteuid() UserID {
	return UserID(syscall.Geteuid())
}

// Getgid returns the real group id of the calling process.
func Getgid() GroupID {
	return GroupID(syscall.Getgid())
}

// Getegid returns the effective group id of the calling process.
func Getegid() GroupID {
	return GroupID(syscall.Getegid())
}
