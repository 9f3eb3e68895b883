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
	"os/user"
)

// MockChown mocks the chown call done on finalizing an atomic file.
func MockChown(f func(*os.File, int, int) error) (restore func()) {
	old := chown
	chown = f
	return func() {
		chown = old
	}
}

// SetAtomicFileRenamed marks an atomic file as (not) renamed.
func SetAtomicFileRenamed(aw AtomicWriter, renamed bool) {
	aw.(*atomicFile).renamed = renamed
}

// AtomicFileName returns the temporary name backing an atomic file.
func AtomicFileName(aw AtomicWriter) string {
	return aw.(*atomicFile).Name()
}

// MockUserLookup mocks the path of user.Lookup.
func MockUserLookup(mock func(name string) (*user.User, error)) (restore func()) {
	realUserLookup := userLookup
	userLookup = mock
	return func() {
		userLookup = realUserLookup
	}
}

// MockUserLookupId mocks the path of user.LookupId.
func MockUserLookupId(mock func(uid string) (*user.User, error)) (restore func()) {
	realUserLookupId := userLookupId
	userLookupId = mock
	return func() {
		userLookupId = realUserLookupId
	}
}
