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

// Package dirs is the single place that knows where keepassxc-unlock
// artifacts live on disk. Tests relocate the whole tree with SetRootDir.
package dirs

import (
	"fmt"
	"path/filepath"
)

var (
	// GlobalRootDir is the root directory, it is only changed by tests.
	GlobalRootDir string

	// ConfigDir holds the per-user configuration trees, one
	// subdirectory per uid.
	ConfigDir string

	// SettingsFile is the optional INI file with monitor tunables.
	SettingsFile string

	// XdgRuntimeDirBase is the parent of the per-user runtime
	// directories that carry the session bus sockets.
	XdgRuntimeDirBase string
)

// UserConfigDir returns the configuration directory of the given user,
// e.g. /etc/keepassxc-unlock/1000.
func UserConfigDir(uid uint32) string {
	return filepath.Join(ConfigDir, fmt.Sprintf("%d", uid))
}

// TrustedDigestFile returns the file recording the trusted SHA-512 of
// the user's vetted KeePassXC executable.
func TrustedDigestFile(uid uint32) string {
	return filepath.Join(UserConfigDir(uid), "keepassxc.sha512")
}

// DatabaseConfigGlob returns the glob matching the user's database
// config records.
func DatabaseConfigGlob(uid uint32) string {
	return filepath.Join(UserConfigDir(uid), "*.conf")
}

// SessionEnvFile returns the environment file the login watcher writes
// for the per-user service to pick up.
func SessionEnvFile(uid uint32) string {
	return filepath.Join(UserConfigDir(uid), "session.env")
}

// UserRuntimeDir returns the runtime directory of the given user,
// e.g. /run/user/1000.
func UserRuntimeDir(uid uint32) string {
	return filepath.Join(XdgRuntimeDirBase, fmt.Sprintf("%d", uid))
}

// UserSessionBusSocket returns the session bus socket of the given
// user, e.g. /run/user/1000/bus.
func UserSessionBusSocket(uid uint32) string {
	return filepath.Join(UserRuntimeDir(uid), "bus")
}

// SetRootDir allows settings a new global root directory, this is useful
// for testing.
func SetRootDir(rootdir string) {
	if rootdir == "" {
		rootdir = "/"
	}
	GlobalRootDir = rootdir

	ConfigDir = filepath.Join(rootdir, "/etc/keepassxc-unlock")
	SettingsFile = filepath.Join(ConfigDir, "config")
	XdgRuntimeDirBase = filepath.Join(rootdir, "/run/user")
}

func init() {
	SetRootDir("/")
}
