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

// Package dbusutil provides connections to the system bus, to the
// session bus of the current user and to the session bus of an
// arbitrary user given sufficient privileges.
package dbusutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/godbus/dbus/v5"

	"github.com/snapcore/keepassxc-unlock/dirs"
	"github.com/snapcore/keepassxc-unlock/osutil"
	"github.com/snapcore/keepassxc-unlock/osutil/sys"
)

var (
	systemBus  = dbus.SystemBus
	sessionBus = dbus.SessionBus
)

// isSessionBusLikelyPresent checks for the apparent availability of
// the D-Bus session bus.
//
// The code matches what go-dbus does when it attempts to detect the
// session bus:
//
// - is DBUS_SESSION_BUS_ADDRESS defined in the environment
// - is there a bus socket present in $XDG_RUNTIME_DIR/bus
func isSessionBusLikelyPresent() bool {
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") != "" {
		return true
	}
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		if fi, err := os.Stat(filepath.Join(runtimeDir, "bus")); err == nil {
			if fi.Mode()&os.ModeSocket == os.ModeSocket {
				return true
			}
		}
	}
	return false
}

// SessionBus is like dbus.SessionBus but it avoids auto-starting a
// new dbus-daemon when a bus is not already available.
//
// The go-dbus package will launch a session bus instance on demand
// when none is present. We never want that behavior, in all the
// places where we use the session bus it must have been started
// earlier by other means.
func SessionBus() (*dbus.Conn, error) {
	if isSessionBusLikelyPresent() {
		return sessionBus()
	}
	return nil, fmt.Errorf("cannot find session bus")
}

// SystemBus returns a shared connection to the system bus, connecting
// to it if needed.
func SystemBus() (*dbus.Conn, error) {
	return systemBus()
}

// MockConnections replaces the functions used to access the system
// and session buses.
func MockConnections(system, session func() (*dbus.Conn, error)) (restore func()) {
	osutil.MustBeTestBinary("dbus connections cannot be mocked outside of tests")
	oldSystemBus := systemBus
	oldSessionBus := sessionBus
	systemBus = system
	sessionBus = session
	return func() {
		systemBus = oldSystemBus
		sessionBus = oldSessionBus
	}
}

// MockOnlySystemBusAvailable makes SystemBus return the given
// connection and makes SessionBus panic.
func MockOnlySystemBusAvailable(conn *dbus.Conn) (restore func()) {
	systemBusFn := func() (*dbus.Conn, error) { return conn, nil }
	sessionBusFn := func() (*dbus.Conn, error) {
		panic("session bus should not have been used")
	}
	return MockConnections(systemBusFn, sessionBusFn)
}

// MockOnlySessionBusAvailable makes SessionBus return the given
// connection and makes SystemBus panic.
func MockOnlySessionBusAvailable(conn *dbus.Conn) (restore func()) {
	systemBusFn := func() (*dbus.Conn, error) {
		panic("system bus should not have been used")
	}
	sessionBusFn := func() (*dbus.Conn, error) { return conn, nil }
	return MockConnections(systemBusFn, sessionBusFn)
}

// SessionBusPrivate opens a connection to the D-Bus session bus
// independent of the default shared connection.
func SessionBusPrivate(opts ...dbus.ConnOption) (*dbus.Conn, error) {
	conn, err := dbus.SessionBusPrivate(opts...)
	if err != nil {
		return nil, err
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// UserSessionBus opens a private connection to the session bus of
// the given user through the socket in their runtime directory. The
// caller must have the privileges to open the socket, typically by
// running with the user's effective uid.
//
// The explicit auth identity is required because go-dbus by default
// announces the real uid of the process, which the user's bus rejects
// when only the effective uid was switched.
func UserSessionBus(uid sys.UserID) (*dbus.Conn, error) {
	address := fmt.Sprintf("unix:path=%s", dirs.UserSessionBusSocket(uint32(uid)))
	conn, err := dbus.Dial(address)
	if err != nil {
		return nil, err
	}
	methods := []dbus.Auth{dbus.AuthExternal(strconv.FormatUint(uint64(uid), 10))}
	if err := conn.Auth(methods); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
