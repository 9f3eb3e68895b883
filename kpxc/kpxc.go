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

// Package kpxc is a client for the D-Bus remote control interface that
// a running KeePassXC instance exposes on the user's session bus.
package kpxc

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	// BusName is the well-known name claimed by KeePassXC's main window.
	BusName = "org.keepassxc.KeePassXC.MainWindow"

	objectPath          = dbus.ObjectPath("/keepassxc")
	mainWindowInterface = "org.keepassxc.KeePassXC.MainWindow"
	openDatabaseMethod  = mainWindowInterface + ".openDatabase"
)

// ErrServiceUnavailable is returned when no running KeePassXC claimed
// its bus name within the allotted wait.
var ErrServiceUnavailable = errors.New("keepassxc service is not available")

// ServicePID returns the process id of the connection currently owning
// the KeePassXC bus name on the given bus.
func ServicePID(conn *dbus.Conn) (pid uint32, err error) {
	call := conn.BusObject().Call("org.freedesktop.DBus.GetConnectionUnixProcessID", 0, BusName)
	if err := call.Store(&pid); err != nil {
		return 0, fmt.Errorf("cannot identify the keepassxc process: %v", err)
	}
	return pid, nil
}

// OpenDatabase asks the running KeePassXC to open the given database
// with the supplied password and optional key file. Opening an already
// open database is a no-op for KeePassXC, so redundant calls are safe.
func OpenDatabase(conn *dbus.Conn, database, password, keyFile string) error {
	obj := conn.Object(BusName, objectPath)
	if call := obj.Call(openDatabaseMethod, 0, database, password, keyFile); call.Err != nil {
		return fmt.Errorf("cannot open database %q: %v", database, call.Err)
	}
	return nil
}
