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

// Package kpxctest provides a fake implementation of the KeePassXC
// remote control D-Bus API for testing client code against.
package kpxctest

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/snapcore/keepassxc-unlock/dbusutil"
)

const (
	kpBusName         = "org.keepassxc.KeePassXC.MainWindow"
	kpObjectPath      = dbus.ObjectPath("/keepassxc")
	kpWindowInterface = "org.keepassxc.KeePassXC.MainWindow"
)

// OpenCall records one openDatabase invocation.
type OpenCall struct {
	Database string
	Password string
	KeyFile  string
}

type KeePassXCServer struct {
	conn *dbus.Conn
	sync.Mutex

	// OpenCalls records the openDatabase invocations in order.
	OpenCalls []OpenCall

	// OpenDatabaseErr makes openDatabase fail when set.
	OpenDatabaseErr *dbus.Error
}

func NewKeePassXCServer() (*KeePassXCServer, error) {
	// the fake owns the KeePassXC name on a private bus connection
	conn, err := dbusutil.SessionBusPrivate()
	if err != nil {
		return nil, err
	}

	server := &KeePassXCServer{conn: conn}

	reply, err := conn.RequestName(kpBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("cannot obtain bus name %q", kpBusName)
	}

	// the real method name is lower case, which an exported Go
	// method cannot carry, so export via a method table
	methods := map[string]interface{}{
		"openDatabase": server.openDatabase,
	}
	if err := conn.ExportMethodTable(methods, kpObjectPath, kpWindowInterface); err != nil {
		conn.Close()
		return nil, err
	}

	return server, nil
}

// Stop gives up the KeePassXC bus name and disconnects from the bus.
func (server *KeePassXCServer) Stop() error {
	if _, err := server.conn.ReleaseName(kpBusName); err != nil {
		return err
	}
	return server.conn.Close()
}

// WithLocked runs f while holding the server lock, so that fields can
// be adjusted while requests are being served.
func (server *KeePassXCServer) WithLocked(f func()) {
	server.Lock()
	defer server.Unlock()

	f()
}

func (server *KeePassXCServer) openDatabase(database, password, keyFile string) *dbus.Error {
	server.Lock()
	defer server.Unlock()

	if server.OpenDatabaseErr != nil {
		return server.OpenDatabaseErr
	}
	server.OpenCalls = append(server.OpenCalls, OpenCall{
		Database: database,
		Password: password,
		KeyFile:  keyFile,
	})
	return nil
}
