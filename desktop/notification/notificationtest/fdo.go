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

// Package notificationtest provides a fake implementation of the
// org.freedesktop.Notifications D-Bus API for testing.
package notificationtest

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/snapcore/keepassxc-unlock/dbusutil"
)

const (
	fdoBusName    = "org.freedesktop.Notifications"
	fdoObjectPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	fdoInterface  = "org.freedesktop.Notifications"
)

// FdoNotification records one notification posted to the fake server.
type FdoNotification struct {
	ID      uint32
	AppName string
	Icon    string
	Summary string
	Body    string
	Actions []string
	Hints   map[string]dbus.Variant
	Expires int32
}

type FdoServer struct {
	conn *dbus.Conn
	sync.Mutex

	lastID        uint32
	notifications []*FdoNotification

	// Closed records the ids passed to CloseNotification in order.
	Closed []uint32

	// NotifyErr makes Notify fail when set.
	NotifyErr *dbus.Error
	// CloseErr makes CloseNotification fail when set.
	CloseErr *dbus.Error
}

func NewFdoServer() (*FdoServer, error) {
	// the fake owns the notification name on a private bus connection
	conn, err := dbusutil.SessionBusPrivate()
	if err != nil {
		return nil, err
	}

	server := &FdoServer{conn: conn}

	reply, err := conn.RequestName(fdoBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("cannot obtain bus name %q", fdoBusName)
	}

	if err := conn.Export(fdoApi{server}, fdoObjectPath, fdoInterface); err != nil {
		conn.Close()
		return nil, err
	}

	return server, nil
}

// Stop gives up the notification bus name and disconnects from the bus.
func (server *FdoServer) Stop() error {
	if _, err := server.conn.ReleaseName(fdoBusName); err != nil {
		return err
	}
	return server.conn.Close()
}

// WithLocked runs f while holding the server lock, so that fields can
// be adjusted while requests are being served.
func (server *FdoServer) WithLocked(f func()) {
	server.Lock()
	defer server.Unlock()

	f()
}

// Notifications returns the notifications posted so far, in order.
func (server *FdoServer) Notifications() []*FdoNotification {
	server.Lock()
	defer server.Unlock()

	return append([]*FdoNotification(nil), server.notifications...)
}

func (server *FdoServer) notify(n *FdoNotification) (uint32, *dbus.Error) {
	server.Lock()
	defer server.Unlock()

	if server.NotifyErr != nil {
		return 0, server.NotifyErr
	}
	server.lastID++
	n.ID = server.lastID
	server.notifications = append(server.notifications, n)
	return n.ID, nil
}

func (server *FdoServer) closeNotification(id uint32) *dbus.Error {
	server.Lock()
	defer server.Unlock()

	if server.CloseErr != nil {
		return server.CloseErr
	}
	server.Closed = append(server.Closed, id)
	return nil
}

type fdoApi struct {
	server *FdoServer
}

func (a fdoApi) Notify(appName string, replacesID uint32, icon, summary, body string, actions []string, hints map[string]dbus.Variant, expires int32) (uint32, *dbus.Error) {
	return a.server.notify(&FdoNotification{
		AppName: appName,
		Icon:    icon,
		Summary: summary,
		Body:    body,
		Actions: actions,
		Hints:   hints,
		Expires: expires,
	})
}

func (a fdoApi) CloseNotification(id uint32) *dbus.Error {
	return a.server.closeNotification(id)
}
