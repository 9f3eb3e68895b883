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

// logindtest provides a fake implementation of the systemd-logind
// dbus API for testing. Unlike the real logind it lives on the
// session bus but that is good enough for the testing.
package logindtest

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/snapcore/keepassxc-unlock/dbusutil"
)

const (
	logindBusName          = "org.freedesktop.login1"
	logindObjectPath       = dbus.ObjectPath("/org/freedesktop/login1")
	logindManagerInterface = "org.freedesktop.login1.Manager"
	logindSessionInterface = "org.freedesktop.login1.Session"

	propertiesInterface = "org.freedesktop.DBus.Properties"
)

// SessionEntry is one session of the fake registry: the fields of a
// ListSessions row plus the properties served for the session object.
type SessionEntry struct {
	ID       string
	UID      uint32
	Username string
	Seat     string
	Path     dbus.ObjectPath

	Type       string
	Remote     bool
	Active     bool
	LockedHint bool
}

type LogindServer struct {
	conn *dbus.Conn
	sync.Mutex

	MockSessions []SessionEntry

	ListSessionsCalls int
	ListSessionsErr   *dbus.Error

	// GetPropertyErr makes property reads fail, keyed by property name.
	GetPropertyErr map[string]*dbus.Error
}

func NewLogindServer() (*LogindServer, error) {
	// the fake owns the logind name on a private bus connection
	conn, err := dbusutil.SessionBusPrivate()
	if err != nil {
		return nil, err
	}

	server := &LogindServer{
		conn:           conn,
		GetPropertyErr: make(map[string]*dbus.Error),
	}

	reply, err := conn.RequestName(logindBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("cannot obtain bus name %q", logindBusName)
	}

	if err := conn.Export(managerApi{server}, logindObjectPath, logindManagerInterface); err != nil {
		server.Stop()
		return nil, err
	}
	return server, nil
}

// SetSessions replaces the fake registry and exports a properties
// object for each session path.
func (server *LogindServer) SetSessions(sessions ...SessionEntry) error {
	server.Lock()
	server.MockSessions = sessions
	server.Unlock()

	for _, session := range sessions {
		if err := server.conn.Export(sessionApi{server, session.Path}, session.Path, propertiesInterface); err != nil {
			return err
		}
	}
	return nil
}

// SetSessionState updates the Active and LockedHint properties of the
// session with the given path.
func (server *LogindServer) SetSessionState(path dbus.ObjectPath, active, lockedHint bool) {
	server.Lock()
	defer server.Unlock()

	for i := range server.MockSessions {
		if server.MockSessions[i].Path == path {
			server.MockSessions[i].Active = active
			server.MockSessions[i].LockedHint = lockedHint
		}
	}
}

func (server *LogindServer) Stop() error {
	if _, err := server.conn.ReleaseName(logindBusName); err != nil {
		return err
	}
	return server.conn.Close()
}

func (server *LogindServer) WithLocked(f func()) {
	server.Lock()
	defer server.Unlock()

	f()
}

// EmitPropertiesChanged emits the signal logind sends when properties
// of a session change. Only the changed properties are included, as
// logind does.
func (server *LogindServer) EmitPropertiesChanged(path dbus.ObjectPath, changed map[string]dbus.Variant) error {
	return server.conn.Emit(path, propertiesInterface+".PropertiesChanged",
		logindSessionInterface, changed, []string{})
}

// EmitLockedHintChanged emits a PropertiesChanged signal carrying only
// the LockedHint property.
func (server *LogindServer) EmitLockedHintChanged(path dbus.ObjectPath, locked bool) error {
	return server.EmitPropertiesChanged(path, map[string]dbus.Variant{
		"LockedHint": dbus.MakeVariant(locked),
	})
}

// EmitActiveChanged emits a PropertiesChanged signal carrying only
// the Active property.
func (server *LogindServer) EmitActiveChanged(path dbus.ObjectPath, active bool) error {
	return server.EmitPropertiesChanged(path, map[string]dbus.Variant{
		"Active": dbus.MakeVariant(active),
	})
}

// EmitSessionRemoved emits the manager's SessionRemoved signal.
func (server *LogindServer) EmitSessionRemoved(id string, path dbus.ObjectPath) error {
	return server.conn.Emit(logindObjectPath, logindManagerInterface+".SessionRemoved", id, path)
}

// EmitSessionNew emits the manager's SessionNew signal.
func (server *LogindServer) EmitSessionNew(id string, path dbus.ObjectPath) error {
	return server.conn.Emit(logindObjectPath, logindManagerInterface+".SessionNew", id, path)
}

type managerApi struct {
	server *LogindServer
}

// sessionRow matches the (susso) entries of the ListSessions reply.
type sessionRow struct {
	ID       string
	UID      uint32
	Username string
	Seat     string
	Path     dbus.ObjectPath
}

func (m managerApi) ListSessions() ([]sessionRow, *dbus.Error) {
	m.server.Lock()
	defer m.server.Unlock()

	m.server.ListSessionsCalls++
	if m.server.ListSessionsErr != nil {
		return nil, m.server.ListSessionsErr
	}
	rows := make([]sessionRow, 0, len(m.server.MockSessions))
	for _, session := range m.server.MockSessions {
		rows = append(rows, sessionRow{session.ID, session.UID, session.Username, session.Seat, session.Path})
	}
	return rows, nil
}

type sessionApi struct {
	server *LogindServer

	path dbus.ObjectPath
}

func (a sessionApi) Get(iface, prop string) (dbus.Variant, *dbus.Error) {
	a.server.Lock()
	defer a.server.Unlock()

	if err := a.server.GetPropertyErr[prop]; err != nil {
		return dbus.Variant{}, err
	}
	if iface != logindSessionInterface {
		return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unexpected interface %q", iface))
	}
	for _, session := range a.server.MockSessions {
		if session.Path != a.path {
			continue
		}
		switch prop {
		case "Type":
			return dbus.MakeVariant(session.Type), nil
		case "Remote":
			return dbus.MakeVariant(session.Remote), nil
		case "Active":
			return dbus.MakeVariant(session.Active), nil
		case "LockedHint":
			return dbus.MakeVariant(session.LockedHint), nil
		case "User":
			user := struct {
				UID  uint32
				Path dbus.ObjectPath
			}{session.UID, dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/login1/user/_%d", session.UID))}
			return dbus.MakeVariant(user), nil
		}
		return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown property %q", prop))
	}
	return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown session %q", a.path))
}
