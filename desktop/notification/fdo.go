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

// Package notification sends desktop notifications over the
// org.freedesktop.Notifications D-Bus interface.
//
// Specification: https://developer.gnome.org/notification-spec/
package notification

import (
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	dBusName          = "org.freedesktop.Notifications"
	dBusObjectPath    = "/org/freedesktop/Notifications"
	dBusInterfaceName = "org.freedesktop.Notifications"
)

// Server holds a connection to a notification server.
type Server struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// New returns a client for the freedesktop.org notification server on
// the given bus.
func New(conn *dbus.Conn) *Server {
	return &Server{
		conn: conn,
		obj:  conn.Object(dBusName, dBusObjectPath),
	}
}

// ID is the opaque identifier of a notification assigned by the server.
type ID uint32

// Message describes a single notification.
type Message struct {
	AppName string
	Icon    string
	Summary string
	Body    string
	Actions []Action
	Hints   []Hint
	// ExpireTimeout of zero means the notification never expires,
	// ServerSelectedExpireTimeout leaves the choice to the server.
	ExpireTimeout time.Duration
	// ReplacesID, when nonzero, updates an earlier notification
	// instead of posting a new one.
	ReplacesID ID
}

// ServerSelectedExpireTimeout requests that the server selects the
// expiration timeout.
const ServerSelectedExpireTimeout = time.Duration(-time.Millisecond)

// Action describes a single notification action.
type Action struct {
	// ActionKey is returned to the application when the action is invoked.
	ActionKey string
	// LocalizedText is shown to the user.
	LocalizedText string
}

// Hint describes supplementary information that may be used by the server.
type Hint struct {
	Name  string
	Value interface{}
}

// SendNotification sends a new notification or updates an existing one.
// In both cases the ID assigned by the server is returned. The ID can
// be used to close the notification or update it later.
func (srv *Server) SendNotification(msg *Message) (ID, error) {
	call := srv.obj.Call(dBusInterfaceName+".Notify", 0,
		msg.AppName, uint32(msg.ReplacesID), msg.Icon, msg.Summary, msg.Body,
		flattenActions(msg.Actions), mapHints(msg.Hints),
		int32(msg.ExpireTimeout/time.Millisecond))

	var id ID
	if err := call.Store(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// CloseNotification closes the notification with the given ID.
func (srv *Server) CloseNotification(id ID) error {
	call := srv.obj.Call(dBusInterfaceName+".CloseNotification", 0, uint32(id))
	return call.Err
}

func flattenActions(actions []Action) []string {
	result := make([]string, len(actions)*2)
	for i, action := range actions {
		result[i*2] = action.ActionKey
		result[i*2+1] = action.LocalizedText
	}
	return result
}

func mapHints(hints []Hint) map[string]dbus.Variant {
	result := make(map[string]dbus.Variant, len(hints))
	for _, hint := range hints {
		result[hint.Name] = dbus.MakeVariant(hint.Value)
	}
	return result
}
