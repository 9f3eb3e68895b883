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

package logind

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	propertiesChangedSignal = propertiesInterface + ".PropertiesChanged"
	sessionRemovedSignal    = managerInterface + ".SessionRemoved"
	sessionNewSignal        = managerInterface + ".SessionNew"
)

// signalBufferSize bounds the signals queued while the consumer is
// busy. go-dbus discards signals it cannot deliver immediately so the
// buffer has to cover the length of an unlock attempt.
const signalBufferSize = 32

// Event is a state change of a monitored session, one of
// LockedHintChanged, ActiveChanged or SessionRemoved.
type Event interface {
	isSessionEvent()
}

// LockedHintChanged reports a new value of the session's LockedHint
// property.
type LockedHintChanged struct {
	Locked bool
}

// ActiveChanged reports a new value of the session's Active property.
type ActiveChanged struct {
	Active bool
}

// SessionRemoved reports that the monitored session was closed.
type SessionRemoved struct {
	ID   string
	Path dbus.ObjectPath
}

func (LockedHintChanged) isSessionEvent() {}
func (ActiveChanged) isSessionEvent()     {}
func (SessionRemoved) isSessionEvent()    {}

// SessionNew reports a session added to the registry, from the
// manager's SessionNew signal.
type SessionNew struct {
	ID   string
	Path dbus.ObjectPath
}

// SessionMonitor owns signal subscriptions on the client's bus
// connection and the channel the bus delivers them on.
type SessionMonitor struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
	matches [][]dbus.MatchOption

	closeOnce sync.Once
}

func (c *Client) monitor(matches ...[]dbus.MatchOption) (*SessionMonitor, error) {
	m := &SessionMonitor{conn: c.conn, matches: matches}
	for i, match := range matches {
		if err := c.conn.AddMatchSignal(match...); err != nil {
			for _, added := range matches[:i] {
				c.conn.RemoveMatchSignal(added...)
			}
			return nil, fmt.Errorf("cannot subscribe to logind signals: %v", err)
		}
	}
	m.signals = make(chan *dbus.Signal, signalBufferSize)
	c.conn.Signal(m.signals)
	return m, nil
}

// MonitorSession subscribes to the signals describing the session's
// lifecycle: PropertiesChanged of the session object and the
// manager's SessionRemoved. Decode the delivered signals with
// SessionEvents.
func (c *Client) MonitorSession(path dbus.ObjectPath) (*SessionMonitor, error) {
	return c.monitor(
		[]dbus.MatchOption{
			dbus.WithMatchSender(BusName),
			dbus.WithMatchInterface(propertiesInterface),
			dbus.WithMatchMember("PropertiesChanged"),
			dbus.WithMatchObjectPath(path),
		},
		[]dbus.MatchOption{
			dbus.WithMatchSender(BusName),
			dbus.WithMatchInterface(managerInterface),
			dbus.WithMatchMember("SessionRemoved"),
			dbus.WithMatchObjectPath(managerObjectPath),
		},
	)
}

// MonitorNewSessions subscribes to the manager's SessionNew signal.
// Decode the delivered signals with NewSessions.
func (c *Client) MonitorNewSessions() (*SessionMonitor, error) {
	return c.monitor(
		[]dbus.MatchOption{
			dbus.WithMatchSender(BusName),
			dbus.WithMatchInterface(managerInterface),
			dbus.WithMatchMember("SessionNew"),
			dbus.WithMatchObjectPath(managerObjectPath),
		},
	)
}

// Signals returns the channel carrying the subscribed bus signals.
// The channel is closed by Close.
func (m *SessionMonitor) Signals() <-chan *dbus.Signal {
	return m.signals
}

// Close removes the signal subscriptions and closes the signal
// channel. Closing an already closed monitor does nothing.
func (m *SessionMonitor) Close() error {
	var firstErr error
	m.closeOnce.Do(func() {
		for _, match := range m.matches {
			if err := m.conn.RemoveMatchSignal(match...); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		m.conn.RemoveSignal(m.signals)
		close(m.signals)
	})
	return firstErr
}

// SessionEvents translates a bus signal into the state events of the
// session at path. Signals about other objects, interfaces or
// sessions decode to nothing. When a single PropertiesChanged signal
// carries both properties the LockedHint change is delivered first,
// so that consumers observe the lock state before the activation
// change.
func SessionEvents(path dbus.ObjectPath, sig *dbus.Signal) []Event {
	switch sig.Name {
	case propertiesChangedSignal:
		if sig.Path != path {
			return nil
		}
		return propertyEvents(sig.Body)
	case sessionRemovedSignal:
		id, removedPath, ok := decodeSessionIDPath(sig.Body)
		if !ok || removedPath != path {
			return nil
		}
		return []Event{SessionRemoved{ID: id, Path: removedPath}}
	}
	return nil
}

func propertyEvents(body []interface{}) []Event {
	if len(body) < 2 {
		return nil
	}
	if iface, ok := body[0].(string); !ok || iface != sessionInterface {
		return nil
	}
	changed, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return nil
	}
	var events []Event
	if variant, ok := changed["LockedHint"]; ok {
		if locked, ok := variant.Value().(bool); ok {
			events = append(events, LockedHintChanged{Locked: locked})
		}
	}
	if variant, ok := changed["Active"]; ok {
		if active, ok := variant.Value().(bool); ok {
			events = append(events, ActiveChanged{Active: active})
		}
	}
	return events
}

// NewSessions translates a bus signal into the sessions announced by
// the manager's SessionNew signal.
func NewSessions(sig *dbus.Signal) []SessionNew {
	if sig.Name != sessionNewSignal {
		return nil
	}
	id, path, ok := decodeSessionIDPath(sig.Body)
	if !ok {
		return nil
	}
	return []SessionNew{{ID: id, Path: path}}
}

func decodeSessionIDPath(body []interface{}) (id string, path dbus.ObjectPath, ok bool) {
	if len(body) != 2 {
		return "", "", false
	}
	id, ok = body[0].(string)
	if !ok {
		return "", "", false
	}
	path, ok = body[1].(dbus.ObjectPath)
	if !ok {
		return "", "", false
	}
	return id, path, true
}
