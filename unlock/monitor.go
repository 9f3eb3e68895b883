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

package unlock

import (
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"gopkg.in/tomb.v2"

	"github.com/snapcore/keepassxc-unlock/logger"
	"github.com/snapcore/keepassxc-unlock/logind"
)

// ErrSessionGone reports that the monitored login session was removed
// and monitoring is over for good.
var ErrSessionGone = errors.New("login session was removed")

// DatabaseUnlocker is the part of the unlocker driven by the session
// monitor.
type DatabaseUnlocker interface {
	UnlockDatabases(wait time.Duration)
}

// Monitor feeds the session events of one login session through the
// state machine and invokes the unlocker whenever a transition calls
// for it.
type Monitor struct {
	tomb tomb.Tomb

	events   *logind.SessionMonitor
	unlocker DatabaseUnlocker
	session  dbus.ObjectPath
	settings *Settings

	// owned by the loop once it runs
	state SessionState
}

// NewMonitor subscribes to the signals of the given session and
// captures its current lock and activity state. Call Loop to start
// processing.
//
// Subscribing before reading the state means a change racing with the
// setup is never lost, at worst an event reports a state already seen.
func NewMonitor(client *logind.Client, unlocker DatabaseUnlocker, session dbus.ObjectPath, settings *Settings) (*Monitor, error) {
	events, err := client.MonitorSession(session)
	if err != nil {
		return nil, err
	}

	locked, err := client.SessionLocked(session)
	if err != nil {
		events.Close()
		return nil, err
	}
	active, err := client.SessionActive(session)
	if err != nil {
		events.Close()
		return nil, err
	}

	return &Monitor{
		events:   events,
		unlocker: unlocker,
		session:  session,
		settings: settings,
		state:    SessionState{Locked: locked, Active: active},
	}, nil
}

// Loop starts processing session events. An initial unlock attempt
// with the startup wait runs first, covering databases that were still
// closed when monitoring began.
func (m *Monitor) Loop() {
	m.tomb.Go(m.loop)
}

// Dying returns a channel that is closed when monitoring ends.
func (m *Monitor) Dying() <-chan struct{} {
	return m.tomb.Dying()
}

// Stop ends monitoring and waits for the loop to finish. It returns
// ErrSessionGone when the monitored session was removed.
func (m *Monitor) Stop() error {
	m.tomb.Kill(nil)
	err := m.tomb.Wait()
	if cerr := m.events.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (m *Monitor) loop() error {
	m.unlocker.UnlockDatabases(m.settings.StartupWait)

	for {
		select {
		case <-m.tomb.Dying():
			return tomb.ErrDying
		case sig, ok := <-m.events.Signals():
			if !ok {
				return fmt.Errorf("session signal stream closed unexpectedly")
			}
			for _, ev := range logind.SessionEvents(m.session, sig) {
				state, action := Transition(m.state, ev)
				m.state = state
				switch action {
				case UnlockAction:
					logger.Debugf("session %s was unlocked, opening databases", m.session)
					m.unlocker.UnlockDatabases(m.settings.UnlockWait)
				case ActivateAction:
					logger.Debugf("session %s became active, opening databases", m.session)
					m.unlocker.UnlockDatabases(m.settings.ActivateWait)
				case TerminateAction:
					logger.Noticef("login session %s was removed, monitoring is over", m.session)
					return ErrSessionGone
				}
			}
		}
	}
}
