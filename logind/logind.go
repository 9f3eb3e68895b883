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

// Package logind implements the small part of the systemd-logind D-Bus
// API needed to track login sessions: enumerating the session registry,
// reading per-session properties and subscribing to session signals.
package logind

import (
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"gopkg.in/retry.v1"

	"github.com/snapcore/keepassxc-unlock/logger"
	"github.com/snapcore/keepassxc-unlock/osutil"
	"github.com/snapcore/keepassxc-unlock/strutil"
)

const (
	// BusName is the well-known name of logind on the system bus.
	BusName = "org.freedesktop.login1"

	managerObjectPath = dbus.ObjectPath("/org/freedesktop/login1")
	managerInterface  = "org.freedesktop.login1.Manager"
	sessionInterface  = "org.freedesktop.login1.Session"

	propertiesInterface = "org.freedesktop.DBus.Properties"
)

// graphicalSessionTypes lists the session types of local graphical
// sessions. Everything else (tty, mir, unspecified) is ignored.
var graphicalSessionTypes = []string{"x11", "wayland"}

// ErrNoEligibleSession is returned when the user has no active local
// graphical session in logind's registry.
var ErrNoEligibleSession = errors.New("no eligible session found")

// sessionWaitStrategy probes once a second for up to 30 attempts to
// cover the gap between the user logging in and logind registering
// the new session.
var sessionWaitStrategy = retry.LimitCount(30, retry.Regular{
	Delay: time.Second,
	Min:   30,
})

// MockSessionWaitStrategy makes WaitSession poll with the given
// strategy, from tests.
func MockSessionWaitStrategy(strategy retry.Strategy) (restore func()) {
	osutil.MustBeTestBinary("MockSessionWaitStrategy can only be used in tests")
	original := sessionWaitStrategy
	sessionWaitStrategy = strategy
	return func() {
		sessionWaitStrategy = original
	}
}

// Session is one entry of logind's session registry, as returned by
// the manager's ListSessions call.
type Session struct {
	ID       string
	UID      uint32
	Username string
	Seat     string
	Path     dbus.ObjectPath
}

// Client talks to logind over an established system bus connection.
type Client struct {
	conn *dbus.Conn
}

// New creates a logind client on top of the given bus connection. The
// client does not take over the connection, closing it remains the
// caller's job.
func New(conn *dbus.Conn) *Client {
	return &Client{conn: conn}
}

func (c *Client) manager() dbus.BusObject {
	return c.conn.Object(BusName, managerObjectPath)
}

// ListSessions returns all sessions currently known to logind.
func (c *Client) ListSessions() ([]Session, error) {
	var sessions []Session
	if err := c.manager().Call(managerInterface+".ListSessions", 0).Store(&sessions); err != nil {
		return nil, fmt.Errorf("cannot list sessions: %v", err)
	}
	return sessions, nil
}

func (c *Client) sessionStringProp(path dbus.ObjectPath, prop string) (string, error) {
	variant, err := c.conn.Object(BusName, path).GetProperty(sessionInterface + "." + prop)
	if err != nil {
		return "", fmt.Errorf("cannot get session property %s: %v", prop, err)
	}
	value, ok := variant.Value().(string)
	if !ok {
		return "", fmt.Errorf("cannot use session property %s with signature %s as string", prop, variant.Signature())
	}
	return value, nil
}

func (c *Client) sessionBoolProp(path dbus.ObjectPath, prop string) (bool, error) {
	variant, err := c.conn.Object(BusName, path).GetProperty(sessionInterface + "." + prop)
	if err != nil {
		return false, fmt.Errorf("cannot get session property %s: %v", prop, err)
	}
	value, ok := variant.Value().(bool)
	if !ok {
		return false, fmt.Errorf("cannot use session property %s with signature %s as bool", prop, variant.Signature())
	}
	return value, nil
}

// SessionType returns the Type property of the session, one of x11,
// wayland, tty, mir or unspecified.
func (c *Client) SessionType(path dbus.ObjectPath) (string, error) {
	return c.sessionStringProp(path, "Type")
}

// SessionRemote returns the Remote property of the session.
func (c *Client) SessionRemote(path dbus.ObjectPath) (bool, error) {
	return c.sessionBoolProp(path, "Remote")
}

// SessionActive returns the Active property of the session.
func (c *Client) SessionActive(path dbus.ObjectPath) (bool, error) {
	return c.sessionBoolProp(path, "Active")
}

// SessionLocked returns the LockedHint property of the session.
func (c *Client) SessionLocked(path dbus.ObjectPath) (bool, error) {
	return c.sessionBoolProp(path, "LockedHint")
}

// SessionOwner returns the uid owning the session, from the User
// property of the session object.
func (c *Client) SessionOwner(path dbus.ObjectPath) (uint32, error) {
	variant, err := c.conn.Object(BusName, path).GetProperty(sessionInterface + ".User")
	if err != nil {
		return 0, fmt.Errorf("cannot get session property User: %v", err)
	}
	var user struct {
		UID  uint32
		Path dbus.ObjectPath
	}
	if err := dbus.Store([]interface{}{variant.Value()}, &user); err != nil {
		return 0, fmt.Errorf("cannot use session property User with signature %s: %v", variant.Signature(), err)
	}
	return user.UID, nil
}

// IsGraphicalSession reports whether the session is a local graphical
// one, that is of type x11 or wayland and not remote.
func (c *Client) IsGraphicalSession(path dbus.ObjectPath) (bool, error) {
	typ, err := c.SessionType(path)
	if err != nil {
		return false, err
	}
	if !strutil.ListContains(graphicalSessionTypes, typ) {
		return false, nil
	}
	remote, err := c.SessionRemote(path)
	if err != nil {
		return false, err
	}
	return !remote, nil
}

// SelectSession picks the first active local graphical session of the
// user from logind's registry. Sessions whose properties cannot be
// read are skipped.
func (c *Client) SelectSession(uid uint32) (*Session, error) {
	sessions, err := c.ListSessions()
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		if session.UID != uid {
			continue
		}
		eligible, err := c.IsGraphicalSession(session.Path)
		if err == nil && eligible {
			active, aerr := c.SessionActive(session.Path)
			err = aerr
			if err == nil && active {
				s := session
				return &s, nil
			}
		}
		if err != nil {
			logger.Debugf("skipping session %s: %v", session.Path, err)
		}
	}
	return nil, ErrNoEligibleSession
}

// WaitSession waits for an eligible session of the user to show up in
// the registry, retrying the selection with the session wait strategy.
// Transient registry errors are retried as well, with the last error
// reported if no session appears in time.
func (c *Client) WaitSession(uid uint32) (*Session, error) {
	var lastErr error
	for attempt := retry.Start(sessionWaitStrategy, nil); attempt.Next(); {
		session, err := c.SelectSession(uid)
		if err == nil {
			return session, nil
		}
		lastErr = err
		if err != ErrNoEligibleSession {
			logger.Noticef("cannot query sessions (attempt %d): %v", attempt.Count(), err)
		} else {
			logger.Debugf("no eligible session for uid %d yet (attempt %d)", uid, attempt.Count())
		}
	}
	return nil, lastErr
}
