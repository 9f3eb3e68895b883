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

package unlock_test

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	. "gopkg.in/check.v1"

	"github.com/snapcore/keepassxc-unlock/dbusutil"
	"github.com/snapcore/keepassxc-unlock/logind"
	"github.com/snapcore/keepassxc-unlock/logind/logindtest"
	"github.com/snapcore/keepassxc-unlock/testutil"
	"github.com/snapcore/keepassxc-unlock/unlock"
)

// recordingUnlocker stands in for the real unlocker and reports every
// invocation with its wait on a channel.
type recordingUnlocker struct {
	calls chan time.Duration
}

func newRecordingUnlocker() *recordingUnlocker {
	return &recordingUnlocker{calls: make(chan time.Duration, 16)}
}

func (u *recordingUnlocker) UnlockDatabases(wait time.Duration) {
	u.calls <- wait
}

func (u *recordingUnlocker) expectCall(c *C, wait time.Duration) {
	select {
	case got := <-u.calls:
		c.Check(got, Equals, wait)
	case <-time.After(5 * time.Second):
		c.Fatalf("timed out waiting for an unlock invocation")
	}
}

func (u *recordingUnlocker) expectNoCall(c *C) {
	select {
	case got := <-u.calls:
		c.Fatalf("unexpected unlock invocation with wait %v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

// monitorSettings uses distinct waits so the tests can tell which
// transition triggered an invocation.
var monitorSettings = &unlock.Settings{
	StartupWait:   101 * time.Millisecond,
	UnlockWait:    102 * time.Millisecond,
	ActivateWait:  103 * time.Millisecond,
	MaxSecretSize: 4095,
	Alert:         true,
}

type monitorSuite struct {
	testutil.BaseTest
	testutil.DBusTest

	server   *logindtest.LogindServer
	client   *logind.Client
	unlocker *recordingUnlocker
}

var _ = Suite(&monitorSuite{})

func (s *monitorSuite) SetUpSuite(c *C) {
	s.DBusTest.SetUpSuite(c)
}

func (s *monitorSuite) TearDownSuite(c *C) {
	s.DBusTest.TearDownSuite(c)
}

func (s *monitorSuite) SetUpTest(c *C) {
	s.BaseTest.SetUpTest(c)
	s.DBusTest.SetUpTest(c)

	var err error
	s.server, err = logindtest.NewLogindServer()
	c.Assert(err, IsNil)
	s.AddCleanup(func() { s.server.Stop() })

	conn, err := dbusutil.SessionBusPrivate()
	c.Assert(err, IsNil)
	s.AddCleanup(func() { conn.Close() })
	s.client = logind.New(conn)

	s.unlocker = newRecordingUnlocker()
}

func (s *monitorSuite) TearDownTest(c *C) {
	s.DBusTest.TearDownTest(c)
	s.BaseTest.TearDownTest(c)
}

func (s *monitorSuite) startMonitor(c *C, active, lockedHint bool) *unlock.Monitor {
	c.Assert(s.server.SetSessions(logindtest.SessionEntry{
		ID: "32", UID: 1000, Seat: "seat0", Path: testSessionPath,
		Type: "wayland", Active: active, LockedHint: lockedHint,
	}), IsNil)

	m, err := unlock.NewMonitor(s.client, s.unlocker, testSessionPath, monitorSettings)
	c.Assert(err, IsNil)
	m.Loop()

	// the initial attempt also proves the subscription is in place,
	// signals emitted from here on cannot be missed
	s.unlocker.expectCall(c, monitorSettings.StartupWait)
	return m
}

func (s *monitorSuite) TestMonitorUnlockOnLockedHintCleared(c *C) {
	m := s.startMonitor(c, true, true)
	defer m.Stop()

	c.Assert(s.server.EmitLockedHintChanged(testSessionPath, false), IsNil)
	s.unlocker.expectCall(c, monitorSettings.UnlockWait)

	// repeating the cleared hint is not a new unlock
	c.Assert(s.server.EmitLockedHintChanged(testSessionPath, false), IsNil)
	// but a full lock and unlock cycle is
	c.Assert(s.server.EmitLockedHintChanged(testSessionPath, true), IsNil)
	c.Assert(s.server.EmitLockedHintChanged(testSessionPath, false), IsNil)
	s.unlocker.expectCall(c, monitorSettings.UnlockWait)
	s.unlocker.expectNoCall(c)

	c.Check(m.Stop(), IsNil)
}

func (s *monitorSuite) TestMonitorActivateWhileUnlocked(c *C) {
	m := s.startMonitor(c, false, false)
	defer m.Stop()

	c.Assert(s.server.EmitActiveChanged(testSessionPath, true), IsNil)
	s.unlocker.expectCall(c, monitorSettings.ActivateWait)

	// staying active and going back to the background do nothing
	c.Assert(s.server.EmitActiveChanged(testSessionPath, true), IsNil)
	c.Assert(s.server.EmitActiveChanged(testSessionPath, false), IsNil)
	c.Assert(s.server.EmitActiveChanged(testSessionPath, true), IsNil)
	s.unlocker.expectCall(c, monitorSettings.ActivateWait)
	s.unlocker.expectNoCall(c)
}

func (s *monitorSuite) TestMonitorActivityWhileLockedDefersToUnlock(c *C) {
	m := s.startMonitor(c, false, true)
	defer m.Stop()

	// switching to and from a locked session opens nothing
	c.Assert(s.server.EmitActiveChanged(testSessionPath, true), IsNil)
	c.Assert(s.server.EmitActiveChanged(testSessionPath, false), IsNil)
	c.Assert(s.server.EmitActiveChanged(testSessionPath, true), IsNil)
	// the eventual unlock is what opens the databases
	c.Assert(s.server.EmitLockedHintChanged(testSessionPath, false), IsNil)
	s.unlocker.expectCall(c, monitorSettings.UnlockWait)
	s.unlocker.expectNoCall(c)
}

func (s *monitorSuite) TestMonitorCombinedPropertiesChange(c *C) {
	m := s.startMonitor(c, false, true)
	defer m.Stop()

	// one signal carrying both properties still unlocks exactly once
	c.Assert(s.server.EmitPropertiesChanged(testSessionPath, map[string]dbus.Variant{
		"LockedHint": dbus.MakeVariant(false),
		"Active":     dbus.MakeVariant(true),
	}), IsNil)
	s.unlocker.expectCall(c, monitorSettings.UnlockWait)
	s.unlocker.expectNoCall(c)
}

func (s *monitorSuite) TestMonitorSessionRemoved(c *C) {
	m := s.startMonitor(c, true, true)

	// a removal right on the heels of a lock change must still
	// terminate monitoring
	c.Assert(s.server.EmitLockedHintChanged(testSessionPath, false), IsNil)
	c.Assert(s.server.EmitSessionRemoved("32", testSessionPath), IsNil)

	s.unlocker.expectCall(c, monitorSettings.UnlockWait)
	select {
	case <-m.Dying():
	case <-time.After(5 * time.Second):
		c.Fatalf("timed out waiting for the monitor to notice the removal")
	}
	c.Check(m.Stop(), Equals, unlock.ErrSessionGone)
}

func (s *monitorSuite) TestMonitorOtherSessionRemovedIgnored(c *C) {
	m := s.startMonitor(c, true, false)

	c.Assert(s.server.EmitSessionRemoved("99", dbus.ObjectPath("/org/freedesktop/login1/session/_99")), IsNil)
	// a lock cycle afterwards proves the monitor is still alive
	c.Assert(s.server.EmitLockedHintChanged(testSessionPath, true), IsNil)
	c.Assert(s.server.EmitLockedHintChanged(testSessionPath, false), IsNil)
	s.unlocker.expectCall(c, monitorSettings.UnlockWait)

	c.Check(m.Stop(), IsNil)
}

func (s *monitorSuite) TestMonitorStop(c *C) {
	m := s.startMonitor(c, true, false)
	c.Check(m.Stop(), IsNil)
	// stopping again is harmless
	c.Check(m.Stop(), IsNil)
}

func (s *monitorSuite) TestNewMonitorUnreadableSession(c *C) {
	c.Assert(s.server.SetSessions(logindtest.SessionEntry{
		ID: "32", UID: 1000, Seat: "seat0", Path: testSessionPath,
		Type: "wayland", Active: true, LockedHint: false,
	}), IsNil)
	s.server.WithLocked(func() {
		s.server.GetPropertyErr["LockedHint"] = dbus.MakeFailedError(fmt.Errorf("boom"))
	})

	_, err := unlock.NewMonitor(s.client, s.unlocker, testSessionPath, monitorSettings)
	c.Assert(err, ErrorMatches, ".*boom.*")
}
