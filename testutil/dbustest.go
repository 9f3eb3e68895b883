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

package testutil

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/godbus/dbus/v5"
	"gopkg.in/check.v1"
)

const dbusSessionConfigTemplate = `<!DOCTYPE busconfig PUBLIC "-//freedesktop//DTD D-Bus Bus Configuration 1.0//EN"
	"http://www.freedesktop.org/standards/dbus/1.0/busconfig.dtd">
<busconfig>
  <type>session</type>
  <keep_umask/>
  <listen>unix:path=%s</listen>
  <servicedir>%s</servicedir>
  <policy context="default">
    <allow send_destination="*" eavesdrop="true"/>
    <allow eavesdrop="true"/>
    <allow own="*"/>
  </policy>
</busconfig>
`

// DBusTest provides a separate dbus session bus for running tests.
type DBusTest struct {
	tmpdir           string
	dbusDaemon       *exec.Cmd
	oldSessionBusEnv string

	// the dbus.Conn to the session bus that tests can use
	SessionBus *dbus.Conn
	// the filesystem socket the bus listens on
	BusSocketPath string
}

func (s *DBusTest) SetUpSuite(c *check.C) {
	if _, err := exec.LookPath("dbus-daemon"); err != nil {
		c.Skip(fmt.Sprintf("cannot run test without dbus-daemon: %s", err))
		return
	}

	s.tmpdir = c.MkDir()
	configFile := filepath.Join(s.tmpdir, "session.conf")
	servicesDir := filepath.Join(s.tmpdir, "services")
	s.BusSocketPath = filepath.Join(s.tmpdir, "bus")
	err := os.Mkdir(servicesDir, 0755)
	c.Assert(err, check.IsNil)
	err = os.WriteFile(configFile, []byte(fmt.Sprintf(dbusSessionConfigTemplate, s.BusSocketPath, servicesDir)), 0644)
	c.Assert(err, check.IsNil)

	s.dbusDaemon = exec.Command("dbus-daemon", "--print-address", fmt.Sprintf("--config-file=%s", configFile))
	s.dbusDaemon.Stderr = os.Stderr
	pout, err := s.dbusDaemon.StdoutPipe()
	c.Assert(err, check.IsNil)
	err = s.dbusDaemon.Start()
	c.Assert(err, check.IsNil)

	scanner := bufio.NewScanner(pout)
	scanner.Scan()
	c.Assert(scanner.Err(), check.IsNil)
	s.oldSessionBusEnv = os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	os.Setenv("DBUS_SESSION_BUS_ADDRESS", scanner.Text())

	s.SessionBus, err = sessionBusPrivate()
	c.Assert(err, check.IsNil)
}

func (s *DBusTest) TearDownSuite(c *check.C) {
	if s.SessionBus != nil {
		err := s.SessionBus.Close()
		c.Assert(err, check.IsNil)
	}

	if s.dbusDaemon != nil {
		err := s.dbusDaemon.Process.Kill()
		c.Assert(err, check.IsNil)
		err = s.dbusDaemon.Wait() // and wait for it to terminate
		c.Assert(err, check.ErrorMatches, `(?i)signal: killed`)
	}

	os.Setenv("DBUS_SESSION_BUS_ADDRESS", s.oldSessionBusEnv)
}

func (s *DBusTest) SetUpTest(c *check.C)    {}
func (s *DBusTest) TearDownTest(c *check.C) {}

// sessionBusPrivate is a locally repeated version of dbusutil's private
// session bus connector, so that the test helpers do not import the
// package they are used to test.
func sessionBusPrivate() (*dbus.Conn, error) {
	conn, err := dbus.SessionBusPrivate()
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
