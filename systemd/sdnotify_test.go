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

package systemd_test

import (
	"errors"
	"net"
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"

	"github.com/snapcore/keepassxc-unlock/systemd"
)

type sdNotifyTestSuite struct{}

var _ = Suite(&sdNotifyTestSuite{})

func (sd *sdNotifyTestSuite) TestSdNotifyMissingNotifyState(c *C) {
	c.Check(systemd.SdNotify(""), ErrorMatches, "cannot use empty notify state")
}

func (sd *sdNotifyTestSuite) TestSdNotifyNoSocket(c *C) {
	restore := systemd.MockSdNotify(func(unsetEnvironment bool, state string) (bool, error) {
		c.Check(unsetEnvironment, Equals, false)
		c.Check(state, Equals, "READY=1")
		return false, nil
	})
	defer restore()

	c.Check(systemd.SdNotify("READY=1"), ErrorMatches, "cannot find NOTIFY_SOCKET environment")
}

func (sd *sdNotifyTestSuite) TestSdNotifyError(c *C) {
	restore := systemd.MockSdNotify(func(unsetEnvironment bool, state string) (bool, error) {
		return false, errors.New("boom")
	})
	defer restore()

	c.Check(systemd.SdNotify("READY=1"), ErrorMatches, "boom")
}

func (sd *sdNotifyTestSuite) TestSdNotifyIntegration(c *C) {
	sockPath := filepath.Join(c.MkDir(), "notify.socket")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{
		Name: sockPath,
		Net:  "unixgram",
	})
	c.Assert(err, IsNil)
	defer conn.Close()

	old, hadOld := os.LookupEnv("NOTIFY_SOCKET")
	os.Setenv("NOTIFY_SOCKET", sockPath)
	defer func() {
		if hadOld {
			os.Setenv("NOTIFY_SOCKET", old)
		} else {
			os.Unsetenv("NOTIFY_SOCKET")
		}
	}()

	ch := make(chan string)
	go func() {
		var buf [128]byte
		n, err := conn.Read(buf[:])
		c.Assert(err, IsNil)
		ch <- string(buf[:n])
	}()

	c.Assert(systemd.SdNotify("STOPPING=1"), IsNil)
	c.Check(<-ch, Equals, "STOPPING=1")
}
