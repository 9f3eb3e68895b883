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
	"os"
	"path/filepath"
	"time"

	. "gopkg.in/check.v1"

	"github.com/snapcore/keepassxc-unlock/dirs"
	"github.com/snapcore/keepassxc-unlock/testutil"
	"github.com/snapcore/keepassxc-unlock/unlock"
)

type settingsSuite struct {
	testutil.BaseTest
}

var _ = Suite(&settingsSuite{})

func (s *settingsSuite) SetUpTest(c *C) {
	s.BaseTest.SetUpTest(c)
	dirs.SetRootDir(c.MkDir())
	s.AddCleanup(func() { dirs.SetRootDir("/") })
}

func (s *settingsSuite) writeSettings(c *C, content string) {
	c.Assert(os.MkdirAll(filepath.Dir(dirs.SettingsFile), 0755), IsNil)
	c.Assert(os.WriteFile(dirs.SettingsFile, []byte(content), 0644), IsNil)
}

func (s *settingsSuite) TestDefaultSettings(c *C) {
	settings := unlock.DefaultSettings()
	c.Check(settings.StartupWait, Equals, 60*time.Second)
	c.Check(settings.UnlockWait, Equals, 10*time.Second)
	c.Check(settings.ActivateWait, Equals, 30*time.Second)
	c.Check(settings.MaxSecretSize, Equals, 4095)
	c.Check(settings.Alert, Equals, true)
}

func (s *settingsSuite) TestReadSettingsNoFile(c *C) {
	settings, err := unlock.ReadSettings()
	c.Assert(err, IsNil)
	c.Check(settings, DeepEquals, unlock.DefaultSettings())
}

func (s *settingsSuite) TestReadSettingsOverrides(c *C) {
	s.writeSettings(c, `
[monitor]
startup-wait=5
unlock-wait=2
activate-wait=3
max-secret-size=100
alert=no
`)

	settings, err := unlock.ReadSettings()
	c.Assert(err, IsNil)
	c.Check(settings, DeepEquals, &unlock.Settings{
		StartupWait:   5 * time.Second,
		UnlockWait:    2 * time.Second,
		ActivateWait:  3 * time.Second,
		MaxSecretSize: 100,
		Alert:         false,
	})
}

func (s *settingsSuite) TestReadSettingsPartialOverride(c *C) {
	s.writeSettings(c, "[monitor]\nunlock-wait=7\n")

	settings, err := unlock.ReadSettings()
	c.Assert(err, IsNil)
	c.Check(settings.StartupWait, Equals, 60*time.Second)
	c.Check(settings.UnlockWait, Equals, 7*time.Second)
	c.Check(settings.ActivateWait, Equals, 30*time.Second)
	c.Check(settings.MaxSecretSize, Equals, 4095)
	c.Check(settings.Alert, Equals, true)
}

func (s *settingsSuite) TestReadSettingsUnrelatedSection(c *C) {
	s.writeSettings(c, "[other]\nunlock-wait=7\n")

	settings, err := unlock.ReadSettings()
	c.Assert(err, IsNil)
	c.Check(settings, DeepEquals, unlock.DefaultSettings())
}

func (s *settingsSuite) TestReadSettingsInvalid(c *C) {
	for _, t := range []struct {
		content string
		err     string
	}{
		{"[monitor]\nstartup-wait=later\n", "cannot use startup-wait setting: .*"},
		{"[monitor]\nunlock-wait=0\n", "cannot use unlock-wait setting: not a positive number of seconds"},
		{"[monitor]\nactivate-wait=-3\n", "cannot use activate-wait setting: not a positive number of seconds"},
		{"[monitor]\nmax-secret-size=huge\n", "cannot use max-secret-size setting: .*"},
		{"[monitor]\nmax-secret-size=0\n", "cannot use max-secret-size setting: not a positive number of bytes"},
		{"[monitor]\nalert=maybe\n", "cannot use alert setting: .*"},
	} {
		s.writeSettings(c, t.content)
		_, err := unlock.ReadSettings()
		c.Check(err, ErrorMatches, t.err, Commentf("content: %q", t.content))
	}
}
