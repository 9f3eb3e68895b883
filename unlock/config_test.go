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
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"

	"github.com/snapcore/keepassxc-unlock/dirs"
	"github.com/snapcore/keepassxc-unlock/logger"
	"github.com/snapcore/keepassxc-unlock/testutil"
	"github.com/snapcore/keepassxc-unlock/unlock"
)

type configSuite struct {
	testutil.BaseTest
}

var _ = Suite(&configSuite{})

func (s *configSuite) SetUpTest(c *C) {
	s.BaseTest.SetUpTest(c)
	dirs.SetRootDir(c.MkDir())
	s.AddCleanup(func() { dirs.SetRootDir("/") })
}

func writeDatabaseRecord(c *C, uid uint32, name string, content []byte) string {
	path := filepath.Join(dirs.UserConfigDir(uid), name)
	c.Assert(os.MkdirAll(filepath.Dir(path), 0700), IsNil)
	c.Assert(os.WriteFile(path, content, 0600), IsNil)
	return path
}

func (s *configSuite) TestParseDatabaseConfig(c *C) {
	payload := "ciphertext with\nnewlines and \x00\x01 binary bytes"
	path := writeDatabaseRecord(c, 1000, "work.conf",
		[]byte("DB=/home/alice/work.kdbx\nKEY=/home/alice/work.keyx\nPASSWORD:\n"+payload))

	config, err := unlock.ParseDatabaseConfig(path)
	c.Assert(err, IsNil)
	c.Check(config.Name, Equals, "work")
	c.Check(config.Database, Equals, "/home/alice/work.kdbx")
	c.Check(config.KeyFile, Equals, "/home/alice/work.keyx")
	c.Check(config.Ciphertext, DeepEquals, []byte(payload))
}

func (s *configSuite) TestParseDatabaseConfigNoKeyFile(c *C) {
	path := writeDatabaseRecord(c, 1000, "personal.conf",
		[]byte("DB=/home/alice/personal.kdbx\nPASSWORD:\nblob"))

	config, err := unlock.ParseDatabaseConfig(path)
	c.Assert(err, IsNil)
	c.Check(config.Name, Equals, "personal")
	c.Check(config.Database, Equals, "/home/alice/personal.kdbx")
	c.Check(config.KeyFile, Equals, "")
	c.Check(config.Ciphertext, DeepEquals, []byte("blob"))
}

func (s *configSuite) TestParseDatabaseConfigCRLF(c *C) {
	path := writeDatabaseRecord(c, 1000, "work.conf",
		[]byte("DB=/home/alice/work.kdbx\r\nPASSWORD:\r\nblob"))

	config, err := unlock.ParseDatabaseConfig(path)
	c.Assert(err, IsNil)
	c.Check(config.Database, Equals, "/home/alice/work.kdbx")
	c.Check(config.Ciphertext, DeepEquals, []byte("blob"))
}

func (s *configSuite) TestParseDatabaseConfigErrors(c *C) {
	for _, t := range []struct {
		content string
		err     string
	}{
		{"PASSWORD:\nblob", `cannot use database record ".*/work\.conf": no DB entry`},
		{"DB=/home/alice/work.kdbx\n", `cannot use database record ".*/work\.conf": no PASSWORD entry`},
		{"DB=/home/alice/work.kdbx\nPASSWORD:\n", `cannot use database record ".*/work\.conf": empty encrypted payload`},
		{"DB=/home/alice/work.kdbx\nwhat is this\nPASSWORD:\nblob", `cannot parse database record ".*/work\.conf": unexpected line "what is this"`},
	} {
		path := writeDatabaseRecord(c, 1000, "work.conf", []byte(t.content))
		_, err := unlock.ParseDatabaseConfig(path)
		c.Check(err, ErrorMatches, t.err, Commentf("content: %q", t.content))
	}
}

func (s *configSuite) TestParseDatabaseConfigMissingFile(c *C) {
	_, err := unlock.ParseDatabaseConfig(filepath.Join(c.MkDir(), "gone.conf"))
	c.Assert(err, ErrorMatches, "cannot read database record: .*no such file or directory")
}

func (s *configSuite) TestUserDatabaseConfigsSorted(c *C) {
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		writeDatabaseRecord(c, 1000, name+".conf",
			[]byte(fmt.Sprintf("DB=/home/alice/%s.kdbx\nPASSWORD:\nblob", name)))
	}

	configs, err := unlock.UserDatabaseConfigs(1000)
	c.Assert(err, IsNil)
	c.Assert(configs, HasLen, 3)
	var names []string
	for _, config := range configs {
		names = append(names, config.Name)
	}
	c.Check(names, DeepEquals, []string{"alpha", "bravo", "charlie"})
}

func (s *configSuite) TestUserDatabaseConfigsSkipsUnparseable(c *C) {
	buf, restore := logger.MockLogger()
	defer restore()

	writeDatabaseRecord(c, 1000, "alpha.conf", []byte("DB=/home/alice/alpha.kdbx\nPASSWORD:\nblob"))
	writeDatabaseRecord(c, 1000, "broken.conf", []byte("no marker at all"))
	writeDatabaseRecord(c, 1000, "charlie.conf", []byte("DB=/home/alice/charlie.kdbx\nPASSWORD:\nblob"))

	configs, err := unlock.UserDatabaseConfigs(1000)
	c.Assert(err, IsNil)
	c.Assert(configs, HasLen, 2)
	c.Check(configs[0].Name, Equals, "alpha")
	c.Check(configs[1].Name, Equals, "charlie")
	c.Check(buf.String(), Matches, `(?s).*skipping database record: cannot parse database record ".*/broken\.conf".*`)
}

func (s *configSuite) TestUserDatabaseConfigsNone(c *C) {
	configs, err := unlock.UserDatabaseConfigs(1000)
	c.Assert(err, IsNil)
	c.Check(configs, HasLen, 0)
}

func (s *configSuite) TestHasDatabaseConfigs(c *C) {
	c.Check(unlock.HasDatabaseConfigs(1000), Equals, false)

	writeDatabaseRecord(c, 1000, "work.conf", []byte("DB=/home/alice/work.kdbx\nPASSWORD:\nblob"))
	c.Check(unlock.HasDatabaseConfigs(1000), Equals, true)
	c.Check(unlock.HasDatabaseConfigs(1001), Equals, false)
}
