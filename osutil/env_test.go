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

package osutil_test

import (
	"os"

	. "gopkg.in/check.v1"

	"github.com/snapcore/keepassxc-unlock/osutil"
)

type envSuite struct{}

var _ = Suite(&envSuite{})

func (s *envSuite) TestGetenvBool(c *C) {
	key := "__XYZZY__"
	os.Unsetenv(key)

	for _, s := range []string{"", "0", "f", "false", "FALSE", "potato"} {
		if s != "" {
			os.Setenv(key, s)
			c.Assert(os.Getenv(key), Equals, s)
		}
		c.Check(osutil.GetenvBool(key), Equals, false, Commentf("for %q", s))
		c.Check(osutil.GetenvBool(key, false), Equals, false, Commentf("for %q (dflt false)", s))
	}

	for _, s := range []string{"1", "t", "TRUE"} {
		os.Setenv(key, s)
		c.Assert(os.Getenv(key), Equals, s)
		c.Check(osutil.GetenvBool(key), Equals, true, Commentf("for %q", s))
		c.Check(osutil.GetenvBool(key, true), Equals, true, Commentf("for %q (dflt true)", s))
	}

	os.Unsetenv(key)
	c.Check(osutil.GetenvBool(key, true), Equals, true)
	os.Setenv(key, "whatever")
	c.Check(osutil.GetenvBool(key, true), Equals, true)
	os.Unsetenv(key)
}
