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
	"os/user"

	. "gopkg.in/check.v1"

	"github.com/snapcore/keepassxc-unlock/osutil"
	"github.com/snapcore/keepassxc-unlock/osutil/sys"
)

type userSuite struct{}

var _ = Suite(&userSuite{})

func (s *userSuite) TestLookupUid(c *C) {
	restore := osutil.MockUserLookupId(func(uid string) (*user.User, error) {
		c.Check(uid, Equals, "1234")
		return &user.User{Uid: "1234", Gid: "5678", Username: "gerald"}, nil
	})
	defer restore()

	usr, err := osutil.LookupUid(1234)
	c.Assert(err, IsNil)
	c.Check(usr.Username, Equals, "gerald")
}

func (s *userSuite) TestResolveUserByName(c *C) {
	restore := osutil.MockUserLookup(func(username string) (*user.User, error) {
		c.Check(username, Equals, "gerald")
		return &user.User{Uid: "1234", Username: "gerald"}, nil
	})
	defer restore()

	usr, err := osutil.ResolveUser("gerald")
	c.Assert(err, IsNil)
	c.Check(usr.Uid, Equals, "1234")
}

func (s *userSuite) TestResolveUserByUid(c *C) {
	restore := osutil.MockUserLookupId(func(uid string) (*user.User, error) {
		c.Check(uid, Equals, "1234")
		return &user.User{Uid: "1234", Username: "gerald"}, nil
	})
	defer restore()

	usr, err := osutil.ResolveUser("1234")
	c.Assert(err, IsNil)
	c.Check(usr.Username, Equals, "gerald")
}

func (s *userSuite) TestResolveUserUnknown(c *C) {
	restore := osutil.MockUserLookup(func(username string) (*user.User, error) {
		return nil, user.UnknownUserError(username)
	})
	defer restore()

	_, err := osutil.ResolveUser("gerald")
	c.Assert(err, ErrorMatches, `cannot find user "gerald": user: unknown user gerald`)
}

func (s *userSuite) TestUidGid(c *C) {
	for k, t := range map[string]struct {
		User *user.User
		Uid  sys.UserID
		Gid  sys.GroupID
		Err  string
	}{
		"happy":   {&user.User{Uid: "10", Gid: "10"}, 10, 10, ""},
		"bad uid": {&user.User{Uid: "x", Gid: "10"}, sys.FlagID, sys.FlagID, "cannot parse user id x: .*"},
		"bad gid": {&user.User{Uid: "10", Gid: "x"}, sys.FlagID, sys.FlagID, "cannot parse group id x: .*"},
	} {
		uid, gid, err := osutil.UidGid(t.User)
		c.Check(uid, Equals, t.Uid, Commentf(k))
		c.Check(gid, Equals, t.Gid, Commentf(k))
		if t.Err == "" {
			c.Check(err, IsNil, Commentf(k))
		} else {
			c.Check(err, ErrorMatches, t.Err, Commentf(k))
		}
	}
}
