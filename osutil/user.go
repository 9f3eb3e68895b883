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

package osutil

import (
	"fmt"
	"os/user"
	"strconv"

	"github.com/snapcore/keepassxc-unlock/osutil/sys"
)

var (
	userLookup   = user.Lookup
	userLookupId = user.LookupId
)

// LookupUid looks up the passwd entry of the given user id.
func LookupUid(uid uint32) (*user.User, error) {
	return userLookupId(strconv.FormatUint(uint64(uid), 10))
}

// ResolveUser looks up the passwd entry for a command line user
// argument that may be either a user name or a numeric id.
func ResolveUser(arg string) (*user.User, error) {
	var usr *user.User
	var err error
	if _, perr := strconv.ParseUint(arg, 10, 32); perr == nil {
		usr, err = userLookupId(arg)
	} else {
		usr, err = userLookup(arg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot find user %q: %v", arg, err)
	}
	return usr, nil
}

// UidGid returns the uid and gid of the given user, as uint32s.
func UidGid(u *user.User) (sys.UserID, sys.GroupID, error) {
	// XXX this will be wrong for high uids on 32-bit arches (for now)
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return sys.FlagID, sys.FlagID, fmt.Errorf("cannot parse user id %s: %s", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return sys.FlagID, sys.FlagID, fmt.Errorf("cannot parse group id %s: %s", u.Gid, err)
	}

	return sys.UserID(uid), sys.GroupID(gid), nil
}
