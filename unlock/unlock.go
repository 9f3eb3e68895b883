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

// Package unlock opens configured KeePassXC databases in reaction to
// login session events. It watches one session through logind, decides
// with a small state machine when an unlock attempt is due and then
// runs the unlock steps: re-check the lock hint, find the KeePassXC
// process on the user's session bus, verify its executable against the
// digest recorded at setup time and hand over the decrypted passwords.
package unlock

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"gopkg.in/retry.v1"

	"github.com/snapcore/keepassxc-unlock/dbusutil"
	"github.com/snapcore/keepassxc-unlock/integrity"
	"github.com/snapcore/keepassxc-unlock/kpxc"
	"github.com/snapcore/keepassxc-unlock/logger"
	"github.com/snapcore/keepassxc-unlock/logind"
	"github.com/snapcore/keepassxc-unlock/osutil"
	"github.com/snapcore/keepassxc-unlock/osutil/sys"
	"github.com/snapcore/keepassxc-unlock/secrets"
)

var (
	runAsUser = sys.RunAsUidGid

	serviceWaitStrategy = func(wait time.Duration) retry.Strategy {
		return retry.LimitTime(wait, retry.Regular{
			Delay: time.Second,
			Min:   1,
		})
	}
)

// Unlocker opens the configured databases of one user in the KeePassXC
// instance running in one of their login sessions.
type Unlocker struct {
	logind   *logind.Client
	session  dbus.ObjectPath
	uid      sys.UserID
	gid      sys.GroupID
	username string
	settings *Settings
}

// NewUnlocker prepares unlocking for the given user and session. The
// logind client is used to re-check the session lock state before any
// passwords are touched.
func NewUnlocker(client *logind.Client, session dbus.ObjectPath, uid uint32, settings *Settings) (*Unlocker, error) {
	usr, err := osutil.LookupUid(uid)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve uid %d: %v", uid, err)
	}
	uidID, gidID, err := osutil.UidGid(usr)
	if err != nil {
		return nil, err
	}
	return &Unlocker{
		logind:   client,
		session:  session,
		uid:      uidID,
		gid:      gidID,
		username: usr.Username,
		settings: settings,
	}, nil
}

// UnlockDatabases opens all of the user's configured databases in the
// running KeePassXC, waiting up to wait for its service to appear on
// the session bus. Asking KeePassXC to open an already open database
// is a no-op there, so redundant invocations are safe.
//
// Failures are logged rather than returned: one broken database record
// must not block the remaining ones, and the monitor keeps running
// either way.
func (u *Unlocker) UnlockDatabases(wait time.Duration) {
	// the hint may have flipped back since the triggering signal
	// fired, and a hint that cannot be read counts as still locked
	locked, err := u.logind.SessionLocked(u.session)
	if err != nil {
		logger.Debugf("cannot read the locked hint of session %s: %v", u.session, err)
		return
	}
	if locked {
		logger.Debugf("session %s is locked again, not opening databases", u.session)
		return
	}

	configs, err := UserDatabaseConfigs(uint32(u.uid))
	if err != nil {
		logger.Noticef("%v", err)
		return
	}
	if len(configs) == 0 {
		logger.Debugf("no database records for uid %d", u.uid)
		return
	}

	pid, err := u.waitServicePID(wait)
	if err != nil {
		logger.Noticef("cannot open databases for uid %d: %v", u.uid, err)
		return
	}

	if result := integrity.VerifyProcess(uint32(u.uid), pid); !result.Match() {
		logger.Noticef("refusing to open databases for uid %d: %s", u.uid, result.Reason)
		if u.settings.Alert {
			u.alertVerificationFailure(result)
		}
		return
	}

	for _, config := range configs {
		if err := u.openDatabase(config); err != nil {
			logger.Noticef("%v", err)
		}
	}
}

// waitServicePID polls the user's session bus once a second within the
// given wait and returns the pid of the process owning the KeePassXC
// bus name.
//
// The service is commonly not up yet right after login, so connection
// problems are only worth reporting once the wait is exhausted.
func (u *Unlocker) waitServicePID(wait time.Duration) (uint32, error) {
	var pid uint32
	found := false
	for attempt := retry.Start(serviceWaitStrategy(wait), nil); attempt.Next(); {
		final := !attempt.More()
		if err := runAsUser(u.uid, u.gid, func() error {
			conn, err := dbusutil.UserSessionBus(u.uid)
			if err != nil {
				if final {
					logger.Noticef("cannot connect to the session bus of uid %d: %v", u.uid, err)
				}
				return nil
			}
			defer conn.Close()
			p, err := kpxc.ServicePID(conn)
			if err != nil {
				logger.Debugf("keepassxc is not yet on the session bus of uid %d: %v", u.uid, err)
				return nil
			}
			pid = p
			found = true
			return nil
		}); err != nil {
			return 0, err
		}
		if found {
			return pid, nil
		}
	}
	return 0, kpxc.ErrServiceUnavailable
}

// openDatabase decrypts the record's password and hands it to the
// KeePassXC instance on the user's session bus. The plaintext is wiped
// before returning on every path.
func (u *Unlocker) openDatabase(config *DatabaseConfig) error {
	secret, err := secrets.Decrypt(config.Name, config.Ciphertext, u.settings.MaxSecretSize)
	if err != nil {
		return err
	}
	defer secrets.Wipe(secret)

	return runAsUser(u.uid, u.gid, func() error {
		conn, err := dbusutil.UserSessionBus(u.uid)
		if err != nil {
			return fmt.Errorf("cannot connect to the session bus of uid %d: %v", u.uid, err)
		}
		defer conn.Close()
		// the D-Bus call needs a string, accepting one transient copy
		return kpxc.OpenDatabase(conn, config.Database, string(secret), config.KeyFile)
	})
}
