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

package unlock

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/snapcore/keepassxc-unlock/desktop/notification"
	"github.com/snapcore/keepassxc-unlock/dirs"
	"github.com/snapcore/keepassxc-unlock/dbusutil"
	"github.com/snapcore/keepassxc-unlock/i18n"
	"github.com/snapcore/keepassxc-unlock/integrity"
	"github.com/snapcore/keepassxc-unlock/logger"
	"github.com/snapcore/keepassxc-unlock/osutil"
)

// alertVerificationFailure tells the user on their desktop that the
// process claiming the KeePassXC bus name did not pass verification,
// which deserves attention even if it is only a forgotten re-run of
// keepassxc-unlock-setup after an update.
func (u *Unlocker) alertVerificationFailure(result *integrity.Result) {
	summary := i18n.G("KeePassXC verification failed")
	var body string
	if result.Cause == integrity.CauseNoBaseline {
		body = fmt.Sprintf(i18n.G("No trusted digest is recorded for KeePassXC, so the process with PID %d running %s was not unlocked. Run 'sudo keepassxc-unlock-setup' to vet the installed KeePassXC."), result.PID, result.Exe)
	} else {
		body = fmt.Sprintf(i18n.G("The process with PID %d running %s does not match the vetted KeePassXC digest. If KeePassXC was updated, run 'sudo keepassxc-unlock-setup' again, otherwise check whether that process is snooping on the session bus."), result.PID, result.Exe)
	}

	if err := u.notifyDesktop(summary, body); err != nil {
		logger.Debugf("cannot send desktop notification over D-Bus: %v", err)
		if err := u.notifySend(summary, body); err != nil {
			logger.Noticef("cannot alert uid %d about the failed verification: %v", u.uid, err)
		}
	}
}

// notifyDesktop sends the alert straight over the notification service
// on the user's session bus.
func (u *Unlocker) notifyDesktop(summary, body string) error {
	return runAsUser(u.uid, u.gid, func() error {
		conn, err := dbusutil.UserSessionBus(u.uid)
		if err != nil {
			return err
		}
		defer conn.Close()

		_, err = notification.New(conn).SendNotification(&notification.Message{
			AppName: "keepassxc-unlock",
			Icon:    "system-lock-screen",
			Summary: summary,
			Body:    body,
			Hints: []notification.Hint{
				notification.WithUrgency(notification.CriticalUrgency),
			},
		})
		return err
	})
}

// notifySend falls back to the notify-send tool, spawned under the
// user's identity with runuser. Child processes do not inherit the
// thread scoped uid switch used elsewhere, so the switch has to happen
// in the child itself.
func (u *Unlocker) notifySend(summary, body string) error {
	if !osutil.ExecutableExists("notify-send") {
		return fmt.Errorf("notify-send is not installed")
	}

	cmd := exec.Command("runuser", "-u", u.username, "--",
		"notify-send", "-i", "system-lock-screen", "-u", "critical", "-t", "0",
		summary, body)
	cmd.Env = append(os.Environ(),
		"DBUS_SESSION_BUS_ADDRESS=unix:path="+dirs.UserSessionBusSocket(uint32(u.uid)))
	if output, err := cmd.CombinedOutput(); err != nil {
		return osutil.OutputErr(output, err)
	}
	return nil
}
