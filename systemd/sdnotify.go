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

package systemd

import (
	"fmt"

	"github.com/coreos/go-systemd/daemon"
)

var sdNotify = daemon.SdNotify

// SdNotify sends the given state string notification to systemd over
// the socket named in $NOTIFY_SOCKET.
func SdNotify(notifyState string) error {
	if notifyState == "" {
		return fmt.Errorf("cannot use empty notify state")
	}

	sent, err := sdNotify(false, notifyState)
	if err != nil {
		return err
	}
	if !sent {
		return fmt.Errorf("cannot find NOTIFY_SOCKET environment")
	}
	return nil
}
