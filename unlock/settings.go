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
	"time"

	"github.com/mvo5/goconfigparser"

	"github.com/snapcore/keepassxc-unlock/dirs"
)

// Settings are the monitor tunables, optionally overridden in the
// system wide settings file.
type Settings struct {
	// StartupWait bounds the wait for KeePassXC when monitoring starts.
	StartupWait time.Duration
	// UnlockWait bounds the wait when the session was just unlocked.
	UnlockWait time.Duration
	// ActivateWait bounds the wait when the session was switched to.
	ActivateWait time.Duration
	// MaxSecretSize is the largest accepted decrypted password size.
	MaxSecretSize int
	// Alert controls the desktop alert on a failed verification of the
	// KeePassXC executable.
	Alert bool
}

// DefaultSettings returns the built-in monitor tunables.
func DefaultSettings() *Settings {
	return &Settings{
		StartupWait:   60 * time.Second,
		UnlockWait:    10 * time.Second,
		ActivateWait:  30 * time.Second,
		MaxSecretSize: 4095,
		Alert:         true,
	}
}

// ReadSettings returns the monitor tunables with any overrides from
// the settings file applied. A missing file or missing options keep
// the defaults, options with unusable values are an error.
func ReadSettings() (*Settings, error) {
	settings := DefaultSettings()

	cfg := goconfigparser.New()
	if err := cfg.ReadFile(dirs.SettingsFile); err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("cannot read settings file: %v", err)
	}

	for _, wait := range []struct {
		option string
		value  *time.Duration
	}{
		{"startup-wait", &settings.StartupWait},
		{"unlock-wait", &settings.UnlockWait},
		{"activate-wait", &settings.ActivateWait},
	} {
		secs, err := cfg.Getint("monitor", wait.option)
		switch {
		case isMissingOption(err):
			continue
		case err != nil:
			return nil, fmt.Errorf("cannot use %s setting: %v", wait.option, err)
		case secs <= 0:
			return nil, fmt.Errorf("cannot use %s setting: not a positive number of seconds", wait.option)
		}
		*wait.value = time.Duration(secs) * time.Second
	}

	size, err := cfg.Getint("monitor", "max-secret-size")
	switch {
	case isMissingOption(err):
		// keep the default
	case err != nil:
		return nil, fmt.Errorf("cannot use max-secret-size setting: %v", err)
	case size <= 0:
		return nil, fmt.Errorf("cannot use max-secret-size setting: not a positive number of bytes")
	default:
		settings.MaxSecretSize = size
	}

	alert, err := cfg.Getbool("monitor", "alert")
	switch {
	case isMissingOption(err):
		// keep the default
	case err != nil:
		return nil, fmt.Errorf("cannot use alert setting: %v", err)
	default:
		settings.Alert = alert
	}

	return settings, nil
}

// isMissingOption tells an absent option or section apart from a
// present option with an unusable value.
func isMissingOption(err error) bool {
	switch err.(type) {
	case *goconfigparser.NoOptionError, *goconfigparser.NoSectionError:
		return true
	}
	return false
}
