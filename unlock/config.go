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
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"

	"github.com/snapcore/keepassxc-unlock/dirs"
	"github.com/snapcore/keepassxc-unlock/logger"
)

// DatabaseConfig is one database record authored by
// keepassxc-unlock-setup: which database to open, optionally with
// which key file, and the encrypted password to present for it.
type DatabaseConfig struct {
	// Name is the credential name the password was encrypted under,
	// derived from the record file name without the .conf suffix.
	Name string
	// Database is the path of the KeePassXC database file.
	Database string
	// KeyFile is the optional key file path, empty when none is used.
	KeyFile string
	// Ciphertext is the encrypted password payload.
	Ciphertext []byte
}

// ParseDatabaseConfig loads one database record. The format is line
// oriented: a DB= line naming the database, an optional KEY= line
// naming the key file, then a PASSWORD: marker line with the raw
// encrypted payload making up the rest of the file.
func ParseDatabaseConfig(path string) (*DatabaseConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read database record: %v", err)
	}

	config := &DatabaseConfig{
		Name: strings.TrimSuffix(filepath.Base(path), ".conf"),
	}

	seenPassword := false
	rest := data
	for len(rest) > 0 && !seenPassword {
		line := rest
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line, rest = rest[:i], rest[i+1:]
		} else {
			rest = nil
		}
		text := strings.TrimRight(string(line), "\r")
		switch {
		case strings.HasPrefix(text, "DB="):
			config.Database = strings.TrimPrefix(text, "DB=")
		case strings.HasPrefix(text, "KEY="):
			config.KeyFile = strings.TrimPrefix(text, "KEY=")
		case strings.HasPrefix(text, "PASSWORD:"):
			// all bytes past the marker line are the payload, they
			// must not be scanned as further entries
			seenPassword = true
			config.Ciphertext = rest
		default:
			return nil, fmt.Errorf("cannot parse database record %q: unexpected line %q", path, text)
		}
	}
	if config.Database == "" {
		return nil, fmt.Errorf("cannot use database record %q: no DB entry", path)
	}
	if !seenPassword {
		return nil, fmt.Errorf("cannot use database record %q: no PASSWORD entry", path)
	}
	if len(config.Ciphertext) == 0 {
		return nil, fmt.Errorf("cannot use database record %q: empty encrypted payload", path)
	}

	return config, nil
}

// UserDatabaseConfigs loads all database records of the given user, in
// sorted record name order. Records that do not parse are logged and
// skipped so that one broken record does not block the others.
func UserDatabaseConfigs(uid uint32) ([]*DatabaseConfig, error) {
	paths, err := doublestar.FilepathGlob(dirs.DatabaseConfigGlob(uid))
	if err != nil {
		return nil, fmt.Errorf("cannot enumerate database records for uid %d: %v", uid, err)
	}
	sort.Strings(paths)

	var configs []*DatabaseConfig
	for _, path := range paths {
		config, err := ParseDatabaseConfig(path)
		if err != nil {
			logger.Noticef("skipping database record: %v", err)
			continue
		}
		configs = append(configs, config)
	}
	return configs, nil
}

// HasDatabaseConfigs reports whether the given user has any database
// records at all, without parsing them.
func HasDatabaseConfigs(uid uint32) bool {
	paths, err := doublestar.FilepathGlob(dirs.DatabaseConfigGlob(uid))
	return err == nil && len(paths) > 0
}
