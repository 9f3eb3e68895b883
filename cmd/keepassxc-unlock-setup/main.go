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

package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/snapcore/keepassxc-unlock/dirs"
	"github.com/snapcore/keepassxc-unlock/i18n"
	"github.com/snapcore/keepassxc-unlock/logger"
	"github.com/snapcore/keepassxc-unlock/osutil"
	"github.com/snapcore/keepassxc-unlock/secrets"
)

// Standard streams, redirected for testing.
var (
	Stdin  io.Reader = os.Stdin
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr

	ReadPassword = terminal.ReadPassword

	osGeteuid  = os.Geteuid
	isStdinTTY = terminal.IsTerminal(0)

	opts struct {
		Executable string `long:"executable" description:"path of the KeePassXC executable to vet (default: keepassxc found in PATH)"`
		KeyFile    string `long:"key-file" description:"key file that unlocks the database together with the password"`
		Positional struct {
			User     string `positional-arg-name:"<user>"`
			Database string `positional-arg-name:"<database>"`
		} `positional-args:"true" required:"true"`
	}
	parser *flags.Parser = flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
)

const (
	shortHelp = "Configure a KeePassXC database for automatic unlocking"
	longHelp  = `
keepassxc-unlock-setup records the trusted digest of the installed
KeePassXC executable and stores the password of the given database
encrypted with systemd-creds, so that the unlock service can open the
database whenever the user's session is unlocked. The password is read
from the terminal, or from stdin for scripted use.
`
)

func init() {
	err := logger.SimpleSetup()
	if err != nil {
		fmt.Fprintf(Stderr, "WARNING: failed to activate logging: %v\n", err)
	}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string) error {
	parser.ShortDescription = shortHelp
	parser.LongDescription = longHelp

	rest, err := parser.ParseArgs(args)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("too many arguments for command")
	}
	return nil
}

// recordName derives the credential name from the database file name,
// e.g. /home/alice/passwords.kdbx yields passwords.
func recordName(database string) string {
	base := filepath.Base(database)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// writeTrustedDigest hashes the executable and records the digest as
// the user's baseline, creating the config directory on first use.
func writeTrustedDigest(uid uint32, executable string) error {
	digest, err := osutil.Sha512sum(executable)
	if err != nil {
		return fmt.Errorf("cannot hash %s: %v", executable, err)
	}
	if err := os.MkdirAll(dirs.UserConfigDir(uid), 0700); err != nil {
		return err
	}
	return osutil.AtomicWriteFile(dirs.TrustedDigestFile(uid), []byte(digest+"\n"), 0600, 0)
}

// writeRecord writes the database config record: the database path,
// the optional key file and the encrypted password payload.
func writeRecord(uid uint32, name, database, keyFile string, ciphertext []byte) error {
	buf := bytes.NewBufferString("DB=" + database + "\n")
	if keyFile != "" {
		buf.WriteString("KEY=" + keyFile + "\n")
	}
	buf.WriteString("PASSWORD:\n")
	buf.Write(ciphertext)

	path := filepath.Join(dirs.UserConfigDir(uid), name+".conf")
	return osutil.AtomicWriteFile(path, buf.Bytes(), 0600, 0)
}

// readPassword asks for the password of the database, with the echo
// suppressed when stdin is a terminal. Piped input is read as a single
// line, for scripted use.
func readPassword(database string) ([]byte, error) {
	if isStdinTTY {
		fmt.Fprintf(Stdout, i18n.G("Password for %s: "), database)
		password, err := ReadPassword(0)
		fmt.Fprint(Stdout, "\n")
		if err != nil {
			return nil, err
		}
		return password, nil
	}

	line, err := bufio.NewReader(Stdin).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, fmt.Errorf("cannot read password from stdin: %v", err)
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

func run(args []string) error {
	if err := parseArgs(args); err != nil {
		return err
	}

	if osGeteuid() != 0 {
		return fmt.Errorf("must be run as root")
	}

	usr, err := osutil.ResolveUser(opts.Positional.User)
	if err != nil {
		return err
	}
	uidID, _, err := osutil.UidGid(usr)
	if err != nil {
		return err
	}
	uid := uint32(uidID)

	database := opts.Positional.Database
	if !filepath.IsAbs(database) {
		return fmt.Errorf("database path %q is not absolute", database)
	}
	if opts.KeyFile != "" && !filepath.IsAbs(opts.KeyFile) {
		return fmt.Errorf("key file path %q is not absolute", opts.KeyFile)
	}
	name := recordName(database)
	if name == "" {
		return fmt.Errorf("cannot derive a credential name from %q", database)
	}

	executable := opts.Executable
	if executable == "" {
		executable, err = exec.LookPath("keepassxc")
		if err != nil {
			return fmt.Errorf("cannot find the keepassxc executable: %v", err)
		}
	}

	if err := writeTrustedDigest(uid, executable); err != nil {
		return err
	}
	fmt.Fprintf(Stdout, i18n.G("Recorded the digest of %s for user %s.\n"), executable, usr.Username)

	password, err := readPassword(database)
	if err != nil {
		return err
	}
	defer secrets.Wipe(password)
	if len(password) == 0 {
		return fmt.Errorf("cannot use an empty password")
	}

	ciphertext, err := secrets.Encrypt(name, password)
	if err != nil {
		return err
	}

	if err := writeRecord(uid, name, database, opts.KeyFile, ciphertext); err != nil {
		return err
	}
	fmt.Fprintf(Stdout, i18n.G("Stored the encrypted password for %s.\n"), database)
	return nil
}
