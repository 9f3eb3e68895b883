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
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/jessevdk/go-flags"

	"github.com/snapcore/keepassxc-unlock/dbusutil"
	"github.com/snapcore/keepassxc-unlock/dirs"
	"github.com/snapcore/keepassxc-unlock/logger"
	"github.com/snapcore/keepassxc-unlock/logind"
	"github.com/snapcore/keepassxc-unlock/osutil"
	"github.com/snapcore/keepassxc-unlock/systemd"
	"github.com/snapcore/keepassxc-unlock/unlock"
)

var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr

	osGeteuid    = os.Geteuid
	sdNotify     = systemd.SdNotify
	signalNotify = signalNotifyImpl

	opts   struct{}
	parser *flags.Parser = flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
)

const (
	shortHelp = "Start unlock services as users log in"
	longHelp  = `
keepassxc-unlock-monitor watches logind for new login sessions and
starts the keepassxc-unlock service of the session owner whenever the
session is a local graphical one and the owner has databases
configured.
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

// writeSessionEnv records the session path in the environment file of
// the user's service, so that the service watches the right session
// without consulting the registry again.
func writeSessionEnv(uid uint32, path dbus.ObjectPath) error {
	content := fmt.Sprintf("SESSION_PATH=%s\n", path)
	return osutil.AtomicWriteFile(dirs.SessionEnvFile(uid), []byte(content), 0600, 0)
}

// handleNewSession starts the unlock service of the session's owner,
// provided the session is a local graphical one and the owner has
// databases configured. All failures only affect this one session.
func handleNewSession(client *logind.Client, added logind.SessionNew) {
	graphical, err := client.IsGraphicalSession(added.Path)
	if err != nil {
		logger.Noticef("cannot inspect new session %s: %v", added.Path, err)
		return
	}
	if !graphical {
		logger.Debugf("session %s is not a local graphical session", added.Path)
		return
	}

	uid, err := client.SessionOwner(added.Path)
	if err != nil {
		logger.Noticef("cannot find the owner of session %s: %v", added.Path, err)
		return
	}
	if !unlock.HasDatabaseConfigs(uid) {
		logger.Debugf("no database records for uid %d, not starting the unlock service", uid)
		return
	}

	if err := writeSessionEnv(uid, added.Path); err != nil {
		logger.Noticef("cannot record session %s for uid %d: %v", added.Path, uid, err)
		return
	}

	unit := fmt.Sprintf("keepassxc-unlock@%d.service", uid)
	logger.Noticef("starting %s for session %s", unit, added.Path)
	if err := systemd.Start(unit); err != nil {
		logger.Noticef("cannot start %s: %v", unit, err)
	}
}

func run(args []string) error {
	if err := parseArgs(args); err != nil {
		return err
	}

	if osGeteuid() != 0 {
		return fmt.Errorf("must be run as root")
	}

	conn, err := dbusutil.SystemBus()
	if err != nil {
		return fmt.Errorf("cannot connect to the system bus: %v", err)
	}
	client := logind.New(conn)

	events, err := client.MonitorNewSessions()
	if err != nil {
		return err
	}
	defer events.Close()

	if err := sdNotify("READY=1"); err != nil {
		logger.Debugf("cannot notify systemd: %v", err)
	}
	defer func() {
		if err := sdNotify("STOPPING=1"); err != nil {
			logger.Debugf("cannot notify systemd: %v", err)
		}
	}()

	ch, stop := signalNotify(syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case sig := <-ch:
			fmt.Fprintf(Stdout, "Exiting on %s.\n", sig)
			return nil
		case sig, ok := <-events.Signals():
			if !ok {
				return fmt.Errorf("session signal stream closed unexpectedly")
			}
			for _, added := range logind.NewSessions(sig) {
				handleNewSession(client, added)
			}
		}
	}
}

func signalNotifyImpl(sig ...os.Signal) (ch chan os.Signal, stop func()) {
	ch = make(chan os.Signal, len(sig))
	signal.Notify(ch, sig...)
	stop = func() { signal.Stop(ch) }
	return ch, stop
}
