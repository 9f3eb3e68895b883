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

	opts struct {
		Positional struct {
			User string `positional-arg-name:"<user>"`
		} `positional-args:"true" required:"true"`
	}
	parser *flags.Parser = flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
)

const (
	shortHelp = "Open KeePassXC databases when a login session is unlocked"
	longHelp  = `
keepassxc-unlock watches the graphical login session of the given user
and asks the KeePassXC running in it to open the configured databases
whenever the session is unlocked or switched to. It is normally started
at login time through the keepassxc-unlock@.service template unit.
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

// findSession returns the object path of the session to watch. A
// SESSION_PATH handed in through the environment file written at login
// time is preferred, after checking that it still names a graphical
// session of the user. Without one the daemon waits for an eligible
// session to register with logind.
func findSession(client *logind.Client, uid uint32) (dbus.ObjectPath, error) {
	if path := os.Getenv("SESSION_PATH"); path != "" {
		session := dbus.ObjectPath(path)
		if !session.IsValid() {
			logger.Noticef("cannot use session path %q from the environment", path)
		} else {
			owner, err := client.SessionOwner(session)
			if err == nil && owner == uid {
				graphical, gerr := client.IsGraphicalSession(session)
				err = gerr
				if err == nil && graphical {
					return session, nil
				}
			}
			if err != nil {
				logger.Noticef("cannot use session %s from the environment: %v", session, err)
			} else {
				logger.Noticef("session %s from the environment is not a graphical session of uid %d", session, uid)
			}
		}
	}

	session, err := client.WaitSession(uid)
	if err != nil {
		return "", err
	}
	return session.Path, nil
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

	if !unlock.HasDatabaseConfigs(uid) {
		fmt.Fprintf(Stdout, "no databases are configured for user %s, nothing to do\n", usr.Username)
		return nil
	}

	settings, err := unlock.ReadSettings()
	if err != nil {
		return err
	}

	conn, err := dbusutil.SystemBus()
	if err != nil {
		return fmt.Errorf("cannot connect to the system bus: %v", err)
	}
	client := logind.New(conn)

	session, err := findSession(client, uid)
	if err != nil {
		if err == logind.ErrNoEligibleSession {
			fmt.Fprintf(Stdout, "no graphical session of user %s showed up, nothing to do\n", usr.Username)
			return nil
		}
		return err
	}
	logger.Noticef("watching login session %s of user %s", session, usr.Username)

	unlocker, err := unlock.NewUnlocker(client, session, uid, settings)
	if err != nil {
		return err
	}
	monitor, err := unlock.NewMonitor(client, unlocker, session, settings)
	if err != nil {
		return fmt.Errorf("cannot watch session %s: %v", session, err)
	}

	monitor.Loop()

	if err := sdNotify("READY=1"); err != nil {
		logger.Debugf("cannot notify systemd: %v", err)
	}

	ch, stop := signalNotify(syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case sig := <-ch:
		fmt.Fprintf(Stdout, "Exiting on %s.\n", sig)
	case <-monitor.Dying():
		// the session went away or the monitor failed
	}

	if err := sdNotify("STOPPING=1"); err != nil {
		logger.Debugf("cannot notify systemd: %v", err)
	}

	err = monitor.Stop()
	if err == unlock.ErrSessionGone {
		// the session ending is the normal way for the service to finish
		return nil
	}
	return err
}

func signalNotifyImpl(sig ...os.Signal) (ch chan os.Signal, stop func()) {
	ch = make(chan os.Signal, len(sig))
	signal.Notify(ch, sig...)
	stop = func() { signal.Stop(ch) }
	return ch, stop
}
