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
	"github.com/snapcore/keepassxc-unlock/logind"
)

// SessionState is the remembered lock and activity state of the
// monitored login session. It is mutated only by Transition.
type SessionState struct {
	Locked bool
	Active bool
}

// Action is what a session event transition asks the monitor to do.
type Action int

const (
	// NoAction records the transition and nothing else.
	NoAction Action = iota
	// UnlockAction opens the databases after the session lock was
	// cleared, bounded by the short unlock wait.
	UnlockAction
	// ActivateAction opens the databases after the session became the
	// active one, bounded by the longer activation wait.
	ActivateAction
	// TerminateAction ends monitoring, the session is gone.
	TerminateAction
)

// Transition feeds one session event into the state machine and
// returns the successor state together with the action to take.
//
// The lock state drives unlocking: only a transition from locked to
// unlocked opens databases. Activity transitions open databases only
// while the session is unlocked; while it is locked they just record
// the new state, so that a later unlock knows whether the session is
// in the foreground.
func Transition(state SessionState, ev logind.Event) (SessionState, Action) {
	switch ev := ev.(type) {
	case logind.LockedHintChanged:
		next := SessionState{Locked: ev.Locked, Active: state.Active}
		if state.Locked && !ev.Locked {
			return next, UnlockAction
		}
		return next, NoAction
	case logind.ActiveChanged:
		next := SessionState{Locked: state.Locked, Active: ev.Active}
		if !state.Locked && !state.Active && ev.Active {
			return next, ActivateAction
		}
		return next, NoAction
	case logind.SessionRemoved:
		return state, TerminateAction
	}
	return state, NoAction
}
