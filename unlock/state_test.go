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

package unlock_test

import (
	. "gopkg.in/check.v1"

	"github.com/snapcore/keepassxc-unlock/logind"
	"github.com/snapcore/keepassxc-unlock/unlock"
)

type stateSuite struct{}

var _ = Suite(&stateSuite{})

func (s *stateSuite) TestTransition(c *C) {
	type st = unlock.SessionState

	for i, t := range []struct {
		state  st
		ev     logind.Event
		next   st
		action unlock.Action
	}{
		// clearing the lock opens databases
		{st{Locked: true, Active: true}, logind.LockedHintChanged{Locked: false}, st{Locked: false, Active: true}, unlock.UnlockAction},
		{st{Locked: true, Active: false}, logind.LockedHintChanged{Locked: false}, st{Locked: false, Active: false}, unlock.UnlockAction},
		// locking just records the state
		{st{Locked: false, Active: true}, logind.LockedHintChanged{Locked: true}, st{Locked: true, Active: true}, unlock.NoAction},
		// a hint matching the known state changes nothing
		{st{Locked: false, Active: true}, logind.LockedHintChanged{Locked: false}, st{Locked: false, Active: true}, unlock.NoAction},
		{st{Locked: true, Active: true}, logind.LockedHintChanged{Locked: true}, st{Locked: true, Active: true}, unlock.NoAction},
		// becoming the active session while unlocked opens databases
		{st{Locked: false, Active: false}, logind.ActiveChanged{Active: true}, st{Locked: false, Active: true}, unlock.ActivateAction},
		// becoming active while locked just records the state
		{st{Locked: true, Active: false}, logind.ActiveChanged{Active: true}, st{Locked: true, Active: true}, unlock.NoAction},
		// going to the background just records the state
		{st{Locked: false, Active: true}, logind.ActiveChanged{Active: false}, st{Locked: false, Active: false}, unlock.NoAction},
		{st{Locked: true, Active: true}, logind.ActiveChanged{Active: false}, st{Locked: true, Active: false}, unlock.NoAction},
		// repeated activity state changes nothing
		{st{Locked: false, Active: true}, logind.ActiveChanged{Active: true}, st{Locked: false, Active: true}, unlock.NoAction},
		// removal terminates whatever the state
		{st{Locked: false, Active: true}, logind.SessionRemoved{ID: "7"}, st{Locked: false, Active: true}, unlock.TerminateAction},
		{st{Locked: true, Active: false}, logind.SessionRemoved{ID: "7"}, st{Locked: true, Active: false}, unlock.TerminateAction},
	} {
		comment := Commentf("case %d: %#v on %#v", i, t.ev, t.state)
		next, action := unlock.Transition(t.state, t.ev)
		c.Check(next, Equals, t.next, comment)
		c.Check(action, Equals, t.action, comment)
	}
}

func (s *stateSuite) TestTransitionLockCycleUnlocksOnce(c *C) {
	state := unlock.SessionState{Locked: false, Active: true}
	unlocks := 0
	for _, ev := range []logind.Event{
		logind.LockedHintChanged{Locked: true},
		logind.LockedHintChanged{Locked: true},
		logind.LockedHintChanged{Locked: false},
		logind.LockedHintChanged{Locked: false},
	} {
		var action unlock.Action
		state, action = unlock.Transition(state, ev)
		if action == unlock.UnlockAction {
			unlocks++
		}
	}
	c.Check(unlocks, Equals, 1)
	c.Check(state, Equals, unlock.SessionState{Locked: false, Active: true})
}

func (s *stateSuite) TestTransitionActivityWhileLockedDefersUnlock(c *C) {
	// switching back and forth to a locked session must not open
	// anything, only the eventual unlock does
	state := unlock.SessionState{Locked: true, Active: false}
	for _, ev := range []logind.Event{
		logind.ActiveChanged{Active: true},
		logind.ActiveChanged{Active: false},
		logind.ActiveChanged{Active: true},
	} {
		var action unlock.Action
		state, action = unlock.Transition(state, ev)
		c.Check(action, Equals, unlock.NoAction)
	}

	state, action := unlock.Transition(state, logind.LockedHintChanged{Locked: false})
	c.Check(action, Equals, unlock.UnlockAction)
	c.Check(state, Equals, unlock.SessionState{Locked: false, Active: true})
}

func (s *stateSuite) TestTransitionActivityCycleActivatesOnce(c *C) {
	state := unlock.SessionState{Locked: false, Active: true}
	activations := 0
	for _, ev := range []logind.Event{
		logind.ActiveChanged{Active: false},
		logind.ActiveChanged{Active: true},
		logind.ActiveChanged{Active: true},
		logind.ActiveChanged{Active: false},
	} {
		var action unlock.Action
		state, action = unlock.Transition(state, ev)
		if action == unlock.ActivateAction {
			activations++
		}
	}
	c.Check(activations, Equals, 1)
	c.Check(state, Equals, unlock.SessionState{Locked: false, Active: false})
}
