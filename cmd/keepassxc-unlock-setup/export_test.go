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

var (
	ParseArgs = parseArgs
	Run       = run
)

func MockOsGeteuid(f func() int) (restore func()) {
	origOsGeteuid := osGeteuid
	osGeteuid = f
	return func() { osGeteuid = origOsGeteuid }
}

func MockIsStdinTTY(t bool) (restore func()) {
	origIsStdinTTY := isStdinTTY
	isStdinTTY = t
	return func() { isStdinTTY = origIsStdinTTY }
}

func MockReadPassword(f func(fd int) ([]byte, error)) (restore func()) {
	origReadPassword := ReadPassword
	ReadPassword = f
	return func() { ReadPassword = origReadPassword }
}
