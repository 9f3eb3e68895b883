// -*- Mode: Go; indent-tabs-mode: t -*-
//go:build 386 || arm

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

package sys

import (
	"golang.org/x/sys/unix"
)

// the *32 variants take 32-bit ids; the plain ones are the legacy
// 16-bit calls on these architectures
const (
	_SYS_SETREUID = unix.SYS_SETREUID32
	_SYS_SETREGID = unix.SYS_SETREGID32
)
