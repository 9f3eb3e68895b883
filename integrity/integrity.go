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

// Package integrity verifies that the process serving the KeePassXC
// D-Bus name runs the executable that was vetted at setup time,
// before any secret is sent its way.
package integrity

import (
	"fmt"
	"os"
	"strings"

	"github.com/snapcore/keepassxc-unlock/dirs"
	"github.com/snapcore/keepassxc-unlock/osutil"
)

// Cause classifies a failed verification.
type Cause int

const (
	// CauseNone marks a successful verification.
	CauseNone Cause = iota
	// CauseNoBaseline means no baseline digest is recorded for the user.
	CauseNoBaseline
	// CauseUnreadableExe means the process executable could not be hashed.
	CauseUnreadableExe
	// CauseDigestMismatch means the executable digest differs from the
	// recorded baseline.
	CauseDigestMismatch
)

// Result is the outcome of verifying a process executable against the
// user's recorded baseline digest.
type Result struct {
	// PID is the process that was verified.
	PID uint32
	// Exe is the resolved executable path of the process, or the
	// /proc/<pid>/exe path itself when the link cannot be read.
	Exe string
	// Cause classifies a mismatch, CauseNone on match.
	Cause Cause
	// Reason describes a mismatch in detail, empty on match.
	Reason string
}

// Match reports whether the verification succeeded.
func (r *Result) Match() bool {
	return r.Cause == CauseNone
}

// TrustedDigest reads the baseline digest recorded for the user by the
// setup tool: the first line of the digest file, without the line
// terminator.
func TrustedDigest(uid uint32) (string, error) {
	data, err := os.ReadFile(dirs.TrustedDigestFile(uid))
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimRight(line, "\r"), nil
}

// VerifyProcess hashes the executable behind /proc/<pid>/exe and
// compares it with the user's recorded baseline. The result is a match
// only when the baseline is readable, the executable can be hashed and
// the digests are equal; every other outcome is a mismatch which the
// caller must treat as a security event and never silently retry.
func VerifyProcess(uid uint32, pid uint32) *Result {
	procExe := fmt.Sprintf("/proc/%d/exe", pid)
	result := &Result{PID: pid, Exe: resolveExe(procExe)}

	expected, err := TrustedDigest(uid)
	if err != nil {
		result.Cause = CauseNoBaseline
		result.Reason = fmt.Sprintf("cannot read recorded digest: %v", err)
		return result
	}
	current, err := osutil.Sha512sum(procExe)
	if err != nil {
		result.Cause = CauseUnreadableExe
		result.Reason = fmt.Sprintf("cannot hash executable: %v", err)
		return result
	}
	if current != expected {
		result.Cause = CauseDigestMismatch
		result.Reason = fmt.Sprintf("executable digest %s does not match recorded %s", current, expected)
		return result
	}
	return result
}

// resolveExe returns the target of a /proc exe link, or the link path
// itself when it cannot be read.
func resolveExe(procExe string) string {
	if target, err := os.Readlink(procExe); err == nil {
		return target
	}
	return procExe
}
