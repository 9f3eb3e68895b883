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

// Package secrets talks to systemd-creds, the external facility that
// seals and unseals database passwords. All cryptography stays inside
// the tool, only ciphertext is stored on disk.
package secrets

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"

	"github.com/snapcore/keepassxc-unlock/osutil"
)

// Decrypt recovers the plaintext of the named credential by feeding
// the ciphertext to systemd-creds on stdin. Plaintext larger than
// maxSize bytes is rejected without being handed to the caller. The
// caller must Wipe the returned buffer once done with it.
func Decrypt(name string, ciphertext []byte, maxSize int) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(maxSize)
	var stderr bytes.Buffer

	cmd := exec.Command("systemd-creds", "--name="+name, "decrypt", "-", "-")
	cmd.Stdin = bytes.NewReader(ciphertext)
	cmd.Stdout = osutil.NewLimitedWriter(&out, maxSize)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		Wipe(out.Bytes())
		if errors.Is(err, osutil.ErrBufferCapacityExceeded) {
			return nil, fmt.Errorf("cannot use credential %q: decrypted secret exceeds %d bytes", name, maxSize)
		}
		return nil, fmt.Errorf("cannot decrypt credential %q: %v", name, osutil.OutputErr(stderr.Bytes(), err))
	}
	return out.Bytes(), nil
}

// Encrypt seals the given plaintext under the host's credential key as
// the named credential and returns the ciphertext blob. The caller
// still owns the plaintext buffer and is expected to Wipe it.
func Encrypt(name string, plaintext []byte) ([]byte, error) {
	var out bytes.Buffer
	var stderr bytes.Buffer

	cmd := exec.Command("systemd-creds", "encrypt", "--name="+name, "-", "-")
	cmd.Stdin = bytes.NewReader(plaintext)
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("cannot encrypt credential %q: %v", name, osutil.OutputErr(stderr.Bytes(), err))
	}
	return out.Bytes(), nil
}

// Wipe overwrites the given buffer with zeros. Buffers that held
// secret material are wiped as soon as they are no longer needed.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
