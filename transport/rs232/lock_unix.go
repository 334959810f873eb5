// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

//go:build unix

package rs232

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrDeviceBusy is returned when another process holds the device lock.
var ErrDeviceBusy = errors.New("device is in use by another process")

// deviceLock is an advisory flock held on a separate descriptor of the device.
type deviceLock struct {
	fd int
}

func lockDevice(path string) (*deviceLock, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open for locking: %w", err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrDeviceBusy
		}
		return nil, fmt.Errorf("flock: %w", err)
	}
	return &deviceLock{fd: fd}, nil
}

func (l *deviceLock) release() error {
	if err := unix.Flock(l.fd, unix.LOCK_UN); err != nil {
		unix.Close(l.fd)
		return err
	}
	return unix.Close(l.fd)
}
