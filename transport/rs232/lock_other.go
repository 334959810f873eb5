// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

//go:build !unix

package rs232

import "errors"

// ErrDeviceBusy is returned when another process holds the device lock.
var ErrDeviceBusy = errors.New("device is in use by another process")

// deviceLock is a no-op where flock is unavailable; the driver opens the
// device exclusively on its own.
type deviceLock struct{}

func lockDevice(string) (*deviceLock, error) { return &deviceLock{}, nil }

func (*deviceLock) release() error { return nil }
