// DVB frontend device
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package frontend talks to a Linux DVB frontend node
// (/dev/dvb/adapterN/frontendN) through its ioctl interface.
package frontend

import (
	"errors"
	"fmt"

	"dvb-tune/internal/dtv"
)

// ErrNoEvent is returned by GetEvent when the event queue is empty.
var ErrNoEvent = errors.New("no frontend event pending")

// Event is a dvb_frontend_event; only the fields shared by all delivery
// systems are decoded.
type Event struct {
	Status    dtv.Status
	Frequency uint32
	Inversion uint32
}

// Path returns the device node of a frontend.
func Path(adapter, frontend uint) string {
	return fmt.Sprintf("/dev/dvb/adapter%d/frontend%d", adapter, frontend)
}
