// DVB frontend device - unsupported platforms
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux

package frontend

import (
	"errors"
	"os"

	"dvb-tune/internal/dtv"
)

// Device is never returned on platforms without the Linux DVB API.
type Device struct{}

func Open(path string) (*Device, error) {
	return nil, &os.PathError{Op: "open", Path: path, Err: errors.ErrUnsupported}
}

func (d *Device) Close() error                             { return nil }
func (d *Device) SetProperties(props []dtv.Property) error { return errors.ErrUnsupported }
func (d *Device) GetProperties(props []dtv.Property) error { return errors.ErrUnsupported }
func (d *Device) GetEvent() (Event, error)                 { return Event{}, errors.ErrUnsupported }
func (d *Device) ReadStatus() (dtv.Status, error)          { return 0, errors.ErrUnsupported }
func (d *Device) ReadSignalStrength() (uint16, error)      { return 0, errors.ErrUnsupported }
func (d *Device) ReadSNR() (uint16, error)                 { return 0, errors.ErrUnsupported }
func (d *Device) ReadBER() (uint32, error)                 { return 0, errors.ErrUnsupported }
func (d *Device) ReadUncorrectedBlocks() (uint32, error)   { return 0, errors.ErrUnsupported }
