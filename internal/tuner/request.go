// tuning request
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tuner

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"dvb-tune/internal/dtv"
)

// FrequencyScale converts the command line frequency into the value
// carried by DTV_FREQUENCY.
const FrequencyScale = 1000

// MaxFrequency is the largest frequency whose wire value fits DTV_FREQUENCY.
const MaxFrequency = math.MaxUint32 / FrequencyScale

var ErrInvalidFrequency = errors.New("invalid frequency")

// Request is the channel to tune. It is built once, before the device is
// touched, and never modified.
type Request struct {
	Frequency  uint32
	System     uint32
	Modulation uint32
	Inversion  uint32
}

// NewRequest validates a frequency and resolves the symbolic names.
func NewRequest(frequency uint64, system, modulation, inversion string) (req Request, err error) {
	if frequency == 0 || frequency > MaxFrequency {
		err = fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidFrequency, frequency, MaxFrequency)
		return
	}
	req.Frequency = uint32(frequency)
	req.System, err = dtv.NameToCode(dtv.DeliverySystem, system)
	if err != nil {
		return
	}
	req.Modulation, err = dtv.NameToCode(dtv.Modulation, modulation)
	if err != nil {
		return
	}
	req.Inversion, err = dtv.NameToCode(dtv.Inversion, inversion)
	return
}

// ParseFrequency accepts decimal, or hex/octal with a 0x/0 prefix.
func ParseFrequency(s string) (uint64, error) {
	f, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return f, nil
}

func (r Request) WireFrequency() uint32 {
	return r.Frequency * FrequencyScale
}

// Params are the tuning parameters the driver reports after tuning.
type Params struct {
	System     uint32
	Frequency  uint32
	Modulation uint32
	Inversion  uint32
}
