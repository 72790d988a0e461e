// Linux DVB v5 frontend constants
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package dtv holds the constants of the Linux DVB frontend API
// (linux/dvb/frontend.h) and the symbolic name tables used on the
// command line.
package dtv

import (
	"fmt"
	"strings"
)

// Command is a DTV property command (DTV_*).
type Command uint32

const (
	DTV_UNDEFINED       Command = 0
	DTV_TUNE            Command = 1
	DTV_CLEAR           Command = 2
	DTV_FREQUENCY       Command = 3
	DTV_MODULATION      Command = 4
	DTV_INVERSION       Command = 6
	DTV_DELIVERY_SYSTEM Command = 17
)

func (c Command) String() string {
	switch c {
	case DTV_UNDEFINED:
		return "DTV_UNDEFINED"
	case DTV_TUNE:
		return "DTV_TUNE"
	case DTV_CLEAR:
		return "DTV_CLEAR"
	case DTV_FREQUENCY:
		return "DTV_FREQUENCY"
	case DTV_MODULATION:
		return "DTV_MODULATION"
	case DTV_INVERSION:
		return "DTV_INVERSION"
	case DTV_DELIVERY_SYSTEM:
		return "DTV_DELIVERY_SYSTEM"
	default:
		return fmt.Sprintf("DTV_%d", uint32(c))
	}
}

// Property is one entry of a property command batch.
type Property struct {
	Cmd  Command
	Data uint32
}

// fe_delivery_system
const (
	SYS_UNDEFINED     uint32 = 0
	SYS_DVBC_ANNEX_AC uint32 = 1
	SYS_DVBC_ANNEX_B  uint32 = 2
	SYS_DVBT          uint32 = 3
	SYS_DSS           uint32 = 4
	SYS_DVBS          uint32 = 5
	SYS_DVBS2         uint32 = 6
	SYS_DVBH          uint32 = 7
	SYS_ISDBT         uint32 = 8
	SYS_ISDBS         uint32 = 9
	SYS_ISDBC         uint32 = 10
	SYS_ATSC          uint32 = 11
	SYS_ATSCMH        uint32 = 12
	SYS_DMBTH         uint32 = 13
	SYS_CMMB          uint32 = 14
	SYS_DAB           uint32 = 15
)

// fe_modulation
const (
	QPSK     uint32 = 0
	QAM_16   uint32 = 1
	QAM_32   uint32 = 2
	QAM_64   uint32 = 3
	QAM_128  uint32 = 4
	QAM_256  uint32 = 5
	QAM_AUTO uint32 = 6
	VSB_8    uint32 = 7
	VSB_16   uint32 = 8
	PSK_8    uint32 = 9
	APSK_16  uint32 = 10
	APSK_32  uint32 = 11
	DQPSK    uint32 = 12
)

// fe_spectral_inversion
const (
	INVERSION_OFF  uint32 = 0
	INVERSION_ON   uint32 = 1
	INVERSION_AUTO uint32 = 2
)

// Status is the fe_status bit mask reported by FE_READ_STATUS and events.
type Status uint32

const (
	FE_HAS_SIGNAL  Status = 0x01
	FE_HAS_CARRIER Status = 0x02
	FE_HAS_VITERBI Status = 0x04
	FE_HAS_SYNC    Status = 0x08
	FE_HAS_LOCK    Status = 0x10
	FE_TIMEDOUT    Status = 0x20
	FE_REINIT      Status = 0x40
)

var statusBits = []struct {
	bit  Status
	name string
}{
	{FE_HAS_SIGNAL, "SIGNAL"},
	{FE_HAS_CARRIER, "CARRIER"},
	{FE_HAS_VITERBI, "VITERBI"},
	{FE_HAS_SYNC, "SYNC"},
	{FE_HAS_LOCK, "LOCK"},
	{FE_TIMEDOUT, "TIMEDOUT"},
	{FE_REINIT, "REINIT"},
}

// Locked reports whether FE_HAS_LOCK is set.
func (s Status) Locked() bool {
	return s&FE_HAS_LOCK != 0
}

func (s Status) String() string {
	if s == 0 {
		return "NONE"
	}
	var names []string
	for _, b := range statusBits {
		if s&b.bit != 0 {
			names = append(names, b.name)
		}
	}
	if rest := s &^ (FE_HAS_SIGNAL | FE_HAS_CARRIER | FE_HAS_VITERBI | FE_HAS_SYNC | FE_HAS_LOCK | FE_TIMEDOUT | FE_REINIT); rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(names, "|")
}
