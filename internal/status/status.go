// frontend status snapshot
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package status

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"dvb-tune/internal/dtv"
)

// Sentinels stored in a metric the frontend could not read (-2 in the
// metric's unsigned width).
const (
	Unavailable16 = ^uint16(1)
	Unavailable32 = ^uint32(1)
)

// Metric identifies one optional readout of a Snapshot.
type Metric uint8

const (
	MetricSignal Metric = 1 << iota
	MetricSNR
	MetricBER
	MetricUNC
)

func (m Metric) String() string {
	switch m {
	case MetricSignal:
		return "signal"
	case MetricSNR:
		return "snr"
	case MetricBER:
		return "ber"
	case MetricUNC:
		return "unc"
	default:
		return fmt.Sprintf("metric(%d)", uint8(m))
	}
}

// Device is the part of a frontend the status reader needs.
type Device interface {
	ReadStatus() (dtv.Status, error)
	ReadSignalStrength() (uint16, error)
	ReadSNR() (uint16, error)
	ReadBER() (uint32, error)
	ReadUncorrectedBlocks() (uint32, error)
}

// Snapshot is one poll of the frontend. It is produced fresh on every
// poll and never updated.
type Snapshot struct {
	Flags    dtv.Status
	FlagsErr error

	Signal uint16
	SNR    uint16
	BER    uint32
	UNC    uint32

	// Missing has a bit set for each metric the frontend did not report;
	// the metric itself then holds the sentinel.
	Missing Metric
}

func (s Snapshot) Available(m Metric) bool {
	return s.Missing&m == 0
}

func (s Snapshot) Locked() bool {
	return s.FlagsErr == nil && s.Flags.Locked()
}

// Read takes one snapshot. A failed flags read is logged and recorded;
// the other readouts are optional and are replaced by the sentinel when
// the driver does not support them.
func Read(dev Device, logger zerolog.Logger) (s Snapshot) {
	var err error
	s.Flags, err = dev.ReadStatus()
	if err != nil {
		s.Flags = 0
		s.FlagsErr = err
		logger.Warn().Err(err).Msg("FE_READ_STATUS failed")
	}

	// some frontends do not implement these, so failures are not reported
	if s.Signal, err = dev.ReadSignalStrength(); err != nil {
		s.Signal = Unavailable16
		s.Missing |= MetricSignal
	}
	if s.SNR, err = dev.ReadSNR(); err != nil {
		s.SNR = Unavailable16
		s.Missing |= MetricSNR
	}
	if s.BER, err = dev.ReadBER(); err != nil {
		s.BER = Unavailable32
		s.Missing |= MetricBER
	}
	if s.UNC, err = dev.ReadUncorrectedBlocks(); err != nil {
		s.UNC = Unavailable32
		s.Missing |= MetricUNC
	}

	logger.Debug().
		Stringer("flags", s.Flags).
		Stringer("missing", missingList(s.Missing)).
		Msg("status read")
	return
}

// Render writes the status line of a snapshot. An unavailable metric is
// shown as -2, not as its unsigned sentinel value.
func Render(w io.Writer, s Snapshot) error {
	line := fmt.Sprintf("status %02x | signal %s | snr %s dB | ber %s | unc %s | ",
		uint32(s.Flags),
		uintOrUnavailable(s, MetricSignal, uint64(s.Signal)),
		snrString(s),
		uintOrUnavailable(s, MetricBER, uint64(s.BER)),
		uintOrUnavailable(s, MetricUNC, uint64(s.UNC)),
	)
	if s.Locked() {
		line += "FE_HAS_LOCK"
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// snr is reported in tenths of a dB
func snrString(s Snapshot) string {
	if !s.Available(MetricSNR) {
		return "-2"
	}
	return fmt.Sprintf("%d.%d", s.SNR/10, s.SNR%10)
}

func uintOrUnavailable(s Snapshot, m Metric, v uint64) string {
	if !s.Available(m) {
		return "-2"
	}
	return fmt.Sprintf("%d", v)
}

type missingList Metric

func (ml missingList) String() string {
	if ml == 0 {
		return "none"
	}
	var out string
	for _, m := range []Metric{MetricSignal, MetricSNR, MetricBER, MetricUNC} {
		if Metric(ml)&m != 0 {
			if out != "" {
				out += ","
			}
			out += m.String()
		}
	}
	return out
}
