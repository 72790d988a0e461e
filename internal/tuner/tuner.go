// tuning sequence
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tuner drives a frontend through the DVB v5 tuning sequence:
// clear, submit, wait for the new tuning cycle, wait for lock, read back.
package tuner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"dvb-tune/internal/dtv"
	"dvb-tune/internal/frontend"
)

var ErrClear = errors.New("FE_SET_PROPERTY DTV_CLEAR failed")
var ErrTuneSubmit = errors.New("FE_SET_PROPERTY TUNE failed")
var ErrTuneTimeout = errors.New("timed out waiting for the tuning to start")
var ErrStatusRead = errors.New("FE_READ_STATUS failed")
var ErrParameterReadback = errors.New("FE_GET_PROPERTY failed")

// more than the kernel event queue can hold
const maxDrainEvents = 64

// Frontend is the part of a frontend device the sequencer needs.
type Frontend interface {
	SetProperties(props []dtv.Property) error
	GetProperties(props []dtv.Property) error
	GetEvent() (frontend.Event, error)
	ReadStatus() (dtv.Status, error)
}

// Timing holds the waits of the tuning sequence. They are empirical and
// depend on the hardware.
type Timing struct {
	ClearSettle  time.Duration
	TuneSettle   time.Duration
	EventPoll    time.Duration
	StartTimeout time.Duration
	LockAttempts int
	LockInterval time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		ClearSettle:  20 * time.Millisecond,
		TuneSettle:   1 * time.Second,
		EventPoll:    10 * time.Millisecond,
		StartTimeout: 10 * time.Second,
		LockAttempts: 5,
		LockInterval: 1 * time.Second,
	}
}

type Sequencer struct {
	timing Timing
	out    io.Writer
	log    zerolog.Logger
}

// New returns a sequencer that prints the requested and tuned parameters
// to out.
func New(timing Timing, out io.Writer, logger zerolog.Logger) *Sequencer {
	if out == nil {
		out = io.Discard
	}
	return &Sequencer{
		timing: timing,
		out:    out,
		log:    logger,
	}
}

// Tune runs the tuning sequence once. Not getting a lock is not an error:
// the caller sees it in the status that follows.
func (s *Sequencer) Tune(ctx context.Context, fe Frontend, req Request) (params Params, err error) {
	if err = fe.SetProperties([]dtv.Property{{Cmd: dtv.DTV_CLEAR}}); err != nil {
		err = fmt.Errorf("%w: %w", ErrClear, err)
		return
	}
	if err = sleep(ctx, s.timing.ClearSettle); err != nil {
		err = fmt.Errorf("clear settle: %w", err)
		return
	}

	s.drainEvents(fe)

	s.printRequested(req)
	batch := []dtv.Property{
		{Cmd: dtv.DTV_DELIVERY_SYSTEM, Data: req.System},
		{Cmd: dtv.DTV_FREQUENCY, Data: req.WireFrequency()},
		{Cmd: dtv.DTV_MODULATION, Data: req.Modulation},
		{Cmd: dtv.DTV_INVERSION, Data: req.Inversion},
		{Cmd: dtv.DTV_TUNE},
	}
	for _, p := range batch {
		s.log.Debug().Stringer("cmd", p.Cmd).Uint32("data", p.Data).Msg("FE_SET_PROPERTY")
	}
	if err = fe.SetProperties(batch); err != nil {
		err = fmt.Errorf("%w: %w", ErrTuneSubmit, err)
		return
	}
	if err = sleep(ctx, s.timing.TuneSettle); err != nil {
		err = fmt.Errorf("tune settle: %w", err)
		return
	}

	if err = s.waitTuningStart(ctx, fe); err != nil {
		return
	}

	var last frontend.Event
	if ev, evErr := fe.GetEvent(); evErr == nil {
		last = ev
	}
	s.log.Debug().
		Stringer("event_status", last.Status).
		Uint32("event_freq", last.Frequency).
		Uint32("event_inversion", last.Inversion).
		Msg("tuning started")

	if err = s.waitLock(ctx, fe); err != nil {
		return
	}

	params, err = readParams(fe)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrParameterReadback, err)
		return
	}
	s.printTuned(params)
	return
}

// drainEvents discards events left over from a previous tuning.
func (s *Sequencer) drainEvents(fe Frontend) {
	for n := 0; n < maxDrainEvents; n++ {
		ev, err := fe.GetEvent()
		if err != nil {
			if n > 0 {
				s.log.Debug().Int("count", n).Msg("discarded stale events")
			}
			return
		}
		s.log.Debug().Stringer("status", ev.Status).Msg("stale event")
	}
	s.log.Warn().Int("count", maxDrainEvents).Msg("event queue did not drain")
}

// waitTuningStart waits for an event with zero status, which marks the
// start of the new tuning cycle. An empty queue or a queue overflow
// just means no such event yet.
func (s *Sequencer) waitTuningStart(ctx context.Context, fe Frontend) error {
	deadline := time.Now().Add(s.timing.StartTimeout)
	for {
		ev, err := fe.GetEvent()
		if err == nil && ev.Status == 0 {
			return nil
		}
		if err != nil && !errors.Is(err, frontend.ErrNoEvent) {
			s.log.Debug().Err(err).Msg("FE_GET_EVENT")
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w after %v", ErrTuneTimeout, s.timing.StartTimeout)
		}
		if err := sleep(ctx, s.timing.EventPoll); err != nil {
			return fmt.Errorf("waiting for tuning start: %w", err)
		}
	}
}

func (s *Sequencer) waitLock(ctx context.Context, fe Frontend) error {
	for i := 0; i < s.timing.LockAttempts; i++ {
		status, err := fe.ReadStatus()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStatusRead, err)
		}
		s.log.Debug().Int("attempt", i+1).Stringer("status", status).Msg("lock poll")
		if status.Locked() {
			return nil
		}
		if err := sleep(ctx, s.timing.LockInterval); err != nil {
			return fmt.Errorf("waiting for lock: %w", err)
		}
	}
	s.log.Debug().Int("attempts", s.timing.LockAttempts).Msg("no lock")
	return nil
}

func readParams(fe Frontend) (Params, error) {
	props := []dtv.Property{
		{Cmd: dtv.DTV_DELIVERY_SYSTEM},
		{Cmd: dtv.DTV_FREQUENCY},
		{Cmd: dtv.DTV_MODULATION},
		{Cmd: dtv.DTV_INVERSION},
	}
	if err := fe.GetProperties(props); err != nil {
		return Params{}, err
	}
	return Params{
		System:     props[0].Data,
		Frequency:  props[1].Data,
		Modulation: props[2].Data,
		Inversion:  props[3].Data,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
