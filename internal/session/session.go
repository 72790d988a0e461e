// interactive tuning session
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session owns the frontend for the lifetime of one run: it tunes
// once, then keeps printing the frontend status until the operator quits.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode"

	"github.com/eiannone/keyboard"
	"github.com/rs/zerolog"

	"dvb-tune/internal/status"
	"dvb-tune/internal/tuner"
)

var ErrDeviceOpen = errors.New("cannot open frontend")

// Device is an open frontend.
type Device interface {
	tuner.Frontend
	status.Device
	Close() error
}

// Observer receives every status snapshot, e.g. a metrics exporter.
type Observer interface {
	Observe(s status.Snapshot)
}

type Config struct {
	Path    string
	Request tuner.Request
	Timing  tuner.Timing

	// status is rendered again every StatusInterval and on every key
	StatusInterval time.Duration
	QuitKey        rune

	Open func(path string) (Device, error)

	// Keys is nil when there is no terminal; the session then runs until
	// the context is cancelled
	Keys <-chan keyboard.KeyEvent

	Out      io.Writer
	Log      zerolog.Logger
	Observer Observer
}

// Run opens the frontend, tunes it and polls its status until the quit
// key is pressed or ctx is done. The frontend is closed on every path.
func Run(ctx context.Context, cfg Config) (err error) {
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}

	cfg.Log.Info().Str("device", cfg.Path).Msg("opening frontend")
	dev, err := cfg.Open(cfg.Path)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrDeviceOpen, cfg.Path, err)
	}
	defer func() {
		cfg.Log.Info().Str("device", cfg.Path).Msg("closing frontend")
		if cerr := dev.Close(); cerr != nil {
			cfg.Log.Warn().Err(cerr).Str("device", cfg.Path).Msg("close failed")
			if err == nil {
				err = cerr
			}
		}
	}()

	sequencer := tuner.New(cfg.Timing, out, cfg.Log)
	if _, err = sequencer.Tune(ctx, dev, cfg.Request); err != nil {
		return
	}
	fmt.Fprintln(out)

	var tick <-chan time.Time
	if cfg.StatusInterval > 0 {
		ticker := time.NewTicker(cfg.StatusInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		snap := status.Read(dev, cfg.Log)
		if err = status.Render(out, snap); err != nil {
			return
		}
		if cfg.Observer != nil {
			cfg.Observer.Observe(snap)
		}

		select {
		case <-ctx.Done():
			cfg.Log.Debug().Err(ctx.Err()).Msg("session cancelled")
			return nil
		case <-tick:
		case ev, ok := <-cfg.Keys:
			if !ok {
				cfg.Log.Debug().Msg("keyboard closed")
				cfg.Keys = nil
				continue
			}
			if ev.Err != nil {
				return fmt.Errorf("keyboard: %w", ev.Err)
			}
			if isQuit(ev, cfg.QuitKey) {
				return nil
			}
		}
	}
}

func isQuit(ev keyboard.KeyEvent, quitKey rune) bool {
	if ev.Key == keyboard.KeyCtrlC {
		return true
	}
	return ev.Rune != 0 && unicode.ToLower(ev.Rune) == unicode.ToLower(quitKey)
}
