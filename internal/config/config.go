// configuration file
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"time"
	"unicode/utf8"

	"gopkg.in/ini.v1"

	"dvb-tune/internal/dtv"
	"dvb-tune/internal/tuner"
)

type Config struct {
	Adapter    uint
	Frontend   uint
	System     string
	Modulation string
	Inversion  string

	Timing         tuner.Timing
	StatusInterval time.Duration
	QuitKey        rune

	// listen address of the metrics endpoint, empty to disable
	Metrics string
}

func Default() Config {
	return Config{
		System:         "ATSC",
		Modulation:     "VSB_8",
		Inversion:      "AUTO",
		Timing:         tuner.DefaultTiming(),
		StatusInterval: 1 * time.Second,
		QuitKey:        'q',
	}
}

// Load reads the settings of the default section of an ini file on top of
// the defaults. An empty path returns the defaults.
func Load(configFile string) (config Config, err error) {
	config = Default()
	if configFile == "" {
		return
	}
	file, err := ini.LoadSources(ini.LoadOptions{}, configFile)
	if err != nil {
		return
	}
	// read only from here on
	file.BlockMode = false
	section, err := file.GetSection("")
	if err != nil {
		return
	}

	if v, ok, err := getUintConfigSetting("adapter", section); err != nil {
		return config, err
	} else if ok {
		config.Adapter = v
	}
	if v, ok, err := getUintConfigSetting("frontend", section); err != nil {
		return config, err
	} else if ok {
		config.Frontend = v
	}

	names := []struct {
		setting string
		domain  dtv.Domain
		value   *string
	}{
		{"system", dtv.DeliverySystem, &config.System},
		{"modulation", dtv.Modulation, &config.Modulation},
		{"inversion", dtv.Inversion, &config.Inversion},
	}
	for _, n := range names {
		v, ok := getStringConfigSetting(n.setting, section)
		if !ok {
			continue
		}
		if _, err = dtv.NameToCode(n.domain, v); err != nil {
			return config, fmt.Errorf("%s: %w", n.setting, err)
		}
		*n.value = v
	}

	durations := []struct {
		setting string
		value   *time.Duration
	}{
		{"clear settle", &config.Timing.ClearSettle},
		{"tune settle", &config.Timing.TuneSettle},
		{"event poll", &config.Timing.EventPoll},
		{"tune start timeout", &config.Timing.StartTimeout},
		{"lock interval", &config.Timing.LockInterval},
		{"status interval", &config.StatusInterval},
	}
	for _, d := range durations {
		v, ok, err := getMillisecondsConfigSetting(d.setting, section)
		if err != nil {
			return config, err
		}
		if ok {
			*d.value = v
		}
	}

	if v, ok, err := getUintConfigSetting("lock attempts", section); err != nil {
		return config, err
	} else if ok {
		config.Timing.LockAttempts = int(v)
	}

	if v, ok := getStringConfigSetting("quit key", section); ok {
		if utf8.RuneCountInString(v) != 1 {
			return config, fmt.Errorf("quit key should be a single character: %q", v)
		}
		config.QuitKey, _ = utf8.DecodeRuneInString(v)
	}

	if v, ok := getStringConfigSetting("metrics", section); ok {
		config.Metrics = v
	}

	err = config.Validate()
	return
}

func (c Config) Validate() error {
	if c.Timing.LockAttempts < 1 {
		return fmt.Errorf("lock attempts should be at least 1")
	}
	if c.Timing.StartTimeout <= 0 {
		return fmt.Errorf("tune start timeout should be greater than 0")
	}
	if c.Timing.EventPoll <= 0 {
		return fmt.Errorf("event poll should be greater than 0")
	}
	if c.StatusInterval <= 0 {
		return fmt.Errorf("status interval should be greater than 0")
	}
	return nil
}

func getStringConfigSetting(setting string, section *ini.Section) (value string, ok bool) {
	if section.HasKey(setting) {
		value = section.Key(setting).String()
		ok = true
	}
	return
}

func getUintConfigSetting(setting string, section *ini.Section) (value uint, ok bool, err error) {
	if section.HasKey(setting) {
		value, err = section.Key(setting).Uint()
		ok = true
		if err != nil {
			err = fmt.Errorf("%s: %w", setting, err)
		}
	}
	return
}

func getMillisecondsConfigSetting(setting string, section *ini.Section) (value time.Duration, ok bool, err error) {
	var ms uint
	ms, ok, err = getUintConfigSetting(setting, section)
	if err == nil {
		value = time.Duration(ms) * time.Millisecond
	}
	return
}
