// symbolic name tables
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dtv

import (
	"errors"
	"fmt"
)

var ErrUnknownName = errors.New("unknown name")
var ErrUnknownCode = errors.New("unknown code")

// Domain selects one of the enumerated parameter tables.
type Domain int

const (
	DeliverySystem Domain = iota
	Modulation
	Inversion
)

func (d Domain) String() string {
	switch d {
	case DeliverySystem:
		return "delivery system"
	case Modulation:
		return "modulation"
	case Inversion:
		return "inversion"
	default:
		return fmt.Sprintf("invalid domain: %d", int(d))
	}
}

type Option struct {
	Name  string
	Value uint32
}

// Table is an ordered name/value list; lookups are linear and the first
// match wins.
type Table []Option

// ATSC is listed twice, both entries carry the same code.
var deliverySystems = Table{
	{"UNDEFINED", SYS_UNDEFINED},
	{"DVB-C_ANNEX_AC", SYS_DVBC_ANNEX_AC},
	{"DVB-C_ANNEX_B", SYS_DVBC_ANNEX_B},
	{"DVB-T", SYS_DVBT},
	{"DSS", SYS_DSS},
	{"DVB-S", SYS_DVBS},
	{"DVB-S2", SYS_DVBS2},
	{"DVB-H", SYS_DVBH},
	{"ISDBT", SYS_ISDBT},
	{"ISDBS", SYS_ISDBS},
	{"ISDBC", SYS_ISDBC},
	{"ATSC", SYS_ATSC},
	{"ATSCMH", SYS_ATSCMH},
	{"DMBTH", SYS_DMBTH},
	{"CMMB", SYS_CMMB},
	{"DAB", SYS_DAB},
	{"ATSC", SYS_ATSC},
}

var modulations = Table{
	{"QPSK", QPSK},
	{"QAM_16", QAM_16},
	{"QAM_32", QAM_32},
	{"QAM_64", QAM_64},
	{"QAM_128", QAM_128},
	{"QAM_256", QAM_256},
	{"QAM_AUTO", QAM_AUTO},
	{"VSB_8", VSB_8},
	{"VSB_16", VSB_16},
	{"8PSK", PSK_8},
	{"APSK_16", APSK_16},
	{"APSK_32", APSK_32},
	{"DQPSK", DQPSK},
}

var inversions = Table{
	{"OFF", INVERSION_OFF},
	{"ON", INVERSION_ON},
	{"AUTO", INVERSION_AUTO},
}

// TableFor returns the table of a domain, or nil for an invalid domain.
func TableFor(d Domain) Table {
	switch d {
	case DeliverySystem:
		return deliverySystems
	case Modulation:
		return modulations
	case Inversion:
		return inversions
	}
	return nil
}

func (t Table) Value(name string) (uint32, error) {
	for _, o := range t {
		if o.Name == name {
			return o.Value, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownName, name)
}

func (t Table) Name(value uint32) (string, error) {
	for _, o := range t {
		if o.Value == value {
			return o.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownCode, value)
}

// Names lists the distinct names in table order.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	seen := make(map[string]bool, len(t))
	for _, o := range t {
		if seen[o.Name] {
			continue
		}
		seen[o.Name] = true
		names = append(names, o.Name)
	}
	return names
}

func NameToCode(d Domain, name string) (uint32, error) {
	t := TableFor(d)
	if t == nil {
		return 0, fmt.Errorf("%w: %q (%s)", ErrUnknownName, name, d)
	}
	code, err := t.Value(name)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", d, err)
	}
	return code, nil
}

func CodeToName(d Domain, code uint32) (string, error) {
	t := TableFor(d)
	if t == nil {
		return "", fmt.Errorf("%w: %d (%s)", ErrUnknownCode, code, d)
	}
	name, err := t.Name(code)
	if err != nil {
		return "", fmt.Errorf("%s: %w", d, err)
	}
	return name, nil
}
