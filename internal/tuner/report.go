// requested vs tuned parameters report
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tuner

import (
	"fmt"

	"dvb-tune/internal/dtv"
)

func (s *Sequencer) printRequested(req Request) {
	fmt.Fprintf(s.out, "\nTuning specs:\n")
	fmt.Fprintf(s.out, "System:     %s\n", name(dtv.DeliverySystem, req.System))
	fmt.Fprintf(s.out, "Frequency:  %d\n", req.WireFrequency()/FrequencyScale)
	fmt.Fprintf(s.out, "Modulation: %s\n", name(dtv.Modulation, req.Modulation))
	fmt.Fprintf(s.out, "Inversion:  %s\n", name(dtv.Inversion, req.Inversion))
}

func (s *Sequencer) printTuned(p Params) {
	fmt.Fprintf(s.out, "\nTuned specs:\n")
	fmt.Fprintf(s.out, "System:     %s %d\n", name(dtv.DeliverySystem, p.System), p.System)
	fmt.Fprintf(s.out, "Frequency:  %d\n", p.Frequency/FrequencyScale)
	fmt.Fprintf(s.out, "Modulation: %s %d\n", name(dtv.Modulation, p.Modulation), p.Modulation)
	fmt.Fprintf(s.out, "Inversion:  %s %d\n", name(dtv.Inversion, p.Inversion), p.Inversion)
}

// name renders codes the driver may report but the tables do not list
func name(d dtv.Domain, code uint32) string {
	n, err := dtv.CodeToName(d, code)
	if err != nil {
		return "UNKNOWN"
	}
	return n
}
