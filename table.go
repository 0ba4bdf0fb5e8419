// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package erp

import "strconv"

// Column names used when reporting schema violations.
const (
	ColumnIndex      = "index"
	ColumnAnalogAux  = "aux_analog"
	ColumnDigitalAux = "aux_digital"
)

// Table is a recorded session of synchronous samples, one slice per column.
// All columns share SampleRate and length. The table is treated as read-only.
type Table struct {
	SampleRate   float64     // Samples per second, constant for the whole table
	Index        []int64     // Optional sample index, strictly increasing if present
	ChannelNames []string    // Label of each neural channel (passthrough)
	Channels     [][]float64 // Neural channels, Channels[c][n] in microvolts
	Analog       []float64   // Continuous auxiliary intensity (e.g. a light sensor)
	Digital      []uint32    // Bit packed digital trigger lines, one word per sample
}

// Len returns the number of samples in the table.
func (t *Table) Len() int {
	if len(t.Channels) == 0 {
		return 0
	}
	return len(t.Channels[0])
}

// Validate checks the table against the columns required by the given detection mode.
func (t *Table) Validate(mode DetectMode) error {
	if t.SampleRate <= 0 {
		return malformedf("", "sample rate must be positive, got %g", t.SampleRate)
	}
	if len(t.Channels) == 0 {
		return malformedf("", "no neural channels")
	}
	if len(t.ChannelNames) != 0 && len(t.ChannelNames) != len(t.Channels) {
		return malformedf("", "%d channel names for %d channels", len(t.ChannelNames), len(t.Channels))
	}

	n := len(t.Channels[0])
	if n == 0 {
		return malformedf(t.channelName(0), "no samples")
	}
	for c, ch := range t.Channels {
		if len(ch) != n {
			return malformedf(t.channelName(c), "length %d, expected %d", len(ch), n)
		}
	}

	if t.Index != nil {
		if len(t.Index) != n {
			return malformedf(ColumnIndex, "length %d, expected %d", len(t.Index), n)
		}
		for i := 1; i < n; i++ {
			if t.Index[i] <= t.Index[i-1] {
				return malformedf(ColumnIndex, "not monotonic at sample %d (%d after %d)", i, t.Index[i], t.Index[i-1])
			}
		}
	}

	switch mode {
	case ModeThreshold:
		if t.Analog == nil {
			return malformedf(ColumnAnalogAux, "required for threshold detection")
		}
		if len(t.Analog) != n {
			return malformedf(ColumnAnalogAux, "length %d, expected %d", len(t.Analog), n)
		}
	case ModeDigital:
		if t.Digital == nil {
			return malformedf(ColumnDigitalAux, "required for digital edge detection")
		}
		if len(t.Digital) != n {
			return malformedf(ColumnDigitalAux, "length %d, expected %d", len(t.Digital), n)
		}
	}

	return nil
}

// Names returns the channel labels, synthesising "ch<N>" for unnamed tables.
func (t *Table) Names() []string {
	names := make([]string, len(t.Channels))
	for i := range names {
		names[i] = t.channelName(i)
	}
	return names
}

func (t *Table) channelName(c int) string {
	if c < len(t.ChannelNames) && t.ChannelNames[c] != "" {
		return t.ChannelNames[c]
	}
	return "ch" + strconv.Itoa(c+1)
}
