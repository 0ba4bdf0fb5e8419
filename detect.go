// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package erp

// Event is a detected stimulus pulse on the auxiliary channel.
type Event struct {
	Onset    int // Index of the first active sample
	Duration int // Number of active samples
}

// DetectThreshold finds spans where x drops below threshold. An event starts
// at the first sample below threshold following a sample at or above it, and
// lasts while the signal stays below. A span still active at the end of x is
// reported with the duration observed.
func DetectThreshold(x []float64, threshold float64) []Event {
	var events []Event
	for i := 1; i < len(x); i++ {
		if !(x[i] < threshold && x[i-1] >= threshold) {
			continue
		}
		start := i
		for i < len(x) && x[i] < threshold {
			i++
		}
		events = append(events, Event{Onset: start, Duration: i - start})
	}
	return events
}

// DetectDigital finds active-low pulses on one bit of a bit packed trigger
// channel. Each transition into the active state is paired with the next
// transition out of it; the duration is the offset minus the onset. Pulses
// shorter than minWidth are discarded as glitches, as are a leading offset
// with no onset and a trailing onset with no offset.
func DetectDigital(words []uint32, bit uint, minWidth int) []Event {
	active := func(i int) bool { return words[i]&(1<<bit) == 0 }

	var events []Event
	onset := -1
	for i := 1; i < len(words); i++ {
		prev, cur := active(i-1), active(i)
		switch {
		case !prev && cur:
			onset = i
		case prev && !cur && onset >= 0:
			if d := i - onset; d >= minWidth {
				events = append(events, Event{Onset: onset, Duration: d})
			}
			onset = -1
		}
	}
	return events
}

// Detect runs the detector selected by cfg over the table's auxiliary column.
func Detect(t *Table, cfg Config) []Event {
	switch cfg.Mode {
	case ModeDigital:
		return DetectDigital(t.Digital, cfg.TriggerBit, cfg.MinGlitchWidth)
	default:
		return DetectThreshold(t.Analog, cfg.Threshold)
	}
}
