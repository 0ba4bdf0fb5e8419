// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package erp

import "github.com/montanaflynn/stats"

// PulseStats summarises the measured pulse widths of one class, in samples.
type PulseStats struct {
	Count  int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
}

// SummarisePulses computes pulse width statistics for the events of class.
func SummarisePulses(events []ClassifiedEvent, class Class) PulseStats {
	var widths stats.Float64Data
	for _, e := range events {
		if c, ok := classOf(e.Label); ok && c == class {
			widths = append(widths, float64(e.Duration))
		}
	}

	ps := PulseStats{Count: len(widths)}
	if ps.Count == 0 {
		return ps
	}
	// Errors are only returned for empty input, which is ruled out above.
	ps.Mean, _ = widths.Mean()
	ps.Median, _ = widths.Median()
	ps.StdDev, _ = widths.StandardDeviation()
	ps.Min, _ = widths.Min()
	ps.Max, _ = widths.Max()
	return ps
}
