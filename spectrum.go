// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package erp

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// BandPower returns the mean power per sample of x within [lo, hi] Hz,
// estimated from the one-sided periodogram.
func BandPower(x []float64, fs, lo, hi float64) float64 {
	n := len(x)
	if n == 0 || fs <= 0 {
		return 0
	}

	spectrum := fft.FFTReal(x)
	df := fs / float64(n)

	var p float64
	for k := 0; k <= n/2; k++ {
		f := float64(k) * df
		if f < lo || f > hi {
			continue
		}
		a := cmplx.Abs(spectrum[k])
		pk := a * a / float64(n*n)
		// Bins other than DC and Nyquist stand for both halves of the spectrum.
		if k != 0 && !(n%2 == 0 && k == n/2) {
			pk *= 2
		}
		p += pk
	}
	return p
}

// minAttenuationDB bounds the reported attenuation when conditioning removes
// all band power, keeping the value finite.
const minAttenuationDB = -300

// attenuationDB expresses the ratio of after to before in decibels,
// returning 0 when there is no power to compare against.
func attenuationDB(before, after float64) float64 {
	if before <= 0 {
		return 0
	}
	if after <= 0 {
		return minAttenuationDB
	}
	return math.Max(10*math.Log10(after/before), minAttenuationDB)
}
