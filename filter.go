// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package erp

import "math"

// Biquad is a second order IIR section with a0 normalised to 1.
// First order sections have B2 == A2 == 0.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Cascade is a chain of sections applied in order.
type Cascade []Biquad

// DCGain returns the gain of the section at 0 Hz.
func (s Biquad) DCGain() float64 {
	den := 1 + s.A1 + s.A2
	if den == 0 {
		return 0
	}
	return (s.B0 + s.B1 + s.B2) / den
}

// Gain returns the magnitude response of the section at f Hz.
func (s Biquad) Gain(f, fs float64) float64 {
	w := 2 * math.Pi * f / fs
	c1, s1 := math.Cos(w), math.Sin(w)
	c2, s2 := math.Cos(2*w), math.Sin(2*w)
	nr, ni := s.B0+s.B1*c1+s.B2*c2, -(s.B1*s1 + s.B2*s2)
	dr, di := 1+s.A1*c1+s.A2*c2, -(s.A1*s1 + s.A2*s2)
	return math.Hypot(nr, ni) / math.Hypot(dr, di)
}

// Gain returns the magnitude response of the cascade at f Hz.
func (c Cascade) Gain(f, fs float64) float64 {
	g := 1.0
	for _, s := range c {
		g *= s.Gain(f, fs)
	}
	return g
}

// Notch designs a band-stop biquad centred on f0 whose stop band spans bw Hz.
func Notch(f0, bw, fs float64) Biquad {
	w0 := 2 * math.Pi * f0 / fs
	alpha := math.Sin(w0) / (2 * (f0 / bw))
	cw := math.Cos(w0)
	a0 := 1 + alpha
	return Biquad{
		B0: 1 / a0,
		B1: -2 * cw / a0,
		B2: 1 / a0,
		A1: -2 * cw / a0,
		A2: (1 - alpha) / a0,
	}
}

// ButterworthLowPass designs an order-n Butterworth low-pass filter with cutoff fc.
func ButterworthLowPass(n int, fc, fs float64) Cascade {
	return butterworth(n, fc, fs, false)
}

// ButterworthHighPass designs an order-n Butterworth high-pass filter with cutoff fc.
func ButterworthHighPass(n int, fc, fs float64) Cascade {
	return butterworth(n, fc, fs, true)
}

// BandPass combines order-n Butterworth high-pass and low-pass cascades at lo and hi.
func BandPass(n int, lo, hi, fs float64) Cascade {
	c := ButterworthHighPass(n, lo, fs)
	return append(c, ButterworthLowPass(n, hi, fs)...)
}

// butterworth builds the prewarped bilinear transform of the analog
// prototype, one section per conjugate pole pair plus a first order section
// for odd orders.
func butterworth(n int, fc, fs float64, high bool) Cascade {
	w0 := 2 * math.Pi * fc / fs
	cw, sw := math.Cos(w0), math.Sin(w0)

	sections := make(Cascade, 0, (n+1)/2)
	for k := 0; k < n/2; k++ {
		q := 1 / (2 * math.Cos(math.Pi*float64(2*k+1)/float64(2*n)))
		alpha := sw / (2 * q)
		a0 := 1 + alpha

		s := Biquad{A1: -2 * cw / a0, A2: (1 - alpha) / a0}
		if high {
			s.B0 = (1 + cw) / 2 / a0
			s.B1 = -(1 + cw) / a0
		} else {
			s.B0 = (1 - cw) / 2 / a0
			s.B1 = (1 - cw) / a0
		}
		s.B2 = s.B0
		sections = append(sections, s)
	}

	if n%2 == 1 {
		k := math.Tan(w0 / 2)
		s := Biquad{A1: (k - 1) / (k + 1)}
		if high {
			s.B0 = 1 / (1 + k)
			s.B1 = -s.B0
		} else {
			s.B0 = k / (1 + k)
			s.B1 = s.B0
		}
		sections = append(sections, s)
	}

	return sections
}

// steadyState returns the transposed direct form II state of each section
// for a constant unit input.
func (c Cascade) steadyState() [][2]float64 {
	zi := make([][2]float64, len(c))
	in := 1.0
	for i, s := range c {
		g := s.DCGain()
		out := g * in
		zi[i][1] = s.B2*in - s.A2*out
		zi[i][0] = out - s.B0*in
		in = out
	}
	return zi
}

// run filters x in place. zi holds the cascade steady state for a unit
// input, so scaling every section by x[0] starts the filter settled.
func (c Cascade) run(x []float64, zi [][2]float64) {
	if len(x) == 0 {
		return
	}
	x0 := x[0]
	for i, s := range c {
		z1, z2 := zi[i][0]*x0, zi[i][1]*x0
		for n, v := range x {
			y := s.B0*v + z1
			z1 = s.B1*v - s.A1*y + z2
			z2 = s.B2*v - s.A2*y
			x[n] = y
		}
	}
}

// FiltFilt applies the cascade forwards and then backwards over the whole of
// x, giving a zero-phase response with the squared magnitude of the cascade.
// The signal is extended at both ends by odd reflection to suppress edge
// transients. x is not modified.
func (c Cascade) FiltFilt(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 || len(c) == 0 {
		copy(out, x)
		return out
	}
	pad := 3 * (2*len(c) + 1)
	if pad > n-1 {
		pad = n - 1
	}

	ext := make([]float64, n+2*pad)
	for i := 0; i < pad; i++ {
		ext[i] = 2*x[0] - x[pad-i]
		ext[n+pad+i] = 2*x[n-1] - x[n-2-i]
	}
	copy(ext[pad:], x)

	zi := c.steadyState()
	c.run(ext, zi)
	reverse(ext)
	c.run(ext, zi)
	reverse(ext)

	copy(out, ext[pad:pad+n])
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
