// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package erp_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/OpenPSG/erp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// ramp returns channels where sample i of channel c is c*1000 + i.
func ramp(channels, n int) [][]float64 {
	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, n)
		for i := range out[c] {
			out[c][i] = float64(c*1000 + i)
		}
	}
	return out
}

func TestExtractEpoch(t *testing.T) {
	channels := ramp(2, 100)
	g := erp.Geometry{Pre: 4, Post: 6}

	raw := erp.ExtractEpoch(channels, 20, g, false)
	r, c := raw.Dims()
	require.Equal(t, 10, r)
	require.Equal(t, 2, c)
	assert.Equal(t, 16.0, raw.At(0, 0))
	assert.Equal(t, 25.0, raw.At(9, 0))
	assert.Equal(t, 1016.0, raw.At(0, 1))

	// The pre-onset mean is removed per channel: samples 16..19 average 17.5.
	corrected := erp.ExtractEpoch(channels, 20, g, true)
	for ch := 0; ch < 2; ch++ {
		for i := 0; i < 10; i++ {
			assert.InDelta(t, float64(i)-1.5, corrected.At(i, ch), 1e-12)
		}
	}
}

func TestExtractEpochWithoutPreWindow(t *testing.T) {
	channels := ramp(3, 50)
	g := erp.Geometry{Pre: 0, Post: 8}

	raw := erp.ExtractEpoch(channels, 10, g, false)
	corrected := erp.ExtractEpoch(channels, 10, g, true)
	assert.True(t, mat.Equal(raw, corrected))
}

func classified(onsets []int, labels []erp.Label) []erp.ClassifiedEvent {
	out := make([]erp.ClassifiedEvent, len(onsets))
	for i := range onsets {
		out[i] = erp.ClassifiedEvent{Event: erp.Event{Onset: onsets[i], Duration: 1}, Label: labels[i]}
	}
	return out
}

func TestAverage(t *testing.T) {
	channels := ramp(2, 200)
	events := classified(
		[]int{20, 40, 60, 80, 100},
		[]erp.Label{erp.NonTarget{}, erp.Target{}, erp.NonTarget{}, erp.Excluded{Reason: "x"}, erp.Target{}},
	)
	av := erp.Averager{Geometry: erp.Geometry{Pre: 5, Post: 10}, KeepEpochs: true, Workers: 2}

	got, err := av.Average(context.Background(), channels, events)
	require.NoError(t, err)

	require.True(t, got.NonTarget.Defined())
	require.True(t, got.Target.Defined())
	assert.Equal(t, 2, got.NonTarget.Trials)
	assert.Equal(t, 2, got.Target.Trials)

	// Non-target epochs start at 15 and 55, target epochs at 35 and 95.
	for i := 0; i < 15; i++ {
		assert.InDelta(t, 35.0+float64(i), got.NonTarget.Mean.At(i, 0), 1e-9)
		assert.InDelta(t, 1065.0+float64(i), got.Target.Mean.At(i, 1), 1e-9)
	}
	assert.Equal(t, got.Target, got.Get(erp.ClassTarget))
	assert.Equal(t, got.NonTarget, got.Get(erp.ClassNonTarget))

	require.Len(t, got.Epochs, 4)
	for i, onset := range []int{20, 40, 60, 100} {
		assert.Equal(t, onset, got.Epochs[i].Onset)
	}
	assert.Equal(t, erp.ClassTarget, got.Epochs[1].Class)
}

func TestAverageUndefinedClass(t *testing.T) {
	channels := ramp(1, 100)
	events := classified([]int{50}, []erp.Label{erp.Target{}})
	av := erp.Averager{Geometry: erp.Geometry{Pre: 5, Post: 10}}

	got, err := av.Average(context.Background(), channels, events)
	require.NoError(t, err)
	assert.True(t, got.Target.Defined())
	assert.False(t, got.NonTarget.Defined())
	assert.Nil(t, got.NonTarget.Mean)
	assert.Zero(t, got.NonTarget.Trials)
	assert.Empty(t, got.Epochs)

	none, err := av.Average(context.Background(), channels, nil)
	require.NoError(t, err)
	assert.False(t, none.Target.Defined())
	assert.False(t, none.NonTarget.Defined())
}

func TestAverageOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	channels := make([][]float64, 4)
	for c := range channels {
		channels[c] = make([]float64, 5000)
		for i := range channels[c] {
			channels[c][i] = rng.NormFloat64() * 20
		}
	}

	var events []erp.ClassifiedEvent
	for onset := 100; onset < 4700; onset += 97 {
		var l erp.Label = erp.NonTarget{}
		if rng.Intn(3) == 0 {
			l = erp.Target{}
		}
		events = append(events, erp.ClassifiedEvent{Event: erp.Event{Onset: onset}, Label: l})
	}

	geom := erp.Geometry{Pre: 50, Post: 200}
	ref, err := erp.Averager{Geometry: geom, BaselineCorrect: true, Workers: 1}.Average(context.Background(), channels, events)
	require.NoError(t, err)

	for trial := 0; trial < 5; trial++ {
		for _, workers := range []int{1, 3, 8} {
			t.Run(fmt.Sprintf("shuffle %d workers %d", trial, workers), func(t *testing.T) {
				shuffled := append([]erp.ClassifiedEvent(nil), events...)
				rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

				got, err := erp.Averager{Geometry: geom, BaselineCorrect: true, Workers: workers}.Average(context.Background(), channels, shuffled)
				require.NoError(t, err)
				assert.Equal(t, ref.Target.Trials, got.Target.Trials)
				assert.Equal(t, ref.NonTarget.Trials, got.NonTarget.Trials)
				assert.True(t, mat.EqualApprox(ref.Target.Mean, got.Target.Mean, 1e-9))
				assert.True(t, mat.EqualApprox(ref.NonTarget.Mean, got.NonTarget.Mean, 1e-9))
			})
		}
	}
}

func TestTimeOffsets(t *testing.T) {
	g := erp.Geometry{Pre: 2, Post: 3}
	assert.Equal(t, []float64{-0.5, -0.25, 0, 0.25, 0.5}, g.TimeOffsets(4))
	start, end := g.Bounds(10)
	assert.Equal(t, 8, start)
	assert.Equal(t, 12, end)
	assert.Equal(t, 5, g.Len())
}
