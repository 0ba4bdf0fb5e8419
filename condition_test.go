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
	"errors"
	"math"
	"testing"

	"github.com/OpenPSG/erp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n int, f, fs, amplitude float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amplitude * math.Sin(2*math.Pi*f*float64(i)/fs)
	}
	return x
}

func TestConditionZeroInput(t *testing.T) {
	configs := map[string]func(*erp.Config){
		"defaults":      func(*erp.Config) {},
		"50 Hz mains":   func(c *erp.Config) { c.LineNoise.CenterHz = 50 },
		"order 1":       func(c *erp.Config) { c.BandPass.Order = 1 },
		"order 7":       func(c *erp.Config) { c.BandPass.Order = 7 },
		"no notch":      func(c *erp.Config) { c.LineNoise.Enabled = false },
		"no filters":    func(c *erp.Config) { c.LineNoise.Enabled, c.BandPass.Enabled = false, false },
		"positive":      func(c *erp.Config) { c.Polarity = 1 },
		"wide passband": func(c *erp.Config) { c.BandPass.LowHz, c.BandPass.HighHz = 0.1, 100 },
	}
	for name, mutate := range configs {
		t.Run(name, func(t *testing.T) {
			cfg := erp.DefaultConfig()
			mutate(&cfg)
			cond, err := erp.NewConditioner(cfg, 250)
			require.NoError(t, err)

			out, err := cond.Condition(context.Background(), [][]float64{make([]float64, 1000), make([]float64, 1000)})
			require.NoError(t, err)
			require.Len(t, out, 2)
			for _, ch := range out {
				require.Len(t, ch, 1000)
				for _, v := range ch {
					require.Zero(t, v)
				}
			}
		})
	}
}

func TestConditionPassband(t *testing.T) {
	const fs = 250.0
	cond, err := erp.NewConditioner(erp.DefaultConfig(), fs)
	require.NoError(t, err)

	x := sine(2500, 10, fs, 50)
	out, err := cond.Condition(context.Background(), [][]float64{x})
	require.NoError(t, err)

	// Away from the edges the 10 Hz component passes unchanged in phase and
	// amplitude, with the polarity inverted.
	for i := 1000; i < 1500; i++ {
		require.InDelta(t, -x[i], out[0][i], 1.0, "sample %d", i)
	}
}

func TestConditionRejectsLineNoise(t *testing.T) {
	const fs = 250.0
	cfg := erp.DefaultConfig()
	cfg.BandPass.Enabled = false
	cond, err := erp.NewConditioner(cfg, fs)
	require.NoError(t, err)

	x := sine(2500, 60, fs, 50)
	y := cond.Channel(x)

	before := erp.BandPower(x[500:2000], fs, 59, 61)
	after := erp.BandPower(y[500:2000], fs, 59, 61)
	assert.Less(t, after, before/100)
}

func TestConditionPolarityOnly(t *testing.T) {
	cfg := erp.DefaultConfig()
	cfg.LineNoise.Enabled = false
	cfg.BandPass.Enabled = false
	cond, err := erp.NewConditioner(cfg, 250)
	require.NoError(t, err)

	x := []float64{1, -2, 3.5}
	assert.Equal(t, []float64{-1, 2, -3.5}, cond.Channel(x))
	assert.Equal(t, []float64{1, -2, 3.5}, x)
}

func TestNewConditionerInvalid(t *testing.T) {
	cfg := erp.DefaultConfig()
	cfg.BandPass.HighHz = 200

	_, err := erp.NewConditioner(cfg, 250)
	var cfgErr *erp.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "band_pass.high_hz", cfgErr.Field)

	_, err = erp.NewConditioner(erp.DefaultConfig(), 0)
	require.True(t, errors.As(err, &cfgErr))
}

func TestConditionCancelled(t *testing.T) {
	cond, err := erp.NewConditioner(erp.DefaultConfig(), 250)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cond.Condition(ctx, [][]float64{make([]float64, 100)})
	require.ErrorIs(t, err, context.Canceled)
}
