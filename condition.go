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
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Conditioner removes line noise, restricts the signal band and applies the
// polarity convention. Each channel is filtered as one complete sequence.
type Conditioner struct {
	notch    Cascade // nil when line-noise rejection is disabled
	bandPass Cascade // nil when band restriction is disabled
	polarity float64
	workers  int
}

// NewConditioner designs the filters for a recording sampled at fs Hz.
func NewConditioner(cfg Config, fs float64) (*Conditioner, error) {
	if !(fs > 0) {
		return nil, configErrorf("sample_rate", "must be positive, got %g", fs)
	}
	if _, err := cfg.Check(fs); err != nil {
		return nil, err
	}

	c := &Conditioner{polarity: cfg.Polarity, workers: cfg.Workers}
	if cfg.LineNoise.Enabled {
		c.notch = Cascade{Notch(cfg.LineNoise.CenterHz, 2*cfg.LineNoise.HalfBandwidth, fs)}
	}
	if cfg.BandPass.Enabled {
		c.bandPass = BandPass(cfg.BandPass.Order, cfg.BandPass.LowHz, cfg.BandPass.HighHz, fs)
	}
	return c, nil
}

// Channel conditions a single channel. The input is not modified.
func (c *Conditioner) Channel(x []float64) []float64 {
	var y []float64
	switch {
	case c.notch != nil && c.bandPass != nil:
		y = c.bandPass.FiltFilt(c.notch.FiltFilt(x))
	case c.notch != nil:
		y = c.notch.FiltFilt(x)
	case c.bandPass != nil:
		y = c.bandPass.FiltFilt(x)
	default:
		y = append([]float64(nil), x...)
	}
	floats.Scale(c.polarity, y)
	return y
}

// Condition conditions every channel, one worker per channel up to the
// configured limit. The result has the same shape as channels.
func (c *Conditioner) Condition(ctx context.Context, channels [][]float64) ([][]float64, error) {
	out := make([][]float64, len(channels))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(c.workers))
	for i := range channels {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("error conditioning channel %d: %w", i, err)
			}
			out[i] = c.Channel(channels[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
