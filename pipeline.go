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
)

// LineNoise reports the mains band power of one channel before and after conditioning.
type LineNoise struct {
	Channel       string
	Before        float64
	After         float64
	AttenuationDB float64
}

// Result is the output of a pipeline run.
type Result struct {
	SampleRate   float64
	Geometry     Geometry
	ChannelNames []string
	TimeOffsets  []float64 // Seconds relative to onset, one per epoch sample
	Events       []ClassifiedEvent
	Log          TrialLog
	NonTarget    Average
	Target       Average
	Epochs       []Epoch // Only populated with Config.KeepEpochs

	NonTargetPulses PulseStats
	TargetPulses    PulseStats
	LineNoise       []LineNoise

	Warnings    []string // Configuration ambiguities
	Diagnostics []string // Empty result conditions
}

// Run conditions the neural channels, detects and classifies stimulus
// events, and averages the included epochs per class. Configuration and
// input are validated before any processing.
func Run(ctx context.Context, t *Table, cfg Config) (*Result, error) {
	if t == nil {
		return nil, malformedf("", "no sample table")
	}
	if err := t.Validate(cfg.Mode); err != nil {
		return nil, err
	}
	fs := t.SampleRate
	warnings, err := cfg.Check(fs)
	if err != nil {
		return nil, err
	}

	cond, err := NewConditioner(cfg, fs)
	if err != nil {
		return nil, err
	}
	conditioned, err := cond.Condition(ctx, t.Channels)
	if err != nil {
		return nil, err
	}

	pre, post := cfg.Window(fs)
	geom := Geometry{Pre: pre, Post: post}

	events := Detect(t, cfg)
	classifier := Classifier{
		Short:    cfg.Short,
		Long:     cfg.Long,
		Geometry: geom,
		Length:   t.Len(),
	}
	classified, trials := classifier.ClassifyAll(events)

	averager := Averager{
		Geometry:        geom,
		BaselineCorrect: cfg.BaselineCorrect,
		KeepEpochs:      cfg.KeepEpochs,
		Workers:         cfg.Workers,
	}
	avgs, err := averager.Average(ctx, conditioned, classified)
	if err != nil {
		return nil, err
	}

	res := &Result{
		SampleRate:      fs,
		Geometry:        geom,
		ChannelNames:    t.Names(),
		TimeOffsets:     geom.TimeOffsets(fs),
		Events:          classified,
		Log:             trials,
		NonTarget:       avgs.NonTarget,
		Target:          avgs.Target,
		Epochs:          avgs.Epochs,
		NonTargetPulses: SummarisePulses(classified, ClassNonTarget),
		TargetPulses:    SummarisePulses(classified, ClassTarget),
		Warnings:        warnings,
	}

	if cfg.LineNoise.Enabled {
		lo := cfg.LineNoise.CenterHz - cfg.LineNoise.HalfBandwidth
		hi := cfg.LineNoise.CenterHz + cfg.LineNoise.HalfBandwidth
		for c := range t.Channels {
			before := BandPower(t.Channels[c], fs, lo, hi)
			after := BandPower(conditioned[c], fs, lo, hi)
			res.LineNoise = append(res.LineNoise, LineNoise{
				Channel:       res.ChannelNames[c],
				Before:        before,
				After:         after,
				AttenuationDB: attenuationDB(before, after),
			})
		}
	}

	if trials.Total == 0 {
		res.Diagnostics = append(res.Diagnostics, "no stimulus events detected")
	}
	for _, a := range []Average{res.NonTarget, res.Target} {
		if !a.Defined() {
			res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("no %s epochs collected: %s average is undefined", a.Class, a.Class))
		}
	}

	return res, nil
}
