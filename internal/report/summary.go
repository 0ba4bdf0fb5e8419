// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/OpenPSG/erp"
)

// Summary is the JSON trial summary of a run.
type Summary struct {
	Source      string       `json:"source,omitempty"`
	RunID       string       `json:"run_id,omitempty"`
	SampleRate  float64      `json:"sample_rate_hz"`
	PreSamples  int          `json:"pre_samples"`
	PostSamples int          `json:"post_samples"`
	Channels    []string     `json:"channels"`
	Total       int          `json:"total"`
	NonTargets  int          `json:"non_targets"`
	Targets     int          `json:"targets"`
	Excluded    int          `json:"excluded"`
	Exclusions  []Exclusion  `json:"exclusions"`
	Classes     []ClassStats `json:"classes"`
	Events      []Trial      `json:"events"`
	LineNoise   []LineNoise  `json:"line_noise,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
	Diagnostics []string     `json:"diagnostics,omitempty"`
}

// Exclusion is an excluded event and the reason it was dropped.
type Exclusion struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ClassStats describes one class average and the pulses that fed it.
type ClassStats struct {
	Class       string  `json:"class"`
	Defined     bool    `json:"defined"`
	Trials      int     `json:"trials"`
	PulseMean   float64 `json:"pulse_mean_samples"`
	PulseMedian float64 `json:"pulse_median_samples"`
	PulseStdDev float64 `json:"pulse_stddev_samples"`
	PulseMin    float64 `json:"pulse_min_samples"`
	PulseMax    float64 `json:"pulse_max_samples"`
}

// Trial is one detected event and its label.
type Trial struct {
	Onset    int    `json:"onset"`
	Duration int    `json:"duration"`
	Label    string `json:"label"`
	Reason   string `json:"reason,omitempty"`
}

// LineNoise is the mains band power of a channel before and after conditioning.
type LineNoise struct {
	Channel       string  `json:"channel"`
	Before        float64 `json:"before"`
	After         float64 `json:"after"`
	AttenuationDB float64 `json:"attenuation_db"`
}

// Summarise builds the trial summary of res.
func Summarise(source, runID string, res *erp.Result) Summary {
	s := Summary{
		Source:      source,
		RunID:       runID,
		SampleRate:  res.SampleRate,
		PreSamples:  res.Geometry.Pre,
		PostSamples: res.Geometry.Post,
		Channels:    res.ChannelNames,
		Total:       res.Log.Total,
		NonTargets:  res.Log.NonTargets,
		Targets:     res.Log.Targets,
		Excluded:    res.Log.Excluded,
		Exclusions:  []Exclusion{},
		Events:      []Trial{},
		Warnings:    res.Warnings,
		Diagnostics: res.Diagnostics,
	}

	for _, e := range res.Log.Exclusions {
		s.Exclusions = append(s.Exclusions, Exclusion{Index: e.Index, Reason: e.Reason})
	}

	pulses := map[erp.Class]erp.PulseStats{
		erp.ClassNonTarget: res.NonTargetPulses,
		erp.ClassTarget:    res.TargetPulses,
	}
	for _, avg := range []erp.Average{res.NonTarget, res.Target} {
		ps := pulses[avg.Class]
		s.Classes = append(s.Classes, ClassStats{
			Class:       avg.Class.String(),
			Defined:     avg.Defined(),
			Trials:      avg.Trials,
			PulseMean:   ps.Mean,
			PulseMedian: ps.Median,
			PulseStdDev: ps.StdDev,
			PulseMin:    ps.Min,
			PulseMax:    ps.Max,
		})
	}

	for _, e := range res.Events {
		tr := Trial{Onset: e.Onset, Duration: e.Duration}
		switch l := e.Label.(type) {
		case erp.Excluded:
			tr.Label, tr.Reason = "excluded", l.Reason
		default:
			tr.Label = l.String()
		}
		s.Events = append(s.Events, tr)
	}

	for _, ln := range res.LineNoise {
		s.LineNoise = append(s.LineNoise, LineNoise(ln))
	}

	return s
}

// WriteSummary writes s to path as indented JSON.
func WriteSummary(path string, s Summary) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
