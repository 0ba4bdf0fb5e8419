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
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DetectMode selects how stimulus events are found on the auxiliary channel.
type DetectMode string

const (
	// ModeThreshold detects spans where the analog auxiliary channel drops below a threshold.
	ModeThreshold DetectMode = "threshold"
	// ModeDigital detects active-low pulses on one bit of the digital auxiliary channel.
	ModeDigital DetectMode = "digital"
)

// maxConfigSize bounds the size of configuration files accepted by LoadConfig.
const maxConfigSize = 1 << 20

// NotchConfig describes the line-noise band-stop filter.
type NotchConfig struct {
	Enabled       bool    `yaml:"enabled"`
	CenterHz      float64 `yaml:"center_hz"`
	HalfBandwidth float64 `yaml:"half_bandwidth_hz"`
}

// BandPassConfig describes the band restriction filter.
type BandPassConfig struct {
	Enabled bool    `yaml:"enabled"`
	LowHz   float64 `yaml:"low_hz"`
	HighHz  float64 `yaml:"high_hz"`
	Order   int     `yaml:"order"`
}

// Band is an expected pulse width with its tolerance, both in samples.
type Band struct {
	Expected  int `yaml:"expected"`
	Tolerance int `yaml:"tolerance"`
}

// Contains reports whether duration lies within the tolerance band.
func (b Band) Contains(duration int) bool {
	d := duration - b.Expected
	if d < 0 {
		d = -d
	}
	return d <= b.Tolerance
}

// Overlaps reports whether any duration would match both bands.
func (b Band) Overlaps(o Band) bool {
	d := b.Expected - o.Expected
	if d < 0 {
		d = -d
	}
	return d <= b.Tolerance+o.Tolerance
}

// Config holds every recognised pipeline option.
type Config struct {
	SampleRate      float64        `yaml:"sample_rate"`  // Hz, 0 means use the table's rate
	PreSeconds      float64        `yaml:"pre_seconds"`  // Window before onset
	PostSeconds     float64        `yaml:"post_seconds"` // Window from onset onwards
	LineNoise       NotchConfig    `yaml:"line_noise"`
	BandPass        BandPassConfig `yaml:"band_pass"`
	Polarity        float64        `yaml:"polarity"` // -1 or +1
	Mode            DetectMode     `yaml:"mode"`
	Threshold       float64        `yaml:"threshold"`        // Threshold mode level
	TriggerBit      uint           `yaml:"trigger_bit"`      // Digital mode trigger line
	MinGlitchWidth  int            `yaml:"min_glitch_width"` // Digital mode debounce, samples
	Short           Band           `yaml:"short"`            // Maps to NonTarget
	Long            Band           `yaml:"long"`             // Maps to Target
	BaselineCorrect bool           `yaml:"baseline_correct"`
	KeepEpochs      bool           `yaml:"keep_epochs"` // Retain individual epochs in the result
	Workers         int            `yaml:"workers"`     // 0 means GOMAXPROCS
}

// DefaultConfig returns the defaults used for a 250 Hz light-sensor session.
func DefaultConfig() Config {
	return Config{
		PreSeconds:  0.2,
		PostSeconds: 0.8,
		LineNoise: NotchConfig{
			Enabled:       true,
			CenterHz:      60,
			HalfBandwidth: 1,
		},
		BandPass: BandPassConfig{
			Enabled: true,
			LowHz:   0.5,
			HighHz:  30,
			Order:   4,
		},
		Polarity:        -1,
		Mode:            ModeThreshold,
		Threshold:       700,
		TriggerBit:      0,
		MinGlitchWidth:  30,
		Short:           Band{Expected: 45, Tolerance: 10},
		Long:            Band{Expected: 135, Tolerance: 10},
		BaselineCorrect: true,
	}
}

// LoadConfig reads a YAML configuration file. Options omitted from the file
// keep their DefaultConfig values. Filter checks that depend on the sample
// rate are deferred to Check.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return cfg, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	fi, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}
	if fi.Size() > maxConfigSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", fi.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config file: %w", err)
	}

	if _, err := cfg.Check(cfg.SampleRate); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Check validates the configuration for a recording sampled at fs Hz. When
// fs is zero the filter edges are only checked for ordering and sign. The
// returned warnings are not fatal.
func (c Config) Check(fs float64) (warnings []string, err error) {
	if c.SampleRate < 0 {
		return nil, configErrorf("sample_rate", "must not be negative, got %g", c.SampleRate)
	}
	if c.SampleRate > 0 && fs > 0 && c.SampleRate != fs {
		return nil, configErrorf("sample_rate", "configured %g Hz but the recording is sampled at %g Hz", c.SampleRate, fs)
	}

	if c.PreSeconds < 0 || math.IsNaN(c.PreSeconds) {
		return nil, configErrorf("pre_seconds", "must not be negative, got %g", c.PreSeconds)
	}
	if !(c.PostSeconds > 0) {
		return nil, configErrorf("post_seconds", "must be positive, got %g", c.PostSeconds)
	}
	if fs > 0 {
		if _, post := c.Window(fs); post < 1 {
			return nil, configErrorf("post_seconds", "%g s is shorter than one sample at %g Hz", c.PostSeconds, fs)
		}
	}

	nyquist := math.Inf(1)
	if fs > 0 {
		nyquist = fs / 2
	}

	if c.LineNoise.Enabled {
		lo := c.LineNoise.CenterHz - c.LineNoise.HalfBandwidth
		hi := c.LineNoise.CenterHz + c.LineNoise.HalfBandwidth
		if !(c.LineNoise.HalfBandwidth > 0) {
			return nil, configErrorf("line_noise.half_bandwidth_hz", "must be positive, got %g", c.LineNoise.HalfBandwidth)
		}
		if !(lo > 0) || !(hi < nyquist) {
			return nil, configErrorf("line_noise.center_hz", "stop band %g-%g Hz outside (0, %g)", lo, hi, nyquist)
		}
	}

	if c.BandPass.Enabled {
		if c.BandPass.Order < 1 {
			return nil, configErrorf("band_pass.order", "must be at least 1, got %d", c.BandPass.Order)
		}
		if !(c.BandPass.LowHz > 0) {
			return nil, configErrorf("band_pass.low_hz", "must be positive, got %g", c.BandPass.LowHz)
		}
		if !(c.BandPass.HighHz > c.BandPass.LowHz) {
			return nil, configErrorf("band_pass.high_hz", "must exceed low_hz (%g), got %g", c.BandPass.LowHz, c.BandPass.HighHz)
		}
		if !(c.BandPass.HighHz < nyquist) {
			return nil, configErrorf("band_pass.high_hz", "must be below the Nyquist frequency %g, got %g", nyquist, c.BandPass.HighHz)
		}
	}

	if c.Polarity != 1 && c.Polarity != -1 {
		return nil, configErrorf("polarity", "must be -1 or 1, got %g", c.Polarity)
	}

	switch c.Mode {
	case ModeThreshold:
	case ModeDigital:
		if c.TriggerBit > 31 {
			return nil, configErrorf("trigger_bit", "must be between 0 and 31, got %d", c.TriggerBit)
		}
		if c.MinGlitchWidth < 0 {
			return nil, configErrorf("min_glitch_width", "must not be negative, got %d", c.MinGlitchWidth)
		}
	default:
		return nil, configErrorf("mode", "unknown detection mode %q", c.Mode)
	}

	if c.Short.Expected <= 0 || c.Short.Tolerance < 0 {
		return nil, configErrorf("short", "expected width must be positive and tolerance non-negative, got %d±%d", c.Short.Expected, c.Short.Tolerance)
	}
	if c.Long.Expected <= 0 || c.Long.Tolerance < 0 {
		return nil, configErrorf("long", "expected width must be positive and tolerance non-negative, got %d±%d", c.Long.Expected, c.Long.Tolerance)
	}
	if c.Short.Overlaps(c.Long) {
		warnings = append(warnings, fmt.Sprintf(
			"tolerance bands overlap (short %d±%d, long %d±%d samples): durations in both bands are classified as non-target",
			c.Short.Expected, c.Short.Tolerance, c.Long.Expected, c.Long.Tolerance))
	}

	if c.Workers < 0 {
		return nil, configErrorf("workers", "must not be negative, got %d", c.Workers)
	}

	return warnings, nil
}

// Window converts the pre/post durations into sample counts at fs Hz.
func (c Config) Window(fs float64) (pre, post int) {
	return int(math.Round(c.PreSeconds * fs)), int(math.Round(c.PostSeconds * fs))
}
