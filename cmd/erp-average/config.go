// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/OpenPSG/erp"
	"github.com/OpenPSG/erp/edf"
	"gopkg.in/yaml.v3"
)

// Config is the command line configuration.
type Config struct {
	InPath       string
	OutDir       string
	DBPath       string // Optional; runs are only stored when set
	PipelinePath string // Optional YAML pipeline configuration
	SchemaPath   string // Optional YAML signal schema, overridden by label flags
	Mode         string // Overrides the pipeline detection mode when set
	WriteEDF     bool
	WritePlots   bool
	Schema       edf.Schema
}

func defaultConfig() Config {
	return Config{
		OutDir:     "erp-out",
		WriteEDF:   true,
		WritePlots: true,
	}
}

// Validate checks the flags that do not depend on the recording.
func (c Config) Validate() error {
	if c.InPath == "" {
		return errors.New("missing -in")
	}
	if c.OutDir == "" {
		return errors.New("missing -out")
	}
	if len(c.Schema.Channels) == 0 {
		return errors.New("missing -channels")
	}
	switch erp.DetectMode(c.Mode) {
	case "", erp.ModeThreshold, erp.ModeDigital:
	default:
		return fmt.Errorf("mode must be %q or %q", erp.ModeThreshold, erp.ModeDigital)
	}
	return nil
}

// pipeline returns the pipeline configuration, loaded from PipelinePath if set.
func (c Config) pipeline() (erp.Config, error) {
	cfg := erp.DefaultConfig()
	if c.PipelinePath != "" {
		var err error
		if cfg, err = erp.LoadConfig(c.PipelinePath); err != nil {
			return erp.Config{}, err
		}
	}
	if c.Mode != "" {
		cfg.Mode = erp.DetectMode(c.Mode)
	}
	return cfg, nil
}

// resolveSchema fills the schema labels the flags left unset from SchemaPath.
func (c *Config) resolveSchema() error {
	if c.SchemaPath == "" {
		return nil
	}
	data, err := os.ReadFile(c.SchemaPath)
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}
	var file edf.Schema
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("error parsing schema file: %w", err)
	}
	if len(c.Schema.Channels) == 0 {
		c.Schema.Channels = file.Channels
	}
	if c.Schema.Analog == "" {
		c.Schema.Analog = file.Analog
	}
	if c.Schema.Digital == "" {
		c.Schema.Digital = file.Digital
	}
	return nil
}

// splitList parses a comma separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
