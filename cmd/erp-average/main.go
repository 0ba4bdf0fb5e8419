// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command erp-average computes target and non-target event related potential
// averages from an EDF recording.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/OpenPSG/erp"
	"github.com/OpenPSG/erp/edf"
	"github.com/OpenPSG/erp/internal/report"
	"github.com/OpenPSG/erp/internal/store"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.resolveSchema(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("erp-average: %v", err)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.InPath, "in", cfg.InPath, "Path to the EDF recording")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory for plots, summary and averages")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Optional SQLite database to record the run in")
	fs.StringVar(&cfg.PipelinePath, "config", cfg.PipelinePath, "Optional YAML pipeline configuration")
	fs.StringVar(&cfg.SchemaPath, "schema", cfg.SchemaPath, "Optional YAML file naming the channel, analog and digital signals")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "Event detection mode: threshold or digital (default from -config)")
	fs.BoolVar(&cfg.WriteEDF, "write-edf", cfg.WriteEDF, "Write the averages as an EDF file")
	fs.BoolVar(&cfg.WritePlots, "plots", cfg.WritePlots, "Write a PNG plot per channel")
	channels := fs.String("channels", strings.Join(cfg.Schema.Channels, ","), "Comma separated neural channel labels")
	fs.StringVar(&cfg.Schema.Analog, "analog", cfg.Schema.Analog, "Label of the light sensor signal")
	fs.StringVar(&cfg.Schema.Digital, "digital", cfg.Schema.Digital, "Label of the digital trigger signal")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Schema.Channels = splitList(*channels)
	return cfg, nil
}

func run(ctx context.Context, cfg Config) error {
	pcfg, err := cfg.pipeline()
	if err != nil {
		return err
	}

	f, err := os.Open(cfg.InPath)
	if err != nil {
		return err
	}
	defer f.Close()

	table, err := edf.LoadTable(f, cfg.Schema)
	if err != nil {
		return fmt.Errorf("error loading %s: %w", cfg.InPath, err)
	}
	log.Printf("Loaded %d channels, %d samples at %g Hz from %s", len(table.Channels), table.Len(), table.SampleRate, cfg.InPath)

	res, err := erp.Run(ctx, table, pcfg)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		log.Printf("Warning: %s", w)
	}
	for _, d := range res.Diagnostics {
		log.Printf("Diagnostic: %s", d)
	}
	log.Printf("Detected %d events: %d non-target, %d target, %d excluded",
		res.Log.Total, res.Log.NonTargets, res.Log.Targets, res.Log.Excluded)
	for _, e := range res.Log.Exclusions {
		log.Printf("Excluded event %d: %s", e.Index, e.Reason)
	}
	for _, ln := range res.LineNoise {
		log.Printf("Line noise on %s attenuated by %.1f dB", ln.Channel, ln.AttenuationDB)
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return err
	}

	var runID string
	if cfg.DBPath != "" {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("error opening database: %w", err)
		}
		defer db.Close()
		if runID, err = db.SaveRun(ctx, cfg.InPath, res); err != nil {
			return err
		}
		log.Printf("Stored run %s in %s", runID, cfg.DBPath)
	}

	summaryPath := filepath.Join(cfg.OutDir, "summary.json")
	if err := report.WriteSummary(summaryPath, report.Summarise(cfg.InPath, runID, res)); err != nil {
		return err
	}

	if cfg.WritePlots {
		files, err := report.PlotAverages(cfg.OutDir, res)
		if err != nil {
			return err
		}
		log.Printf("Wrote %d plots to %s", len(files), cfg.OutDir)
	}

	if cfg.WriteEDF && (res.NonTarget.Defined() || res.Target.Defined()) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		src, err := edf.Open(f)
		if err != nil {
			return err
		}
		if err := writeAverages(filepath.Join(cfg.OutDir, "averages.edf"), res, *src.Header()); err != nil {
			return err
		}
	}

	return nil
}

func writeAverages(path string, res *erp.Result, src edf.Header) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	hdr := edf.Header{
		PatientID:   src.PatientID,
		RecordingID: src.RecordingID,
		StartTime:   src.StartTime,
	}
	if err := edf.WriteAverages(out, res, hdr); err != nil {
		_ = out.Close()
		return fmt.Errorf("error writing averages: %w", err)
	}
	return out.Close()
}
