// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package report_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/erp"
	"github.com/OpenPSG/erp/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run processes a 10 second, 250 Hz, two channel session with light sensor
// pulses of the given widths, one every two seconds starting at t=1s.
func run(t *testing.T, widths ...int) *erp.Result {
	const n = 2500
	table := &erp.Table{
		SampleRate:   250,
		ChannelNames: []string{"Fz", "Cz"},
		Channels:     [][]float64{make([]float64, n), make([]float64, n)},
		Analog:       make([]float64, n),
	}
	for i := range table.Analog {
		table.Analog[i] = 1000
		table.Channels[0][i] = float64(i%25) - 12
	}
	for p, w := range widths {
		onset := 250 + p*500
		for i := onset; i < onset+w; i++ {
			table.Analog[i] = 0
		}
	}

	res, err := erp.Run(context.Background(), table, erp.DefaultConfig())
	require.NoError(t, err)
	return res
}

func TestPlotAverages(t *testing.T) {
	dir := t.TempDir()
	files, err := report.PlotAverages(dir, run(t, 45, 135, 45))
	require.NoError(t, err)
	require.Len(t, files, 2)

	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	assert.Equal(t, filepath.Join(dir, "channel_00.png"), files[0])
}

func TestPlotAveragesUndefinedClass(t *testing.T) {
	files, err := report.PlotAverages(t.TempDir(), run(t, 45))
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = report.PlotAverages(t.TempDir(), run(t))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSummary(t *testing.T) {
	res := run(t, 45, 135, 80)
	s := report.Summarise("session.edf", "run-1", res)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.NonTargets)
	assert.Equal(t, 1, s.Targets)
	assert.Equal(t, 1, s.Excluded)
	require.Len(t, s.Exclusions, 1)
	assert.Equal(t, 2, s.Exclusions[0].Index)
	assert.Equal(t, "unrecognized pulse duration: 80 samples", s.Exclusions[0].Reason)

	require.Len(t, s.Events, 3)
	assert.Equal(t, report.Trial{Onset: 250, Duration: 45, Label: "non-target"}, s.Events[0])
	assert.Equal(t, "excluded", s.Events[2].Label)

	require.Len(t, s.Classes, 2)
	assert.Equal(t, "target", s.Classes[1].Class)
	assert.True(t, s.Classes[1].Defined)
	assert.Equal(t, 135.0, s.Classes[1].PulseMedian)

	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, report.WriteSummary(path, s))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var got report.Summary
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, s.Exclusions, got.Exclusions)
	assert.Equal(t, []string{"Fz", "Cz"}, got.Channels)
}

func TestSummaryEmpty(t *testing.T) {
	s := report.Summarise("", "", run(t))
	assert.Zero(t, s.Total)
	assert.NotNil(t, s.Exclusions)
	assert.NotNil(t, s.Events)
	assert.Contains(t, s.Diagnostics, "no stimulus events detected")
	assert.False(t, s.Classes[0].Defined)
	assert.False(t, s.Classes[1].Defined)
}
