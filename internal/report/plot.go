// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package report renders the averages and trial bookkeeping of a pipeline run.
package report

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/OpenPSG/erp"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var classColors = map[erp.Class]color.Color{
	erp.ClassNonTarget: color.RGBA{R: 31, G: 119, B: 180, A: 255},
	erp.ClassTarget:    color.RGBA{R: 214, G: 39, B: 40, A: 255},
}

// PlotAverages writes one PNG per channel to dir, overlaying the target and
// non-target averages against time from onset. Undefined averages are left
// out of the plot and named in its title. It returns the files written.
func PlotAverages(dir string, res *erp.Result) ([]string, error) {
	averages := []erp.Average{res.NonTarget, res.Target}

	var missing []string
	for _, avg := range averages {
		if !avg.Defined() {
			missing = append(missing, avg.Class.String())
		}
	}
	if len(missing) == len(averages) {
		return nil, nil
	}

	var files []string
	for c, name := range res.ChannelNames {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s - Average Response", name)
		if len(missing) > 0 {
			p.Title.Text += fmt.Sprintf(" (no %s epochs)", strings.Join(missing, ", "))
		}
		p.X.Label.Text = "Time from onset (s)"
		p.Y.Label.Text = "Amplitude (uV)"
		p.Add(plotter.NewGrid())

		for _, avg := range averages {
			if !avg.Defined() {
				continue
			}
			pts := make(plotter.XYs, len(res.TimeOffsets))
			for k, t := range res.TimeOffsets {
				pts[k] = plotter.XY{X: t, Y: avg.Mean.At(k, c)}
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return files, fmt.Errorf("channel %s: %w", name, err)
			}
			line.Color = classColors[avg.Class]
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add(fmt.Sprintf("%s (n=%d)", avg.Class, avg.Trials), line)
		}

		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10

		file := filepath.Join(dir, fmt.Sprintf("channel_%02d.png", c))
		if err := p.Save(10*vg.Inch, 5*vg.Inch, file); err != nil {
			return files, fmt.Errorf("save channel %s plot: %w", name, err)
		}
		files = append(files, file)
	}

	return files, nil
}
