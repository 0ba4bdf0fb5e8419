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
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Epoch is one trial window of the conditioned signal.
type Epoch struct {
	Event
	Class Class
	Data  *mat.Dense // Geometry.Len() rows by channel columns
}

// Average is the mean waveform of one class. Mean is nil when the class
// collected no epochs.
type Average struct {
	Class  Class
	Trials int
	Mean   *mat.Dense // Epoch length rows by channel columns
}

// Defined reports whether the class collected at least one epoch.
func (a Average) Defined() bool {
	return a.Trials > 0 && a.Mean != nil
}

// ExtractEpoch slices the window anchored at onset out of every channel.
// With baseline set, each channel has the mean of its first g.Pre samples
// subtracted. The window must lie inside the recording.
func ExtractEpoch(channels [][]float64, onset int, g Geometry, baseline bool) *mat.Dense {
	start, end := g.Bounds(onset)
	data := mat.NewDense(g.Len(), len(channels), nil)

	col := make([]float64, g.Len())
	for c, ch := range channels {
		copy(col, ch[start:end+1])
		if baseline && g.Pre > 0 {
			floats.AddConst(-stat.Mean(col[:g.Pre], nil), col)
		}
		data.SetCol(c, col)
	}
	return data
}

// accumulator is a running sum of epochs for one class.
type accumulator struct {
	sum *mat.Dense
	n   int
}

func (a *accumulator) add(m *mat.Dense) {
	if a.sum == nil {
		r, c := m.Dims()
		a.sum = mat.NewDense(r, c, nil)
	}
	a.sum.Add(a.sum, m)
	a.n++
}

func (a *accumulator) merge(o accumulator) {
	if o.n == 0 {
		return
	}
	if a.sum == nil {
		a.sum = mat.DenseCopyOf(o.sum)
	} else {
		a.sum.Add(a.sum, o.sum)
	}
	a.n += o.n
}

func (a accumulator) average(class Class) Average {
	avg := Average{Class: class, Trials: a.n}
	if a.n > 0 {
		avg.Mean = mat.DenseCopyOf(a.sum)
		avg.Mean.Scale(1/float64(a.n), avg.Mean)
	}
	return avg
}

// Averager extracts epochs for included events and averages them per class.
type Averager struct {
	Geometry        Geometry
	BaselineCorrect bool
	KeepEpochs      bool
	Workers         int // 0 means GOMAXPROCS
}

// Averages holds the per-class results of an averaging pass.
type Averages struct {
	NonTarget Average
	Target    Average
	Epochs    []Epoch // Detection order, only populated with KeepEpochs
}

// Get returns the average for class.
func (a Averages) Get(class Class) Average {
	if class == ClassTarget {
		return a.Target
	}
	return a.NonTarget
}

// Average processes the included events in contiguous chunks, one chunk per
// worker, each with its own accumulators. Chunk sums are merged in chunk
// order and divided once, so the result is the arithmetic mean regardless of
// scheduling.
func (av Averager) Average(ctx context.Context, channels [][]float64, events []ClassifiedEvent) (Averages, error) {
	type job struct {
		event ClassifiedEvent
		class Class
	}
	jobs := make([]job, 0, len(events))
	for _, e := range events {
		if class, ok := classOf(e.Label); ok {
			jobs = append(jobs, job{event: e, class: class})
		}
	}

	chunks := workerLimit(av.Workers)
	if chunks > len(jobs) {
		chunks = len(jobs)
	}
	accs := make([][2]accumulator, chunks)
	kept := make([][]Epoch, chunks)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < chunks; w++ {
		lo, hi := w*len(jobs)/chunks, (w+1)*len(jobs)/chunks
		g.Go(func() error {
			for _, j := range jobs[lo:hi] {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("error averaging epochs: %w", err)
				}
				data := ExtractEpoch(channels, j.event.Onset, av.Geometry, av.BaselineCorrect)
				accs[w][j.class].add(data)
				if av.KeepEpochs {
					kept[w] = append(kept[w], Epoch{Event: j.event.Event, Class: j.class, Data: data})
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Averages{}, err
	}

	var total [2]accumulator
	var out Averages
	for w := range accs {
		total[ClassNonTarget].merge(accs[w][ClassNonTarget])
		total[ClassTarget].merge(accs[w][ClassTarget])
		out.Epochs = append(out.Epochs, kept[w]...)
	}
	out.NonTarget = total[ClassNonTarget].average(ClassNonTarget)
	out.Target = total[ClassTarget].average(ClassTarget)
	return out, nil
}

// TimeOffsets returns the time of each epoch sample relative to onset, in seconds.
func (g Geometry) TimeOffsets(fs float64) []float64 {
	t := make([]float64, g.Len())
	for k := range t {
		t[k] = float64(k-g.Pre) / fs
	}
	return t
}

func workerLimit(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}
