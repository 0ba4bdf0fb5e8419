// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/OpenPSG/erp"
)

// Schema names the EDF signals that make up a sample table.
type Schema struct {
	Channels []string `yaml:"channels"` // Neural channel labels, in output order
	Analog   string   `yaml:"analog"`   // Continuous auxiliary label, optional
	Digital  string   `yaml:"digital"`  // Digital trigger label, optional
}

// LoadTable reads the signals named by schema into a sample table. Every
// selected signal must share one sample rate. Labels that are missing from
// the file are reported as malformed input.
func LoadTable(r io.ReadSeeker, schema Schema) (*erp.Table, error) {
	er, err := Open(r)
	if err != nil {
		return nil, err
	}
	hdr := er.Header()

	byLabel := make(map[string]int, len(hdr.Signals))
	for i, sig := range hdr.Signals {
		if _, ok := byLabel[sig.Label]; !ok {
			byLabel[sig.Label] = i
		}
	}

	t := &erp.Table{}
	var rate float64
	var haveRate bool
	read := func(label string) ([]float64, error) {
		i, ok := byLabel[label]
		if !ok {
			return nil, &erp.MalformedInputError{Column: label, Msg: "signal not present in recording"}
		}
		fs := hdr.SampleRate(i)
		switch {
		case !(fs > 0) || math.IsInf(fs, 0):
			return nil, &erp.MalformedInputError{Column: label, Msg: fmt.Sprintf("invalid sample rate %g Hz", fs)}
		case !haveRate:
			rate, haveRate = fs, true
		case fs != rate:
			return nil, &erp.MalformedInputError{Column: label, Msg: fmt.Sprintf("sampled at %g Hz, expected %g Hz", fs, rate)}
		}
		sr, err := er.Signal(i)
		if err != nil {
			return nil, err
		}
		data, err := sr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("error reading signal %q: %w", label, err)
		}
		return data, nil
	}

	if len(schema.Channels) == 0 {
		return nil, &erp.MalformedInputError{Msg: "schema names no neural channels"}
	}
	for _, label := range schema.Channels {
		data, err := read(label)
		if err != nil {
			return nil, err
		}
		t.ChannelNames = append(t.ChannelNames, label)
		t.Channels = append(t.Channels, data)
	}

	if schema.Analog != "" {
		if t.Analog, err = read(schema.Analog); err != nil {
			return nil, err
		}
	}
	if schema.Digital != "" {
		values, err := read(schema.Digital)
		if err != nil {
			return nil, err
		}
		t.Digital = make([]uint32, len(values))
		for i, v := range values {
			if v < 0 || v > math.MaxUint32 {
				return nil, &erp.MalformedInputError{Column: schema.Digital, Msg: fmt.Sprintf("sample %d: %g is not a trigger word", i, v)}
			}
			t.Digital[i] = uint32(math.Round(v))
		}
	}

	t.SampleRate = rate
	return t, nil
}

// digitalRange is the calibration used for trigger words, one step per unit.
const digitalRange = math.MaxInt16

// WriteTable stores a sample table as EDF, one second per data record. The
// table length must be a whole number of seconds at an integral sample rate.
// Neural and analog signals are calibrated to their own range; the digital
// trigger column is stored one unit per step and must fit in 15 bits.
func WriteTable(w io.WriteSeeker, t *erp.Table, hdr Header, schema Schema) error {
	perRecord := int(t.SampleRate)
	if float64(perRecord) != t.SampleRate || perRecord <= 0 {
		return fmt.Errorf("sample rate %g Hz is not a whole number of samples per second", t.SampleRate)
	}
	n := t.Len()
	if n%perRecord != 0 {
		return fmt.Errorf("%d samples is not a whole number of %d sample records", n, perRecord)
	}

	var columns [][]float64
	var signals []Signal
	add := func(label string, data []float64, sig Signal) {
		sig.Label = label
		sig.SamplesPerRecord = perRecord
		signals = append(signals, sig)
		columns = append(columns, data)
	}

	names := t.Names()
	if len(schema.Channels) == len(t.Channels) {
		names = schema.Channels
	}
	for c, ch := range t.Channels {
		add(names[c], ch, calibrated(ch, "uV"))
	}
	if schema.Analog != "" && t.Analog != nil {
		add(schema.Analog, t.Analog, calibrated(t.Analog, ""))
	}
	if schema.Digital != "" && t.Digital != nil {
		words := make([]float64, len(t.Digital))
		for i, v := range t.Digital {
			if v > digitalRange {
				return fmt.Errorf("trigger word %d at sample %d does not fit in an EDF sample", v, i)
			}
			words[i] = float64(v)
		}
		add(schema.Digital, words, Signal{
			PhysicalMin: 0,
			PhysicalMax: digitalRange,
			DigitalMin:  0,
			DigitalMax:  digitalRange,
		})
	}

	hdr.Version = Version0
	hdr.DataRecordDuration = time.Second
	hdr.SignalCount = len(signals)
	hdr.Signals = signals

	ew, err := Create(w, hdr)
	if err != nil {
		return err
	}
	record := make([][]float64, len(columns))
	for start := 0; start < n; start += perRecord {
		for i, col := range columns {
			record[i] = col[start : start+perRecord]
		}
		if err := ew.WriteRecord(record); err != nil {
			return fmt.Errorf("error writing record %d: %w", start/perRecord, err)
		}
	}
	return ew.Close()
}

// calibrated returns a signal whose physical range covers data with whole
// number limits, so the header text represents it exactly. The range is
// symmetric so that zero is stored exactly.
func calibrated(data []float64, unit string) Signal {
	m := 0.0
	for _, v := range data {
		m = math.Max(m, math.Abs(v))
	}
	m = math.Ceil(m) + 1
	return Signal{
		PhysicalDimension: unit,
		PhysicalMin:       -m,
		PhysicalMax:       m,
		DigitalMin:        -math.MaxInt16,
		DigitalMax:        math.MaxInt16,
	}
}
