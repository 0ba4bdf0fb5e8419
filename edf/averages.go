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
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/OpenPSG/erp"
	"gonum.org/v1/gonum/mat"
)

// AverageLabel returns the EDF signal label used for a channel's class
// average. Channel labels are cut so the result fits the 16 character field.
func AverageLabel(class erp.Class, channel string) string {
	prefix := "NT "
	if class == erp.ClassTarget {
		prefix = "T "
	}
	label := prefix + channel
	if len(label) > labelWidth {
		label = strings.TrimSpace(label[:labelWidth])
	}
	return label
}

// WriteAverages stores the defined class averages of a run, one epoch long.
// The epoch is split into as many equal data records as needed to keep each
// record within the recommended size. Undefined averages are omitted; an
// error is returned when neither class has any epochs, or when two channels
// would share a label.
func WriteAverages(w io.WriteSeeker, res *erp.Result, hdr Header) error {
	n := res.Geometry.Len()

	var columns [][]float64
	var signals []Signal
	labels := make(map[string]string)
	for _, avg := range []erp.Average{res.NonTarget, res.Target} {
		if !avg.Defined() {
			continue
		}
		for c, name := range res.ChannelNames {
			label := AverageLabel(avg.Class, name)
			if other, ok := labels[label]; ok {
				return fmt.Errorf("channels %q and %q both map to signal label %q", other, name, label)
			}
			labels[label] = name

			col := mat.Col(nil, c, avg.Mean)
			sig := calibrated(col, "uV")
			sig.Label = label
			sig.Prefiltering = fmt.Sprintf("average of %d epochs", avg.Trials)
			signals = append(signals, sig)
			columns = append(columns, col)
		}
	}
	if len(signals) == 0 {
		return errors.New("no defined averages to write")
	}

	perRecord, err := recordLength(n, len(signals))
	if err != nil {
		return err
	}
	for i := range signals {
		signals[i].SamplesPerRecord = perRecord
	}

	hdr.Version = Version0
	hdr.DataRecordDuration = time.Duration(float64(perRecord) / res.SampleRate * float64(time.Second))
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

// recordLength returns the largest number of samples per signal that divides
// an epoch of n samples evenly and keeps a record of signals within
// maxRecordBytes.
func recordLength(n, signals int) (int, error) {
	k := min(n, maxRecordBytes/(2*signals))
	for ; k > 0; k-- {
		if n%k == 0 {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%d signals do not fit in a data record", signals)
}
