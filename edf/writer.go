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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxRecordBytes is the data record size recommended by the EDF standard.
const maxRecordBytes = 61440

// Writer writes EDF files.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	dataRecords int // Number of data records written so far.
}

// Create creates a new EDF writer that writes to the given writer.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	if len(hdr.Signals) != hdr.SignalCount {
		return nil, fmt.Errorf("header declares %d signals but describes %d", hdr.SignalCount, len(hdr.Signals))
	}
	hdr.DataRecords = -1 // Unknown number of data records (at this time).

	// Calibrate against the header text a reader will see.
	hdr.Signals = append([]Signal(nil), hdr.Signals...)
	for i := range hdr.Signals {
		sig := &hdr.Signals[i]
		sig.PhysicalMin, _ = strconv.ParseFloat(formatNumber(sig.PhysicalMin), 64)
		sig.PhysicalMax, _ = strconv.ParseFloat(formatNumber(sig.PhysicalMax), 64)
	}

	ew := &Writer{w: w, hdr: &hdr}
	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	if _, err := ew.w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("error seeking to end: %w", err)
	}

	return nil
}

// WriteRecord writes a single data record to the EDF file.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	if len(signals) != ew.hdr.SignalCount {
		return fmt.Errorf("expected %d signals, got %d", ew.hdr.SignalCount, len(signals))
	}

	var totalSamples int
	for i, signal := range signals {
		if want := ew.hdr.Signals[i].SamplesPerRecord; len(signal) != want {
			return fmt.Errorf("signal %d: expected %d samples per record, got %d", i, want, len(signal))
		}
		totalSamples += len(signal)
	}
	if totalSamples*2 > maxRecordBytes {
		return fmt.Errorf("data record too large: %d bytes, max is %d bytes", totalSamples*2, maxRecordBytes)
	}

	buf := make([]byte, 0, totalSamples*2)
	for i, signal := range signals {
		for _, v := range signal {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(physicalToDigital(v, ew.hdr.Signals[i])))
		}
	}
	if _, err := ew.w.Write(buf); err != nil {
		return fmt.Errorf("error writing data record: %w", err)
	}

	ew.dataRecords++
	return nil
}

// writeHeader rewinds and writes the fixed and per-signal header fields.
func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	hdr := ew.hdr
	hdr.HeaderBytes = 256 + hdr.SignalCount*256

	bw := bufio.NewWriter(ew.w)
	put := func(width int, v string) {
		if len(v) > width {
			v = v[:width]
		}
		fmt.Fprintf(bw, "%-*s", width, v)
	}

	put(8, string(hdr.Version))
	put(80, hdr.PatientID)
	put(80, hdr.RecordingID)
	put(8, hdr.StartTime.Format("02.01.06"))
	put(8, hdr.StartTime.Format("15.04.05"))
	put(8, strconv.Itoa(hdr.HeaderBytes))
	put(44, "")
	put(8, strconv.Itoa(hdr.DataRecords))
	put(8, formatNumber(hdr.DataRecordDuration.Seconds()))
	put(4, strconv.Itoa(hdr.SignalCount))

	fields := []struct {
		width int
		get   func(sig Signal) string
	}{
		{labelWidth, func(sig Signal) string { return sig.Label }},
		{80, func(sig Signal) string { return sig.TransducerType }},
		{8, func(sig Signal) string { return sig.PhysicalDimension }},
		{8, func(sig Signal) string { return formatNumber(sig.PhysicalMin) }},
		{8, func(sig Signal) string { return formatNumber(sig.PhysicalMax) }},
		{8, func(sig Signal) string { return strconv.Itoa(sig.DigitalMin) }},
		{8, func(sig Signal) string { return strconv.Itoa(sig.DigitalMax) }},
		{80, func(sig Signal) string { return sig.Prefiltering }},
		{8, func(sig Signal) string { return strconv.Itoa(sig.SamplesPerRecord) }},
		{32, func(sig Signal) string { return "" }},
	}
	for _, f := range fields {
		for _, sig := range hdr.Signals {
			put(f.width, f.get(sig))
		}
	}

	return bw.Flush()
}

// formatNumber renders v in at most 8 characters, dropping precision as needed.
func formatNumber(v float64) string {
	for prec := 4; prec >= 0; prec-- {
		s := strconv.FormatFloat(v, 'f', prec, 64)
		if len(s) <= 8 {
			return trimZeros(s)
		}
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	for i := len(s) - 1; i > 0; i-- {
		if s[i] == '.' {
			return s[:i]
		}
		if s[i] != '0' {
			return s[:i+1]
		}
	}
	return s
}
