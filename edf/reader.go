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
	"math"
	"strconv"
	"strings"
	"time"
)

// Reader reads EDF/EDF+ files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open parses the header of an EDF/EDF+ file.
func Open(r io.ReadSeeker) (*Reader, error) {
	br := bufio.NewReader(r)

	b := make([]byte, 256)
	if _, err := io.ReadFull(br, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	field := func(from, to int) string { return strings.TrimSpace(string(b[from:to])) }

	hdr := &Header{
		Version:     Version(field(0, 8)),
		PatientID:   field(8, 88),
		RecordingID: field(88, 168),
	}

	startDate, err := time.Parse("02.01.06", field(168, 176))
	if err != nil {
		return nil, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", field(176, 184))
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = strconv.Atoi(field(184, 192)); err != nil {
		return nil, fmt.Errorf("error parsing header bytes: %w", err)
	}
	if hdr.DataRecords, err = strconv.Atoi(field(236, 244)); err != nil {
		return nil, fmt.Errorf("error parsing number of data records: %w", err)
	}
	seconds, err := strconv.ParseFloat(field(244, 252), 64)
	if err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}
	hdr.DataRecordDuration = time.Duration(math.Round(seconds * float64(time.Second)))
	if hdr.SignalCount, err = strconv.Atoi(field(252, 256)); err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}
	if hdr.SignalCount < 0 {
		return nil, fmt.Errorf("invalid signal count: %d", hdr.SignalCount)
	}

	hdr.Signals = make([]Signal, hdr.SignalCount)

	// Each signal field is stored for all signals before the next field begins.
	fields := []struct {
		name  string
		width int
		set   func(sig *Signal, v string) error
	}{
		{"label", labelWidth, func(sig *Signal, v string) error { sig.Label = v; return nil }},
		{"transducer type", 80, func(sig *Signal, v string) error { sig.TransducerType = v; return nil }},
		{"physical dimension", 8, func(sig *Signal, v string) error { sig.PhysicalDimension = v; return nil }},
		{"physical minimum", 8, func(sig *Signal, v string) (err error) { sig.PhysicalMin, err = strconv.ParseFloat(v, 64); return }},
		{"physical maximum", 8, func(sig *Signal, v string) (err error) { sig.PhysicalMax, err = strconv.ParseFloat(v, 64); return }},
		{"digital minimum", 8, func(sig *Signal, v string) (err error) { sig.DigitalMin, err = strconv.Atoi(v); return }},
		{"digital maximum", 8, func(sig *Signal, v string) (err error) { sig.DigitalMax, err = strconv.Atoi(v); return }},
		{"prefiltering", 80, func(sig *Signal, v string) error { sig.Prefiltering = v; return nil }},
		{"samples per record", 8, func(sig *Signal, v string) (err error) { sig.SamplesPerRecord, err = strconv.Atoi(v); return }},
		{"reserved", 32, func(sig *Signal, v string) error { sig.Reserved = v; return nil }},
	}

	for _, f := range fields {
		b := make([]byte, f.width)
		for i := range hdr.Signals {
			if _, err := io.ReadFull(br, b); err != nil {
				return nil, fmt.Errorf("error reading signal headers: %w", err)
			}
			if err := f.set(&hdr.Signals[i], strings.TrimSpace(string(b))); err != nil {
				return nil, fmt.Errorf("error parsing %s of signal %d: %w", f.name, i, err)
			}
		}
	}

	return &Reader{
		r:   r,
		hdr: hdr,
	}, nil
}

// Header returns the parsed file header.
func (er *Reader) Header() *Header {
	return er.hdr
}

// SignalReader reads continuous signal data from an EDF/EDF+ file.
type SignalReader struct {
	r             io.ReadSeeker
	hdr           *Header
	signal        Signal
	currentRecord int       // Next record to load
	buf           []float64 // Unread physical values of the current record
	raw           []byte
	recordSize    int // Total size of one data record
	signalOffset  int // Byte offset of the signal in a record
}

// Signal creates a new SignalReader for a specified signal index.
func (er *Reader) Signal(signalIndex int) (*SignalReader, error) {
	if signalIndex < 0 || signalIndex >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index out of range")
	}

	signal := er.hdr.Signals[signalIndex]
	return &SignalReader{
		r:            er.r,
		hdr:          er.hdr,
		signal:       signal,
		raw:          make([]byte, signal.SamplesPerRecord*2),
		recordSize:   er.hdr.recordSize(),
		signalOffset: er.hdr.signalOffset(signalIndex),
	}, nil
}

// Read fills the provided float64 slice with the physical values from the signal.
func (sr *SignalReader) Read(data []float64) (int, error) {
	n := 0
	for n < len(data) {
		if len(sr.buf) == 0 {
			if sr.currentRecord >= sr.hdr.DataRecords {
				return n, io.EOF
			}
			if err := sr.loadRecord(); err != nil {
				return n, err
			}
		}
		c := copy(data[n:], sr.buf)
		sr.buf = sr.buf[c:]
		n += c
	}
	return n, nil
}

// loadRecord reads this signal's segment of the next data record.
func (sr *SignalReader) loadRecord() error {
	pos := int64(sr.hdr.HeaderBytes) + int64(sr.currentRecord)*int64(sr.recordSize) + int64(sr.signalOffset)
	if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to position: %w", err)
	}
	if _, err := io.ReadFull(sr.r, sr.raw); err != nil {
		return fmt.Errorf("error reading sample data: %w", err)
	}

	values := make([]float64, sr.signal.SamplesPerRecord)
	for i := range values {
		digital := int16(binary.LittleEndian.Uint16(sr.raw[i*2:]))
		values[i] = digitalToPhysical(digital, sr.signal)
	}
	sr.buf = values
	sr.currentRecord++
	return nil
}

// ReadAll reads every remaining sample of the signal.
func (sr *SignalReader) ReadAll() ([]float64, error) {
	remaining := len(sr.buf)
	if sr.hdr.DataRecords > sr.currentRecord {
		remaining += (sr.hdr.DataRecords - sr.currentRecord) * sr.signal.SamplesPerRecord
	}
	data := make([]float64, remaining)
	n, err := sr.Read(data)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return data[:n], nil
}
