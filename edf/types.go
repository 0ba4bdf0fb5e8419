// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package edf reads and writes EDF/EDF+ biosignal recordings and maps them
// onto the sample table consumed by the erp pipeline.
package edf

import (
	"math"
	"time"
)

type Version string

const (
	// Version0 represents the version of the EDF/EDF+ standard.
	Version0 Version = "0"
)

// labelWidth is the size of the signal label header field.
const labelWidth = 16

// Header represents the EDF/EDF+ file header.
type Header struct {
	Version            Version       // Version of the EDF/EDF+ standard (usually "0")
	PatientID          string        // Identification of the patient
	RecordingID        string        // Identification of the recording session
	StartTime          time.Time     // Start date of the recording
	HeaderBytes        int           // Number of bytes in the header
	DataRecordDuration time.Duration // Duration of a single data record
	DataRecords        int           // Number of data records, -1 if unknown
	SignalCount        int           // Number of signals in each data record
	Signals            []Signal      // Details of each signal
}

// Signal represents the characteristics of each signal in the EDF/EDF+ file.
type Signal struct {
	Label             string  // Label of the signal (e.g., EEG Fpz-Cz)
	TransducerType    string  // Type of transducer used
	PhysicalDimension string  // Physical dimension (e.g., uV, mV)
	PhysicalMin       float64 // Minimum physical value
	PhysicalMax       float64 // Maximum physical value
	DigitalMin        int     // Minimum digital value
	DigitalMax        int     // Maximum digital value
	Prefiltering      string  // Pre-filtering information
	SamplesPerRecord  int     // Number of samples in each data record for this signal
	Reserved          string  // Reserved for future use
}

// SampleRate returns the signal's sampling frequency in Hz.
func (h *Header) SampleRate(signalIndex int) float64 {
	if h.DataRecordDuration <= 0 {
		return 0
	}
	return float64(h.Signals[signalIndex].SamplesPerRecord) / h.DataRecordDuration.Seconds()
}

// recordSize returns the size in bytes of one data record.
func (h *Header) recordSize() int {
	size := 0
	for _, sig := range h.Signals {
		size += sig.SamplesPerRecord * 2
	}
	return size
}

// signalOffset returns the byte offset of a signal within a data record.
func (h *Header) signalOffset(signalIndex int) int {
	offset := 0
	for _, sig := range h.Signals[:signalIndex] {
		offset += sig.SamplesPerRecord * 2
	}
	return offset
}

// Both conversions round to the nearest step so that integer-valued signals
// such as trigger words survive a write/read cycle exactly.

func digitalToPhysical(digital int16, sig Signal) float64 {
	if sig.DigitalMax == sig.DigitalMin {
		return 0
	}
	return sig.PhysicalMin + (float64(digital)-float64(sig.DigitalMin))*(sig.PhysicalMax-sig.PhysicalMin)/float64(sig.DigitalMax-sig.DigitalMin)
}

func physicalToDigital(physical float64, sig Signal) int16 {
	if sig.PhysicalMax == sig.PhysicalMin {
		return 0
	}
	digital := (physical-sig.PhysicalMin)*float64(sig.DigitalMax-sig.DigitalMin)/(sig.PhysicalMax-sig.PhysicalMin) + float64(sig.DigitalMin)
	digital = math.Round(digital)
	switch {
	case digital < float64(sig.DigitalMin):
		digital = float64(sig.DigitalMin)
	case digital > float64(sig.DigitalMax):
		digital = float64(sig.DigitalMax)
	}
	return int16(digital)
}
