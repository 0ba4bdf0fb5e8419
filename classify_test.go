// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package erp_test

import (
	"fmt"
	"testing"

	"github.com/OpenPSG/erp"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func defaultClassifier() erp.Classifier {
	return erp.Classifier{
		Short:    erp.Band{Expected: 45, Tolerance: 10},
		Long:     erp.Band{Expected: 135, Tolerance: 10},
		Geometry: erp.Geometry{Pre: 50, Post: 200},
		Length:   2500,
	}
}

func TestClassify(t *testing.T) {
	c := defaultClassifier()
	tests := []struct {
		name  string
		event erp.Event
		want  erp.Label
	}{
		{"short centre", erp.Event{Onset: 500, Duration: 45}, erp.NonTarget{}},
		{"short lower edge", erp.Event{Onset: 500, Duration: 35}, erp.NonTarget{}},
		{"short upper edge", erp.Event{Onset: 500, Duration: 55}, erp.NonTarget{}},
		{"long centre", erp.Event{Onset: 500, Duration: 135}, erp.Target{}},
		{"long lower edge", erp.Event{Onset: 500, Duration: 125}, erp.Target{}},
		{"long upper edge", erp.Event{Onset: 500, Duration: 145}, erp.Target{}},
		{"below short", erp.Event{Onset: 500, Duration: 34}, erp.Excluded{Reason: "unrecognized pulse duration: 34 samples"}},
		{"between bands", erp.Event{Onset: 500, Duration: 80}, erp.Excluded{Reason: "unrecognized pulse duration: 80 samples"}},
		{"above long", erp.Event{Onset: 500, Duration: 146}, erp.Excluded{Reason: "unrecognized pulse duration: 146 samples"}},
		{"first valid onset", erp.Event{Onset: 50, Duration: 45}, erp.NonTarget{}},
		{"last valid onset", erp.Event{Onset: 2300, Duration: 135}, erp.Target{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.event))
		})
	}
}

func TestClassifyOutOfBounds(t *testing.T) {
	c := defaultClassifier()
	for _, onset := range []int{0, 1, 49, 2301, 2499, 3000} {
		for _, duration := range []int{1, 45, 80, 135} {
			t.Run(fmt.Sprintf("onset %d duration %d", onset, duration), func(t *testing.T) {
				got := c.Classify(erp.Event{Onset: onset, Duration: duration})
				assert.Equal(t, erp.Excluded{Reason: erp.ReasonOutOfBounds}, got)
			})
		}
	}
}

func TestClassifyOverlapPrefersShort(t *testing.T) {
	c := defaultClassifier()
	c.Short = erp.Band{Expected: 60, Tolerance: 30}
	c.Long = erp.Band{Expected: 100, Tolerance: 30}
	assert.True(t, c.Short.Overlaps(c.Long))

	assert.Equal(t, erp.NonTarget{}, c.Classify(erp.Event{Onset: 500, Duration: 80}))
	assert.Equal(t, erp.Target{}, c.Classify(erp.Event{Onset: 500, Duration: 120}))
}

func TestClassifyAll(t *testing.T) {
	c := defaultClassifier()
	events := []erp.Event{
		{Onset: 10, Duration: 45},
		{Onset: 500, Duration: 45},
		{Onset: 800, Duration: 80},
		{Onset: 1250, Duration: 135},
		{Onset: 2400, Duration: 135},
	}

	got, log := c.ClassifyAll(events)
	want := []erp.ClassifiedEvent{
		{Event: events[0], Label: erp.Excluded{Reason: erp.ReasonOutOfBounds}},
		{Event: events[1], Label: erp.NonTarget{}},
		{Event: events[2], Label: erp.Excluded{Reason: "unrecognized pulse duration: 80 samples"}},
		{Event: events[3], Label: erp.Target{}},
		{Event: events[4], Label: erp.Excluded{Reason: erp.ReasonOutOfBounds}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	wantLog := erp.TrialLog{
		Total:      5,
		Targets:    1,
		NonTargets: 1,
		Excluded:   3,
		Exclusions: []erp.Exclusion{
			{Index: 0, Reason: erp.ReasonOutOfBounds},
			{Index: 2, Reason: "unrecognized pulse duration: 80 samples"},
			{Index: 4, Reason: erp.ReasonOutOfBounds},
		},
	}
	if diff := cmp.Diff(wantLog, log); diff != "" {
		t.Errorf("trial log mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, log.Included())

	// Classification is a pure function of its inputs.
	again, againLog := c.ClassifyAll(events)
	assert.Empty(t, cmp.Diff(got, again))
	assert.Empty(t, cmp.Diff(log, againLog))
}

func TestLabelStrings(t *testing.T) {
	assert.Equal(t, "target", erp.Target{}.String())
	assert.Equal(t, "non-target", erp.NonTarget{}.String())
	assert.Equal(t, "excluded: out-of-bounds epoch", erp.Excluded{Reason: erp.ReasonOutOfBounds}.String())
	assert.Equal(t, "target", erp.ClassTarget.String())
	assert.Equal(t, "non-target", erp.ClassNonTarget.String())
}
