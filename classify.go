// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package erp

import "fmt"

// ReasonOutOfBounds is the exclusion reason for epochs that leave the recording.
const ReasonOutOfBounds = "out-of-bounds epoch"

// Label is the outcome of classifying an event: Target, NonTarget or Excluded.
type Label interface {
	fmt.Stringer
	isLabel()
}

// Target labels a long pulse trial.
type Target struct{}

// NonTarget labels a short pulse trial.
type NonTarget struct{}

// Excluded labels an event that contributes to no average.
type Excluded struct {
	Reason string
}

func (Target) isLabel()    {}
func (NonTarget) isLabel() {}
func (Excluded) isLabel()  {}

func (Target) String() string     { return "target" }
func (NonTarget) String() string  { return "non-target" }
func (e Excluded) String() string { return "excluded: " + e.Reason }

// Class identifies one of the two averaged trial classes.
type Class int

const (
	ClassNonTarget Class = iota
	ClassTarget
)

func (c Class) String() string {
	if c == ClassTarget {
		return "target"
	}
	return "non-target"
}

// classOf maps an included label to its class.
func classOf(l Label) (Class, bool) {
	switch l.(type) {
	case Target:
		return ClassTarget, true
	case NonTarget:
		return ClassNonTarget, true
	default:
		return 0, false
	}
}

// ClassifiedEvent is an event with its label.
type ClassifiedEvent struct {
	Event
	Label Label
}

// Exclusion records why the event at Index (position in detection order) was excluded.
type Exclusion struct {
	Index  int
	Reason string
}

// TrialLog is the inclusion/exclusion bookkeeping of a classification pass.
type TrialLog struct {
	Total      int
	Targets    int
	NonTargets int
	Excluded   int
	Exclusions []Exclusion
}

// Included returns the number of events that contribute to an average.
func (l TrialLog) Included() int {
	return l.Targets + l.NonTargets
}

// Geometry is the epoch window around an onset, in samples.
type Geometry struct {
	Pre  int // Samples before onset
	Post int // Samples from onset onwards, onset included
}

// Len returns the number of samples in an epoch.
func (g Geometry) Len() int {
	return g.Pre + g.Post
}

// Bounds returns the first and last sample index of the epoch anchored at onset.
func (g Geometry) Bounds(onset int) (start, end int) {
	return onset - g.Pre, onset + g.Post - 1
}

// Classifier assigns labels from pulse durations and epoch bounds.
type Classifier struct {
	Short    Band // NonTarget; tested first
	Long     Band // Target
	Geometry Geometry
	Length   int // Samples in the recording
}

// Classify labels a single event. The window check takes precedence over the
// duration bands, and the short band takes precedence over the long band when
// both match.
func (c Classifier) Classify(e Event) Label {
	start, end := c.Geometry.Bounds(e.Onset)
	switch {
	case start < 0 || end > c.Length-1:
		return Excluded{Reason: ReasonOutOfBounds}
	case c.Short.Contains(e.Duration):
		return NonTarget{}
	case c.Long.Contains(e.Duration):
		return Target{}
	default:
		return Excluded{Reason: fmt.Sprintf("unrecognized pulse duration: %d samples", e.Duration)}
	}
}

// ClassifyAll labels events in detection order and tallies the trial log.
func (c Classifier) ClassifyAll(events []Event) ([]ClassifiedEvent, TrialLog) {
	out := make([]ClassifiedEvent, len(events))
	log := TrialLog{Total: len(events)}
	for i, e := range events {
		l := c.Classify(e)
		out[i] = ClassifiedEvent{Event: e, Label: l}
		switch l := l.(type) {
		case Target:
			log.Targets++
		case NonTarget:
			log.NonTargets++
		case Excluded:
			log.Excluded++
			log.Exclusions = append(log.Exclusions, Exclusion{Index: i, Reason: l.Reason})
		}
	}
	return out, log
}
