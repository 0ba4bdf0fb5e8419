// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package store persists pipeline runs to SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/OpenPSG/erp"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id       TEXT PRIMARY KEY,
		source       TEXT,
		sample_rate  DOUBLE,
		pre_samples  INTEGER,
		post_samples INTEGER,
		channels     INTEGER,
		total        INTEGER,
		targets      INTEGER,
		non_targets  INTEGER,
		excluded     INTEGER,
		created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS trials (
		run_id       TEXT,
		event_index  INTEGER,
		onset        INTEGER,
		duration     INTEGER,
		label        TEXT,
		reason       TEXT,
		PRIMARY KEY (run_id, event_index),
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);
	CREATE TABLE IF NOT EXISTS averages (
		run_id       TEXT,
		class        TEXT,
		channel      INTEGER,
		channel_name TEXT,
		sample       INTEGER,
		offset_s     DOUBLE,
		value        DOUBLE,
		PRIMARY KEY (run_id, class, channel, sample),
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);
`

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Store is a SQLite database of pipeline runs.
type Store struct {
	*sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error creating schema: %w", err)
	}
	return &Store{db}, nil
}

// Run is the stored summary of one pipeline run.
type Run struct {
	ID         string
	Source     string
	SampleRate float64
	Geometry   erp.Geometry
	Channels   int
	Log        erp.TrialLog
	CreatedAt  string // SQLite CURRENT_TIMESTAMP text
}

// SaveRun records a result and returns the new run id. Everything is written
// in one transaction.
func (s *Store) SaveRun(ctx context.Context, source string, res *erp.Result) (string, error) {
	id := uuid.NewString()

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, source, sample_rate, pre_samples, post_samples, channels, total, targets, non_targets, excluded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, source, res.SampleRate, res.Geometry.Pre, res.Geometry.Post, len(res.ChannelNames),
		res.Log.Total, res.Log.Targets, res.Log.NonTargets, res.Log.Excluded)
	if err != nil {
		return "", fmt.Errorf("error inserting run: %w", err)
	}

	trial, err := tx.PrepareContext(ctx, `INSERT INTO trials (run_id, event_index, onset, duration, label, reason) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer trial.Close()
	for i, e := range res.Events {
		label, reason := labelColumns(e.Label)
		if _, err := trial.ExecContext(ctx, id, i, e.Onset, e.Duration, label, reason); err != nil {
			return "", fmt.Errorf("error inserting trial %d: %w", i, err)
		}
	}

	sample, err := tx.PrepareContext(ctx, `INSERT INTO averages (run_id, class, channel, channel_name, sample, offset_s, value) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer sample.Close()
	for _, avg := range []erp.Average{res.NonTarget, res.Target} {
		if !avg.Defined() {
			continue
		}
		rows, cols := avg.Mean.Dims()
		for c := 0; c < cols; c++ {
			for k := 0; k < rows; k++ {
				if _, err := sample.ExecContext(ctx, id, avg.Class.String(), c, res.ChannelNames[c], k, res.TimeOffsets[k], avg.Mean.At(k, c)); err != nil {
					return "", fmt.Errorf("error inserting %s average: %w", avg.Class, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func labelColumns(l erp.Label) (label, reason string) {
	switch l := l.(type) {
	case erp.Excluded:
		return "excluded", l.Reason
	default:
		return l.String(), ""
	}
}

// Run loads the summary of a stored run, including its exclusion list.
func (s *Store) Run(ctx context.Context, id string) (*Run, error) {
	r := &Run{ID: id}
	err := s.QueryRowContext(ctx, `
		SELECT source, sample_rate, pre_samples, post_samples, channels, total, targets, non_targets, excluded, created_at
		FROM runs WHERE run_id = ?`, id).Scan(
		&r.Source, &r.SampleRate, &r.Geometry.Pre, &r.Geometry.Post, &r.Channels,
		&r.Log.Total, &r.Log.Targets, &r.Log.NonTargets, &r.Log.Excluded, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading run: %w", err)
	}

	rows, err := s.QueryContext(ctx, `SELECT event_index, reason FROM trials WHERE run_id = ? AND label = 'excluded' ORDER BY event_index`, id)
	if err != nil {
		return nil, fmt.Errorf("error loading exclusions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e erp.Exclusion
		if err := rows.Scan(&e.Index, &e.Reason); err != nil {
			return nil, err
		}
		r.Log.Exclusions = append(r.Log.Exclusions, e)
	}
	return r, rows.Err()
}

// Average loads a stored class average. It returns nil without error when the
// class was undefined for the run.
func (s *Store) Average(ctx context.Context, id string, class erp.Class) (*mat.Dense, error) {
	r, err := s.Run(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.QueryContext(ctx, `SELECT channel, sample, value FROM averages WHERE run_id = ? AND class = ?`, id, class.String())
	if err != nil {
		return nil, fmt.Errorf("error loading average: %w", err)
	}
	defer rows.Close()

	var m *mat.Dense
	for rows.Next() {
		var c, k int
		var v float64
		if err := rows.Scan(&c, &k, &v); err != nil {
			return nil, err
		}
		if m == nil {
			m = mat.NewDense(r.Geometry.Len(), r.Channels, nil)
		}
		m.Set(k, c, v)
	}
	return m, rows.Err()
}
