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

// ConfigError reports an invalid pipeline option.
type ConfigError struct {
	Field string // Option that failed validation (e.g. "band_pass.high_hz")
	Msg   string // Human readable description of the problem
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Msg)
}

// MalformedInputError reports a sample table that does not satisfy the input schema.
type MalformedInputError struct {
	Column string // Offending column, empty if the problem is table wide
	Msg    string
}

func (e *MalformedInputError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("malformed input: %s", e.Msg)
	}
	return fmt.Sprintf("malformed input: column %q: %s", e.Column, e.Msg)
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func malformedf(column, format string, args ...any) error {
	return &MalformedInputError{Column: column, Msg: fmt.Sprintf(format, args...)}
}
