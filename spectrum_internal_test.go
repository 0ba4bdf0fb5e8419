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
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttenuationDB(t *testing.T) {
	assert.InDelta(t, -20.0, attenuationDB(100, 1), 1e-12)
	assert.Zero(t, attenuationDB(0, 1))
	assert.Equal(t, float64(minAttenuationDB), attenuationDB(1, 0))
	assert.Equal(t, float64(minAttenuationDB), attenuationDB(1, math.SmallestNonzeroFloat64))

	_, err := json.Marshal(LineNoise{Before: 1, AttenuationDB: attenuationDB(1, 0)})
	require.NoError(t, err)
}
