// Copyright (C) 2025 Quartzdata, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Convert.BatchSize)
	assert.Equal(t, 1000, cfg.Convert.SampleSize)
	assert.Equal(t, 128, cfg.Convert.MaxOpenPartitions)
	assert.Equal(t, "zstd", cfg.Convert.Compression)
	assert.Equal(t, "tolerant", cfg.Convert.CoercionPolicy)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.JSON)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PARQCONV_CONVERT_BATCH_SIZE", "250")
	t.Setenv("PARQCONV_CONVERT_COMPRESSION", "snappy")
	t.Setenv("PARQCONV_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Convert.BatchSize)
	assert.Equal(t, "snappy", cfg.Convert.Compression)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
