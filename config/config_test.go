/*
LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This file is part of Ocean Shorts. Ocean Shorts is free software: you can
  redistribute it and/or modify it under the terms of the GNU
  General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  Ocean Shorts is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see <http://www.gnu.org/licenses/>.
*/

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "Europe/Istanbul", cfg.Location().String())
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_PEXELS_KEY", "from-env")
	t.Setenv(APIKeyEnv, "ci-key")
	path := writeFile(t, `
pexels_api_keys:
  - ${TEST_PEXELS_KEY}
  - " "
llm_provider: none
log_level: debug
timezone: UTC
notify:
  recipient: ops@example.com
  period: 30m
http:
  addr: 127.0.0.1:9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-env", "ci-key"}, cfg.PexelsAPIKeys)
	assert.Equal(t, ProviderNone, cfg.LLMProvider)
	assert.Equal(t, Levels["debug"], cfg.Level())
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, 30*time.Minute, cfg.Notify.Period)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Equal(t, DefaultWorkDir, cfg.WorkDir)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	tests := []string{
		"llm_provider: gpt\n",
		"log_level: loud\n",
		"timezone: Mars/Olympus\n",
		"latitude: 100\n",
		"video_source: youtube\n",
		"pexels_api_keys: [\n",
	}
	for _, content := range tests {
		_, err := Load(writeFile(t, content))
		assert.Error(t, err, content)
	}
}

func TestSave(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	cfg := Default()
	cfg.PexelsAPIKeys = []string{"k"}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
