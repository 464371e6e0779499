// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		want        Store
		errContains string
	}{
		{name: "memory", provider: "memory", want: MapStore{}},
		{name: "env", provider: "env", want: EnvStore{}},
		{name: "empty defaults to env", provider: "", want: EnvStore{}},
		{name: "unknown provider", provider: "k8s", errContains: "unsupported secret provider"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewStore(context.Background(), Config{Provider: tc.provider})
			if tc.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errContains)
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, store)
		})
	}
}

func TestEnvStore_Get(t *testing.T) {
	t.Setenv("QUIZ_AGENT_TEST_SECRET", "s3cr3t")

	got, err := EnvStore{}.Get(context.Background(), "QUIZ_AGENT_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", got)

	_, err = EnvStore{}.Get(context.Background(), "QUIZ_AGENT_TEST_MISSING")
	assert.Error(t, err)
}

func TestEnvStore_FileFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
	t.Setenv("QUIZ_AGENT_TEST_FILE_SECRET_FILE", path)

	got, err := EnvStore{}.Get(context.Background(), "QUIZ_AGENT_TEST_FILE_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	t.Setenv("QUIZ_AGENT_TEST_FILE_SECRET_FILE", filepath.Join(t.TempDir(), "missing"))
	_, err = EnvStore{}.Get(context.Background(), "QUIZ_AGENT_TEST_FILE_SECRET")
	assert.Error(t, err)
}

func TestExtractField(t *testing.T) {
	v, err := extractField(map[string]interface{}{"value": "v1"}, "value", "secret/SECRET")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	v, err = extractField(map[string]interface{}{
		"data": map[string]interface{}{"password": "v2"},
	}, "password", "secret/data/SECRET")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	_, err = extractField(map[string]interface{}{"other": 1}, "value", "secret/SECRET")
	assert.Error(t, err)
}

func TestLoadCredentials(t *testing.T) {
	store := MapStore{"EMAIL": "student@example.test", "SECRET": "hunter2"}

	creds, err := LoadCredentials(context.Background(), store, "EMAIL", "SECRET")
	require.NoError(t, err)
	assert.Equal(t, "student@example.test", creds.Identity)
	assert.Equal(t, "hunter2", creds.Secret)
}

func TestLoadCredentials_Missing(t *testing.T) {
	store := MapStore{"EMAIL": "student@example.test"}

	_, err := LoadCredentials(context.Background(), store, "EMAIL", "SECRET")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRET")
}

func TestLoadCredentials_Empty(t *testing.T) {
	store := MapStore{"EMAIL": "", "SECRET": "x"}

	_, err := LoadCredentials(context.Background(), store, "EMAIL", "SECRET")
	assert.Error(t, err)
}
