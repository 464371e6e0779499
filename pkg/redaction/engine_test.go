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

package redaction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactString(t *testing.T) {
	e := NewEngine("s3cret", "")
	assert.Equal(t, `{"secret":"`+Placeholder+`","answer":42}`, e.RedactString(`{"secret":"s3cret","answer":42}`))
	assert.Equal(t, "nothing here", e.RedactString("nothing here"))

	var nilEngine *Engine
	assert.Equal(t, "s3cret", nilEngine.RedactString("s3cret"))
}

func TestRedactData_FieldPaths(t *testing.T) {
	in := []byte(`{"Model":{"APIKey":"sk-1","Name":"m"},"Credentials":{"Secret":"","Identity":"a@b"}}`)

	out, err := NewEngine().RedactData(in, "Model.APIKey", "Credentials.Secret", "Missing.Path")
	require.NoError(t, err)

	var got map[string]map[string]string
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, Placeholder, got["Model"]["APIKey"])
	assert.Equal(t, "m", got["Model"]["Name"])
	// 空值保持为空，便于看出未配置
	assert.Equal(t, "", got["Credentials"]["Secret"])
	assert.Equal(t, "a@b", got["Credentials"]["Identity"])
}

func TestRedactData_SecretValuesEverywhere(t *testing.T) {
	in := []byte(`{"note":"token=s3cret"}`)
	out, err := NewEngine("s3cret").RedactData(in)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "s3cret")
}

func TestRedactData_InvalidJSON(t *testing.T) {
	in := []byte(`not json`)
	out, err := NewEngine().RedactData(in, "a")
	assert.Error(t, err)
	assert.Equal(t, in, out)
}
