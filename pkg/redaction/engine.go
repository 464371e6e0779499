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
	"strings"
)

// Placeholder 脱敏后的替换文本
const Placeholder = "***REDACTED***"

// Engine 脱敏引擎：替换文本中出现的已知密钥值，并按字段路径遮盖 JSON
type Engine struct {
	secrets []string
}

// NewEngine 创建脱敏引擎；空字符串被忽略
func NewEngine(secrets ...string) *Engine {
	e := &Engine{}
	for _, s := range secrets {
		if s != "" {
			e.secrets = append(e.secrets, s)
		}
	}
	return e
}

// RedactString 将 s 中出现的所有密钥值替换为 Placeholder
func (e *Engine) RedactString(s string) string {
	if e == nil {
		return s
	}
	for _, secret := range e.secrets {
		s = strings.ReplaceAll(s, secret, Placeholder)
	}
	return s
}

// RedactData 对 JSON 对象按字段路径（如 "Model.APIKey"）遮盖非空值，再替换残留的密钥值
func (e *Engine) RedactData(data []byte, fieldPaths ...string) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return data, err
	}
	for _, path := range fieldPaths {
		applyFieldMask(obj, path)
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return data, err
	}
	return []byte(e.RedactString(string(out))), nil
}

// applyFieldMask 定位字段并替换；字段不存在或为空时不处理
func applyFieldMask(obj map[string]interface{}, fieldPath string) {
	parts := strings.Split(fieldPath, ".")

	current := obj
	for i := 0; i < len(parts)-1; i++ {
		next, ok := current[parts[i]].(map[string]interface{})
		if !ok {
			return
		}
		current = next
	}

	lastKey := parts[len(parts)-1]
	value, exists := current[lastKey]
	if !exists {
		return
	}
	if s, ok := value.(string); ok && s == "" {
		return
	}
	current[lastKey] = Placeholder
}
