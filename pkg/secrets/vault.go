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
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig Vault 配置
type VaultConfig struct {
	Address    string // 如 http://vault:8200，空则使用 VAULT_ADDR / 默认地址
	Token      string
	PathPrefix string // 如 "secret" 或 KV v2 的 "secret/data/quiz-agent"
	Field      string // secret 中存放值的字段，默认 "value"
}

// VaultStore 按 <prefix>/<key> 读取单个字段，兼容 KV v1 与 v2
type VaultStore struct {
	logical    *vault.Logical
	pathPrefix string
	field      string
}

// NewVaultStore 创建 Vault store 并检查连通性
func NewVaultStore(ctx context.Context, config VaultConfig) (*VaultStore, error) {
	cfg := vault.DefaultConfig()
	if config.Address != "" {
		cfg.Address = config.Address
	}
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}
	if _, err := client.Sys().HealthWithContext(ctx); err != nil {
		return nil, fmt.Errorf("connect to vault %s: %w", cfg.Address, err)
	}

	prefix := strings.Trim(config.PathPrefix, "/")
	if prefix == "" {
		prefix = "secret"
	}
	field := config.Field
	if field == "" {
		field = "value"
	}
	return &VaultStore{logical: client.Logical(), pathPrefix: prefix, field: field}, nil
}

func (v *VaultStore) Get(ctx context.Context, key string) (string, error) {
	path := v.pathPrefix + "/" + key
	secret, err := v.logical.ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("read vault %s: %w", path, err)
	}
	if secret == nil {
		return "", fmt.Errorf("secret not found: %s", path)
	}
	return extractField(secret.Data, v.field, path)
}

// extractField 取字段值；KV v2 把字段放在 data.data 下
func extractField(data map[string]interface{}, field, path string) (string, error) {
	if value, ok := data[field].(string); ok {
		return value, nil
	}
	if nested, ok := data["data"].(map[string]interface{}); ok {
		if value, ok := nested[field].(string); ok {
			return value, nil
		}
	}
	return "", fmt.Errorf("field %q not found in %s", field, path)
}
