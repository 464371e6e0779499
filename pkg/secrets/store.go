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
)

// Store 只读的凭据来源；进程启动时读取一次
type Store interface {
	Get(ctx context.Context, key string) (string, error)
}

// Config 凭据来源配置
type Config struct {
	Provider string      // env | vault | memory
	Vault    VaultConfig // provider=vault 时使用
}

// NewStore 按 provider 创建 Store；vault 会在创建时做一次健康检查
func NewStore(ctx context.Context, config Config) (Store, error) {
	switch config.Provider {
	case "memory":
		return MapStore{}, nil
	case "", "env":
		return EnvStore{}, nil
	case "vault":
		store, err := NewVaultStore(ctx, config.Vault)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// MapStore 固定键值，用于测试与 provider=memory
type MapStore map[string]string

func (m MapStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := m[key]
	if !ok {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	return value, nil
}
