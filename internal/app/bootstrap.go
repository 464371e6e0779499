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

package app

import (
	"context"
	"fmt"

	"quiz-agent/pkg/config"
	"quiz-agent/pkg/log"
	"quiz-agent/pkg/secrets"
)

// Bootstrap 进程级依赖：配置、日志与启动时加载一次的凭据
type Bootstrap struct {
	Config      *config.Config
	Logger      *log.Logger
	Credentials secrets.Credentials
}

// NewBootstrap 初始化日志并加载凭据
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	creds, err := LoadCredentials(ctx, cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("加载凭据failed: %w", err)
	}

	return &Bootstrap{
		Config:      cfg,
		Logger:      logger,
		Credentials: creds,
	}, nil
}

// LoadCredentials 按 provider 读取身份与共享密钥
func LoadCredentials(ctx context.Context, cfg config.CredentialsConfig) (secrets.Credentials, error) {
	if cfg.Provider == "static" {
		if cfg.Identity == "" || cfg.Secret == "" {
			return secrets.Credentials{}, fmt.Errorf("static credentials require identity and secret")
		}
		return secrets.Credentials{Identity: cfg.Identity, Secret: cfg.Secret}, nil
	}

	store, err := secrets.NewStore(ctx, secrets.Config{
		Provider: cfg.Provider,
		Vault: secrets.VaultConfig{
			Address:    cfg.Vault.Address,
			Token:      cfg.Vault.Token,
			PathPrefix: cfg.Vault.PathPrefix,
			Field:      cfg.Vault.Field,
		},
	})
	if err != nil {
		return secrets.Credentials{}, err
	}
	return secrets.LoadCredentials(ctx, store, cfg.IdentityKey, cfg.SecretKey)
}
