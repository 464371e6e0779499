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

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"quiz-agent/pkg/config"
)

// NewChatModel 创建 OpenAI 兼容端点的 ChatModel（默认指向 Gemini 的 OpenAI 兼容 API）
func NewChatModel(ctx context.Context, cfg config.ModelConfig) (model.ToolCallingChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM provider %q api_key not configured", cfg.Provider)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("LLM provider %q model name not configured", cfg.Provider)
	}

	mc := &openai.ChatModelConfig{
		Model:   cfg.Name,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: config.ParseDuration(cfg.Timeout, 120*time.Second),
	}
	if cfg.Temperature > 0 {
		t := float32(cfg.Temperature)
		mc.Temperature = &t
	}
	if cfg.MaxTokens > 0 {
		n := cfg.MaxTokens
		mc.MaxTokens = &n
	}

	chatModel, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	return chatModel, nil
}

// NewRateLimiter 按配置构建限流器；未配置的 provider 不限流
func NewRateLimiter(cfg config.RateLimitsConfig) *Throttle {
	limits := make(map[string]ProviderLimits, len(cfg.LLM))
	for provider, c := range cfg.LLM {
		limits[provider] = ProviderLimits{
			RequestsPerMinute: c.RequestsPerMinute,
			Burst:             c.Burst,
			TokensPerMinute:   c.TokensPerMinute,
			MaxConcurrent:     c.MaxConcurrent,
		}
	}
	return NewThrottle(limits)
}

// NewRateLimitedModel 组合 NewChatModel 与 NewRateLimiter
func NewRateLimitedModel(ctx context.Context, cfg config.ModelConfig, limits config.RateLimitsConfig) (model.ToolCallingChatModel, error) {
	cm, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewRateLimitedChatModel(cm, cfg.Provider, NewRateLimiter(limits)), nil
}
