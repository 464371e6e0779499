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
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ProviderLimits 单个 provider 的限流参数
type ProviderLimits struct {
	RequestsPerMinute float64 // 令牌补充速率
	Burst             int     // 令牌桶容量，<=0 时取 2 秒的配额且至少为 1
	TokensPerMinute   int     // 0 表示不限制
	MaxConcurrent     int     // 0 表示不限制
}

// ThrottleStats 某个 provider 当前的限流状态
type ThrottleStats struct {
	RequestsPerMinute float64
	Burst             int
	TokensPerMinute   int
	TokensUsedMinute  int // 最近一分钟窗口内实际消耗
	InFlight          int
	MaxConcurrent     int
}

// Throttle 按 provider 限制模型调用：请求速率、token 预算、并发数。
// 超出配额时只会延迟，只有 ctx 结束才返回错误；未配置的 provider 不受限制。
type Throttle struct {
	buckets map[string]*bucket
}

type bucket struct {
	limits   ProviderLimits
	requests *rate.Limiter
	tokens   *rate.Limiter
	slots    chan struct{}

	mu          sync.Mutex
	windowStart time.Time
	windowUsed  int
}

// NewThrottle 创建限流器；limits 在创建后不再变化
func NewThrottle(limits map[string]ProviderLimits) *Throttle {
	t := &Throttle{buckets: make(map[string]*bucket, len(limits))}
	for provider, l := range limits {
		t.buckets[provider] = newBucket(l)
	}
	return t
}

func newBucket(l ProviderLimits) *bucket {
	b := &bucket{limits: l, windowStart: time.Now()}

	if l.RequestsPerMinute > 0 {
		perSecond := l.RequestsPerMinute / 60
		burst := l.Burst
		if burst <= 0 {
			burst = int(perSecond * 2)
		}
		b.requests = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
	if l.TokensPerMinute > 0 {
		b.tokens = rate.NewLimiter(rate.Limit(float64(l.TokensPerMinute)/60), max(l.TokensPerMinute/30, 1))
	}
	if l.MaxConcurrent > 0 {
		b.slots = make(chan struct{}, l.MaxConcurrent)
	}
	return b
}

// Acquire 等待一次调用许可；成功时返回的 release 必须在调用结束后执行
func (t *Throttle) Acquire(ctx context.Context, provider string, estimatedTokens int) (release func(), err error) {
	b := t.buckets[provider]
	if b == nil {
		return func() {}, nil
	}

	if b.requests != nil {
		if err := b.requests.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait request quota for %s: %w", provider, err)
		}
	}
	// 预扣 tokens，单次不超过桶容量
	if b.tokens != nil && estimatedTokens > 0 {
		if err := b.tokens.WaitN(ctx, min(estimatedTokens, b.tokens.Burst())); err != nil {
			return nil, fmt.Errorf("wait token budget for %s: %w", provider, err)
		}
	}
	if b.slots == nil {
		return func() {}, nil
	}
	select {
	case b.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() { once.Do(func() { <-b.slots }) }, nil
}

// Observe 记录一次调用实际消耗的 tokens
func (t *Throttle) Observe(provider string, tokens int) {
	b := t.buckets[provider]
	if b == nil || tokens <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if now := time.Now(); now.Sub(b.windowStart) > time.Minute {
		b.windowStart = now
		b.windowUsed = 0
	}
	b.windowUsed += tokens
}

// Stats 返回 provider 的限流状态；未配置时 ok 为 false
func (t *Throttle) Stats(provider string) (stats ThrottleStats, ok bool) {
	b := t.buckets[provider]
	if b == nil {
		return ThrottleStats{}, false
	}
	b.mu.Lock()
	used := b.windowUsed
	b.mu.Unlock()

	stats = ThrottleStats{
		RequestsPerMinute: b.limits.RequestsPerMinute,
		Burst:             b.limits.Burst,
		TokensPerMinute:   b.limits.TokensPerMinute,
		TokensUsedMinute:  used,
		MaxConcurrent:     b.limits.MaxConcurrent,
	}
	if b.slots != nil {
		stats.InFlight = len(b.slots)
	}
	return stats, true
}
