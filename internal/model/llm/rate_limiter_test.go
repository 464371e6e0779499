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
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-agent/pkg/config"
)

type fakeChatModel struct {
	calls int32
	tools []*schema.ToolInfo
	reply *schema.Message
	err   error
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	atomic.AddInt32(&f.calls, 1)
	return schema.StreamReaderFromArray([]*schema.Message{f.reply}), nil
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return &fakeChatModel{tools: tools, reply: f.reply, err: f.err}, nil
}

func TestThrottle_BurstThenDelay(t *testing.T) {
	th := NewThrottle(map[string]ProviderLimits{
		"gemini": {RequestsPerMinute: 60, Burst: 2},
	})

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 2; i++ {
		release, err := th.Acquire(ctx, "gemini", 1)
		require.NoError(t, err)
		release()
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond, "burst calls should not wait")

	// 桶已空，下一次需要约 1 秒才能补充；100ms 的 deadline 不够
	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err := th.Acquire(short, "gemini", 1)
	assert.Error(t, err)
}

func TestThrottle_CanceledContext(t *testing.T) {
	th := NewThrottle(map[string]ProviderLimits{
		"gemini": {RequestsPerMinute: 10, Burst: 10},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := th.Acquire(ctx, "gemini", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestThrottle_UnknownProviderUnlimited(t *testing.T) {
	th := NewThrottle(nil)
	for i := 0; i < 100; i++ {
		release, err := th.Acquire(context.Background(), "other", 10)
		require.NoError(t, err)
		release()
	}
	_, ok := th.Stats("other")
	assert.False(t, ok)
}

func TestThrottle_Concurrency(t *testing.T) {
	th := NewThrottle(map[string]ProviderLimits{
		"gemini": {MaxConcurrent: 1},
	})

	release, err := th.Acquire(context.Background(), "gemini", 0)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = th.Acquire(ctx, "gemini", 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // 重复释放无副作用
	stats, ok := th.Stats("gemini")
	require.True(t, ok)
	assert.Equal(t, 0, stats.InFlight)

	_, err = th.Acquire(context.Background(), "gemini", 0)
	require.NoError(t, err)
	stats, _ = th.Stats("gemini")
	assert.Equal(t, 1, stats.InFlight)
}

func TestThrottle_TokenBudget(t *testing.T) {
	th := NewThrottle(map[string]ProviderLimits{
		"gemini": {TokensPerMinute: 600},
	})

	// 桶容量 20 tokens，超大预估只扣满桶
	release, err := th.Acquire(context.Background(), "gemini", 10000)
	require.NoError(t, err)
	release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = th.Acquire(ctx, "gemini", 20)
	assert.Error(t, err)
}

func TestRateLimitedChatModel_Generate(t *testing.T) {
	reply := &schema.Message{
		Role:    schema.Assistant,
		Content: "END",
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
		},
	}
	inner := &fakeChatModel{reply: reply}
	th := NewThrottle(map[string]ProviderLimits{"gemini": {RequestsPerMinute: 600, Burst: 5}})
	m := NewRateLimitedChatModel(inner, "gemini", th)

	out, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "END", out.Content)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
	stats, ok := th.Stats("gemini")
	require.True(t, ok)
	assert.Equal(t, 15, stats.TokensUsedMinute)
}

func TestRateLimitedChatModel_StreamHoldsSlotUntilClosed(t *testing.T) {
	inner := &fakeChatModel{reply: schema.AssistantMessage("END", nil)}
	th := NewThrottle(map[string]ProviderLimits{"gemini": {MaxConcurrent: 1}})
	m := NewRateLimitedChatModel(inner, "gemini", th)

	sr, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	// 流尚未被读取，slot 仍被占用
	stats, _ := th.Stats("gemini")
	assert.Equal(t, 1, stats.InFlight)

	msg, err := sr.Recv()
	require.NoError(t, err)
	assert.Equal(t, "END", msg.Content)

	_, err = sr.Recv()
	assert.ErrorIs(t, err, io.EOF)
	sr.Close()
	assert.Eventually(t, func() bool {
		stats, _ := th.Stats("gemini")
		return stats.InFlight == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRateLimitedChatModel_PropagatesError(t *testing.T) {
	inner := &fakeChatModel{err: errors.New("quota exceeded")}
	m := NewRateLimitedChatModel(inner, "gemini", nil)

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	assert.EqualError(t, err, "quota exceeded")
}

func TestRateLimitedChatModel_WithToolsKeepsWrapper(t *testing.T) {
	inner := &fakeChatModel{reply: schema.AssistantMessage("ok", nil)}
	m := NewRateLimitedChatModel(inner, "gemini", nil)

	bound, err := m.WithTools([]*schema.ToolInfo{{Name: "run_code"}})
	require.NoError(t, err)
	wrapped, ok := bound.(*RateLimitedChatModel)
	require.True(t, ok)
	assert.Len(t, wrapped.inner.(*fakeChatModel).tools, 1)
}

func TestNewChatModel_RequiresAPIKey(t *testing.T) {
	_, err := NewChatModel(context.Background(), config.ModelConfig{Provider: "gemini", Name: "gemini-2.5-flash"})
	assert.Error(t, err)
}

func TestNewRateLimiter_FromConfig(t *testing.T) {
	th := NewRateLimiter(config.RateLimitsConfig{LLM: map[string]config.LLMRateLimitConfig{
		"gemini": {RequestsPerMinute: 10, Burst: 10},
	}})
	stats, ok := th.Stats("gemini")
	require.True(t, ok)
	assert.Equal(t, 10.0, stats.RequestsPerMinute)
	assert.Equal(t, 10, stats.Burst)
}
