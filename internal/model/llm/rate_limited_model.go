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
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"quiz-agent/pkg/metrics"
)

// RateLimitedChatModel 包装任意 ToolCallingChatModel，在真实调用前执行限流、调用后记录 token 用量。
type RateLimitedChatModel struct {
	inner    model.ToolCallingChatModel
	provider string
	throttle *Throttle
}

var _ model.ToolCallingChatModel = (*RateLimitedChatModel)(nil)

// NewRateLimitedChatModel 创建带限流的 ChatModel。throttle 为 nil 时退化为直接调用。
func NewRateLimitedChatModel(inner model.ToolCallingChatModel, provider string, throttle *Throttle) *RateLimitedChatModel {
	return &RateLimitedChatModel{inner: inner, provider: provider, throttle: throttle}
}

// Generate 实现 model.BaseChatModel.Generate，调用前等待限流许可。
func (m *RateLimitedChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	release, err := m.acquire(ctx, input)
	if err != nil {
		return nil, err
	}
	defer release()

	out, err := m.inner.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	m.recordUsage(out)
	return out, nil
}

// Stream 实现 model.BaseChatModel.Stream；并发 slot 持有到流读完或被调用方关闭
func (m *RateLimitedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	release, err := m.acquire(ctx, input)
	if err != nil {
		return nil, err
	}
	inner, err := m.inner.Stream(ctx, input, opts...)
	if err != nil {
		release()
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](0)
	go func() {
		defer release()
		defer inner.Close()
		defer sw.Close()
		for {
			msg, err := inner.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			// Send 返回 true 表示读端已关闭
			if closed := sw.Send(msg, err); closed || err != nil {
				return
			}
		}
	}()
	return sr, nil
}

// WithTools 绑定工具后仍返回带限流的包装
func (m *RateLimitedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	inner, err := m.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &RateLimitedChatModel{inner: inner, provider: m.provider, throttle: m.throttle}, nil
}

func (m *RateLimitedChatModel) acquire(ctx context.Context, input []*schema.Message) (func(), error) {
	if m.throttle == nil {
		return func() {}, nil
	}
	start := time.Now()
	release, err := m.throttle.Acquire(ctx, m.provider, estimateTokens(messagesText(input), 0))
	if err != nil {
		return nil, err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		metrics.RateLimitWaitSeconds.WithLabelValues("llm", m.provider).Observe(waited.Seconds())
	}
	return release, nil
}

func (m *RateLimitedChatModel) recordUsage(out *schema.Message) {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	metrics.LLMTokensTotal.WithLabelValues("input").Add(float64(usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues("output").Add(float64(usage.CompletionTokens))
	if m.throttle != nil {
		m.throttle.Observe(m.provider, usage.TotalTokens)
	}
}

// estimateTokens 粗略估算请求的 token 数（4 字符 ≈ 1 token）。
func estimateTokens(text string, maxTokens int) int {
	estimated := len(text) / 4
	if maxTokens > 0 {
		estimated += maxTokens
	}
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

// messagesText 将消息列表合并为单一字符串，用于 token 估算。
func messagesText(msgs []*schema.Message) string {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
	}
	buf := make([]byte, 0, total)
	for _, m := range msgs {
		buf = append(buf, m.Content...)
	}
	return string(buf)
}
