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

package builtin

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"quiz-agent/pkg/metrics"
	"quiz-agent/pkg/tracing"
)

// Options 所有工具共享的调用约束
type Options struct {
	Timeout        time.Duration // 单次调用超时
	MaxOutputChars int           // 结果文本上限（按字符），<=0 不截断
}

// guardedTool 包装工具调用：超时、panic 恢复、错误转为结果文本、截断、指标与 span。
// InvokableRun 永远不返回 error，失败以 "Error: ..." 的形式交给模型。
type guardedTool struct {
	inner  tool.InvokableTool
	name   string
	opts   Options
	logger *slog.Logger
}

// Guard 包装一个工具
func Guard(inner tool.InvokableTool, opts Options, logger *slog.Logger) tool.InvokableTool {
	if logger == nil {
		logger = slog.Default()
	}
	name := "unknown"
	if info, err := inner.Info(context.Background()); err == nil && info != nil {
		name = info.Name
	}
	return &guardedTool{inner: inner, name: name, opts: opts, logger: logger}
}

func (g *guardedTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return g.inner.Info(ctx)
}

func (g *guardedTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (out string, _ error) {
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}
	ctx, span := tracing.StartToolSpan(ctx, g.name)
	start := time.Now()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
		metrics.ToolDuration.WithLabelValues(g.name).Observe(time.Since(start).Seconds())
		tracing.EndSpan(span, err)
		if err != nil {
			metrics.ToolFailTotal.WithLabelValues(g.name).Inc()
			g.logger.Warn("工具调用失败", "tool", g.name, "error", err)
			out = "Error: " + err.Error()
		}
		out = truncate(out, g.opts.MaxOutputChars)
	}()

	out, err = g.inner.InvokableRun(ctx, argumentsInJSON, opts...)
	return out, nil
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + fmt.Sprintf("\n...[truncated %d characters]", len(runes)-max)
}

type unavailableTool struct {
	info      *schema.ToolInfo
	createErr error
}

func (u *unavailableTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return u.info, nil
}

func (u *unavailableTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	return "", fmt.Errorf("tool %q unavailable: %w", u.info.Name, u.createErr)
}

func makeUnavailableTool(name, desc string, err error) tool.InvokableTool {
	slog.Error("创建工具failed，降级为不可用占位工具", "tool", name, "error", err)
	return &unavailableTool{
		info: &schema.ToolInfo{
			Name: name,
			Desc: desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"input": {
					Type:     schema.String,
					Desc:     "tool input",
					Required: false,
				},
			}),
		},
		createErr: err,
	}
}

// inferToolOrUnavailable 从入参结构体推断 schema；失败时降级为占位工具
func inferToolOrUnavailable[T any](name, desc string, fn func(context.Context, T) (string, error)) tool.InvokableTool {
	t, err := utils.InferTool(name, desc, fn)
	if err != nil {
		return makeUnavailableTool(name, desc, err)
	}
	return t
}
