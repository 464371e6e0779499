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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"

	"quiz-agent/internal/agent"
	"quiz-agent/internal/agent/job"
	"quiz-agent/internal/model/llm"
	"quiz-agent/internal/sandbox"
	"quiz-agent/internal/tool/browser"
	"quiz-agent/internal/tool/builtin"
	"quiz-agent/pkg/config"
	"quiz-agent/pkg/redaction"
	"quiz-agent/pkg/tracing"
)

// AgentStack 组装好的 Agent 运行栈：模型、工具、浏览器、沙箱与编译好的循环图。
// 所有任务共享同一个 AgentStack。
type AgentStack struct {
	Runner  *agent.Runner
	Browser *browser.Manager
	Sandbox *sandbox.Sandbox

	workspaceDir  string
	keepWorkspace bool
	redactor      *redaction.Engine
	logger        *slog.Logger
}

// NewAgentStack 根据配置创建模型与工具并编译循环图
func NewAgentStack(ctx context.Context, b *Bootstrap) (*AgentStack, error) {
	chatModel, err := llm.NewRateLimitedModel(ctx, b.Config.Model, b.Config.RateLimits)
	if err != nil {
		return nil, err
	}
	return NewAgentStackWithModel(ctx, b, chatModel)
}

// NewAgentStackWithModel 使用给定的模型组装运行栈
func NewAgentStackWithModel(ctx context.Context, b *Bootstrap, chatModel model.ToolCallingChatModel) (*AgentStack, error) {
	cfg := b.Config
	logger := b.Logger.Logger

	sb, err := sandbox.New(sandbox.Config{
		PythonCommand:  cfg.Tools.Sandbox.PythonCommand,
		InstallCommand: cfg.Tools.Sandbox.InstallCommand,
		PassEnv:        cfg.Tools.Sandbox.PassEnv,
		CodeTimeout:    config.ParseDuration(cfg.Tools.Sandbox.CodeTimeout, 60*time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化沙箱failed: %w", err)
	}

	bm := browser.New(
		browser.WithHeadless(cfg.Tools.Browser.Headless),
		browser.WithBin(cfg.Tools.Browser.Bin),
		browser.WithStableAfter(config.ParseDuration(cfg.Tools.Browser.StableAfter, 500*time.Millisecond)),
		browser.WithLogger(logger),
	)

	tools := builtin.NewTools(builtin.Deps{
		Renderer: bm,
		Sandbox:  sb,
		Client:   builtin.NewHTTPClient(),
		Options: builtin.Options{
			Timeout:        config.ParseDuration(cfg.Tools.Timeout, 120*time.Second),
			MaxOutputChars: cfg.Tools.MaxOutputChars,
		},
		Logger: logger,
	})

	runner, err := agent.NewRunner(ctx, chatModel, tools, agent.NewInstruction(b.Credentials), agent.Config{
		MaxSteps:            cfg.Agent.MaxSteps,
		ExecuteSequentially: cfg.Agent.ExecuteSequentially,
		Logger:              logger,
	})
	if err != nil {
		return nil, err
	}

	return &AgentStack{
		Runner:        runner,
		Browser:       bm,
		Sandbox:       sb,
		workspaceDir:  cfg.Tools.WorkspaceDir,
		keepWorkspace: cfg.Tools.KeepWorkspace,
		redactor:      redaction.NewEngine(b.Credentials.Secret),
		logger:        logger,
	}, nil
}

// Solve 在独立工作目录中运行一次任务循环
func (s *AgentStack) Solve(ctx context.Context, id, url string) (*agent.Result, error) {
	ws, err := sandbox.NewWorkspace(s.workspaceDir, id)
	if err != nil {
		return nil, err
	}
	if !s.keepWorkspace {
		defer func() {
			if err := ws.Remove(); err != nil {
				s.logger.Warn("清理工作目录失败", "dir", ws.Root, "error", err)
			}
		}()
	}

	ctx, span := tracing.StartTaskSpan(sandbox.WithWorkspace(ctx, ws), id, url)
	res, err := s.Runner.Run(ctx, url)
	steps := 0
	if res != nil {
		steps = res.Steps
	}
	tracing.EndTaskSpan(span, steps, err)
	return res, err
}

// RunJob 作为 job.RunJobFunc 供调度器调用；最终输出写入日志
func (s *AgentStack) RunJob(ctx context.Context, j *job.Job) error {
	logger := s.logger.With("job_id", j.ID, "url", j.URL)
	res, err := s.Solve(ctx, j.ID, j.URL)
	if res != nil {
		j.Steps = res.Steps
	}
	if err != nil {
		if errors.Is(err, agent.ErrStepLimitExceeded) && res != nil {
			logger.Warn("步数预算耗尽，任务未以 END 结束", "max_steps", s.Runner.MaxSteps(), "messages", len(res.Conversation))
		}
		return err
	}
	// 最终输出可能回显密钥
	logger.Info("Agent 最终输出", "output", s.redactor.RedactString(res.Output()), "steps", res.Steps, "messages", len(res.Conversation))
	return nil
}

// Close 释放浏览器
func (s *AgentStack) Close() error {
	if s.Browser == nil {
		return nil
	}
	return s.Browser.Close()
}
