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

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"quiz-agent/pkg/metrics"
)

const (
	nodeAgent    = "agent"
	nodeTools    = "tools"
	nodeContinue = "continue"

	graphName = "quiz_agent_loop"

	// DefaultMaxSteps reasoning + executing 阶段总数上限
	DefaultMaxSteps = 50
)

// Config Runner 配置
type Config struct {
	MaxSteps            int
	ExecuteSequentially bool
	Logger              *slog.Logger
}

// Result 一次运行的结果；出错时 Conversation 为出错前的部分对话
type Result struct {
	Final        *schema.Message
	Conversation []*schema.Message
	Steps        int
}

// Output 终止消息的内容
func (r *Result) Output() string {
	if r == nil || r.Final == nil {
		return ""
	}
	return r.Final.Content
}

// Runner 编译好的 Agent 循环图：agent(reasoning) -> branch -> tools | continue | END。
// 可被多个任务并发使用，每次 Run 拥有独立的状态。
type Runner struct {
	graph       compose.Runnable[[]*schema.Message, *schema.Message]
	instruction *Instruction
	maxSteps    int
	logger      *slog.Logger
}

// NewRunner 绑定工具到模型并编译循环图
func NewRunner(ctx context.Context, chatModel model.ToolCallingChatModel, tools []tool.BaseTool, instruction *Instruction, cfg Config) (*Runner, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("agent: chat model is nil")
	}
	if instruction == nil {
		return nil, fmt.Errorf("agent: instruction is nil")
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("agent: 读取工具信息失败: %w", err)
		}
		infos = append(infos, info)
	}
	boundModel, err := chatModel.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("agent: 绑定工具失败: %w", err)
	}

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               tools,
		ExecuteSequentially: cfg.ExecuteSequentially,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logger.Warn("模型请求了未知工具", "tool", name)
			return fmt.Sprintf("Error: tool %q does not exist", name), nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("agent: 创建 ToolsNode 失败: %w", err)
	}

	g := compose.NewGraph[[]*schema.Message, *schema.Message](
		compose.WithGenLocalState(func(ctx context.Context) *loopState {
			return stateFromContext(ctx, maxSteps)
		}),
	)

	// reasoning：追加本轮新消息（种子或工具结果），把完整对话交给模型
	err = g.AddChatModelNode(nodeAgent, boundModel,
		compose.WithStatePreHandler(func(ctx context.Context, in []*schema.Message, st *loopState) ([]*schema.Message, error) {
			if err := st.step(); err != nil {
				return nil, err
			}
			st.Messages = append(st.Messages, in...)
			metrics.LoopStepsTotal.WithLabelValues(string(StageReasoning)).Inc()
			return st.snapshot(), nil
		}),
		compose.WithStatePostHandler(func(ctx context.Context, out *schema.Message, st *loopState) (*schema.Message, error) {
			st.Messages = append(st.Messages, out)
			logger.Debug("reasoning step", "step", st.Steps, "tool_calls", len(out.ToolCalls))
			return out, nil
		}),
		compose.WithNodeName(string(StageReasoning)),
	)
	if err != nil {
		return nil, fmt.Errorf("agent: 添加节点 %s 失败: %w", nodeAgent, err)
	}

	// executing：结果消息作为 agent 节点的输入回流，由其 pre handler 追加
	err = g.AddToolsNode(nodeTools, toolsNode,
		compose.WithStatePreHandler(func(ctx context.Context, in *schema.Message, st *loopState) (*schema.Message, error) {
			if err := st.step(); err != nil {
				return nil, err
			}
			metrics.LoopStepsTotal.WithLabelValues(string(StageExecuting)).Inc()
			return in, nil
		}),
		compose.WithNodeName(string(StageExecuting)),
	)
	if err != nil {
		return nil, fmt.Errorf("agent: 添加节点 %s 失败: %w", nodeTools, err)
	}

	// 既无工具调用也不是 END：不追加任何消息，直接再次 reasoning
	err = g.AddLambdaNode(nodeContinue, compose.InvokableLambda(func(ctx context.Context, in *schema.Message) ([]*schema.Message, error) {
		return nil, nil
	}))
	if err != nil {
		return nil, fmt.Errorf("agent: 添加节点 %s 失败: %w", nodeContinue, err)
	}

	branch := compose.NewGraphBranch(func(ctx context.Context, msg *schema.Message) (string, error) {
		switch Route(msg) {
		case StageExecuting:
			return nodeTools, nil
		case StageTerminated:
			return compose.END, nil
		default:
			return nodeContinue, nil
		}
	}, map[string]bool{nodeTools: true, nodeContinue: true, compose.END: true})

	if err := g.AddEdge(compose.START, nodeAgent); err != nil {
		return nil, fmt.Errorf("agent: 连接 START->%s 失败: %w", nodeAgent, err)
	}
	if err := g.AddBranch(nodeAgent, branch); err != nil {
		return nil, fmt.Errorf("agent: 添加分支失败: %w", err)
	}
	if err := g.AddEdge(nodeTools, nodeAgent); err != nil {
		return nil, fmt.Errorf("agent: 连接 %s->%s 失败: %w", nodeTools, nodeAgent, err)
	}
	if err := g.AddEdge(nodeContinue, nodeAgent); err != nil {
		return nil, fmt.Errorf("agent: 连接 %s->%s 失败: %w", nodeContinue, nodeAgent, err)
	}

	runnable, err := g.Compile(ctx,
		compose.WithGraphName(graphName),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
		// 图引擎自身的步数上限只作兜底，预算由 loopState 控制
		compose.WithMaxRunSteps(3*maxSteps+10),
	)
	if err != nil {
		return nil, fmt.Errorf("agent: 编译图失败: %w", err)
	}

	return &Runner{graph: runnable, instruction: instruction, maxSteps: maxSteps, logger: logger}, nil
}

// Run 以 url 为起点运行循环直到 END、步数耗尽或出错
func (r *Runner) Run(ctx context.Context, url string) (*Result, error) {
	seed, err := r.instruction.Seed(ctx, url)
	if err != nil {
		return nil, err
	}
	return r.RunConversation(ctx, seed)
}

// RunConversation 以给定的初始对话运行循环
func (r *Runner) RunConversation(ctx context.Context, seed []*schema.Message) (*Result, error) {
	st := &loopState{MaxSteps: r.maxSteps}
	out, err := r.graph.Invoke(withState(ctx, st), seed)

	res := &Result{Conversation: st.snapshot(), Steps: st.Steps}
	if st.Exhausted {
		return res, ErrStepLimitExceeded
	}
	if err != nil {
		if errors.Is(err, ErrStepLimitExceeded) {
			return res, ErrStepLimitExceeded
		}
		return res, fmt.Errorf("agent loop: %w", err)
	}
	res.Final = out
	return res, nil
}

// MaxSteps 返回步数预算
func (r *Runner) MaxSteps() int { return r.maxSteps }
