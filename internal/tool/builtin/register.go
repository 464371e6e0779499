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
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	"github.com/go-resty/resty/v2"

	"quiz-agent/internal/sandbox"
)

// Deps 内置工具依赖的能力
type Deps struct {
	Renderer Renderer
	Sandbox  *sandbox.Sandbox
	Client   *resty.Client
	Options  Options
	Logger   *slog.Logger
}

// NewHTTPClient 创建 download_file / post_request 共享的 resty 客户端
func NewHTTPClient() *resty.Client {
	return resty.New().SetHeader("User-Agent", "quiz-agent/1.0")
}

// NewTools 构建 Agent 可用的全部工具；缺失的能力降级为不可用占位工具
func NewTools(deps Deps) []tool.BaseTool {
	client := deps.Client
	if client == nil {
		client = NewHTTPClient()
	}

	var render, runCode, install tool.InvokableTool
	if deps.Renderer != nil {
		render = newRenderTool(deps.Renderer)
	} else {
		render = makeUnavailableTool(ToolRenderHTML, renderDesc, fmt.Errorf("browser not configured"))
	}
	if deps.Sandbox != nil {
		runCode = newRunCodeTool(deps.Sandbox)
		install = newInstallTool(deps.Sandbox)
	} else {
		runCode = makeUnavailableTool(ToolRunCode, runCodeDesc, fmt.Errorf("sandbox not configured"))
		install = makeUnavailableTool(ToolAddDependencies, installDesc, fmt.Errorf("sandbox not configured"))
	}

	raw := []tool.InvokableTool{
		runCode,
		render,
		newDownloadTool(client),
		newPostTool(client),
		install,
	}
	tools := make([]tool.BaseTool, 0, len(raw))
	for _, t := range raw {
		tools = append(tools, Guard(t, deps.Options, deps.Logger))
	}
	return tools
}
