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
	"strings"

	"github.com/cloudwego/eino/components/tool"

	"quiz-agent/internal/sandbox"
)

// ToolAddDependencies add_dependencies 工具名
const ToolAddDependencies = "add_dependencies"

type installInput struct {
	Dependencies []string `json:"dependencies" jsonschema_description:"python package names, optionally with version specifiers"`
}

const installDesc = "Install python packages for later run_code calls in this task."

func newInstallTool(sb *sandbox.Sandbox) tool.InvokableTool {
	return inferToolOrUnavailable(ToolAddDependencies, installDesc, func(ctx context.Context, in installInput) (string, error) {
		ws, err := sandbox.WorkspaceFromContext(ctx)
		if err != nil {
			return "", err
		}
		res, err := sb.Install(ctx, ws, in.Dependencies)
		if err != nil {
			return "", err
		}
		if res.TimedOut || res.ExitCode != 0 {
			return "", fmt.Errorf("installation failed: %s", res.String())
		}
		return "Successfully installed: " + strings.Join(in.Dependencies, ", "), nil
	})
}
