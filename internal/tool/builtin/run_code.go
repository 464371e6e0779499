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
	"time"

	"github.com/cloudwego/eino/components/tool"

	"quiz-agent/internal/sandbox"
)

// ToolRunCode run_code 工具名
const ToolRunCode = "run_code"

type runCodeInput struct {
	Code           string `json:"code" jsonschema_description:"source code to execute"`
	Language       string `json:"language,omitempty" jsonschema_description:"python (default) or javascript"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema_description:"execution timeout in seconds"`
}

const runCodeDesc = "Execute code in the task workspace and return stdout, stderr and the exit status. " +
	"Python runs in a separate process with packages from add_dependencies available; " +
	"javascript runs in an isolated interpreter without file or network access. " +
	"Print the values you need."

func newRunCodeTool(sb *sandbox.Sandbox) tool.InvokableTool {
	return inferToolOrUnavailable(ToolRunCode, runCodeDesc, func(ctx context.Context, in runCodeInput) (string, error) {
		if strings.TrimSpace(in.Code) == "" {
			return "", fmt.Errorf("code is required")
		}
		timeout := time.Duration(in.TimeoutSeconds) * time.Second

		var (
			res *sandbox.Result
			err error
		)
		switch strings.ToLower(strings.TrimSpace(in.Language)) {
		case "", "python", "py", "python3":
			ws, werr := sandbox.WorkspaceFromContext(ctx)
			if werr != nil {
				return "", werr
			}
			res, err = sb.RunPython(ctx, ws, in.Code, timeout)
		case "javascript", "js", "node":
			res, err = sb.RunJavaScript(ctx, in.Code, timeout)
		default:
			return "", fmt.Errorf("unsupported language %q", in.Language)
		}
		if err != nil {
			return "", err
		}
		return res.String(), nil
	})
}
