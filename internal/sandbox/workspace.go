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

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrPathEscape 路径解析后位于工作目录之外
	ErrPathEscape = errors.New("path escapes task workspace")
	// ErrNoWorkspace ctx 中没有任务工作目录
	ErrNoWorkspace = errors.New("no task workspace in context")
)

// depsDirName add_dependencies 安装目标目录，python 运行时加入 PYTHONPATH
const depsDirName = ".deps"

// Workspace 单个任务的工作目录；下载的文件、运行的代码和安装的依赖都落在这里
type Workspace struct {
	Root    string
	DepsDir string
}

// NewWorkspace 在 base 下创建 <id> 目录
func NewWorkspace(base, id string) (*Workspace, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("invalid workspace id %q", id)
	}
	abs, err := filepath.Abs(filepath.Join(base, id))
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	deps := filepath.Join(abs, depsDirName)
	if err := os.MkdirAll(deps, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Root: abs, DepsDir: deps}, nil
}

// Resolve 将模型给出的相对路径解析到工作目录内；绝对路径或 .. 越界均被拒绝
func (w *Workspace) Resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathEscape)
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, name)
	}
	p := filepath.Join(w.Root, name)
	rel, err := filepath.Rel(w.Root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, name)
	}
	return p, nil
}

// Remove 删除整个工作目录
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Root)
}

type workspaceKey struct{}

// WithWorkspace 将任务工作目录放入 ctx，供工具调用读取
func WithWorkspace(ctx context.Context, ws *Workspace) context.Context {
	return context.WithValue(ctx, workspaceKey{}, ws)
}

// WorkspaceFromContext 读取 ctx 中的任务工作目录
func WorkspaceFromContext(ctx context.Context) (*Workspace, error) {
	ws, ok := ctx.Value(workspaceKey{}).(*Workspace)
	if !ok || ws == nil {
		return nil, ErrNoWorkspace
	}
	return ws, nil
}
