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
	"os/exec"
	"time"
)

// RunPython 将代码写入工作目录并用配置的解释器执行
func (s *Sandbox) RunPython(ctx context.Context, ws *Workspace, code string, timeout time.Duration) (*Result, error) {
	f, err := os.CreateTemp(ws.Root, "run-*.py")
	if err != nil {
		return nil, fmt.Errorf("write code file: %w", err)
	}
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		return nil, fmt.Errorf("write code file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("write code file: %w", err)
	}

	args := append(append([]string{}, s.python[1:]...), f.Name())
	return s.runProcess(ctx, ws, s.python[0], args, s.timeout(timeout))
}

func (s *Sandbox) runProcess(ctx context.Context, ws *Workspace, name string, args []string, timeout time.Duration) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = ws.Root
	cmd.Env = s.environ(ws)
	cmd.WaitDelay = 2 * time.Second

	stdout := &limitedBuffer{limit: s.cfg.MaxOutputBytes}
	stderr := &limitedBuffer{limit: s.cfg.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String(), Timeout: timeout}
	if err == nil {
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return nil, fmt.Errorf("run %s: %w", name, err)
}

// environ 子进程只看到 PATH、工作目录相关变量和显式透传的变量
func (s *Sandbox) environ(ws *Workspace) []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + ws.Root,
		"TMPDIR=" + ws.Root,
		"PYTHONPATH=" + ws.DepsDir,
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONIOENCODING=utf-8",
	}
	for _, name := range s.cfg.PassEnv {
		if v, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+v)
		}
	}
	return env
}
