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
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

// Config 沙箱配置
type Config struct {
	PythonCommand  string        // 解释器命令，可带参数
	InstallCommand string        // 依赖安装命令，会追加 --target <deps> 与包名
	PassEnv        []string      // 允许透传的环境变量名
	CodeTimeout    time.Duration // 单次执行默认超时
	MaxOutputBytes int           // stdout/stderr 各自上限
}

// Sandbox 任务代码执行环境：python 走子进程边界，javascript 走进程内 goja VM
type Sandbox struct {
	cfg     Config
	python  []string
	install []string
}

// New 解析命令行并创建 Sandbox
func New(cfg Config) (*Sandbox, error) {
	if cfg.CodeTimeout <= 0 {
		cfg.CodeTimeout = 60 * time.Second
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 1 << 20
	}
	python, err := parseCommand(cfg.PythonCommand)
	if err != nil {
		return nil, fmt.Errorf("python_command: %w", err)
	}
	install, err := parseCommand(cfg.InstallCommand)
	if err != nil {
		return nil, fmt.Errorf("install_command: %w", err)
	}
	return &Sandbox{cfg: cfg, python: python, install: install}, nil
}

func parseCommand(s string) ([]string, error) {
	args, err := shellwords.Parse(s)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return args, nil
}

func (s *Sandbox) timeout(requested time.Duration) time.Duration {
	if requested <= 0 || requested > s.cfg.CodeTimeout {
		return s.cfg.CodeTimeout
	}
	return requested
}

// Result 一次执行的输出
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Timeout  time.Duration
}

// String 以工具结果文本的形式输出
func (r *Result) String() string {
	var b strings.Builder
	b.WriteString(r.Stdout)
	if r.Stderr != "" {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
		b.WriteString("STDERR:\n")
		b.WriteString(r.Stderr)
	}
	switch {
	case r.TimedOut:
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "execution timed out after %s", r.Timeout)
	case r.ExitCode != 0:
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "exit code %d", r.ExitCode)
	case b.Len() == 0:
		b.WriteString("(completed with no output)")
	}
	return b.String()
}

// limitedBuffer 超过上限后丢弃后续写入，但不向写入方报错
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := l.limit - l.buf.Len(); room < len(p) {
		if room > 0 {
			l.buf.Write(p[:room])
		}
		l.truncated = true
		return len(p), nil
	}
	return l.buf.Write(p)
}

func (l *limitedBuffer) String() string {
	if l.truncated {
		return l.buf.String() + "\n...[output truncated]"
	}
	return l.buf.String()
}
