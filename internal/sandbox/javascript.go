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
	"strings"
	"time"

	"github.com/dop251/goja"
)

// RunJavaScript 在独立的 goja VM 中执行代码；VM 不提供文件系统与网络绑定
func (s *Sandbox) RunJavaScript(ctx context.Context, code string, timeout time.Duration) (*Result, error) {
	timeout = s.timeout(timeout)
	stdout := &limitedBuffer{limit: s.cfg.MaxOutputBytes}
	stderr := &limitedBuffer{limit: s.cfg.MaxOutputBytes}

	vm := goja.New()
	console := vm.NewObject()
	if err := console.Set("log", printer(stdout)); err != nil {
		return nil, err
	}
	if err := console.Set("info", printer(stdout)); err != nil {
		return nil, err
	}
	if err := console.Set("error", printer(stderr)); err != nil {
		return nil, err
	}
	if err := console.Set("warn", printer(stderr)); err != nil {
		return nil, err
	}
	if err := vm.Set("console", console); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	value, err := vm.RunString(code)
	res := &Result{Timeout: timeout}
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			res.TimedOut = true
			res.ExitCode = -1
		} else {
			fmt.Fprintln(stderr, err.Error())
			res.ExitCode = 1
		}
	} else if stdout.buf.Len() == 0 && value != nil && !goja.IsUndefined(value) && !goja.IsNull(value) {
		// 没有 console 输出时以最后一个表达式的值作为结果
		fmt.Fprintln(stdout, value.String())
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return res, nil
}

func printer(w *limitedBuffer) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
		return goja.Undefined()
	}
}
