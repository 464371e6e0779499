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

	"github.com/cloudwego/eino/schema"
)

// ErrStepLimitExceeded 步数预算耗尽；与正常终止（END）区分
var ErrStepLimitExceeded = errors.New("agent step limit exceeded")

// loopState 单次运行的图局部状态；Messages 只追加
type loopState struct {
	Messages  []*schema.Message
	Steps     int // 已执行的 reasoning + executing 阶段数
	MaxSteps  int
	Exhausted bool
}

// step 记录一次阶段执行；超出预算时标记 Exhausted 并返回 ErrStepLimitExceeded
func (s *loopState) step() error {
	if s.Steps >= s.MaxSteps {
		s.Exhausted = true
		return ErrStepLimitExceeded
	}
	s.Steps++
	return nil
}

func (s *loopState) snapshot() []*schema.Message {
	return append([]*schema.Message(nil), s.Messages...)
}

type stateKey struct{}

func withState(ctx context.Context, st *loopState) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// stateFromContext 由 compose.WithGenLocalState 调用；Runner 预先放入 ctx 以便运行结束后读取
func stateFromContext(ctx context.Context, maxSteps int) *loopState {
	if st, ok := ctx.Value(stateKey{}).(*loopState); ok && st != nil {
		return st
	}
	return &loopState{MaxSteps: maxSteps}
}
