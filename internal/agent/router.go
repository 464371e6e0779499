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
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Stage 循环所处阶段
type Stage string

const (
	StageReasoning  Stage = "reasoning"
	StageExecuting  Stage = "executing"
	StageTerminated Stage = "terminated"
)

// EndSentinel 模型表示所有任务完成时的回复（比较前去掉首尾空白）
const EndSentinel = "END"

// Route 根据最后一条模型消息决定下一阶段：
// 有工具调用 -> executing；内容为 END -> terminated；否则继续 reasoning
func Route(msg *schema.Message) Stage {
	if msg == nil {
		return StageReasoning
	}
	if len(msg.ToolCalls) > 0 {
		return StageExecuting
	}
	if strings.TrimSpace(msg.Content) == EndSentinel {
		return StageTerminated
	}
	return StageReasoning
}
