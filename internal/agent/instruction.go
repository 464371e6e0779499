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
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"quiz-agent/pkg/secrets"
)

const systemTemplate = `You are a quiz solving agent. You will be given a url to a webpage that contains a task.
The task may involve finding an answer and sending a request to a url specified in the webpage with a payload of the structure described in the webpage.
Once you send the request, you will get a response. The response will tell you whether your answer was correct and why.
It may also contain a new task url to visit and repeat the process, or it may contain the same task url in some cases.

REMEMBER:
 - You can use all the tools at your disposal to complete the tasks.
 - Read all the contents of the webpage to find all the information needed to complete the task.
 - You can download the files linked in the webpage and process them with run_code.
 - Keep going as long as the response contains a new task url.
 - **DO NOT** stop prematurely. Only stop when there is no new task url in the response.

Once you have completed all the tasks, respond with exactly "{{.end}}" to indicate that you are done.
Some tasks require the following information:
- Email: {{.email}}
- Secret: {{.secret}}
`

// Instruction 生成每个任务的初始对话：[system(指令), user(url)]
type Instruction struct {
	tpl   prompt.ChatTemplate
	creds secrets.Credentials
}

// NewInstruction 创建指令模板；身份与密钥在进程内只读
func NewInstruction(creds secrets.Credentials) *Instruction {
	return &Instruction{
		tpl: prompt.FromMessages(schema.GoTemplate,
			schema.SystemMessage(systemTemplate),
			schema.UserMessage("{{.url}}"),
		),
		creds: creds,
	}
}

// Seed 渲染初始对话
func (i *Instruction) Seed(ctx context.Context, url string) ([]*schema.Message, error) {
	msgs, err := i.tpl.Format(ctx, map[string]any{
		"email":  i.creds.Identity,
		"secret": i.creds.Secret,
		"end":    EndSentinel,
		"url":    url,
	})
	if err != nil {
		return nil, fmt.Errorf("render instruction: %w", err)
	}
	return msgs, nil
}
