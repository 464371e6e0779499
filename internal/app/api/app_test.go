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

package api

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-agent/internal/app"
	"quiz-agent/pkg/config"
	"quiz-agent/pkg/log"
	"quiz-agent/pkg/secrets"
)

type endModel struct {
	calls int32
	mu    sync.Mutex
	urls  []string
}

func (m *endModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	atomic.AddInt32(&m.calls, 1)
	m.mu.Lock()
	m.urls = append(m.urls, input[len(input)-1].Content)
	m.mu.Unlock()
	return schema.AssistantMessage("END", nil), nil
}

func (m *endModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, _ := m.Generate(ctx, input, opts...)
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *endModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func newTestApp(t *testing.T, m model.ToolCallingChatModel) *App {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Tools.WorkspaceDir = t.TempDir()

	b := &app.Bootstrap{
		Config:      cfg,
		Logger:      log.Nop(),
		Credentials: secrets.Credentials{Identity: "student@example.test", Secret: "s3cret"},
	}
	stack, err := app.NewAgentStackWithModel(context.Background(), b, m)
	require.NoError(t, err)
	return newApp(b, stack)
}

func TestApp_SolveRunsAgentInBackground(t *testing.T) {
	m := &endModel{}
	a := newTestApp(t, m)
	s := a.router.Build(":0")

	body := []byte(`{"url":"https://quiz.example/demo","secret":"s3cret"}`)
	w := ut.PerformRequest(s.Engine, "POST", "/solve", &ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	require.Equal(t, 200, w.Result().StatusCode())
	assert.JSONEq(t, `{"status":"ok"}`, string(w.Result().Body()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.scheduler.Wait(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&m.calls))
	assert.Equal(t, []string{"https://quiz.example/demo"}, m.urls)
}

func TestApp_RejectedRequestSchedulesNothing(t *testing.T) {
	m := &endModel{}
	a := newTestApp(t, m)
	s := a.router.Build(":0")

	body := []byte(`{"url":"https://quiz.example/demo","secret":"nope"}`)
	w := ut.PerformRequest(s.Engine, "POST", "/solve", &ut.Body{Body: bytes.NewReader(body), Len: len(body)})
	assert.Equal(t, 403, w.Result().StatusCode())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.scheduler.Wait(ctx))
	assert.Equal(t, int32(0), atomic.LoadInt32(&m.calls))
}

func TestApp_ShutdownRejectsNewWork(t *testing.T) {
	a := newTestApp(t, &endModel{})
	s := a.router.Build(":0")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))

	body := []byte(`{"url":"https://quiz.example/demo","secret":"s3cret"}`)
	w := ut.PerformRequest(s.Engine, "POST", "/solve", &ut.Body{Body: bytes.NewReader(body), Len: len(body)})
	assert.Equal(t, 503, w.Result().StatusCode())
}
