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

package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-agent/internal/agent"
	pkgerrors "quiz-agent/pkg/errors"
	"quiz-agent/pkg/metrics"
)

// ErrSchedulerStopped 调度器已停止接收新任务
var ErrSchedulerStopped = fmt.Errorf("scheduler stopped: %w", pkgerrors.ErrUnavailable)

// RunJobFunc 执行一个任务；返回的错误只用于记录，不会回传给提交方
type RunJobFunc func(ctx context.Context, j *Job) error

// SchedulerConfig 调度配置
type SchedulerConfig struct {
	MaxConcurrency int // 同时运行的任务数，<=0 表示不限制
}

// Scheduler fire-and-forget 调度：每个任务一个 goroutine，运行在与请求无关的 context 上
type Scheduler struct {
	runJob  RunJobFunc
	config  SchedulerConfig
	limiter chan struct{} // 信号量，限制并发；nil 表示不限制
	logger  *slog.Logger

	mu      sync.Mutex
	stopped bool
	active  map[string]*Job
	wg      sync.WaitGroup
}

// NewScheduler 创建调度器
func NewScheduler(runJob RunJobFunc, config SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		runJob: runJob,
		config: config,
		logger: logger,
		active: make(map[string]*Job),
	}
	if config.MaxConcurrency > 0 {
		s.limiter = make(chan struct{}, config.MaxConcurrency)
	}
	return s
}

// Submit 创建任务并立即返回；任务在后台执行。返回值是提交时刻的快照
func (s *Scheduler) Submit(url string) (*Job, error) {
	now := time.Now()
	j := &Job{
		ID:        uuid.New().String(),
		URL:       url,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrSchedulerStopped
	}
	s.active[j.ID] = j
	s.wg.Add(1)
	s.mu.Unlock()

	snapshot := *j
	go s.run(j)
	return &snapshot, nil
}

func (s *Scheduler) run(j *Job) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.active, j.ID)
		s.mu.Unlock()
	}()

	logger := s.logger.With("job_id", j.ID, "url", j.URL)

	// 并发槽位在 goroutine 内获取，Submit 永不阻塞
	if s.limiter != nil {
		s.limiter <- struct{}{}
		defer func() { <-s.limiter }()
	}

	s.setStatus(j, StatusRunning, nil)
	metrics.TasksRunning.Inc()
	start := time.Now()
	logger.Info("任务开始执行")

	err := s.invoke(j)

	metrics.TasksRunning.Dec()
	label := outcomeLabel(err)
	metrics.TaskTotal.WithLabelValues(label).Inc()
	metrics.TaskDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	if err != nil {
		s.setStatus(j, StatusFailed, err)
		logger.Error("任务执行失败", "status", label, "steps", j.Steps, "error", err, "duration", time.Since(start))
		return
	}
	s.setStatus(j, StatusCompleted, nil)
	logger.Info("任务执行完成", "steps", j.Steps, "duration", time.Since(start))
}

func (s *Scheduler) invoke(j *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return s.runJob(context.Background(), j)
}

func (s *Scheduler) setStatus(j *Job, status JobStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.Status = status
	j.Err = err
	j.UpdatedAt = time.Now()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, agent.ErrStepLimitExceeded):
		return "step_limit"
	default:
		return "failed"
	}
}

// Active 返回未结束（排队或运行中）的任务数
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Stop 停止接收新任务；已提交的任务继续执行
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// Wait 等待所有已提交任务结束，或 ctx 到期
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("等待任务结束超时，仍有 %d 个任务: %w", s.Active(), ctx.Err())
	}
}
