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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-agent/internal/agent"
	pkgerrors "quiz-agent/pkg/errors"
)

func TestScheduler_SubmitReturnsImmediately(t *testing.T) {
	release := make(chan struct{})
	var runCount int32
	sched := NewScheduler(func(ctx context.Context, j *Job) error {
		atomic.AddInt32(&runCount, 1)
		<-release
		return nil
	}, SchedulerConfig{}, nil)

	start := time.Now()
	j, err := sched.Submit("https://quiz.example/demo")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, "https://quiz.example/demo", j.URL)
	assert.Equal(t, StatusPending, j.Status)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sched.Wait(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&runCount))
	assert.Equal(t, 0, sched.Active())
}

func TestScheduler_UniqueIDsAndDetachedContext(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	var ctxErrs int32
	sched := NewScheduler(func(ctx context.Context, j *Job) error {
		if ctx.Err() != nil {
			atomic.AddInt32(&ctxErrs, 1)
		}
		mu.Lock()
		seen[j.ID] = true
		mu.Unlock()
		return nil
	}, SchedulerConfig{}, nil)

	for i := 0; i < 20; i++ {
		_, err := sched.Submit(fmt.Sprintf("https://quiz.example/%d", i))
		require.NoError(t, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sched.Wait(ctx))
	assert.Len(t, seen, 20)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ctxErrs))
}

func TestScheduler_MaxConcurrency(t *testing.T) {
	var running, peak int32
	sched := NewScheduler(func(ctx context.Context, j *Job) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	}, SchedulerConfig{MaxConcurrency: 2}, nil)

	for i := 0; i < 8; i++ {
		_, err := sched.Submit("https://quiz.example/x")
		require.NoError(t, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sched.Wait(ctx))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestScheduler_RecoversPanic(t *testing.T) {
	sched := NewScheduler(func(ctx context.Context, j *Job) error {
		panic("boom")
	}, SchedulerConfig{}, nil)

	_, err := sched.Submit("https://quiz.example/panic")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sched.Wait(ctx))

	// 调度器仍可继续接收任务
	_, err = sched.Submit("https://quiz.example/after")
	assert.NoError(t, err)
	require.NoError(t, sched.Wait(ctx))
}

func TestScheduler_StopRejectsNewJobs(t *testing.T) {
	sched := NewScheduler(func(ctx context.Context, j *Job) error { return nil }, SchedulerConfig{}, nil)
	sched.Stop()

	_, err := sched.Submit("https://quiz.example/late")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchedulerStopped))
	assert.True(t, errors.Is(err, pkgerrors.ErrUnavailable))
}

func TestScheduler_WaitTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	sched := NewScheduler(func(ctx context.Context, j *Job) error {
		<-release
		return nil
	}, SchedulerConfig{}, nil)
	_, err := sched.Submit("https://quiz.example/slow")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = sched.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, "completed", outcomeLabel(nil))
	assert.Equal(t, "step_limit", outcomeLabel(fmt.Errorf("run: %w", agent.ErrStepLimitExceeded)))
	assert.Equal(t, "failed", outcomeLabel(errors.New("model down")))
}

func TestJobStatus_String(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "completed", StatusCompleted.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "unknown", JobStatus(99).String())
}
