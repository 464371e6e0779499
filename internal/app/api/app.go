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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"quiz-agent/internal/agent/job"
	apihttp "quiz-agent/internal/api/http"
	"quiz-agent/internal/api/http/middleware"
	"quiz-agent/internal/app"
	"quiz-agent/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用：/solve 入口 + 后台调度器 + 共享 Agent 运行栈
type App struct {
	bootstrap    *app.Bootstrap
	stack        *app.AgentStack
	scheduler    *job.Scheduler
	router       *apihttp.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用
func NewApp(ctx context.Context, bootstrap *app.Bootstrap) (*App, error) {
	stack, err := app.NewAgentStack(ctx, bootstrap)
	if err != nil {
		return nil, fmt.Errorf("初始化 Agent failed: %w", err)
	}
	return newApp(bootstrap, stack), nil
}

func newApp(bootstrap *app.Bootstrap, stack *app.AgentStack) *App {
	logger := bootstrap.Logger.Logger
	scheduler := job.NewScheduler(stack.RunJob, job.SchedulerConfig{
		MaxConcurrency: bootstrap.Config.Agent.MaxConcurrency,
	}, logger)

	handler := apihttp.NewHandler(scheduler, bootstrap.Credentials.Secret, logger)
	router := apihttp.NewRouter(handler, middleware.NewMiddleware(logger))
	router.SetMetricsEnabled(bootstrap.Config.Monitoring.Prometheus.Enable)

	return &App{
		bootstrap: bootstrap,
		stack:     stack,
		scheduler: scheduler,
		router:    router,
	}
}

// Run 启动 HTTP 服务，addr 如 ":8000"；阻塞直到服务关闭
func (a *App) Run(addr string) error {
	cfg := a.bootstrap.Config
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr, "max_steps", cfg.Agent.MaxSteps, "model", cfg.Model.Name)

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	logCfg := &log.Config{Level: cfg.Log.Level, File: cfg.Log.File}
	output, err := log.Output(logCfg)
	if err != nil {
		return err
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	tracingCfg := cfg.Monitoring.Tracing
	exportEndpoint := tracingCfg.ExportEndpoint
	if exportEndpoint == "" {
		exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if tracingCfg.Enable && exportEndpoint != "" {
		serviceName := tracingCfg.ServiceName
		if serviceName == "" {
			serviceName = "quiz-agent"
		}
		opts := []provider.Option{
			provider.WithServiceName(serviceName),
			provider.WithExportEndpoint(exportEndpoint),
		}
		if tracingCfg.Insecure {
			opts = append(opts, provider.WithInsecure())
		}
		a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
		tracerOpt, tcfg := hertztracing.NewServerTracer()
		a.hertz = a.router.Build(addr, tracerOpt)
		a.hertz.Use(hertztracing.ServerMiddleware(tcfg))
		a.bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
	} else {
		a.hertz = a.router.Build(addr)
	}

	return a.hertz.Run()
}

// Shutdown 优雅关闭：停止接收任务、关闭 HTTP、等待在途任务、释放浏览器与 tracer
func (a *App) Shutdown(ctx context.Context) error {
	a.scheduler.Stop()

	var errs []error
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("关闭 HTTP 服务: %w", err))
		}
	}
	if err := a.scheduler.Wait(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.stack.Close(); err != nil {
		errs = append(errs, fmt.Errorf("关闭浏览器: %w", err))
	}
	if a.otelProvider != nil {
		if err := a.otelProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("关闭 tracer: %w", err))
		}
	}
	return errors.Join(errs...)
}
