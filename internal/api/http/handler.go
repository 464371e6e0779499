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

package http

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/prometheus/common/expfmt"

	"quiz-agent/internal/agent/job"
	pkgerrors "quiz-agent/pkg/errors"
	"quiz-agent/pkg/metrics"
)

// Submitter 接收已验证的任务 URL 并在后台执行
type Submitter interface {
	Submit(url string) (*job.Job, error)
}

// Handler HTTP 处理器
type Handler struct {
	submitter Submitter
	secret    string
	logger    *slog.Logger
	startedAt time.Time
}

// NewHandler 创建处理器；secret 为进程级共享密钥
func NewHandler(submitter Submitter, secret string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		submitter: submitter,
		secret:    secret,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// solveRequest /solve 请求体
type solveRequest struct {
	URL    string
	Secret string
}

// parseSolveRequest 请求体必须是 JSON 对象，且 url 与 secret 为非空字符串
func parseSolveRequest(body []byte) (*solveRequest, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidInput, "empty body")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidInput, "body is not a JSON object")
	}
	url, err := stringField(fields, "url")
	if err != nil {
		return nil, err
	}
	secret, err := stringField(fields, "secret")
	if err != nil {
		return nil, err
	}
	return &solveRequest{URL: url, Secret: secret}, nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", pkgerrors.Wrapf(pkgerrors.ErrInvalidInput, "%s is missing", name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", pkgerrors.Wrapf(pkgerrors.ErrInvalidInput, "%s is not a string", name)
	}
	// 仅用于判空，原值原样返回
	if strings.TrimSpace(s) == "" {
		return "", pkgerrors.Wrapf(pkgerrors.ErrInvalidInput, "%s is empty", name)
	}
	return s, nil
}

func (h *Handler) authorize(secret string) error {
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.secret)) != 1 {
		return pkgerrors.ErrUnauthorized
	}
	return nil
}

// Solve POST /solve：校验、鉴权、提交后台任务，立即返回
func (h *Handler) Solve(ctx context.Context, c *app.RequestContext) {
	req, err := parseSolveRequest(c.Request.Body())
	if err != nil {
		h.logger.Info("拒绝 /solve 请求", "reason", err)
		h.fail(c, err)
		return
	}
	if err := h.authorize(req.Secret); err != nil {
		h.logger.Warn("/solve 密钥不匹配", "url", req.URL, "client_ip", c.ClientIP())
		h.fail(c, err)
		return
	}

	j, err := h.submitter.Submit(req.URL)
	if err != nil {
		h.logger.Error("提交任务失败", "url", req.URL, "error", err)
		h.fail(c, err)
		return
	}

	h.logger.Info("任务已接受", "job_id", j.ID, "url", req.URL)
	h.respond(c, consts.StatusOK, map[string]string{"status": "ok"})
}

// fail 将错误映射为状态码与 {"detail": ...}
func (h *Handler) fail(c *app.RequestContext, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidInput):
		h.respond(c, consts.StatusBadRequest, map[string]string{"detail": "Invalid JSON"})
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		h.respond(c, consts.StatusForbidden, map[string]string{"detail": "Invalid secret"})
	case errors.Is(err, pkgerrors.ErrUnavailable):
		h.respond(c, consts.StatusServiceUnavailable, map[string]string{"detail": "Service is shutting down"})
	default:
		h.respond(c, consts.StatusInternalServerError, map[string]string{"detail": "Internal error"})
	}
}

func (h *Handler) respond(c *app.RequestContext, code int, body map[string]string) {
	metrics.SolveRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	c.JSON(code, body)
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]interface{}{
		"status":         "ok",
		"timestamp":      time.Now().Unix(),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"service":        "quiz-agent",
	})
}

// Metrics Prometheus 文本格式指标
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		h.logger.Error("导出指标失败", "error", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	c.Data(consts.StatusOK, string(expfmt.NewFormat(expfmt.TypeTextPlain)), buf.Bytes())
}
