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

package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Manager 管理共享的无头 Chrome；首次 Render 时启动，每次 Render 使用独立页面
type Manager struct {
	mu          sync.Mutex
	browser     *rod.Browser
	headless    bool
	bin         string
	stableAfter time.Duration
	logger      *slog.Logger
}

// Option 配置 Manager
type Option func(*Manager)

// WithHeadless 设置是否无头运行（默认 true）
func WithHeadless(h bool) Option {
	return func(m *Manager) { m.headless = h }
}

// WithBin 指定 Chrome 可执行文件；为空时由 launcher 查找或下载
func WithBin(bin string) Option {
	return func(m *Manager) { m.bin = bin }
}

// WithStableAfter 设置 DOM 稳定判定间隔
func WithStableAfter(d time.Duration) Option {
	return func(m *Manager) { m.stableAfter = d }
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New 创建 Manager，不会立即启动浏览器
func New(opts ...Option) *Manager {
	m := &Manager{
		headless:    true,
		stableAfter: 500 * time.Millisecond,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) ensure() (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		return m.browser, nil
	}

	l := launcher.New().
		Headless(m.headless).
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check")
	if m.bin != "" {
		l = l.Bin(m.bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch Chrome: %w", err)
	}
	m.logger.Info("Chrome launched", "cdp", controlURL, "headless", m.headless)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to Chrome: %w", err)
	}
	m.browser = b
	return b, nil
}

// Render 打开 url，等待加载完成且 DOM 稳定后返回渲染后的 HTML
func (m *Manager) Render(ctx context.Context, url string) (string, error) {
	b, err := m.ensure()
	if err != nil {
		return "", err
	}

	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			m.logger.Debug("close page failed", "error", cerr)
		}
	}()

	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}
	if err := page.WaitStable(m.stableAfter); err != nil {
		return "", fmt.Errorf("wait stable: %w", err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

// Close 关闭浏览器（未启动时为空操作）
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil {
		return nil
	}
	err := m.browser.Close()
	m.browser = nil
	return err
}
