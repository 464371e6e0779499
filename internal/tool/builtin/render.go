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

package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
)

// ToolRenderHTML get_rendered_html 工具名
const ToolRenderHTML = "get_rendered_html"

// Renderer 渲染页面并返回 HTML；由 internal/tool/browser 实现
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

type renderInput struct {
	URL string `json:"url" jsonschema_description:"absolute http(s) URL of the page to render"`
}

const renderDesc = "Fetch and return the fully rendered HTML of a webpage (JavaScript executed). " +
	"Use this to read task pages, including content generated dynamically."

func newRenderTool(r Renderer) tool.InvokableTool {
	return inferToolOrUnavailable(ToolRenderHTML, renderDesc, func(ctx context.Context, in renderInput) (string, error) {
		url := strings.TrimSpace(in.URL)
		if err := checkHTTPURL(url); err != nil {
			return "", err
		}
		html, err := r.Render(ctx, url)
		if err != nil {
			return "", fmt.Errorf("render %s: %w", url, err)
		}
		return html, nil
	})
}

func checkHTTPURL(url string) error {
	if url == "" {
		return fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("unsupported url %q: only http and https are allowed", url)
	}
	return nil
}
