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
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/go-resty/resty/v2"

	"quiz-agent/internal/sandbox"
)

// ToolDownloadFile download_file 工具名
const ToolDownloadFile = "download_file"

type downloadInput struct {
	URL      string `json:"url" jsonschema_description:"absolute http(s) URL of the file"`
	Filename string `json:"filename,omitempty" jsonschema_description:"file name to save as inside the task workspace; defaults to the last URL path segment"`
}

type downloadOutput struct {
	Path        string `json:"path"`
	Bytes       int64  `json:"bytes"`
	ContentType string `json:"content_type"`
}

const downloadDesc = "Download a file (CSV, PDF, audio, image, ...) into the task workspace. " +
	"Returns the relative path; run_code executes in the same directory and can open it by that path."

func newDownloadTool(client *resty.Client) tool.InvokableTool {
	return inferToolOrUnavailable(ToolDownloadFile, downloadDesc, func(ctx context.Context, in downloadInput) (string, error) {
		rawURL := strings.TrimSpace(in.URL)
		if err := checkHTTPURL(rawURL); err != nil {
			return "", err
		}
		ws, err := sandbox.WorkspaceFromContext(ctx)
		if err != nil {
			return "", err
		}
		name := strings.TrimSpace(in.Filename)
		if name == "" {
			name = filenameFromURL(rawURL)
		}
		dest, err := ws.Resolve(name)
		if err != nil {
			return "", err
		}

		resp, err := client.R().SetContext(ctx).SetOutput(dest).Get(rawURL)
		if err != nil {
			return "", fmt.Errorf("download %s: %w", rawURL, err)
		}
		if resp.IsError() {
			_ = os.Remove(dest)
			return "", fmt.Errorf("download %s: unexpected status %s", rawURL, resp.Status())
		}

		st, err := os.Stat(dest)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", name, err)
		}
		raw, _ := json.Marshal(downloadOutput{
			Path:        name,
			Bytes:       st.Size(),
			ContentType: resp.Header().Get("Content-Type"),
		})
		return string(raw), nil
	})
}

func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return "download"
	}
	return base
}
