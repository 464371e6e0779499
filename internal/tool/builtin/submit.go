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
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/go-resty/resty/v2"
)

// ToolPostRequest post_request 工具名
const ToolPostRequest = "post_request"

type postInput struct {
	URL     string            `json:"url" jsonschema_description:"endpoint to send the answer to"`
	Payload any               `json:"payload" jsonschema_description:"any JSON value (object, array, string, number or boolean) sent as the request body"`
	Method  string            `json:"method,omitempty" jsonschema_description:"HTTP method, POST by default"`
	Headers map[string]string `json:"headers,omitempty" jsonschema_description:"extra request headers"`
}

type postOutput struct {
	StatusCode int `json:"status_code"`
	Body       any `json:"body"`
}

const postDesc = "Send a JSON payload to an HTTP endpoint (typically to submit an answer) " +
	"and return the status code and the response body."

var allowedMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
	http.MethodGet:   true,
}

func newPostTool(client *resty.Client) tool.InvokableTool {
	return inferToolOrUnavailable(ToolPostRequest, postDesc, func(ctx context.Context, in postInput) (string, error) {
		rawURL := strings.TrimSpace(in.URL)
		if err := checkHTTPURL(rawURL); err != nil {
			return "", err
		}
		method := strings.ToUpper(strings.TrimSpace(in.Method))
		if method == "" {
			method = http.MethodPost
		}
		if !allowedMethods[method] {
			return "", fmt.Errorf("unsupported HTTP method %q", in.Method)
		}

		req := client.R().SetContext(ctx).SetHeader("Content-Type", "application/json")
		if len(in.Headers) > 0 {
			req.SetHeaders(in.Headers)
		}
		if method != http.MethodGet {
			// 先自行编码：resty 只会对 struct/map/slice 做 JSON 序列化
			body := []byte("{}")
			if in.Payload != nil {
				raw, err := json.Marshal(in.Payload)
				if err != nil {
					return "", fmt.Errorf("encode payload: %w", err)
				}
				body = raw
			}
			req.SetBody(body)
		}

		resp, err := req.Execute(method, rawURL)
		if err != nil {
			return "", fmt.Errorf("%s %s: %w", method, rawURL, err)
		}

		out := postOutput{StatusCode: resp.StatusCode()}
		var body any
		if err := json.Unmarshal(resp.Body(), &body); err == nil {
			out.Body = body
		} else {
			out.Body = string(resp.Body())
		}
		raw, err := json.Marshal(out)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	})
}
