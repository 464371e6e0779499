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

package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

func apiBaseURL() string {
	if u := os.Getenv("QUIZ_AGENT_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8000"
}

func newClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
}

func submitCmd() *cobra.Command {
	var server, secret string
	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "向运行中的服务提交任务（POST /solve）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("SECRET")
			}
			return submitTask(cmd.OutOrStdout(), server, args[0], secret)
		},
	}
	cmd.Flags().StringVar(&server, "server", apiBaseURL(), "服务地址")
	cmd.Flags().StringVar(&secret, "secret", "", "共享密钥，默认读取环境变量 SECRET")
	return cmd
}

func submitTask(w io.Writer, server, url, secret string) error {
	var out map[string]any
	resp, err := newClient(server).R().
		SetBody(map[string]string{"url": url, "secret": secret}).
		SetResult(&out).
		SetError(&out).
		Post("/solve")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("POST /solve: %d %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	_, err = fmt.Fprintf(w, "已提交: %s\n", resp.String())
	return err
}
