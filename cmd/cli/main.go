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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"quiz-agent/internal/app"
	"quiz-agent/pkg/config"
	"quiz-agent/pkg/redaction"
	"quiz-agent/pkg/tracing"
)

const version = "quiz-agent cli 0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "quiz-agent",
		Short:         "quiz-agent 命令行工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "配置文件路径")

	root.AddCommand(versionCmd())
	root.AddCommand(configCmd(&configPath))
	root.AddCommand(solveCmd(&configPath))
	root.AddCommand(submitCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	return config.LoadConfig(path)
}

func configCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "显示生效配置（密钥已遮盖）",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	}
}

// secretFields 输出配置时遮盖的字段
var secretFields = []string{"Model.APIKey", "Credentials.Secret", "Credentials.Vault.Token"}

func printConfig(w io.Writer, cfg *config.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	engine := redaction.NewEngine(cfg.Model.APIKey, cfg.Credentials.Secret, cfg.Credentials.Vault.Token)
	data, err = engine.RedactData(data, secretFields...)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out.String())
	return err
}

func solveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "solve <url>",
		Short: "在前台运行一次任务循环并输出最终结果",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			return runSolve(cmd.Context(), cmd.OutOrStdout(), cfg, args[0])
		},
	}
}

func runSolve(ctx context.Context, w io.Writer, cfg *config.Config, url string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tc := cfg.Monitoring.Tracing
	if tc.Enable && tc.ExportEndpoint != "" {
		shutdown, err := tracing.InitTracer(ctx, tracing.OTelConfig{
			ServiceName:    tc.ServiceName,
			ExportEndpoint: tc.ExportEndpoint,
			Insecure:       tc.Insecure,
			SampleRatio:    tc.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("初始化 tracer 失败: %w", err)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	b, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	stack, err := app.NewAgentStack(ctx, b)
	if err != nil {
		return err
	}
	defer stack.Close()

	res, err := stack.Solve(ctx, uuid.NewString(), url)
	if err != nil {
		if res != nil {
			fmt.Fprintf(w, "未完成（%d 步）: %v\n", res.Steps, err)
		}
		return err
	}
	_, err = fmt.Fprintln(w, res.Output())
	return err
}
