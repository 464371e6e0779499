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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigPath API 进程默认配置文件；文件不存在时仅使用默认值与环境变量
const DefaultConfigPath = "configs/api.yaml"

// Config 应用配置结构体
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Agent       AgentConfig       `mapstructure:"agent"`
	Model       ModelConfig       `mapstructure:"model"`
	Tools       ToolsConfig       `mapstructure:"tools"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	RateLimits  RateLimitsConfig  `mapstructure:"rate_limits"`
	Log         LogConfig         `mapstructure:"log"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
	Timeout string `mapstructure:"timeout"` // 优雅关闭等待时长，如 "30s"
}

// AgentConfig Agent 循环与后台调度配置
type AgentConfig struct {
	MaxSteps            int  `mapstructure:"max_steps"`             // reasoning + executing 阶段总步数上限
	MaxConcurrency      int  `mapstructure:"max_concurrency"`       // 同时运行的后台任务数，<=0 不限制
	ExecuteSequentially bool `mapstructure:"execute_sequentially"` // 同一轮多个工具调用是否串行执行
}

// ModelConfig 模型配置（OpenAI 兼容端点）
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Name        string  `mapstructure:"name"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     string  `mapstructure:"timeout"`
}

// ToolsConfig 工具与沙箱配置
type ToolsConfig struct {
	Timeout        string        `mapstructure:"timeout"`          // 单次工具调用超时
	MaxOutputChars int           `mapstructure:"max_output_chars"` // 工具结果截断长度
	WorkspaceDir   string        `mapstructure:"workspace_dir"`    // 每个任务在其下创建独立工作目录
	KeepWorkspace  bool          `mapstructure:"keep_workspace"`
	Browser        BrowserConfig `mapstructure:"browser"`
	Sandbox        SandboxConfig `mapstructure:"sandbox"`
}

// BrowserConfig get_rendered_html 使用的无头浏览器配置
type BrowserConfig struct {
	Headless    bool   `mapstructure:"headless"`
	Bin         string `mapstructure:"bin"`          // Chrome 可执行文件，空则由 launcher 自动查找/下载
	StableAfter string `mapstructure:"stable_after"` // DOM 稳定判定间隔
}

// SandboxConfig run_code / add_dependencies 配置
type SandboxConfig struct {
	PythonCommand  string   `mapstructure:"python_command"`  // 如 "python3" 或 "uv run --no-project python"
	InstallCommand string   `mapstructure:"install_command"` // 如 "python3 -m pip install --quiet"；会追加 --target <deps>
	PassEnv        []string `mapstructure:"pass_env"`        // 允许透传给子进程的环境变量名
	CodeTimeout    string   `mapstructure:"code_timeout"`
}

// CredentialsConfig 身份与共享密钥的加载方式
type CredentialsConfig struct {
	Provider    string      `mapstructure:"provider"`     // env | vault | static
	IdentityKey string      `mapstructure:"identity_key"` // env/vault 中身份字符串的键
	SecretKey   string      `mapstructure:"secret_key"`   // env/vault 中共享密钥的键
	Identity    string      `mapstructure:"identity"`     // provider=static 时使用
	Secret      string      `mapstructure:"secret"`       // provider=static 时使用
	Vault       VaultConfig `mapstructure:"vault"`
}

// VaultConfig Vault 连接配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
	Field      string `mapstructure:"field"` // 存放值的字段，默认 value
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Burst             int     `mapstructure:"burst"`
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置（/metrics 挂在 API 端口上）
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool    `mapstructure:"enable"`
	ServiceName    string  `mapstructure:"service_name"`
	ExportEndpoint string  `mapstructure:"export_endpoint"`
	Insecure       bool    `mapstructure:"insecure"`
	SampleRatio    float64 `mapstructure:"sample_ratio"` // 仅 CLI 的 InitTracer 使用
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.timeout", "30s")

	// reasoning 与 executing 阶段合计
	v.SetDefault("agent.max_steps", 50)
	v.SetDefault("agent.max_concurrency", 0)
	v.SetDefault("agent.execute_sequentially", false)

	v.SetDefault("model.provider", "gemini")
	v.SetDefault("model.name", "gemini-2.5-flash")
	v.SetDefault("model.api_key", "${GOOGLE_API_KEY}")
	v.SetDefault("model.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("model.timeout", "120s")

	v.SetDefault("tools.timeout", "120s")
	v.SetDefault("tools.max_output_chars", 50000)
	v.SetDefault("tools.workspace_dir", "LLMFiles")
	v.SetDefault("tools.browser.headless", true)
	v.SetDefault("tools.browser.stable_after", "500ms")
	v.SetDefault("tools.sandbox.python_command", "python3")
	v.SetDefault("tools.sandbox.install_command", "python3 -m pip install --quiet --disable-pip-version-check")
	v.SetDefault("tools.sandbox.code_timeout", "60s")

	v.SetDefault("credentials.provider", "env")
	v.SetDefault("credentials.identity_key", "EMAIL")
	v.SetDefault("credentials.secret_key", "SECRET")

	// 默认 10 次/分钟，桶容量 10
	v.SetDefault("rate_limits.llm.gemini.requests_per_minute", 10)
	v.SetDefault("rate_limits.llm.gemini.burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("monitoring.prometheus.enable", true)
	v.SetDefault("monitoring.tracing.service_name", "quiz-agent")
}

// LoadConfig 加载配置文件；configPath 为空或文件不存在时只使用默认值与环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// LoadAPIConfig 加载 API 配置：先读取 .env（不覆盖已有环境变量），再读取 configs/api.yaml
func LoadAPIConfig() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	return LoadConfig(DefaultConfigPath)
}

// LoadDotEnv 将 dotenv 文件中的键写入进程环境变量；文件不存在时忽略，已存在的变量不覆盖
func LoadDotEnv(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		if isNotExist(err) {
			return nil
		}
		return fmt.Errorf("无法读取 %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("设置环境变量 %s 失败: %w", name, err)
		}
	}
	return nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// replaceEnvVars 替换形如 ${VAR} 的配置值
func replaceEnvVars(config *Config) {
	config.Model.APIKey = expandEnv(config.Model.APIKey)
	config.Credentials.Vault.Token = expandEnv(config.Credentials.Vault.Token)
}

func expandEnv(value string) string {
	if !strings.HasPrefix(value, "$") {
		return value
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	return os.Getenv(envVar)
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
