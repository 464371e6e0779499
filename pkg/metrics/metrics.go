package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/CLI 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		TaskTotal, TaskDuration, TasksRunning,
		LoopStepsTotal,
		ToolDuration, ToolFailTotal,
		LLMTokensTotal, RateLimitWaitSeconds,
		SolveRequestsTotal,
	)
}

// SolveRequestsTotal /solve 请求数（按响应状态码）
var SolveRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quiz_agent_solve_requests_total",
		Help: "/solve 请求数（按响应状态码）",
	},
	[]string{"code"},
)

// TaskTotal 后台任务总数（按结束状态）
var TaskTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quiz_agent_task_total",
		Help: "后台任务总数（按结束状态）",
	},
	[]string{"status"}, // completed | step_limit | failed
)

// TaskDuration 后台任务耗时（秒）
var TaskDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "quiz_agent_task_duration_seconds",
		Help:    "后台任务耗时（秒）",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	},
	[]string{"status"},
)

// TasksRunning 当前正在执行的任务数
var TasksRunning = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "quiz_agent_tasks_running",
		Help: "当前正在执行的任务数",
	},
)

// LoopStepsTotal Agent 循环阶段执行次数
var LoopStepsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quiz_agent_loop_steps_total",
		Help: "Agent 循环阶段执行次数",
	},
	[]string{"stage"}, // reasoning | executing
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "quiz_agent_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolFailTotal 工具调用失败数（失败会作为结果回传给模型）
var ToolFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quiz_agent_tool_fail_total",
		Help: "工具调用失败数",
	},
	[]string{"tool"},
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quiz_agent_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// RateLimitWaitSeconds 限流等待时间（秒）
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "quiz_agent_rate_limit_wait_seconds",
		Help:    "限流等待时间（秒）",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	},
	[]string{"kind", "name"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
