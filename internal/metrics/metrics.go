package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK        = "ok"
	OutcomeToolError = "tool_error"
	OutcomeError     = "error"
)

var (
	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graphmcp_tool_calls_total",
		Help: "MCP tool calls by tool and outcome",
	}, []string{"tool", "outcome"})

	ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graphmcp_tool_duration_seconds",
		Help:    "MCP tool call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})
)
