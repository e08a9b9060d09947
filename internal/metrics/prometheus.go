package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusOnce     sync.Once
	prometheusInstance *PrometheusCollector
)

// PrometheusCollector provides Prometheus metrics for the watcher.
type PrometheusCollector struct {
	// Stream metrics
	linesTotal        prometheus.Counter
	linesIgnoredTotal prometheus.Counter
	eventsTotal       *prometheus.CounterVec

	// Game metrics
	gamesStartedTotal  *prometheus.CounterVec
	gamesFinishedTotal prometheus.Counter
	movesTotal         *prometheus.CounterVec
	moveErrorsTotal    *prometheus.CounterVec
	registryResets     prometheus.Counter
	boards             *prometheus.GaugeVec

	// Output metrics
	sgfWritesTotal *prometheus.CounterVec

	// Harness metrics
	harnessStatus prometheus.Gauge
	harnessErrors prometheus.Counter

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	websocketClients    prometheus.Gauge

	// MCP metrics
	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
}

// NewPrometheusCollector returns the process-wide collector, registering it
// with the default registry on first use.
func NewPrometheusCollector() *PrometheusCollector {
	prometheusOnce.Do(func() {
		prometheusInstance = &PrometheusCollector{
			linesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "leelawatcher_lines_total",
					Help: "Total number of complete lines read from the harness",
				},
			),
			linesIgnoredTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "leelawatcher_lines_ignored_total",
					Help: "Lines that matched no event pattern",
				},
			),
			eventsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "leelawatcher_events_total",
					Help: "Parsed harness events by kind",
				},
				[]string{"kind"},
			),

			gamesStartedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "leelawatcher_games_started_total",
					Help: "Boards created on move 1, by game type",
				},
				[]string{"type"},
			),
			gamesFinishedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "leelawatcher_games_finished_total",
					Help: "Boards moved to the finished set",
				},
			),
			movesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "leelawatcher_moves_total",
					Help: "Moves applied to tracked boards, by game type",
				},
				[]string{"type"},
			),
			moveErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "leelawatcher_move_errors_total",
					Help: "Moves that could not be applied, by reason",
				},
				[]string{"reason"},
			),
			registryResets: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "leelawatcher_registry_resets_total",
					Help: "Registry resets triggered by harness errors",
				},
			),
			boards: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "leelawatcher_boards",
					Help: "Boards currently tracked, by state",
				},
				[]string{"state"},
			),

			sgfWritesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "leelawatcher_sgf_writes_total",
					Help: "Finished games handed to the SGF sink, by status",
				},
				[]string{"status"},
			),

			harnessStatus: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "leelawatcher_harness_status",
					Help: "Status of the harness process (1=running, 0=stopped)",
				},
			),
			harnessErrors: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "leelawatcher_harness_errors_total",
					Help: "*ERROR* lines reported by the harness",
				},
			),

			httpRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "leelawatcher_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			httpRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "leelawatcher_http_request_duration_seconds",
					Help:    "Duration of HTTP requests in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),
			websocketClients: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "leelawatcher_websocket_clients",
					Help: "Connected websocket display clients",
				},
			),

			toolCallsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "leelawatcher_mcp_tool_calls_total",
					Help: "MCP tool calls by tool and status",
				},
				[]string{"tool", "status"},
			),
			toolCallDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "leelawatcher_mcp_tool_call_duration_seconds",
					Help:    "Duration of MCP tool calls in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
		}
	})
	return prometheusInstance
}

// RecordLine counts a complete line; matched reports whether it produced an event.
func (p *PrometheusCollector) RecordLine(matched bool) {
	p.linesTotal.Inc()
	if !matched {
		p.linesIgnoredTotal.Inc()
	}
}

// RecordEvent counts a parsed event.
func (p *PrometheusCollector) RecordEvent(kind string) {
	p.eventsTotal.WithLabelValues(kind).Inc()
}

// RecordGameStarted counts a new board.
func (p *PrometheusCollector) RecordGameStarted(gameType string) {
	p.gamesStartedTotal.WithLabelValues(gameType).Inc()
}

// RecordGameFinished counts a board moved to the finished set.
func (p *PrometheusCollector) RecordGameFinished() {
	p.gamesFinishedTotal.Inc()
}

// RecordMove counts an applied move.
func (p *PrometheusCollector) RecordMove(gameType string) {
	p.movesTotal.WithLabelValues(gameType).Inc()
}

// RecordMoveError counts a rejected move. Reason is "illegal" or "format".
func (p *PrometheusCollector) RecordMoveError(reason string) {
	p.moveErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordReset counts a registry reset.
func (p *PrometheusCollector) RecordReset() {
	p.registryResets.Inc()
}

// SetBoards sets the active and finished board gauges.
func (p *PrometheusCollector) SetBoards(active, finished int) {
	p.boards.WithLabelValues("active").Set(float64(active))
	p.boards.WithLabelValues("finished").Set(float64(finished))
}

// RecordSGFWrite counts a sink write.
func (p *PrometheusCollector) RecordSGFWrite(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	p.sgfWritesTotal.WithLabelValues(status).Inc()
}

// RecordHarnessStatus records whether the harness process is running.
func (p *PrometheusCollector) RecordHarnessStatus(running bool) {
	value := 0.0
	if running {
		value = 1.0
	}
	p.harnessStatus.Set(value)
}

// RecordHarnessError counts an error line from the harness.
func (p *PrometheusCollector) RecordHarnessError() {
	p.harnessErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func (p *PrometheusCollector) RecordHTTPRequest(method, path, status string, durationSecs float64) {
	p.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	p.httpRequestDuration.WithLabelValues(method, path).Observe(durationSecs)
}

// SetWebsocketClients sets the number of connected websocket clients.
func (p *PrometheusCollector) SetWebsocketClients(count int) {
	p.websocketClients.Set(float64(count))
}

// RecordToolCall records an MCP tool invocation.
func (p *PrometheusCollector) RecordToolCall(tool string, success bool, durationSecs float64) {
	status := "success"
	if !success {
		status = "error"
	}
	p.toolCallsTotal.WithLabelValues(tool, status).Inc()
	p.toolCallDuration.WithLabelValues(tool).Observe(durationSecs)
}
