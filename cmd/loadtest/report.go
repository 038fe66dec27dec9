package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const scenarioStep = "scenario"

// Квантили задержки шага и допустимая ошибка их оценки.
var latencyObjectives = map[float64]float64{0.5: 0.01, 0.95: 0.005, 0.99: 0.001}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type stepReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time             `json:"started_at"`
	DurationSeconds   float64               `json:"duration_seconds"`
	TotalScenarios    int64                 `json:"total_scenarios"`
	SuccessScenarios  int64                 `json:"success_scenarios"`
	FailedScenarios   int64                 `json:"failed_scenarios"`
	ErrorRate         float64               `json:"error_rate"`
	RPS               float64               `json:"rps"`
	ScenarioLatencyMs latencySummary        `json:"scenario_latency_ms"`
	Steps             map[string]stepReport `json:"steps"`
}

type stepCounts struct {
	calls, success, failed int64
	statuses               map[string]int64
	minMs, maxMs           float64
}

// collector считает вызовы по шагам, квантили задержки даёт prometheus.Summary.
// Безопасен для конкурентных воркеров.
type collector struct {
	mu      sync.Mutex
	steps   map[string]*stepCounts
	latency *prometheus.SummaryVec
}

func newCollector() *collector {
	return &collector{
		steps: make(map[string]*stepCounts),
		latency: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "loadtest_step_latency_ms",
			Help:       "Latency of load test steps in milliseconds.",
			Objectives: latencyObjectives,
			// окно больше любого прогона: наблюдения не должны устаревать
			MaxAge: 24 * time.Hour,
		}, []string{"step"}),
	}
}

// record учитывает вызов шага; status — HTTP-код или метка ошибки транспорта.
func (c *collector) record(step string, latency time.Duration, status string, ok bool) {
	ms := float64(latency.Microseconds()) / 1000.0
	c.latency.WithLabelValues(step).Observe(ms)

	c.mu.Lock()
	defer c.mu.Unlock()

	counts, exists := c.steps[step]
	if !exists {
		counts = &stepCounts{statuses: make(map[string]int64), minMs: ms, maxMs: ms}
		c.steps[step] = counts
	}
	counts.calls++
	if ok {
		counts.success++
	} else {
		counts.failed++
	}
	counts.statuses[status]++
	counts.minMs = min(counts.minMs, ms)
	counts.maxMs = max(counts.maxMs, ms)
}

func (c *collector) snapshot(step string) (stepReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts, ok := c.steps[step]
	if !ok {
		return stepReport{}, false
	}
	return c.stepReport(step, counts), true
}

// stepReport вызывается под c.mu.
func (c *collector) stepReport(step string, counts *stepCounts) stepReport {
	statuses := make(map[string]int64, len(counts.statuses))
	for code, n := range counts.statuses {
		statuses[code] = n
	}
	latency := c.quantiles(step)
	latency.Min, latency.Max = counts.minMs, counts.maxMs

	return stepReport{
		Calls:     counts.calls,
		Success:   counts.success,
		Failed:    counts.failed,
		ErrorRate: ratio(counts.failed, counts.calls),
		Statuses:  statuses,
		LatencyMs: latency,
	}
}

func (c *collector) quantiles(step string) latencySummary {
	summary, ok := c.latency.WithLabelValues(step).(prometheus.Summary)
	if !ok {
		return latencySummary{}
	}
	var m dto.Metric
	if err := summary.Write(&m); err != nil || m.GetSummary().GetSampleCount() == 0 {
		return latencySummary{}
	}

	s := m.GetSummary()
	out := latencySummary{Avg: s.GetSampleSum() / float64(s.GetSampleCount())}
	for _, q := range s.GetQuantile() {
		switch q.GetQuantile() {
		case 0.5:
			out.P50 = q.GetValue()
		case 0.95:
			out.P95 = q.GetValue()
		case 0.99:
			out.P99 = q.GetValue()
		}
	}
	return out
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Steps:           make(map[string]stepReport, len(c.steps)),
	}
	for name, counts := range c.steps {
		result.Steps[name] = c.stepReport(name, counts)
	}

	if scenario, ok := result.Steps[scenarioStep]; ok {
		result.TotalScenarios = scenario.Calls
		result.SuccessScenarios = scenario.Success
		result.FailedScenarios = scenario.Failed
		result.ErrorRate = scenario.ErrorRate
		result.ScenarioLatencyMs = scenario.LatencyMs
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}
	return result
}

// writeJSONReport пишет отчёт только внутрь текущего каталога.
func writeJSONReport(path string, result report) error {
	clean := filepath.Clean(path)
	switch {
	case clean == "." || clean == string(filepath.Separator):
		return errors.New("output path must point to a file")
	case clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)):
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(clean, append(body, '\n'), 0o600)
}

func printReport(w io.Writer, result report, cfg config) {
	l := result.ScenarioLatencyMs
	_, _ = fmt.Fprintf(w, "Load test summary\nmode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode, runTarget(cfg), result.TotalScenarios, result.SuccessScenarios, result.FailedScenarios, result.ErrorRate)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		l.Min, l.Avg, l.P50, l.P95, l.P99, l.Max)

	names := make([]string, 0, len(result.Steps))
	for name := range result.Steps {
		if name != scenarioStep {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		s := result.Steps[name]
		_, _ = fmt.Fprintf(w, "%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, s.Calls, s.Success, s.Failed, s.ErrorRate, s.LatencyMs.P95)
	}
}

func runTarget(cfg config) string {
	switch {
	case cfg.duration <= 0:
		return fmt.Sprintf("count:%d", cfg.total)
	case cfg.totalSet:
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	default:
		return fmt.Sprintf("duration:%s", cfg.duration)
	}
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
