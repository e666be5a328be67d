package telemetry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/viso-study/visocode/config"
)

// Telemetry provides run monitoring and cost tracking for the pipeline
type Telemetry struct {
	config      config.TelemetryConfig
	logger      *log.Logger
	metrics     *Metrics
	costTracker *CostTracker
	mu          sync.RWMutex
}

// Metrics holds various performance metrics
type Metrics struct {
	// Run metrics
	TotalRuns      int64
	SuccessfulRuns int64
	FailedRuns     int64
	AverageRunTime time.Duration

	// Step metrics keyed by tool name
	StepExecutions   map[string]int64
	StepSuccessRates map[string]float64
	StepAverageTimes map[string]time.Duration

	// LLM metrics keyed by model
	LLMRequests   map[string]int64
	LLMTokensUsed map[string]int64
}

// CostTracker tracks completion costs per model and overall
type CostTracker struct {
	ModelCosts  map[string]float64
	TotalCost   float64
	TotalTokens int64
}

// RunEvent represents one full pipeline run
type RunEvent struct {
	ID         string
	Question   string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Success    bool
	Error      string
	Cost       float64
	TokensUsed int64
	Model      string
}

// StepEvent represents a single plan step execution
type StepEvent struct {
	RunID    string
	Tool     string
	Duration time.Duration
	Success  bool
	Error    string
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			StepExecutions:   make(map[string]int64),
			StepSuccessRates: make(map[string]float64),
			StepAverageTimes: make(map[string]time.Duration),
			LLMRequests:      make(map[string]int64),
			LLMTokensUsed:    make(map[string]int64),
		},
		costTracker: &CostTracker{
			ModelCosts: make(map[string]float64),
		},
	}

	if cfg.Enabled && cfg.PeriodicLogs {
		go t.startMetricsCollection()
	}

	return t
}

// RecordRunEvent records a completed pipeline run
func (t *Telemetry) RecordRunEvent(ctx context.Context, event RunEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalRuns++
	if event.Success {
		t.metrics.SuccessfulRuns++
	} else {
		t.metrics.FailedRuns++
	}

	if t.metrics.TotalRuns == 1 {
		t.metrics.AverageRunTime = event.Duration
	} else {
		total := t.metrics.AverageRunTime * time.Duration(t.metrics.TotalRuns-1)
		t.metrics.AverageRunTime = (total + event.Duration) / time.Duration(t.metrics.TotalRuns)
	}

	if event.Model != "" {
		t.metrics.LLMRequests[event.Model]++
		t.metrics.LLMTokensUsed[event.Model] += event.TokensUsed
		t.costTracker.ModelCosts[event.Model] += event.Cost
	}
	t.costTracker.TotalCost += event.Cost
	t.costTracker.TotalTokens += event.TokensUsed

	t.logger.Printf("Run Event: ID=%s, Success=%t, Duration=%v, Cost=$%.4f, Tokens=%d",
		event.ID, event.Success, event.Duration, event.Cost, event.TokensUsed)
}

// RecordStepEvent records a single step execution
func (t *Telemetry) RecordStepEvent(ctx context.Context, event StepEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.StepExecutions[event.Tool]++

	currentSuccess := t.metrics.StepSuccessRates[event.Tool] * float64(t.metrics.StepExecutions[event.Tool]-1)
	if event.Success {
		currentSuccess += 1.0
	}
	t.metrics.StepSuccessRates[event.Tool] = currentSuccess / float64(t.metrics.StepExecutions[event.Tool])

	currentAvg := t.metrics.StepAverageTimes[event.Tool]
	executions := t.metrics.StepExecutions[event.Tool]
	if executions == 1 {
		t.metrics.StepAverageTimes[event.Tool] = event.Duration
	} else {
		total := currentAvg * time.Duration(executions-1)
		t.metrics.StepAverageTimes[event.Tool] = (total + event.Duration) / time.Duration(executions)
	}

	t.logger.Printf("Step Event: Tool=%s, Success=%t, Duration=%v",
		event.Tool, event.Success, event.Duration)
}

// GetMetrics returns a copy of the current metrics snapshot
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	metrics := Metrics{
		TotalRuns:        t.metrics.TotalRuns,
		SuccessfulRuns:   t.metrics.SuccessfulRuns,
		FailedRuns:       t.metrics.FailedRuns,
		AverageRunTime:   t.metrics.AverageRunTime,
		StepExecutions:   make(map[string]int64),
		StepSuccessRates: make(map[string]float64),
		StepAverageTimes: make(map[string]time.Duration),
		LLMRequests:      make(map[string]int64),
		LLMTokensUsed:    make(map[string]int64),
	}
	for k, v := range t.metrics.StepExecutions {
		metrics.StepExecutions[k] = v
	}
	for k, v := range t.metrics.StepSuccessRates {
		metrics.StepSuccessRates[k] = v
	}
	for k, v := range t.metrics.StepAverageTimes {
		metrics.StepAverageTimes[k] = v
	}
	for k, v := range t.metrics.LLMRequests {
		metrics.LLMRequests[k] = v
	}
	for k, v := range t.metrics.LLMTokensUsed {
		metrics.LLMTokensUsed[k] = v
	}
	return metrics
}

// CostSummary provides a summary of completion costs
type CostSummary struct {
	TotalCost   float64
	TotalTokens int64
	ModelCosts  map[string]float64
}

// GetCostSummary returns the current cost summary
func (t *Telemetry) GetCostSummary() CostSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	summary := CostSummary{
		TotalCost:   t.costTracker.TotalCost,
		TotalTokens: t.costTracker.TotalTokens,
		ModelCosts:  make(map[string]float64),
	}
	for k, v := range t.costTracker.ModelCosts {
		summary.ModelCosts[k] = v
	}
	return summary
}

// CalculateCost calculates the cost for a given number of tokens and model
func (t *Telemetry) CalculateCost(inputTokens, outputTokens int64, modelName string, costPer1KInput, costPer1KOutput float64) float64 {
	if !t.config.CostTracking {
		return 0
	}
	inputCost := float64(inputTokens) / 1000.0 * costPer1KInput
	outputCost := float64(outputTokens) / 1000.0 * costPer1KOutput
	return inputCost + outputCost
}

// startMetricsCollection starts periodic metrics logging
func (t *Telemetry) startMetricsCollection() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		metrics := t.GetMetrics()
		costs := t.GetCostSummary()

		t.logger.Printf("Metrics Snapshot: Runs=%d/%d, AvgTime=%v, TotalCost=$%.4f, TotalTokens=%d",
			metrics.SuccessfulRuns, metrics.TotalRuns,
			metrics.AverageRunTime, costs.TotalCost, costs.TotalTokens)
	}
}

// Shutdown logs a final report
func (t *Telemetry) Shutdown() {
	metrics := t.GetMetrics()
	costs := t.GetCostSummary()

	if metrics.TotalRuns == 0 {
		return
	}
	t.logger.Printf("Final Report:")
	t.logger.Printf("  Total Runs: %d", metrics.TotalRuns)
	t.logger.Printf("  Success Rate: %.2f%%", float64(metrics.SuccessfulRuns)/float64(metrics.TotalRuns)*100)
	t.logger.Printf("  Average Run Time: %v", metrics.AverageRunTime)
	t.logger.Printf("  Total Cost: $%.4f", costs.TotalCost)
	t.logger.Printf("  Total Tokens: %d", costs.TotalTokens)
}

// GetPerformanceReport returns a detailed performance report
func (t *Telemetry) GetPerformanceReport() string {
	metrics := t.GetMetrics()
	costs := t.GetCostSummary()

	if metrics.TotalRuns == 0 {
		return "no runs recorded"
	}
	report := fmt.Sprintf(`=== PERFORMANCE REPORT ===
Overall Metrics:
  Total Runs: %d
  Successful: %d (%.2f%%)
  Failed: %d (%.2f%%)
  Average Run Time: %v
  Total Cost: $%.4f
  Total Tokens: %d

Step Performance:
`, metrics.TotalRuns, metrics.SuccessfulRuns,
		float64(metrics.SuccessfulRuns)/float64(metrics.TotalRuns)*100,
		metrics.FailedRuns, float64(metrics.FailedRuns)/float64(metrics.TotalRuns)*100,
		metrics.AverageRunTime, costs.TotalCost, costs.TotalTokens)

	for tool, executions := range metrics.StepExecutions {
		successRate := metrics.StepSuccessRates[tool]
		avgTime := metrics.StepAverageTimes[tool]
		report += fmt.Sprintf("  %s: %d executions, %.2f%% success, %v avg time\n",
			tool, executions, successRate*100, avgTime)
	}

	report += "\nLLM Usage:\n"
	for model, requests := range metrics.LLMRequests {
		tokens := metrics.LLMTokensUsed[model]
		cost := costs.ModelCosts[model]
		report += fmt.Sprintf("  %s: %d requests, %d tokens, $%.4f\n",
			model, requests, tokens, cost)
	}

	return report
}
