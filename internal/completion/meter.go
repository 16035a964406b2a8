package completion

import (
	"math"
	"sync"
)

// Stats is a snapshot of a component's running counters.
type Stats struct {
	Requests     int     `json:"total_requests"`
	Completed    int     `json:"total_completed"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
	AverageCost  float64 `json:"average_cost_per_result"`
}

// Meter accumulates usage. It is safe for concurrent use.
type Meter struct {
	mu    sync.Mutex
	stats Stats
}

// RecordCall adds one answered external call.
func (m *Meter) RecordCall(u Usage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Requests++
	m.stats.InputTokens += u.InputTokens
	m.stats.OutputTokens += u.OutputTokens
	m.stats.TotalTokens += u.InputTokens + u.OutputTokens
	m.stats.TotalCost += u.Cost
}

// RecordSuccess counts a validated result.
func (m *Meter) RecordSuccess() {
	m.mu.Lock()
	m.stats.Completed++
	m.mu.Unlock()
}

func (m *Meter) Snapshot() Stats {
	m.mu.Lock()
	s := m.stats
	m.mu.Unlock()
	if s.Completed > 0 {
		s.AverageCost = Round(s.TotalCost/float64(s.Completed), 6)
	}
	s.TotalCost = Round(s.TotalCost, 6)
	return s
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
