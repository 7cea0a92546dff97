// Package monitor tracks pipeline error events: a bounded in-memory history,
// counts by code/component/severity, derived error rates, per-component
// health, and threshold alerting. A Collector is the only concurrently shared
// mutable state in the pipeline; all access is serialized under one lock.
package monitor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/clarimed/clarimed/internal/faults"
)

// HealthStatus is the per-component health classification.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
)

// Event is one recorded error occurrence.
type Event struct {
	Record    faults.Record   `json:"record"`
	Component string          `json:"component"`
	Severity  faults.Severity `json:"severity"`
	Strategy  faults.Strategy `json:"recovery_strategy"`
	Timestamp time.Time       `json:"timestamp"`
}

// Summary is a windowed view over the recorded events.
type Summary struct {
	Window         time.Duration            `json:"window"`
	Total          int                      `json:"total"`
	ByCode         map[faults.Code]int      `json:"by_code"`
	ByComponent    map[string]int           `json:"by_component"`
	BySeverity     map[faults.Severity]int  `json:"by_severity"`
	ByStrategy     map[faults.Strategy]int  `json:"by_strategy"`
	RecentCritical []Event                  `json:"recent_critical"`
}

// Collector maintains the bounded error history and derived metrics.
// Safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	// ring buffer: fixed capacity, oldest evicted first
	history  []Event
	capacity int
	next     int
	size     int

	countsByCode      map[faults.Code]int
	countsByComponent map[string]int
	countsBySeverity  map[faults.Severity]int

	// health never auto-heals; ResetHealth is the only way back
	health map[string]HealthStatus

	rateWindow time.Duration
	logger     *zap.Logger
	now        func() time.Time

	promErrors *prometheus.CounterVec
	promHealth *prometheus.GaugeVec
}

// NewCollector creates a collector with the given history capacity and rate
// window. reg may be nil to skip Prometheus registration.
func NewCollector(capacity int, rateWindow time.Duration, logger *zap.Logger, reg prometheus.Registerer) *Collector {
	if capacity <= 0 {
		capacity = 1000
	}
	if rateWindow <= 0 {
		rateWindow = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collector{
		history:           make([]Event, capacity),
		capacity:          capacity,
		countsByCode:      make(map[faults.Code]int),
		countsByComponent: make(map[string]int),
		countsBySeverity:  make(map[faults.Severity]int),
		health:            make(map[string]HealthStatus),
		rateWindow:        rateWindow,
		logger:            logger,
		now:               time.Now,
		promErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clarimed_errors_total",
			Help: "Pipeline errors by code, component and severity",
		}, []string{"code", "component", "severity"}),
		promHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clarimed_component_health",
			Help: "Component health (0=healthy, 1=degraded, 2=critical)",
		}, []string{"component"}),
	}

	if reg != nil {
		reg.MustRegister(c.promErrors, c.promHealth)
	}

	return c
}

// RecordError classifies an error, appends it to the history, updates counts
// and health, and returns the recorded event.
func (c *Collector) RecordError(err error, component string) Event {
	code := faults.Classify(err)
	severity := faults.CodeSeverity(code)

	event := Event{
		Record:    faults.NewRecord(err),
		Component: component,
		Severity:  severity,
		Strategy:  faults.RecoveryStrategy(code),
		Timestamp: c.clock(),
	}

	c.mu.Lock()
	c.history[c.next] = event
	c.next = (c.next + 1) % c.capacity
	if c.size < c.capacity {
		c.size++
	}

	c.countsByCode[code]++
	c.countsByComponent[component]++
	c.countsBySeverity[severity]++

	// healthy -> degraded on an error, anything -> critical on a critical
	switch severity {
	case faults.SeverityCritical:
		c.health[component] = HealthCritical
	case faults.SeverityError:
		if c.health[component] != HealthCritical {
			c.health[component] = HealthDegraded
		}
	}
	health := c.healthLocked(component)
	c.mu.Unlock()

	c.promErrors.WithLabelValues(string(code), component, string(severity)).Inc()
	c.promHealth.WithLabelValues(component).Set(healthGaugeValue(health))

	c.logger.Warn("pipeline error recorded",
		zap.String("component", component),
		zap.String("code", string(code)),
		zap.String("severity", string(severity)),
		zap.String("recovery_strategy", string(event.Strategy)),
		zap.String("message", event.Record.Message),
	)

	return event
}

// ErrorRate returns errors per minute over the configured sliding window.
func (c *Collector) ErrorRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.clock().Add(-c.rateWindow)
	count := 0
	for _, ev := range c.eventsLocked() {
		if ev.Timestamp.After(cutoff) {
			count++
		}
	}
	return float64(count) / c.rateWindow.Minutes()
}

// CriticalCount returns critical events recorded within the given window.
func (c *Collector) CriticalCount(window time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.clock().Add(-window)
	count := 0
	for _, ev := range c.eventsLocked() {
		if ev.Severity == faults.SeverityCritical && ev.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

// Health returns a snapshot of per-component health. Components with no
// recorded errors report healthy.
func (c *Collector) Health() map[string]HealthStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make(map[string]HealthStatus, len(c.health))
	for component, status := range c.health {
		snapshot[component] = status
	}
	return snapshot
}

// ComponentHealth returns one component's health.
func (c *Collector) ComponentHealth(component string) HealthStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthLocked(component)
}

// ResetHealth explicitly returns a component to healthy. Health never
// auto-heals without this call.
func (c *Collector) ResetHealth(component string) {
	c.mu.Lock()
	delete(c.health, component)
	c.mu.Unlock()
	c.promHealth.WithLabelValues(component).Set(0)
}

// Summarize builds a windowed summary: counts by code/component/severity,
// recovery-strategy distribution, and recent critical-event detail.
func (c *Collector) Summarize(window time.Duration) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.clock().Add(-window)
	summary := Summary{
		Window:      window,
		ByCode:      make(map[faults.Code]int),
		ByComponent: make(map[string]int),
		BySeverity:  make(map[faults.Severity]int),
		ByStrategy:  make(map[faults.Strategy]int),
	}

	for _, ev := range c.eventsLocked() {
		if !ev.Timestamp.After(cutoff) {
			continue
		}
		summary.Total++
		summary.ByCode[ev.Record.Code]++
		summary.ByComponent[ev.Component]++
		summary.BySeverity[ev.Severity]++
		summary.ByStrategy[ev.Strategy]++
		if ev.Severity == faults.SeverityCritical {
			summary.RecentCritical = append(summary.RecentCritical, ev)
		}
	}

	return summary
}

// SetClock injects a time source for tests.
func (c *Collector) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Collector) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// eventsLocked returns the live events oldest-first. Caller holds the lock.
func (c *Collector) eventsLocked() []Event {
	events := make([]Event, 0, c.size)
	start := 0
	if c.size == c.capacity {
		start = c.next
	}
	for i := 0; i < c.size; i++ {
		events = append(events, c.history[(start+i)%c.capacity])
	}
	return events
}

func (c *Collector) healthLocked(component string) HealthStatus {
	if status, ok := c.health[component]; ok {
		return status
	}
	return HealthHealthy
}

func healthGaugeValue(status HealthStatus) float64 {
	switch status {
	case HealthDegraded:
		return 1
	case HealthCritical:
		return 2
	default:
		return 0
	}
}
