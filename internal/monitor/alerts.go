package monitor

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clarimed/clarimed/internal/faults"
)

// AlertType identifies the threshold that fired.
type AlertType string

const (
	AlertErrorRate     AlertType = "error_rate"
	AlertCriticalCount AlertType = "critical_errors"
)

// Alert is one emitted notification.
type Alert struct {
	Type      AlertType       `json:"type"`
	Severity  faults.Severity `json:"severity"`
	Message   string          `json:"message"`
	Value     float64         `json:"value"`
	Threshold float64         `json:"threshold"`
	Timestamp time.Time       `json:"timestamp"`
}

// Notifier receives emitted alerts.
type Notifier interface {
	Notify(alert Alert)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(alert Alert)

// Notify implements Notifier.
func (f NotifierFunc) Notify(alert Alert) { f(alert) }

// AlertManager evaluates collector thresholds and emits at most one alert per
// (type, severity) pair within the cooldown window, so a burst of failures
// does not become a notification storm.
type AlertManager struct {
	collector *Collector
	notifier  Notifier
	logger    *zap.Logger

	errorRatePerMinute float64
	criticalPerHour    int
	cooldown           time.Duration

	mu        sync.Mutex
	lastFired map[string]time.Time
	now       func() time.Time
}

// NewAlertManager creates an alert manager over a collector. notifier may be
// nil; alerts are then only logged.
func NewAlertManager(collector *Collector, errorRatePerMinute float64, criticalPerHour int, cooldown time.Duration, notifier Notifier, logger *zap.Logger) *AlertManager {
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertManager{
		collector:          collector,
		notifier:           notifier,
		logger:             logger,
		errorRatePerMinute: errorRatePerMinute,
		criticalPerHour:    criticalPerHour,
		cooldown:           cooldown,
		lastFired:          make(map[string]time.Time),
		now:                time.Now,
	}
}

// Evaluate checks all thresholds and returns the alerts actually emitted
// after cooldown suppression.
func (m *AlertManager) Evaluate() []Alert {
	var fired []Alert

	if m.errorRatePerMinute > 0 {
		rate := m.collector.ErrorRate()
		if rate > m.errorRatePerMinute {
			alert := Alert{
				Type:      AlertErrorRate,
				Severity:  faults.SeverityWarning,
				Message:   fmt.Sprintf("error rate %.1f/min exceeds threshold %.1f/min", rate, m.errorRatePerMinute),
				Value:     rate,
				Threshold: m.errorRatePerMinute,
			}
			if m.emit(alert) {
				fired = append(fired, alert)
			}
		}
	}

	if m.criticalPerHour > 0 {
		count := m.collector.CriticalCount(time.Hour)
		if count > m.criticalPerHour {
			alert := Alert{
				Type:      AlertCriticalCount,
				Severity:  faults.SeverityCritical,
				Message:   fmt.Sprintf("%d critical errors in the last hour exceeds threshold %d", count, m.criticalPerHour),
				Value:     float64(count),
				Threshold: float64(m.criticalPerHour),
			}
			if m.emit(alert) {
				fired = append(fired, alert)
			}
		}
	}

	return fired
}

// emit applies cooldown suppression keyed by (type, severity).
func (m *AlertManager) emit(alert Alert) bool {
	key := string(alert.Type) + ":" + string(alert.Severity)

	m.mu.Lock()
	now := m.now()
	if last, ok := m.lastFired[key]; ok && now.Sub(last) < m.cooldown {
		m.mu.Unlock()
		return false
	}
	m.lastFired[key] = now
	m.mu.Unlock()

	alert.Timestamp = now
	m.logger.Warn("alert emitted",
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.String("message", alert.Message),
	)
	if m.notifier != nil {
		m.notifier.Notify(alert)
	}
	return true
}

// SetClock injects a time source for tests.
func (m *AlertManager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
