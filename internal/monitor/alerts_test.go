package monitor

import (
	"testing"
	"time"

	"github.com/clarimed/clarimed/internal/faults"
)

func TestAlertManager_ErrorRateThreshold(t *testing.T) {
	c := NewCollector(100, time.Minute, nil, nil)
	var received []Alert
	m := NewAlertManager(c, 2, 0, time.Minute, NotifierFunc(func(a Alert) {
		received = append(received, a)
	}), nil)

	// One error per minute window: below the 2/min threshold
	c.RecordError(faults.New(faults.CodeAIExtraction, "boom"), "extraction")
	if fired := m.Evaluate(); len(fired) != 0 {
		t.Errorf("expected no alert below threshold, got %v", fired)
	}

	// Push past the threshold
	c.RecordError(faults.New(faults.CodeAIExtraction, "boom"), "extraction")
	c.RecordError(faults.New(faults.CodeAIExtraction, "boom"), "extraction")
	fired := m.Evaluate()
	if len(fired) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(fired))
	}
	if fired[0].Type != AlertErrorRate || fired[0].Severity != faults.SeverityWarning {
		t.Errorf("unexpected alert: %+v", fired[0])
	}
	if len(received) != 1 {
		t.Errorf("notifier saw %d alerts", len(received))
	}
}

func TestAlertManager_CriticalThreshold(t *testing.T) {
	c := NewCollector(100, time.Minute, nil, nil)
	m := NewAlertManager(c, 0, 2, time.Minute, nil, nil)

	for i := 0; i < 3; i++ {
		c.RecordError(faults.New(faults.CodeConfiguration, "bad"), "config")
	}

	fired := m.Evaluate()
	if len(fired) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(fired))
	}
	if fired[0].Type != AlertCriticalCount || fired[0].Severity != faults.SeverityCritical {
		t.Errorf("unexpected alert: %+v", fired[0])
	}
}

func TestAlertManager_CooldownSuppression(t *testing.T) {
	c := NewCollector(100, time.Minute, nil, nil)
	m := NewAlertManager(c, 1, 0, 5*time.Minute, nil, nil)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	c.SetClock(func() time.Time { return current })
	m.SetClock(func() time.Time { return current })

	for i := 0; i < 5; i++ {
		c.RecordError(faults.New(faults.CodeAIExtraction, "boom"), "extraction")
	}

	if fired := m.Evaluate(); len(fired) != 1 {
		t.Fatalf("expected first alert, got %d", len(fired))
	}

	// Still inside the cooldown window: suppressed
	current = base.Add(time.Minute)
	if fired := m.Evaluate(); len(fired) != 0 {
		t.Errorf("expected suppression inside cooldown, got %v", fired)
	}

	// Past the cooldown and the condition persists: fires again
	current = base.Add(6 * time.Minute)
	c.RecordError(faults.New(faults.CodeAIExtraction, "boom"), "extraction")
	c.RecordError(faults.New(faults.CodeAIExtraction, "boom"), "extraction")
	if fired := m.Evaluate(); len(fired) != 1 {
		t.Errorf("expected re-fire after cooldown, got %d", len(fired))
	}
}

func TestAlertManager_DisabledThresholds(t *testing.T) {
	c := NewCollector(100, time.Minute, nil, nil)
	m := NewAlertManager(c, 0, 0, time.Minute, nil, nil)

	for i := 0; i < 10; i++ {
		c.RecordError(faults.New(faults.CodeConfiguration, "bad"), "config")
	}
	if fired := m.Evaluate(); len(fired) != 0 {
		t.Errorf("disabled thresholds must never fire, got %v", fired)
	}
}
