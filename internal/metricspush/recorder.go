package metricspush

import (
	"strconv"
	"strings"
	"sync"
)

type Recorder interface {
	RecordUsageEvent(eventType string)
	RecordEntitlementCheck(plan string, entitled bool)
	RecordLimitBreach(plan, metric string)
	UpdateActiveSubscriptions(plan string, count int)
}

type recorder struct {
	metrics *metrics
}

type noopRecorder struct{}

func (noopRecorder) RecordUsageEvent(string)              {}
func (noopRecorder) RecordEntitlementCheck(string, bool)  {}
func (noopRecorder) RecordLimitBreach(string, string)     {}
func (noopRecorder) UpdateActiveSubscriptions(string, int) {}

var (
	activeRecorder Recorder = noopRecorder{}
	recorderMu     sync.RWMutex
)

func setRecorder(rec Recorder) {
	if rec == nil {
		return
	}
	recorderMu.Lock()
	activeRecorder = rec
	recorderMu.Unlock()
}

func RecordUsageEvent(eventType string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordUsageEvent(eventType)
}

func RecordEntitlementCheck(plan string, entitled bool) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordEntitlementCheck(plan, entitled)
}

func RecordLimitBreach(plan, metric string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordLimitBreach(plan, metric)
}

func UpdateActiveSubscriptions(plan string, count int) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.UpdateActiveSubscriptions(plan, count)
}

func (r *recorder) RecordUsageEvent(eventType string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.usageEvents.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (r *recorder) RecordEntitlementCheck(plan string, entitled bool) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.entitlementChecks.WithLabelValues(normalizeLabel(plan), strconv.FormatBool(entitled)).Inc()
}

func (r *recorder) RecordLimitBreach(plan, metric string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.limitBreaches.WithLabelValues(normalizeLabel(plan), normalizeLabel(metric)).Inc()
}

func (r *recorder) UpdateActiveSubscriptions(plan string, count int) {
	if r == nil || r.metrics == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	r.metrics.activeSubscriptions.WithLabelValues(normalizeLabel(plan)).Set(float64(count))
}

func (r *recorder) setProcessMemory(bytes uint64) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.memorySys.Set(float64(bytes))
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
