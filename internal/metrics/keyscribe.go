// Package metrics provides Prometheus-compatible metrics for keyscribe.
package metrics

import (
	"time"
)

// KeyscribeMetrics holds all keyscribe-specific metrics.
type KeyscribeMetrics struct {
	registry *Registry

	// Counters
	EmissionsTotal     *Counter
	EventsWrittenTotal *Counter
	FallbackRunesTotal *Counter
	CaptureEventsTotal *Counter
	SuppressedTotal    *Counter
	ForwardedTotal     *Counter
	HotplugAttachTotal *Counter
	ErrorsTotal        *Counter

	// Gauges
	GrabbedDevices   *Gauge
	SuppressedKeys   *Gauge
	JournalSizeBytes *Gauge
	UptimeSeconds    *Gauge

	// Histograms
	EmissionDuration *Histogram
	KeyInterval      *Histogram
}

// startTime records when metrics were initialized.
var startTime = time.Now()

// NewKeyscribeMetrics creates and registers all keyscribe metrics.
func NewKeyscribeMetrics(registry *Registry) *KeyscribeMetrics {
	if registry == nil {
		registry = Default()
	}

	m := &KeyscribeMetrics{
		registry: registry,

		// Counters
		EmissionsTotal: registry.RegisterCounter(
			"emissions_total",
			"Total number of emission operations performed",
			nil,
		),
		EventsWrittenTotal: registry.RegisterCounter(
			"events_written_total",
			"Total number of input events written to the output device",
			nil,
		),
		FallbackRunesTotal: registry.RegisterCounter(
			"fallback_runes_total",
			"Total number of runes emitted through the unicode fallback gesture",
			nil,
		),
		CaptureEventsTotal: registry.RegisterCounter(
			"capture_events_total",
			"Total number of key events observed on captured devices",
			nil,
		),
		SuppressedTotal: registry.RegisterCounter(
			"suppressed_total",
			"Total number of key events swallowed instead of forwarded",
			nil,
		),
		ForwardedTotal: registry.RegisterCounter(
			"forwarded_total",
			"Total number of key events forwarded to the passthrough device",
			nil,
		),
		HotplugAttachTotal: registry.RegisterCounter(
			"hotplug_attach_total",
			"Total number of keyboards attached through hotplug",
			nil,
		),
		ErrorsTotal: registry.RegisterCounter(
			"errors_total",
			"Total number of errors",
			nil,
		),

		// Gauges
		GrabbedDevices: registry.RegisterGauge(
			"grabbed_devices",
			"Number of input devices currently grabbed for capture",
			nil,
		),
		SuppressedKeys: registry.RegisterGauge(
			"suppressed_keys",
			"Number of key codes in the active suppression set",
			nil,
		),
		JournalSizeBytes: registry.RegisterGauge(
			"journal_size_bytes",
			"Size of the emission journal database in bytes",
			nil,
		),
		UptimeSeconds: registry.RegisterGauge(
			"uptime_seconds",
			"Number of seconds the process has been running",
			nil,
		),

		// Histograms
		EmissionDuration: registry.RegisterHistogram(
			"emission_duration_seconds",
			"Duration of emission operations in seconds",
			nil,
			EmissionBuckets,
		),
		KeyInterval: registry.RegisterHistogram(
			"key_interval_seconds",
			"Time between captured key events in seconds",
			nil,
			IntervalBuckets,
		),
	}

	return m
}

// RecordEmission records one emission operation.
func (m *KeyscribeMetrics) RecordEmission(events int, duration time.Duration) {
	m.EmissionsTotal.Inc()
	m.EventsWrittenTotal.Add(uint64(events))
	m.EmissionDuration.ObserveDuration(duration)
}

// RecordFallbackRunes counts runes that went through the unicode entry
// gesture instead of a direct key.
func (m *KeyscribeMetrics) RecordFallbackRunes(n int) {
	m.FallbackRunesTotal.Add(uint64(n))
}

// RecordCaptureEvent records one observed key event and whether it was
// forwarded to the passthrough device or swallowed.
func (m *KeyscribeMetrics) RecordCaptureEvent(forwarded bool) {
	m.CaptureEventsTotal.Inc()
	if forwarded {
		m.ForwardedTotal.Inc()
	} else {
		m.SuppressedTotal.Inc()
	}
}

// RecordKeyInterval records the interval between captured key events.
func (m *KeyscribeMetrics) RecordKeyInterval(d time.Duration) {
	m.KeyInterval.ObserveDuration(d)
}

// RecordHotplugAttach records a keyboard attached through hotplug.
func (m *KeyscribeMetrics) RecordHotplugAttach() {
	m.HotplugAttachTotal.Inc()
}

// RecordError records an error.
func (m *KeyscribeMetrics) RecordError() {
	m.ErrorsTotal.Inc()
}

// DeviceGrabbed records a device entering capture.
func (m *KeyscribeMetrics) DeviceGrabbed() {
	m.GrabbedDevices.Inc()
}

// DeviceReleased records a device leaving capture.
func (m *KeyscribeMetrics) DeviceReleased() {
	m.GrabbedDevices.Dec()
}

// SetSuppressedKeys sets the size of the active suppression set.
func (m *KeyscribeMetrics) SetSuppressedKeys(count int64) {
	m.SuppressedKeys.Set(count)
}

// SetJournalSize sets the journal database size.
func (m *KeyscribeMetrics) SetJournalSize(bytes int64) {
	m.JournalSizeBytes.Set(bytes)
}

// UpdateUptime updates the uptime metric.
func (m *KeyscribeMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(startTime).Seconds()))
}

// Snapshot returns a snapshot of key metrics.
func (m *KeyscribeMetrics) Snapshot() map[string]interface{} {
	m.UpdateUptime()
	return map[string]interface{}{
		"emissions_total":      m.EmissionsTotal.Value(),
		"events_written_total": m.EventsWrittenTotal.Value(),
		"fallback_runes_total": m.FallbackRunesTotal.Value(),
		"capture_events_total": m.CaptureEventsTotal.Value(),
		"suppressed_total":     m.SuppressedTotal.Value(),
		"forwarded_total":      m.ForwardedTotal.Value(),
		"hotplug_attach_total": m.HotplugAttachTotal.Value(),
		"errors_total":         m.ErrorsTotal.Value(),
		"grabbed_devices":      m.GrabbedDevices.Value(),
		"suppressed_keys":      m.SuppressedKeys.Value(),
		"journal_size_bytes":   m.JournalSizeBytes.Value(),
		"uptime_seconds":       m.UptimeSeconds.Value(),
		"emission_avg_seconds": m.EmissionDuration.Mean(),
	}
}

// Global keyscribe metrics instance.
var defaultKeyscribeMetrics *KeyscribeMetrics

// GetMetrics returns the global keyscribe metrics instance.
func GetMetrics() *KeyscribeMetrics {
	if defaultKeyscribeMetrics == nil {
		defaultKeyscribeMetrics = NewKeyscribeMetrics(Default())
	}
	return defaultKeyscribeMetrics
}
