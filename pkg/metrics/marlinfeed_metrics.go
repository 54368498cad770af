// Marlinfeed-specific metrics definitions.
//
// Defines the metrics exposed on the optional /metrics listener:
// job lifecycle counters, the Protocol Engine's resend/error counters,
// printer phase and temperature gauges, and Go runtime gauges.
//
// Outputs in Prometheus text format for easy scraping.
package metrics

import (
	goruntime "runtime"
	"sync"
	"time"
)

// FeedMetrics holds all Marlinfeed metrics.
type FeedMetrics struct {
	// Job lifecycle (component E, the Job Controller)
	JobsStarted   *Counter
	JobsCompleted *Counter
	JobsFailed    *Counter
	JobDuration   *Histogram
	BytesSent     *Counter

	// Protocol Engine (component B)
	ResendsTotal *Counter
	ErrorsTotal  *Counter
	LinesSent    *Counter

	// Printer state (component D)
	PrinterPhase     *Gauge
	ToolTemperature  *Gauge
	ToolTarget       *Gauge
	BedTemperature   *Gauge
	BedTarget        *Gauge

	// Go runtime
	GoGoroutines  *Gauge
	GoMemoryAlloc *Gauge

	startTime time.Time
	registry  *Registry
	mu        sync.RWMutex
}

// NewFeedMetrics creates and registers all Marlinfeed metrics.
func NewFeedMetrics() *FeedMetrics {
	fm := &FeedMetrics{
		startTime: time.Now(),
		registry:  NewRegistry(),
	}

	fm.JobsStarted = NewCounter("marlinfeed_jobs_started_total",
		"Total print jobs started")
	fm.JobsCompleted = NewCounter("marlinfeed_jobs_completed_total",
		"Total print jobs completed successfully")
	fm.JobsFailed = NewCounter("marlinfeed_jobs_failed_total",
		"Total print jobs that ended in failure")
	fm.JobDuration = NewHistogram("marlinfeed_job_duration_seconds",
		"Wall-clock duration of completed jobs",
		[]float64{10, 60, 300, 900, 1800, 3600, 7200, 14400})
	fm.BytesSent = NewCounter("marlinfeed_bytes_sent_total",
		"Total G-code bytes written to the printer")

	fm.ResendsTotal = NewCounter("marlinfeed_resends_total",
		"Total resend requests honored by line number")
	fm.ErrorsTotal = NewCounter("marlinfeed_errors_total",
		"Total error replies received from the printer")
	fm.LinesSent = NewCounter("marlinfeed_lines_sent_total",
		"Total G-code lines sent to the printer")

	fm.PrinterPhase = NewGauge("marlinfeed_printer_phase",
		"Current printer phase (0=disconnected,1=idle,2=printing,3=stalled,4=paused)")
	fm.ToolTemperature = NewGauge("marlinfeed_tool_temperature_celsius",
		"Current extruder temperature")
	fm.ToolTarget = NewGauge("marlinfeed_tool_target_celsius",
		"Target extruder temperature")
	fm.BedTemperature = NewGauge("marlinfeed_bed_temperature_celsius",
		"Current bed temperature")
	fm.BedTarget = NewGauge("marlinfeed_bed_target_celsius",
		"Target bed temperature")

	fm.GoGoroutines = NewGauge("marlinfeed_go_goroutines",
		"Number of active goroutines")
	fm.GoMemoryAlloc = NewGauge("marlinfeed_go_memory_alloc_bytes",
		"Go total memory allocated")

	fm.registerAll()
	return fm
}

func (fm *FeedMetrics) registerAll() {
	all := []Metric{
		fm.JobsStarted, fm.JobsCompleted, fm.JobsFailed, fm.JobDuration, fm.BytesSent,
		fm.ResendsTotal, fm.ErrorsTotal, fm.LinesSent,
		fm.PrinterPhase, fm.ToolTemperature, fm.ToolTarget, fm.BedTemperature, fm.BedTarget,
		fm.GoGoroutines, fm.GoMemoryAlloc,
	}
	for _, m := range all {
		fm.registry.MustRegister(m)
	}
}

// UpdateSystemMetrics refreshes the Go runtime gauges.
func (fm *FeedMetrics) UpdateSystemMetrics() {
	var m goruntime.MemStats
	goruntime.ReadMemStats(&m)
	fm.GoGoroutines.Set(nil, float64(goruntime.NumGoroutine()))
	fm.GoMemoryAlloc.Set(nil, float64(m.Alloc))
}

// RecordJobStart increments the started counter for a new job.
func (fm *FeedMetrics) RecordJobStart() {
	fm.JobsStarted.Inc(nil)
}

// RecordJobEnd records a job's outcome and wall-clock duration.
func (fm *FeedMetrics) RecordJobEnd(success bool, duration time.Duration) {
	if success {
		fm.JobsCompleted.Inc(nil)
	} else {
		fm.JobsFailed.Inc(nil)
	}
	fm.JobDuration.Observe(nil, duration.Seconds())
}

// RecordLineSent accounts for a line written to the printer.
func (fm *FeedMetrics) RecordLineSent(bytes int) {
	fm.LinesSent.Inc(nil)
	fm.BytesSent.Add(nil, uint64(bytes))
}

// RecordResend records a resend request honored by the send window.
func (fm *FeedMetrics) RecordResend() {
	fm.ResendsTotal.Inc(nil)
}

// RecordPrinterError records an error reply from the printer.
func (fm *FeedMetrics) RecordPrinterError() {
	fm.ErrorsTotal.Inc(nil)
}

// SetPhase records the printer's current phase, matching
// printerstate.Phase's ordering.
func (fm *FeedMetrics) SetPhase(phase int) {
	fm.PrinterPhase.Set(nil, float64(phase))
}

// SetTemperatures records the current temperature snapshot.
func (fm *FeedMetrics) SetTemperatures(toolActual, toolTarget, bedActual, bedTarget float64) {
	fm.ToolTemperature.Set(nil, toolActual)
	fm.ToolTarget.Set(nil, toolTarget)
	fm.BedTemperature.Set(nil, bedActual)
	fm.BedTarget.Set(nil, bedTarget)
}

// Gather returns all metrics in Prometheus text format.
func (fm *FeedMetrics) Gather() string {
	fm.UpdateSystemMetrics()
	return fm.registry.Gather()
}

// Registry returns the internal registry.
func (fm *FeedMetrics) Registry() *Registry {
	return fm.registry
}

var globalMetrics *FeedMetrics
var globalMetricsOnce sync.Once

// GlobalMetrics returns the process-wide Marlinfeed metrics instance.
func GlobalMetrics() *FeedMetrics {
	globalMetricsOnce.Do(func() {
		globalMetrics = NewFeedMetrics()
	})
	return globalMetrics
}
