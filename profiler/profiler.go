package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/nvr-ai/go-ocr/log"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// RuntimeProfiler times pipeline operations and tracks runtime resources.
//
// It is safe for concurrent use. The periodic report loop is optional: Start
// launches it, and StartOperation / RecordMetric work without it.
type RuntimeProfiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	maxSamples     int
	logger         log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	memStats    runtime.MemStats
	lastGCCount uint32

	customMetrics  map[string]*MetricTracker
	collectors     []MetricsCollector
	operationTimes map[string]*TimeTracker
}

// MetricTracker tracks statistics for a custom metric.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
	failures  int64
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 30s)
	ReportInterval time.Duration
	// SampleInterval specifies how often to collect samples (default: 1s)
	SampleInterval time.Duration
	// MaxSamples specifies maximum number of samples to keep per series (default: 600)
	MaxSamples int
	// Logger receives the periodic reports (default: log.Default)
	Logger log.Logger
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval == 0 {
		opts.ReportInterval = 30 * time.Second
	}
	if opts.SampleInterval == 0 {
		opts.SampleInterval = time.Second
	}
	if opts.MaxSamples == 0 {
		opts.MaxSamples = 600
	}
	if opts.Logger == nil {
		opts.Logger = log.Default
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		maxSamples:     opts.MaxSamples,
		logger:         opts.Logger,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start begins sampling and periodic reporting. Calling it twice is a no-op.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true

	rp.wg.Add(2)
	go rp.loop(rp.sampleInterval, rp.sample)
	go rp.loop(rp.reportInterval, rp.emitStatusReport)
}

// Stop halts the background loops and waits for them to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
}

func (rp *RuntimeProfiler) loop(every time.Duration, fn func()) {
	defer rp.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rp.ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// AddMetricsCollector registers a collector polled on every sample tick.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric records a custom metric value.
//
// Arguments:
// - name: The name of the metric
// - value: The metric value to record
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.recordMetricLocked(name, value)
}

func (rp *RuntimeProfiler) recordMetricLocked(name string, value float64) {
	tracker, exists := rp.customMetrics[name]
	if !exists {
		tracker = &MetricTracker{min: value, max: value}
		rp.customMetrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	tracker.sum += value
	if len(tracker.values) > rp.maxSamples {
		tracker.sum -= tracker.values[0]
		tracker.values = tracker.values[1:]
	}
	tracker.count++
	tracker.min = min(tracker.min, value)
	tracker.max = max(tracker.max, value)
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
//   - A function to call when the operation completes. Passing a non-nil error
//     counts the run as a failure.
//
// @example
//
//	done := p.StartOperation("ocr")
//	res, err := engine.Recognize(ctx, in)
//	done(err)
func (rp *RuntimeProfiler) StartOperation(name string) func(error) {
	start := time.Now()
	return func(err error) {
		rp.recordOperationTime(name, time.Since(start), err != nil)
	}
}

func (rp *RuntimeProfiler) recordOperationTime(name string, duration time.Duration, failed bool) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{minTime: duration, maxTime: duration}
		rp.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	tracker.totalTime += duration
	if len(tracker.durations) > rp.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++
	if failed {
		tracker.failures++
	}
	tracker.minTime = min(tracker.minTime, duration)
	tracker.maxTime = max(tracker.maxTime, duration)
}

func (rp *RuntimeProfiler) sample() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	runtime.ReadMemStats(&rp.memStats)
	rp.recordMetricLocked("goroutines", float64(runtime.NumGoroutine()))
	for _, collector := range rp.collectors {
		for name, value := range collector.CollectMetrics() {
			rp.recordMetricLocked(name, value)
		}
	}
}

func (rp *RuntimeProfiler) emitStatusReport() {
	stats := rp.Stats()

	rp.mu.Lock()
	newGC := stats.Memory.GCCycles - rp.lastGCCount
	rp.lastGCCount = stats.Memory.GCCycles
	rp.mu.Unlock()

	rp.logger.Infow("profiler report",
		"uptime", stats.Uptime,
		"goroutines", stats.Goroutines,
		"heap_alloc", stats.Memory.HeapAlloc,
		"gc_new", newGC,
	)
	for _, op := range stats.Operations {
		rp.logger.Infow("operation timing",
			"name", op.Name,
			"count", op.Count,
			"failures", op.Failures,
			"avg", op.Avg,
			"min", op.Min,
			"max", op.Max,
		)
	}
}

// MemoryStats is the memory section of Stats.
type MemoryStats struct {
	Alloc       uint64  `json:"alloc"`
	TotalAlloc  uint64  `json:"total_alloc"`
	Sys         uint64  `json:"sys"`
	HeapAlloc   uint64  `json:"heap_alloc"`
	HeapObjects uint64  `json:"heap_objects"`
	GCCycles    uint32  `json:"gc_cycles"`
	GCCPU       float64 `json:"gc_cpu_fraction"`
}

// OperationStats summarizes the timings of one named operation.
type OperationStats struct {
	Name     string        `json:"name"`
	Count    int64         `json:"count"`
	Failures int64         `json:"failures"`
	Avg      time.Duration `json:"avg"`
	Min      time.Duration `json:"min"`
	Max      time.Duration `json:"max"`
}

// MetricStats summarizes one custom metric over the retained window.
type MetricStats struct {
	Name    string  `json:"name"`
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

// Stats is a point-in-time snapshot of the profiler.
type Stats struct {
	Uptime     time.Duration    `json:"uptime"`
	Goroutines int              `json:"goroutines"`
	Memory     MemoryStats      `json:"memory"`
	Operations []OperationStats `json:"operations"`
	Metrics    []MetricStats    `json:"metrics"`
}

// Operation returns the stats for name, if any run was recorded.
func (s Stats) Operation(name string) (OperationStats, bool) {
	for _, op := range s.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return OperationStats{}, false
}

// Stats returns the current statistics, sorted by name.
func (rp *RuntimeProfiler) Stats() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	rp.mu.RLock()
	defer rp.mu.RUnlock()

	stats := Stats{
		Uptime:     time.Since(rp.startTime),
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryStats{
			Alloc:       mem.Alloc,
			TotalAlloc:  mem.TotalAlloc,
			Sys:         mem.Sys,
			HeapAlloc:   mem.HeapAlloc,
			HeapObjects: mem.HeapObjects,
			GCCycles:    mem.NumGC,
			GCCPU:       mem.GCCPUFraction,
		},
		Operations: make([]OperationStats, 0, len(rp.operationTimes)),
		Metrics:    make([]MetricStats, 0, len(rp.customMetrics)),
	}

	for name, t := range rp.operationTimes {
		op := OperationStats{Name: name, Count: t.count, Failures: t.failures, Min: t.minTime, Max: t.maxTime}
		if n := len(t.durations); n > 0 {
			op.Avg = t.totalTime / time.Duration(n)
		}
		stats.Operations = append(stats.Operations, op)
	}
	for name, t := range rp.customMetrics {
		if len(t.values) == 0 {
			continue
		}
		stats.Metrics = append(stats.Metrics, MetricStats{
			Name:    name,
			Avg:     t.sum / float64(len(t.values)),
			Min:     t.min,
			Max:     t.max,
			Samples: len(t.values),
		})
	}

	sort.Slice(stats.Operations, func(i, j int) bool { return stats.Operations[i].Name < stats.Operations[j].Name })
	sort.Slice(stats.Metrics, func(i, j int) bool { return stats.Metrics[i].Name < stats.Metrics[j].Name })
	return stats
}
