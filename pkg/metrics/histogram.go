package metrics

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Histogram tracks the distribution of observed values across a fixed set
// of cumulative buckets, plus their running sum and count — enough to
// compute quantiles server-side without per-observation storage.
type Histogram struct {
	name    string
	help    string
	buckets []float64
	cells   sync.Map // labelKey -> *histogramCell
}

// NewHistogram creates a histogram with the given bucket upper bounds.
// Buckets are sorted ascending; duplicates are harmless but wasteful.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)
	return &Histogram{name: name, help: help, buckets: sorted}
}

// DefaultBuckets returns a general-purpose latency bucket set spanning
// 5ms to 10s.
func DefaultBuckets() []float64 {
	return []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
}

// LinearBuckets returns count buckets: start, start+width, start+2*width, ...
func LinearBuckets(start, width float64, count int) []float64 {
	buckets := make([]float64, count)
	for i := 0; i < count; i++ {
		buckets[i] = start + float64(i)*width
	}
	return buckets
}

// ExponentialBuckets returns count buckets: start, start*factor, start*factor^2, ...
func ExponentialBuckets(start, factor float64, count int) []float64 {
	buckets := make([]float64, count)
	for i := 0; i < count; i++ {
		buckets[i] = start
		start *= factor
	}
	return buckets
}

func (h *Histogram) Name() string     { return h.name }
func (h *Histogram) Help() string     { return h.help }
func (h *Histogram) Type() MetricType { return TypeHistogram }

// Observe records value in the labeled series.
func (h *Histogram) Observe(labels Labels, value float64) {
	cell := h.cellFor(labels)
	cell.mu.Lock()
	cell.count++
	cell.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			cell.buckets[i]++
		}
	}
	cell.mu.Unlock()
}

// Timer returns a func that records the elapsed time since Timer was
// called as an observation when invoked; callers typically defer it.
func (h *Histogram) Timer(labels Labels) func() {
	start := time.Now()
	return func() {
		h.Observe(labels, time.Since(start).Seconds())
	}
}

func (h *Histogram) cellFor(labels Labels) *histogramCell {
	key := labelKey(labels)
	v, _ := h.cells.LoadOrStore(key, &histogramCell{
		labels:  labels,
		buckets: make([]uint64, len(h.buckets)),
	})
	return v.(*histogramCell)
}

func (h *Histogram) Write(sb *strings.Builder) {
	writeHeader(sb, h.name, h.help, TypeHistogram)
	h.cells.Range(func(_, v interface{}) bool {
		cell := v.(*histogramCell)
		cell.mu.Lock()
		count := cell.count
		sum := cell.sum
		bucketCounts := make([]uint64, len(cell.buckets))
		copy(bucketCounts, cell.buckets)
		cell.mu.Unlock()

		cumulative := uint64(0)
		for i, bound := range h.buckets {
			cumulative += bucketCounts[i]
			h.writeSample(sb, "_bucket", withLe(cell.labels, formatFloat(bound)), cumulative)
		}
		h.writeSample(sb, "_bucket", withLe(cell.labels, "+Inf"), count)

		sb.WriteString(h.name)
		sb.WriteString("_sum")
		sb.WriteString(formatLabels(cell.labels))
		sb.WriteByte(' ')
		sb.WriteString(formatFloat(sum))
		sb.WriteByte('\n')

		h.writeSample(sb, "_count", cell.labels, count)
		return true
	})
}

func (h *Histogram) writeSample(sb *strings.Builder, suffix string, labels Labels, count uint64) {
	sb.WriteString(h.name)
	sb.WriteString(suffix)
	sb.WriteString(formatLabels(labels))
	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatUint(count, 10))
	sb.WriteByte('\n')
}

func withLe(labels Labels, bound string) Labels {
	bucketLabels := copyLabels(labels)
	bucketLabels["le"] = bound
	return bucketLabels
}

type histogramCell struct {
	labels  Labels
	count   uint64
	sum     float64
	buckets []uint64
	mu      sync.Mutex
}

// HistogramSnapshot is a point-in-time copy of one labeled series' state,
// safe to read after the histogram has moved on.
type HistogramSnapshot struct {
	Count   uint64
	Sum     float64
	Buckets map[float64]uint64
}

// GetSnapshot returns the current state of the labeled series. Buckets
// are cumulative, keyed by upper bound, matching Write's "le" labels.
func (h *Histogram) GetSnapshot(labels Labels) HistogramSnapshot {
	key := labelKey(labels)
	v, ok := h.cells.Load(key)
	if !ok {
		return HistogramSnapshot{Buckets: make(map[float64]uint64)}
	}
	cell := v.(*histogramCell)
	cell.mu.Lock()
	defer cell.mu.Unlock()

	buckets := make(map[float64]uint64, len(h.buckets))
	cumulative := uint64(0)
	for i, bound := range h.buckets {
		cumulative += cell.buckets[i]
		buckets[bound] = cumulative
	}

	return HistogramSnapshot{
		Count:   cell.count,
		Sum:     cell.sum,
		Buckets: buckets,
	}
}
