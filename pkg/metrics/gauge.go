package metrics

import (
	"strings"
	"sync"
)

// Gauge is a value that can move in either direction, e.g. a queue depth
// or a tool temperature reading.
type Gauge struct {
	name  string
	help  string
	cells sync.Map // labelKey -> *gaugeCell
}

// NewGauge creates a gauge with no samples yet recorded.
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Name() string     { return g.name }
func (g *Gauge) Help() string     { return g.help }
func (g *Gauge) Type() MetricType { return TypeGauge }

// Set pins the labeled series to value.
func (g *Gauge) Set(labels Labels, value float64) {
	cell := g.cellFor(labels)
	cell.mu.Lock()
	cell.value = value
	cell.mu.Unlock()
}

// Inc adds 1 to the labeled series.
func (g *Gauge) Inc(labels Labels) { g.Add(labels, 1) }

// Dec subtracts 1 from the labeled series.
func (g *Gauge) Dec(labels Labels) { g.Add(labels, -1) }

// Add adds delta to the labeled series.
func (g *Gauge) Add(labels Labels, delta float64) {
	cell := g.cellFor(labels)
	cell.mu.Lock()
	cell.value += delta
	cell.mu.Unlock()
}

// Sub subtracts delta from the labeled series.
func (g *Gauge) Sub(labels Labels, delta float64) {
	g.Add(labels, -delta)
}

// Get returns the current value of the labeled series, or 0 if it has
// never been touched.
func (g *Gauge) Get(labels Labels) float64 {
	key := labelKey(labels)
	v, ok := g.cells.Load(key)
	if !ok {
		return 0
	}
	cell := v.(*gaugeCell)
	cell.mu.Lock()
	defer cell.mu.Unlock()
	return cell.value
}

func (g *Gauge) cellFor(labels Labels) *gaugeCell {
	key := labelKey(labels)
	v, _ := g.cells.LoadOrStore(key, &gaugeCell{labels: labels})
	return v.(*gaugeCell)
}

func (g *Gauge) Write(sb *strings.Builder) {
	writeHeader(sb, g.name, g.help, TypeGauge)
	g.cells.Range(func(_, v interface{}) bool {
		cell := v.(*gaugeCell)
		cell.mu.Lock()
		value := cell.value
		cell.mu.Unlock()
		sb.WriteString(g.name)
		sb.WriteString(formatLabels(cell.labels))
		sb.WriteByte(' ')
		sb.WriteString(formatFloat(value))
		sb.WriteByte('\n')
		return true
	})
}

type gaugeCell struct {
	labels Labels
	value  float64
	mu     sync.Mutex
}
