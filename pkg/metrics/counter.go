package metrics

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing value, e.g. lines_sent_total. It
// never decreases; callers wanting a value that can fall back down want a
// Gauge instead.
type Counter struct {
	name  string
	help  string
	cells sync.Map // labelKey -> *counterCell
}

// NewCounter creates a counter with no samples yet recorded.
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Name() string     { return c.name }
func (c *Counter) Help() string     { return c.help }
func (c *Counter) Type() MetricType { return TypeCounter }

// Inc increments the labeled series by 1.
func (c *Counter) Inc(labels Labels) {
	c.Add(labels, 1)
}

// Add increments the labeled series by delta.
func (c *Counter) Add(labels Labels, delta uint64) {
	cell := c.cellFor(labels)
	atomic.AddUint64(&cell.value, delta)
}

// Get returns the current value of the labeled series, or 0 if it has
// never been touched.
func (c *Counter) Get(labels Labels) uint64 {
	key := labelKey(labels)
	v, ok := c.cells.Load(key)
	if !ok {
		return 0
	}
	return atomic.LoadUint64(&v.(*counterCell).value)
}

func (c *Counter) cellFor(labels Labels) *counterCell {
	key := labelKey(labels)
	v, _ := c.cells.LoadOrStore(key, &counterCell{labels: labels})
	return v.(*counterCell)
}

func (c *Counter) Write(sb *strings.Builder) {
	writeHeader(sb, c.name, c.help, TypeCounter)
	c.cells.Range(func(_, v interface{}) bool {
		cell := v.(*counterCell)
		sb.WriteString(c.name)
		sb.WriteString(formatLabels(cell.labels))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatUint(atomic.LoadUint64(&cell.value), 10))
		sb.WriteByte('\n')
		return true
	})
}

type counterCell struct {
	labels Labels
	value  uint64
}
