// Metrics collection for the Marlinfeed Go host.
//
// Provides Prometheus-compatible counters, gauges and histograms, gathered
// into the Prometheus text exposition format for scraping over HTTP (see
// server.go).
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"strings"
)

// MetricType identifies which of the three Prometheus metric kinds a
// Metric implements; used only to render the "# TYPE" exposition line.
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
	TypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Metric is anything a Registry can gather: it knows its own name, help
// text and kind, and can render itself in Prometheus text format.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	Write(sb *strings.Builder)
}

// writeHeader emits the "# HELP"/"# TYPE" pair every metric kind writes
// ahead of its samples.
func writeHeader(sb *strings.Builder, name, help string, kind MetricType) {
	sb.WriteString("# HELP ")
	sb.WriteString(name)
	sb.WriteByte(' ')
	sb.WriteString(help)
	sb.WriteByte('\n')
	sb.WriteString("# TYPE ")
	sb.WriteString(name)
	sb.WriteByte(' ')
	sb.WriteString(kind.String())
	sb.WriteByte('\n')
}

// formatFloat renders a float64 sample the way Prometheus expects it.
func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
