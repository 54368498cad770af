// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"sort"
	"strings"
)

// Labels is a metric's key-value tag set, the Prometheus dimension that
// turns one named series into a family of series distinguished by label
// value (e.g. http_requests_total{method="GET"}).
type Labels map[string]string

// Key returns a canonical string for this label set, stable regardless of
// map iteration order, suitable for use as a sync.Map key.
func (l Labels) Key() string {
	return labelKey(l)
}

// String renders the labels in Prometheus exposition format: {k="v",...}.
func (l Labels) String() string {
	return formatLabels(l)
}

// Clone returns an independent copy of the label set.
func (l Labels) Clone() Labels {
	return copyLabels(l)
}

// Merge returns a new Labels with other's entries layered over l's;
// neither l nor other is modified, and values in other win on conflict.
func (l Labels) Merge(other Labels) Labels {
	result := l.Clone()
	for k, v := range other {
		result[k] = v
	}
	return result
}

func labelKey(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := sortedKeys(labels)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(labels[k])
	}
	return sb.String()
}

func formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := sortedKeys(labels)
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteString("=\"")
		sb.WriteString(escapeLabel(labels[k]))
		sb.WriteByte('"')
	}
	sb.WriteByte('}')
	return sb.String()
}

func sortedKeys(labels Labels) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func copyLabels(labels Labels) Labels {
	if labels == nil {
		return Labels{}
	}
	result := make(Labels, len(labels))
	for k, v := range labels {
		result[k] = v
	}
	return result
}
