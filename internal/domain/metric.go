package domain

import (
	"sort"
	"strings"
)

// ValueClass describes how a numeric metric value should be formatted.
type ValueClass int

const (
	ValuePlain ValueClass = iota
	ValueTime
	ValueMemory
)

// String returns the string representation of ValueClass
func (c ValueClass) String() string {
	switch c {
	case ValueTime:
		return "time"
	case ValueMemory:
		return "memory"
	default:
		return "plain"
	}
}

// MetricEntry is the cached last-known value for one key of a channel.
// An entry is never removed by an update cycle: absence of fresh data in a
// message leaves the prior value authoritative.
type MetricEntry struct {
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Labels      map[string]string `json:"labels,omitempty"`
	Value       float64           `json:"value"`
	Values      []float64         `json:"values,omitempty"` // array payloads kept whole (e.g. per-core usage)
	Class       ValueClass        `json:"class"`
	Rate        float64           `json:"rate,omitempty"`
	LastUpdated int64             `json:"last_updated"` // epoch seconds
}

// IsArray reports whether the entry holds an array value.
func (e *MetricEntry) IsArray() bool {
	return e.Values != nil
}

// MetricKey builds the channel-scoped composite key for a telemetry metric:
// name plus the canonical serialization of its labels. Labels are sorted so
// the same label set always yields the same key.
func MetricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// unit hints checked before any name heuristics
var timeUnits = map[string]bool{
	"s": true, "sec": true, "seconds": true, "ms": true, "milliseconds": true,
	"us": true, "microseconds": true, "ns": true, "nanoseconds": true,
}

var memoryUnits = map[string]bool{
	"b": true, "bytes": true, "kb": true, "kib": true, "kibibytes": true,
	"mb": true, "gb": true,
}

var timeNameHints = []string{"latency", "duration", "seconds", "uptime", "_time", "_ms"}
var memoryNameHints = []string{"byte", "memory", "mem_", "_mem", "heap", "rss"}

// ClassifyValue decides how a numeric value renders: metadata unit hints
// take priority, then name-substring heuristics. Unclassified values are
// plain numbers.
func ClassifyValue(name, unit string) ValueClass {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u != "" {
		if timeUnits[u] {
			return ValueTime
		}
		if memoryUnits[u] {
			return ValueMemory
		}
		return ValuePlain
	}

	n := strings.ToLower(name)
	for _, h := range timeNameHints {
		if strings.Contains(n, h) {
			return ValueTime
		}
	}
	for _, h := range memoryNameHints {
		if strings.Contains(n, h) {
			return ValueMemory
		}
	}
	return ValuePlain
}

// IsKibibyteUnit reports whether the unit hint (or, failing that, the metric
// name) declares a kibibyte-denominated value. Such values are converted to
// bytes at ingest so downstream formatting is unit-uniform.
func IsKibibyteUnit(name, unit string) bool {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "kb" || u == "kib" || u == "kibibytes" {
		return true
	}
	if u != "" {
		return false
	}
	n := strings.ToLower(name)
	return strings.HasSuffix(n, "_kb") || strings.HasSuffix(n, "_kib")
}
