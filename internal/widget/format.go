package widget

import (
	"fmt"
	"strconv"
	"strings"

	"dash_go/internal/domain"
)

// FormatValue renders a numeric value per its class: durations in seconds,
// memory in binary multiples, everything else as a trimmed decimal.
func FormatValue(v float64, class domain.ValueClass) string {
	switch class {
	case domain.ValueTime:
		return formatSeconds(v)
	case domain.ValueMemory:
		return formatBytes(v)
	default:
		return formatNumber(v)
	}
}

func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

func formatSeconds(v float64) string {
	switch {
	case v >= 3600:
		h := int(v) / 3600
		m := (int(v) % 3600) / 60
		return fmt.Sprintf("%dh%02dm", h, m)
	case v >= 60:
		m := int(v) / 60
		s := int(v) % 60
		return fmt.Sprintf("%dm%02ds", m, s)
	case v >= 1:
		return formatNumber(v) + "s"
	default:
		return formatNumber(v*1000) + "ms"
	}
}

func formatBytes(v float64) string {
	const unit = 1024.0
	switch {
	case v >= unit*unit*unit:
		return fmt.Sprintf("%.1f GiB", v/(unit*unit*unit))
	case v >= unit*unit:
		return fmt.Sprintf("%.1f MiB", v/(unit*unit))
	case v >= unit:
		return fmt.Sprintf("%.1f KiB", v/unit)
	default:
		return formatNumber(v) + " B"
	}
}

// formatEntry renders a metric entry body, expanding array values.
func formatEntry(e domain.MetricEntry) string {
	if e.IsArray() {
		parts := make([]string, len(e.Values))
		for i, v := range e.Values {
			parts[i] = FormatValue(v, e.Class)
		}
		return strings.Join(parts, " / ")
	}
	return FormatValue(e.Value, e.Class)
}
