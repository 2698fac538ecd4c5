package tui

import (
	"fmt"
	"strings"
	"time"

	"kestrel/internal/store"
)

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	s := d - m*time.Minute
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s/time.Second)
	}
	return fmt.Sprintf("%02d:%02d", m, s/time.Second)
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline renders one series of values as a fixed-width unicode chart.
func sparkline(values []uint64, width int) string {
	if width <= 0 || len(values) == 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	var peak uint64
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}

	var sb strings.Builder
	for _, v := range values {
		idx := 0
		if peak > 0 {
			idx = int(v * uint64(len(sparkRunes)-1) / peak)
		}
		sb.WriteRune(sparkRunes[idx])
	}
	return sb.String()
}

// trafficSeries splits ring samples into up/down series for charting.
func trafficSeries(samples []store.TrafficSample) (up, down []uint64) {
	up = make([]uint64, len(samples))
	down = make([]uint64, len(samples))
	for i, s := range samples {
		up[i] = s.Up
		down[i] = s.Down
	}
	return up, down
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
