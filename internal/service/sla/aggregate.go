package sla

import (
	"math"
	"sort"

	"github.com/Shoofai/apimarketplace-sub002/internal/domain"
)

// WindowStats summarizes the request log rows of one measurement window.
// An empty window reports full uptime and a zero error rate.
type WindowStats struct {
	TotalRequests    int64
	FailedRequests   int64
	UptimePercentage float64
	ErrorRate        float64
	LatencyP50MS     *float64
	LatencyP95MS     *float64
}

// Aggregate computes windowed uptime, error rate and latency percentiles
// from a batch of log rows. Pure and deterministic for a given input.
func Aggregate(rows []domain.RequestLogEntry) WindowStats {
	total := int64(len(rows))
	var failed int64
	latencies := make([]float64, 0, len(rows))
	for _, row := range rows {
		if row.StatusCode != nil && *row.StatusCode >= 500 {
			failed++
		}
		if row.LatencyMS != nil {
			latencies = append(latencies, *row.LatencyMS)
		}
	}

	stats := WindowStats{
		TotalRequests:    total,
		FailedRequests:   failed,
		UptimePercentage: 100,
		ErrorRate:        0,
	}
	if total > 0 {
		successful := total - failed
		stats.UptimePercentage = round2(float64(successful) / float64(total) * 100)
		stats.ErrorRate = round4(float64(failed) / float64(total))
	}

	sort.Float64s(latencies)
	stats.LatencyP50MS = nearestRank(latencies, 0.50)
	stats.LatencyP95MS = nearestRank(latencies, 0.95)
	return stats
}

// nearestRank returns the value at index floor(n*q) of a sorted slice,
// without interpolation. Nil when the slice is empty.
func nearestRank(sorted []float64, q float64) *float64 {
	n := len(sorted)
	if n == 0 {
		return nil
	}
	idx := int(math.Floor(float64(n) * q))
	if idx >= n {
		idx = n - 1
	}
	value := sorted[idx]
	return &value
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
