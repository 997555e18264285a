package models

import "time"

// SystemMetrics is a JSON snapshot of the service counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	RendersTotal             uint64    `json:"renders_total"`
	ConflictsTotal           uint64    `json:"conflicts_total"`
	ParseMissesTotal         uint64    `json:"parse_misses_total"`
	LayoutOverflowsTotal     uint64    `json:"layout_overflows_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
