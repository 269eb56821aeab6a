package models

import "time"

// OccupancySample is the availability snapshot for one arrival date.
type OccupancySample struct {
	Date          time.Time `json:"date"`
	Ratio         float64   `json:"ratio"`
	TotalListings int       `json:"totalListings"`
	Available     []int64   `json:"available"`
}

// NewOccupancySample derives the ratio from the tracked pool and the
// available subset. Available ids outside the pool are ignored. An empty
// pool yields a ratio of 0.
func NewOccupancySample(date time.Time, pool []int64, available []int64) OccupancySample {
	pool = UniqueListings(pool)
	tracked := make(map[int64]struct{}, len(pool))
	for _, id := range pool {
		tracked[id] = struct{}{}
	}

	free := make([]int64, 0, len(available))
	for _, id := range UniqueListings(available) {
		if _, ok := tracked[id]; ok {
			free = append(free, id)
		}
	}

	ratio := 0.0
	if len(pool) > 0 {
		ratio = float64(len(pool)-len(free)) / float64(len(pool))
	}
	return OccupancySample{
		Date:          Day(date),
		Ratio:         ratio,
		TotalListings: len(pool),
		Available:     free,
	}
}

// UniqueListings drops repeated ids, keeping first-seen order.
func UniqueListings(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
