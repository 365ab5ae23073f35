// Package reconcile turns the raw backend feeds into display-ready series
// and rows. Everything here is pure and safe for concurrent use.
package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/azimjon-95/totli-webapp/internal/domain"
)

// MergeHourly joins today's and yesterday's hourly series into one dense
// series sorted ascending by hour. An hour missing on one side gets zero on
// that side. When a label repeats inside one input the later entry wins.
func MergeHourly(today, yesterday []domain.HourlyPoint) []domain.MergedHourlyPoint {
	byHour := make(map[domain.HourLabel]*domain.MergedHourlyPoint, len(today)+len(yesterday))

	for _, p := range today {
		byHour[p.Hour] = &domain.MergedHourlyPoint{
			Hour:      p.Hour,
			Today:     p.Value,
			Yesterday: decimal.Zero,
		}
	}

	for _, p := range yesterday {
		if existing, ok := byHour[p.Hour]; ok {
			existing.Yesterday = p.Value
			continue
		}
		byHour[p.Hour] = &domain.MergedHourlyPoint{
			Hour:      p.Hour,
			Today:     decimal.Zero,
			Yesterday: p.Value,
		}
	}

	merged := make([]domain.MergedHourlyPoint, 0, len(byHour))
	for _, p := range byHour {
		merged = append(merged, *p)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Hour.Less(merged[j].Hour)
	})

	return merged
}
