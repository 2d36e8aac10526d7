/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package poker

import "math"

// Statistics summarises the numeric votes of a finished round.
type Statistics struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Calculate returns nil when no vote is numeric. Average is rounded to one
// decimal place.
func Calculate(votes []RevealedVote) *Statistics {
	var (
		sum   float64
		count int
		stats Statistics
	)

	for _, v := range votes {
		n, ok := v.Vote.Number()
		if !ok {
			continue
		}

		if count == 0 || n < stats.Min {
			stats.Min = n
		}
		if count == 0 || n > stats.Max {
			stats.Max = n
		}
		sum += n
		count++
	}

	if count == 0 {
		return nil
	}

	stats.Average = math.Round(sum/float64(count)*10) / 10

	return &stats
}
