// Package tally computes per-option vote counts and percentages.
package tally

import (
	"math"

	"github.com/samber/lo"
	"github.com/zhulik/livepoll/internal/core"
)

// Compute returns one result per option, parallel to options.
// Percentages are rounded to the nearest integer and are all zero when
// no votes were cast.
func Compute(options []string, countsByIndex map[int]int) []core.OptionResult {
	total := lo.Sum(lo.Values(countsByIndex))

	return lo.Map(options, func(option string, index int) core.OptionResult {
		votes := countsByIndex[index]

		percentage := 0
		if total > 0 {
			percentage = int(math.Round(float64(votes) / float64(total) * 100)) //nolint:mnd
		}

		return core.OptionResult{
			Option:     option,
			Votes:      votes,
			Percentage: percentage,
		}
	})
}

// TotalVotes sums the per-option counts.
func TotalVotes(countsByIndex map[int]int) int {
	return lo.Sum(lo.Values(countsByIndex))
}
