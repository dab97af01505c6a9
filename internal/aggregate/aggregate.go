// Package aggregate computes per-user statistics from a collection and the
// mechanic tags of its games.
package aggregate

import (
	"sort"

	"board-game-suggestor/internal/model"
)

// UserMechanicStats returns, per mechanic, how many of the user's rated games
// carry it and the mean of those ratings rounded half-up to two decimals.
// Unrated entries are ignored rather than counted as zero, and a mechanic
// with no rated game produces no row. Duplicate links count once. Rows are
// ordered by mechanic name.
func UserMechanicStats(userName string, entries []model.CollectionEntry, links []model.GameMechanic) []model.UserMechanicStat {
	ratings := make(map[int64]float64, len(entries))
	for _, e := range entries {
		if v, ok := e.NumericRating(); ok {
			ratings[e.BggID] = v
		}
	}

	type key struct {
		game     int64
		mechanic string
	}
	seen := make(map[key]struct{}, len(links))
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, l := range links {
		rating, ok := ratings[l.GameBggID]
		if !ok {
			continue
		}
		k := key{l.GameBggID, l.MechanicName}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		sums[l.MechanicName] += rating
		counts[l.MechanicName]++
	}

	stats := make([]model.UserMechanicStat, 0, len(counts))
	for name, n := range counts {
		stats = append(stats, model.UserMechanicStat{
			UserName:      userName,
			MechanicName:  name,
			AverageRating: model.RoundRating(sums[name] / float64(n)),
			GameCount:     n,
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].MechanicName < stats[j].MechanicName
	})

	return stats
}
