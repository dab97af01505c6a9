package aggregate

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"board-game-suggestor/internal/model"
)

func entry(id int64, rating string) model.CollectionEntry {
	return model.CollectionEntry{UserName: "alice", BggID: id, GameName: fmt.Sprintf("game-%d", id), UserRating: rating}
}

func link(id int64, name string) model.GameMechanic {
	return model.GameMechanic{GameBggID: id, MechanicName: name}
}

func TestUserMechanicStats_Average(t *testing.T) {
	entries := []model.CollectionEntry{entry(1, "8"), entry(2, "6")}
	links := []model.GameMechanic{link(1, "Worker Placement"), link(2, "Worker Placement")}

	stats := UserMechanicStats("alice", entries, links)

	require.Len(t, stats, 1)
	assert.Equal(t, model.UserMechanicStat{
		UserName:      "alice",
		MechanicName:  "Worker Placement",
		AverageRating: 7.00,
		GameCount:     2,
	}, stats[0])
}

func TestUserMechanicStats_ExcludesUnrated(t *testing.T) {
	entries := []model.CollectionEntry{
		entry(1, "9"),
		entry(2, model.UnratedSentinel),
		entry(3, "N/A"),
		entry(4, "150"),
	}
	links := []model.GameMechanic{
		link(1, "Dice Rolling"),
		link(2, "Dice Rolling"),
		link(3, "Dice Rolling"),
		link(4, "Dice Rolling"),
		link(2, "Trading"),
		link(99, "Trading"),
	}

	stats := UserMechanicStats("alice", entries, links)

	require.Len(t, stats, 1, "Trading has no rated game and yields no row")
	assert.Equal(t, "Dice Rolling", stats[0].MechanicName)
	assert.Equal(t, 1, stats[0].GameCount)
	assert.Equal(t, 9.0, stats[0].AverageRating)
}

func TestUserMechanicStats_RoundsHalfUp(t *testing.T) {
	entries := []model.CollectionEntry{entry(1, "7"), entry(2, "7.25"), entry(3, "7.125")}
	links := []model.GameMechanic{link(1, "A"), link(2, "B"), link(3, "B"), link(3, "C")}

	stats := UserMechanicStats("alice", entries, links)

	require.Len(t, stats, 3)
	assert.Equal(t, "A", stats[0].MechanicName)
	assert.Equal(t, 7.19, stats[1].AverageRating) // (7.25 + 7.125) / 2 = 7.1875
	assert.Equal(t, 7.13, stats[2].AverageRating)
}

func TestUserMechanicStats_DuplicateLinksCountOnce(t *testing.T) {
	entries := []model.CollectionEntry{entry(1, "10"), entry(2, "4")}
	links := []model.GameMechanic{link(1, "Auction"), link(1, "Auction"), link(2, "Auction")}

	stats := UserMechanicStats("alice", entries, links)

	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].GameCount)
	assert.Equal(t, 7.0, stats[0].AverageRating)
}

func TestUserMechanicStats_Empty(t *testing.T) {
	assert.Empty(t, UserMechanicStats("alice", nil, nil))
}

// Each row's count and mean must match a direct recomputation.
func TestUserMechanicStatsProperty(t *testing.T) {
	mechanics := []string{"Auction", "Deck Building", "Dice Rolling", "Worker Placement"}

	rapid.Check(t, func(t *rapid.T) {
		numGames := rapid.IntRange(0, 15).Draw(t, "numGames")

		var entries []model.CollectionEntry
		var links []model.GameMechanic
		for i := 0; i < numGames; i++ {
			id := int64(i + 1)
			rating := model.UnratedSentinel
			if rapid.Bool().Draw(t, "rated") {
				rating = fmt.Sprintf("%d", rapid.IntRange(1, 10).Draw(t, "rating"))
			}
			entries = append(entries, entry(id, rating))
			for _, m := range mechanics {
				if rapid.Bool().Draw(t, "has") {
					links = append(links, link(id, m))
				}
			}
		}

		stats := UserMechanicStats("alice", entries, links)

		for _, s := range stats {
			var sum float64
			var n int
			for _, l := range links {
				if l.MechanicName != s.MechanicName {
					continue
				}
				if v, ok := entries[l.GameBggID-1].NumericRating(); ok {
					sum += v
					n++
				}
			}
			if n == 0 || s.GameCount != n {
				t.Fatalf("%s: count %d, expected %d", s.MechanicName, s.GameCount, n)
			}
			if math.Abs(s.AverageRating-sum/float64(n)) > 0.005+1e-9 {
				t.Fatalf("%s: average %.4f too far from %.4f", s.MechanicName, s.AverageRating, sum/float64(n))
			}
		}

		for i := 1; i < len(stats); i++ {
			if stats[i-1].MechanicName >= stats[i].MechanicName {
				t.Fatalf("stats not sorted: %q before %q", stats[i-1].MechanicName, stats[i].MechanicName)
			}
		}
	})
}
