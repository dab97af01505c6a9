// Package normalize converts catalog XML payloads into flat domain records.
// A malformed item is skipped and counted; it never aborts its siblings.
package normalize

import (
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"board-game-suggestor/internal/catalog"
	"board-game-suggestor/internal/model"
)

const (
	namePrimary      = "primary"
	linkTypeMechanic = "boardgamemechanic"
)

// CollectionResult is the outcome of normalizing a collection payload.
type CollectionResult struct {
	Entries []model.CollectionEntry
	Skipped int
}

// GamesResult is the outcome of normalizing an item-detail payload into games.
type GamesResult struct {
	Games   []model.Game
	Skipped int
}

// MechanicsResult is the outcome of extracting mechanic sets.
type MechanicsResult struct {
	Sets         []model.MechanicSet
	Skipped      int // items without an id or not among the known games
	SkippedLinks int // mechanic links without a value
}

// Collection flattens a user's collection. Items without an id or a name
// are skipped. A rating that is absent or outside the 1..10 scale becomes
// model.UnratedSentinel. When an id is listed more than once the first entry wins, except that a
// real rating replaces an unrated one.
func Collection(userName string, payload *catalog.CollectionPayload) CollectionResult {
	var res CollectionResult
	if payload == nil {
		return res
	}

	index := make(map[int64]int, len(payload.Items))
	for i, item := range payload.Items {
		id, ok := parseID(item.ObjectID)
		if !ok {
			log.Warn().Int("item", i).Str("objectid", item.ObjectID).Msg("Skipping collection item without valid id")
			res.Skipped++
			continue
		}

		name := collectionName(item.Names)
		if name == "" {
			log.Warn().Int("item", i).Int64("bgg_id", id).Msg("Skipping collection item without name")
			res.Skipped++
			continue
		}

		rating := collectionRating(item.Stats)

		if at, dup := index[id]; dup {
			if res.Entries[at].UserRating == model.UnratedSentinel && rating != model.UnratedSentinel {
				res.Entries[at].UserRating = rating
			}
			continue
		}

		index[id] = len(res.Entries)
		res.Entries = append(res.Entries, model.CollectionEntry{
			UserName:   userName,
			BggID:      id,
			GameName:   name,
			UserRating: rating,
		})
	}

	return res
}

func collectionName(names []catalog.CollectionName) string {
	for _, n := range names {
		if v := strings.TrimSpace(n.Value); v != "" {
			return v
		}
	}
	return ""
}

func collectionRating(stats *catalog.CollectionStats) string {
	if stats == nil || stats.Rating == nil {
		return model.UnratedSentinel
	}
	v := strings.TrimSpace(stats.Rating.Value)
	rating, ok := model.ParseRating(v)
	if !ok {
		return model.UnratedSentinel
	}
	if len(v) > model.MaxRatingLength {
		return strconv.FormatFloat(model.RoundRating(rating), 'f', -1, 64)
	}
	return v
}

// Games flattens item details into game records. linkBase is the prefix of
// the public game page; the id is appended to it.
func Games(payload *catalog.ThingPayload, linkBase string) GamesResult {
	var res GamesResult
	if payload == nil {
		return res
	}

	base := strings.TrimRight(linkBase, "/") + "/"
	seen := make(map[int64]struct{}, len(payload.Items))

	for i, item := range payload.Items {
		id, ok := parseID(item.ID)
		if !ok {
			log.Warn().Int("item", i).Str("id", item.ID).Msg("Skipping game without valid id")
			res.Skipped++
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}

		name := PrimaryName(item.Names)
		if name == "" {
			log.Warn().Int("item", i).Int64("bgg_id", id).Msg("Skipping game without name")
			res.Skipped++
			continue
		}
		seen[id] = struct{}{}

		game := model.Game{
			BggID:         id,
			GameName:      name,
			Link:          base + strconv.FormatInt(id, 10),
			AverageRating: averageRating(item.Statistics),
			YearPublished: optionalInt(item.YearPublished, true),
			MinPlayers:    optionalInt(item.MinPlayers, false),
			MaxPlayers:    optionalInt(item.MaxPlayers, false),
			PlayingTime:   optionalInt(item.PlayingTime, false),
		}
		if item.Image != nil {
			game.ImageLink = strings.TrimSpace(*item.Image)
		}

		res.Games = append(res.Games, game)
	}

	return res
}

// PrimaryName returns the value of the name tagged primary, or the first
// non-empty name when none is tagged.
func PrimaryName(names []catalog.ThingName) string {
	for _, n := range names {
		if n.Type == namePrimary {
			if v := strings.TrimSpace(n.Value); v != "" {
				return v
			}
		}
	}
	for _, n := range names {
		if v := strings.TrimSpace(n.Value); v != "" {
			return v
		}
	}
	return ""
}

// averageRating is nil when the statistics path is absent or unparsable.
// Zero is a real value and is kept.
func averageRating(stats *catalog.ThingStats) *float64 {
	if stats == nil || stats.Ratings == nil || stats.Ratings.Average == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(stats.Ratings.Average.Value), 64)
	if err != nil {
		return nil
	}
	v = model.RoundRating(v)
	return &v
}

// optionalInt parses a value attribute. The catalog reports unknown counts
// as 0; years may be negative, so only 0 is treated as unknown there.
func optionalInt(attr *catalog.ValueAttr, allowNegative bool) *int {
	if attr == nil {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(attr.Value))
	if err != nil || v == 0 || (v < 0 && !allowNegative) {
		return nil
	}
	return &v
}

// Mechanics extracts the complete mechanic set of every item whose id is in
// known. An item with no mechanic links yields an empty set, which records
// that the game was queried and has none.
func Mechanics(payload *catalog.ThingPayload, known []int64) MechanicsResult {
	var res MechanicsResult
	if payload == nil {
		return res
	}

	knownSet := make(map[int64]struct{}, len(known))
	for _, id := range known {
		knownSet[id] = struct{}{}
	}
	done := make(map[int64]struct{}, len(payload.Items))

	for i, item := range payload.Items {
		id, ok := parseID(item.ID)
		if !ok {
			res.Skipped++
			continue
		}
		if _, ok := knownSet[id]; !ok {
			log.Debug().Int("item", i).Int64("bgg_id", id).Msg("Skipping mechanics of unknown game")
			res.Skipped++
			continue
		}
		if _, dup := done[id]; dup {
			continue
		}
		done[id] = struct{}{}

		set := model.MechanicSet{GameBggID: id, Names: []string{}}
		for _, link := range item.Links {
			if link.Type != linkTypeMechanic {
				continue
			}
			name := strings.TrimSpace(link.Value)
			if name == "" {
				log.Warn().Int64("bgg_id", id).Str("link_id", link.ID).Msg("Skipping mechanic link without value")
				res.SkippedLinks++
				continue
			}
			if !slices.Contains(set.Names, name) {
				set.Names = append(set.Names, name)
			}
		}

		res.Sets = append(res.Sets, set)
	}

	return res
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
