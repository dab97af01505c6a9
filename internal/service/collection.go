package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"board-game-suggestor/internal/model"
	"board-game-suggestor/internal/repository"
)

// Sort fields accepted by CollectionService.GetCollection.
const (
	SortGameName      = "gameName"
	SortUserRating    = "userRating"
	SortAverageRating = "averageRating"
)

// SortOptions orders a collection view.
type SortOptions struct {
	Field string
	Desc  bool
}

// ParseSort validates the sort and order query values. Empty values mean
// game name ascending.
func ParseSort(field, order string) (SortOptions, error) {
	opts := SortOptions{Field: SortGameName}

	switch field {
	case "":
	case SortGameName, SortUserRating, SortAverageRating:
		opts.Field = field
	default:
		return opts, fmt.Errorf("%w: unknown field %q", ErrInvalidSort, field)
	}

	switch strings.ToLower(order) {
	case "", "asc":
	case "desc":
		opts.Desc = true
	default:
		return opts, fmt.Errorf("%w: unknown order %q", ErrInvalidSort, order)
	}

	return opts, nil
}

// CollectionService serves persisted collections, games and statistics.
type CollectionService struct {
	stores   Stores
	linkBase string
}

// NewCollectionService creates a new CollectionService instance.
func NewCollectionService(stores Stores, gameLinkBase string) *CollectionService {
	return &CollectionService{
		stores:   stores,
		linkBase: strings.TrimRight(gameLinkBase, "/") + "/",
	}
}

// GetCollection returns the user's display-ready collection, sorted.
// Returns ErrCollectionNotFound if the user has no entries yet.
func (s *CollectionService) GetCollection(ctx context.Context, userName string, opts SortOptions) (*model.CollectionView, error) {
	if err := validateUserName(userName); err != nil {
		return nil, err
	}

	games, err := s.stores.Collections.CollectionView(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	if len(games) == 0 {
		return nil, ErrCollectionNotFound
	}

	for i := range games {
		if games[i].Link == "" {
			games[i].Link = s.linkBase + strconv.FormatInt(games[i].BggID, 10)
		}
		if games[i].Mechanics == nil {
			games[i].Mechanics = []string{}
		}
	}
	SortCollection(games, opts)

	return &model.CollectionView{
		UserName:   userName,
		TotalGames: len(games),
		Games:      games,
	}, nil
}

// SortCollection orders games in place. Games without a value for the
// sort field (unrated, no average) come last in either direction; ties are
// broken by name then id.
func SortCollection(games []model.CollectionGame, opts SortOptions) {
	value := func(g model.CollectionGame) (float64, bool) {
		switch opts.Field {
		case SortUserRating:
			return model.ParseRating(g.UserRating)
		case SortAverageRating:
			if g.AverageRating == nil {
				return 0, false
			}
			return *g.AverageRating, true
		}
		return 0, true
	}

	tieBreak := func(a, b model.CollectionGame) bool {
		an, bn := strings.ToLower(a.GameName), strings.ToLower(b.GameName)
		if an != bn {
			return an < bn
		}
		return a.BggID < b.BggID
	}

	sort.SliceStable(games, func(i, j int) bool {
		a, b := games[i], games[j]

		if opts.Field == SortGameName || opts.Field == "" {
			if opts.Desc {
				return tieBreak(b, a)
			}
			return tieBreak(a, b)
		}

		av, aok := value(a)
		bv, bok := value(b)
		switch {
		case aok != bok:
			return aok
		case aok && av != bv:
			if opts.Desc {
				return av > bv
			}
			return av < bv
		default:
			return tieBreak(a, b)
		}
	})
}

// GetUserMechanics returns the user's mechanic statistics, highest average
// first. Returns repository.ErrUserNotFound for an unknown user.
func (s *CollectionService) GetUserMechanics(ctx context.Context, userName string) ([]model.UserMechanicStat, error) {
	if err := validateUserName(userName); err != nil {
		return nil, err
	}
	if _, err := s.stores.Users.GetByName(ctx, userName); err != nil {
		return nil, err
	}

	stats, err := s.stores.Stats.FindByUser(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to get user mechanics: %w", err)
	}
	if stats == nil {
		stats = []model.UserMechanicStat{}
	}
	return stats, nil
}

// GetGame returns a persisted game with its mechanics and fetch state.
// Returns repository.ErrGameNotFound for an unknown id.
func (s *CollectionService) GetGame(ctx context.Context, id int64) (*model.GameDetail, error) {
	game, err := s.stores.Games.FindGameByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrGameNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	links, err := s.stores.Mechanics.FindByGameIDs(ctx, []int64{id})
	if err != nil {
		return nil, fmt.Errorf("failed to get game mechanics: %w", err)
	}

	names := make([]string, 0, len(links))
	for _, l := range links {
		names = append(names, l.MechanicName)
	}

	return &model.GameDetail{
		Game:          *game,
		Mechanics:     names,
		MechanicState: game.MechanicState(len(names)),
	}, nil
}
