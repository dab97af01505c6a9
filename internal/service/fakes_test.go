package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"board-game-suggestor/internal/catalog"
	"board-game-suggestor/internal/model"
	"board-game-suggestor/internal/repository"
)

// memDB is an in-memory stand-in for the PostgreSQL repositories with the
// same upsert and replace semantics.
type memDB struct {
	mu        sync.Mutex
	users     map[string]*model.User
	entries   map[string]map[int64]model.CollectionEntry
	games     map[int64]model.Game
	mechanics map[int64][]string
	stats     map[string]map[string]model.UserMechanicStat

	failReplaceMechanics bool
}

func newMemDB() *memDB {
	return &memDB{
		users:     make(map[string]*model.User),
		entries:   make(map[string]map[int64]model.CollectionEntry),
		games:     make(map[int64]model.Game),
		mechanics: make(map[int64][]string),
		stats:     make(map[string]map[string]model.UserMechanicStat),
	}
}

func (db *memDB) stores() Stores {
	return Stores{
		Users:       memUsers{db},
		Collections: memCollections{db},
		Games:       memGames{db},
		Mechanics:   memMechanics{db},
		Stats:       memStats{db},
	}
}

func (db *memDB) counts() (users, entries, games, links, stats int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, m := range db.entries {
		entries += len(m)
	}
	for _, m := range db.mechanics {
		links += len(m)
	}
	for _, m := range db.stats {
		stats += len(m)
	}
	return len(db.users), entries, len(db.games), links, stats
}

type memUsers struct{ db *memDB }

func (s memUsers) GetByName(_ context.Context, name string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[name]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s memUsers) GetOrCreate(_ context.Context, name string) (*model.User, bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if u, ok := s.db.users[name]; ok {
		cp := *u
		return &cp, false, nil
	}
	u := &model.User{UserName: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.db.users[name] = u
	cp := *u
	return &cp, true, nil
}

func (s memUsers) MarkSynced(_ context.Context, name string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[name]
	if !ok {
		return repository.ErrUserNotFound
	}
	now := time.Now()
	u.LastSyncedAt = &now
	return nil
}

func (s memUsers) ListUserNames(context.Context) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	names := make([]string, 0, len(s.db.users))
	for n := range s.db.users {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

type memCollections struct{ db *memDB }

func (s memCollections) ReplaceCollection(_ context.Context, user string, entries []model.CollectionEntry) (int, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	old := s.db.entries[user]
	next := make(map[int64]model.CollectionEntry, len(entries))
	for _, e := range entries {
		e.UserName = user
		next[e.BggID] = e
	}
	removed := 0
	for id := range old {
		if _, ok := next[id]; !ok {
			removed++
		}
	}
	s.db.entries[user] = next
	return len(entries), removed, nil
}

func (s memCollections) FindByUser(_ context.Context, user string) ([]model.CollectionEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.CollectionEntry
	for _, e := range s.db.entries[user] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BggID < out[j].BggID })
	return out, nil
}

func (s memCollections) CollectionView(_ context.Context, user string) ([]model.CollectionGame, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.CollectionGame
	for _, e := range s.db.entries[user] {
		row := model.CollectionGame{
			BggID:      e.BggID,
			GameName:   e.GameName,
			UserRating: e.UserRating,
			Mechanics:  append([]string{}, s.db.mechanics[e.BggID]...),
		}
		if g, ok := s.db.games[e.BggID]; ok {
			row.GameName = g.GameName
			row.Link = g.Link
			row.ImageLink = g.ImageLink
			row.AverageRating = g.AverageRating
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BggID < out[j].BggID })
	return out, nil
}

type memGames struct{ db *memDB }

func (s memGames) UpsertGames(_ context.Context, games []model.Game) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, g := range games {
		if old, ok := s.db.games[g.BggID]; ok {
			g.MechanicsFetchedAt = old.MechanicsFetchedAt
		}
		s.db.games[g.BggID] = g
	}
	return len(games), nil
}

func (s memGames) FindGameByID(_ context.Context, id int64) (*model.Game, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	g, ok := s.db.games[id]
	if !ok {
		return nil, repository.ErrGameNotFound
	}
	return &g, nil
}

func (s memGames) FindExistingIDs(_ context.Context, ids []int64) ([]int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []int64
	for _, id := range ids {
		if _, ok := s.db.games[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s memGames) FindGamesNeedingMechanics(_ context.Context, ids []int64) ([]int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []int64
	for _, id := range ids {
		if g, ok := s.db.games[id]; ok && g.MechanicsFetchedAt == nil {
			out = append(out, id)
		}
	}
	return out, nil
}

type memMechanics struct{ db *memDB }

func (s memMechanics) ReplaceMechanics(_ context.Context, sets []model.MechanicSet) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failReplaceMechanics {
		return 0, repository.ErrGameNotFound
	}
	n := 0
	for _, set := range sets {
		g, ok := s.db.games[set.GameBggID]
		if !ok {
			return n, repository.ErrGameNotFound
		}
		now := time.Now()
		g.MechanicsFetchedAt = &now
		s.db.games[set.GameBggID] = g
		names := append([]string{}, set.Names...)
		sort.Strings(names)
		s.db.mechanics[set.GameBggID] = names
		n += len(names)
	}
	return n, nil
}

func (s memMechanics) FindByGameIDs(_ context.Context, ids []int64) ([]model.GameMechanic, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.GameMechanic
	for _, id := range ids {
		for _, name := range s.db.mechanics[id] {
			out = append(out, model.GameMechanic{GameBggID: id, MechanicName: name})
		}
	}
	return out, nil
}

type memStats struct{ db *memDB }

func (s memStats) ReplaceUserMechanicStats(_ context.Context, user string, stats []model.UserMechanicStat) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m := make(map[string]model.UserMechanicStat, len(stats))
	for _, st := range stats {
		m[st.MechanicName] = st
	}
	s.db.stats[user] = m
	return len(stats), nil
}

func (s memStats) FindByUser(_ context.Context, user string) ([]model.UserMechanicStat, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.UserMechanicStat
	for _, st := range s.db.stats[user] {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageRating != out[j].AverageRating {
			return out[i].AverageRating > out[j].AverageRating
		}
		return out[i].MechanicName < out[j].MechanicName
	})
	return out, nil
}

// fakeCatalog serves a fixed collection and item details.
type fakeCatalog struct {
	mu            sync.Mutex
	collection    *catalog.CollectionPayload
	collectionErr error
	items         map[int64]catalog.ThingItem
	failItems     func(call int, ids []int64) error
	itemCalls     [][]int64
	onCollection  func()
}

func (c *fakeCatalog) FetchCollection(context.Context, string) (*catalog.CollectionPayload, error) {
	if c.onCollection != nil {
		c.onCollection()
	}
	if c.collectionErr != nil {
		return nil, c.collectionErr
	}
	return c.collection, nil
}

func (c *fakeCatalog) FetchItems(_ context.Context, ids []int64) (*catalog.ThingPayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call := len(c.itemCalls)
	c.itemCalls = append(c.itemCalls, append([]int64{}, ids...))
	if c.failItems != nil {
		if err := c.failItems(call, ids); err != nil {
			return nil, err
		}
	}
	p := &catalog.ThingPayload{}
	for _, id := range ids {
		if item, ok := c.items[id]; ok {
			p.Items = append(p.Items, item)
		}
	}
	return p, nil
}

func (c *fakeCatalog) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.itemCalls)
}

// countingPacer records pauses without sleeping.
type countingPacer struct {
	mu     sync.Mutex
	pauses int
}

func (p *countingPacer) Pause(ctx context.Context) error {
	p.mu.Lock()
	p.pauses++
	p.mu.Unlock()
	return ctx.Err()
}

type testGame struct {
	id        int64
	name      string
	rating    string // user rating; "" means no rating node
	average   string
	mechanics []string
}

func collectionOf(games ...testGame) *catalog.CollectionPayload {
	p := &catalog.CollectionPayload{}
	for _, g := range games {
		item := catalog.CollectionItem{
			ObjectID: strconv.FormatInt(g.id, 10),
			Names:    []catalog.CollectionName{{Value: g.name}},
		}
		if g.rating != "" {
			item.Stats = &catalog.CollectionStats{Rating: &catalog.ValueAttr{Value: g.rating}}
		}
		p.Items = append(p.Items, item)
	}
	return p
}

func thingsOf(games ...testGame) map[int64]catalog.ThingItem {
	items := make(map[int64]catalog.ThingItem, len(games))
	for _, g := range games {
		item := catalog.ThingItem{
			ID:    strconv.FormatInt(g.id, 10),
			Names: []catalog.ThingName{{Type: "primary", Value: g.name}},
		}
		if g.average != "" {
			item.Statistics = &catalog.ThingStats{Ratings: &catalog.ThingRatings{Average: &catalog.ValueAttr{Value: g.average}}}
		}
		for _, m := range g.mechanics {
			item.Links = append(item.Links, catalog.ThingLink{Type: "boardgamemechanic", Value: m})
		}
		items[g.id] = item
	}
	return items
}
