package remote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sahilm/fuzzy"

	"github.com/hanchul-app/koquest/koquest/config"
)

// Fetcher is the read path against the remote leaderboard endpoint.
type Fetcher interface {
	FetchLeaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error)
}

type cachedLeaderboard struct {
	entries   []*LeaderboardEntry
	fetchedAt time.Time
}

// LeaderboardService wraps the remote read path with a last-known-good
// cache. A failed fetch surfaces its error together with the most recent
// successful result, so callers can show stale data instead of an empty
// screen.
type LeaderboardService struct {
	fetcher Fetcher
	cache   *lru.Cache

	mu   sync.RWMutex
	last []*LeaderboardEntry
}

func NewLeaderboardService(fetcher Fetcher) *LeaderboardService {
	cache, _ := lru.New(config.LeaderboardCacheSize)
	return &LeaderboardService{
		fetcher: fetcher,
		cache:   cache,
	}
}

// Leaderboard fetches the top entries. On failure it returns the cached
// result for the same limit, if any, alongside the error; the caller decides
// whether to surface the failure, the stale list, or both.
func (s *LeaderboardService) Leaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error) {
	if limit <= 0 {
		limit = config.DefaultLeaderboardLimit
	}
	if limit > config.MaxLeaderboardLimit {
		limit = config.MaxLeaderboardLimit
	}

	entries, err := s.fetcher.FetchLeaderboard(ctx, limit)
	if err != nil {
		if cached, ok := s.cache.Get(limit); ok {
			stale := cached.(*cachedLeaderboard)
			slog.Warn("Leaderboard fetch failed, serving cached result",
				slog.String("type", "api"),
				slog.Duration("age", time.Since(stale.fetchedAt)),
				slog.Any("error", err))
			return stale.entries, err
		}
		return nil, err
	}

	s.cache.Add(limit, &cachedLeaderboard{entries: entries, fetchedAt: time.Now()})
	s.mu.Lock()
	s.last = entries
	s.mu.Unlock()

	return entries, nil
}

// CurrentUserEntry looks up the given user in a fetched list. Returns nil
// when the user is outside the fetched window.
func (s *LeaderboardService) CurrentUserEntry(entries []*LeaderboardEntry, userID string) *LeaderboardEntry {
	if userID == "" {
		return nil
	}
	for _, e := range entries {
		if e.UserID == userID {
			return e
		}
	}
	return nil
}

type entrySource []*LeaderboardEntry

func (s entrySource) String(i int) string { return s[i].Username }
func (s entrySource) Len() int            { return len(s) }

// SearchByUsername fuzzy-matches usernames against the most recent
// successful fetch. Purely local, never hits the remote endpoint.
func (s *LeaderboardService) SearchByUsername(query string) []*LeaderboardEntry {
	if query == "" {
		return nil
	}

	s.mu.RLock()
	entries := s.last
	s.mu.RUnlock()

	if len(entries) == 0 {
		return nil
	}

	matches := fuzzy.FindFrom(query, entrySource(entries))
	results := make([]*LeaderboardEntry, 0, len(matches))
	for _, m := range matches {
		results = append(results, entries[m.Index])
	}
	return results
}
