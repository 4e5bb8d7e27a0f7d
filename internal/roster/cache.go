package roster

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/darmiel/badgebot/internal/core"
	"github.com/darmiel/badgebot/internal/obs"
)

const (
	// KeyPrefix is prepended to the team id to build the cache key.
	KeyPrefix = "teamMembersCacheKey"

	DefaultTTL      = time.Hour
	DefaultPageSize = 500

	// FetchTimeout bounds a shared roster fetch, which outlives the request that started it.
	FetchTimeout = time.Minute
)

// Cache keeps team rosters in memory for a fixed time after they were fetched.
type Cache struct {
	source   core.RosterSource
	ttl      time.Duration
	pageSize int

	entries *gocache.Cache
	group   singleflight.Group
}

func New(source core.RosterSource, ttl time.Duration, pageSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Cache{
		source:   source,
		ttl:      ttl,
		pageSize: pageSize,
		entries:  gocache.New(ttl, 10*time.Minute),
	}
}

func Key(teamID string) string {
	return KeyPrefix + teamID
}

// GetRoster returns the members of teamID, fetching and caching them on a miss.
// The returned slice is a copy. A fetch that returns no members is not cached.
func (c *Cache) GetRoster(ctx context.Context, serviceURL, teamID string) ([]core.RosterEntry, error) {
	if teamID == "" {
		return nil, fmt.Errorf("team id cannot be empty")
	}
	key := Key(teamID)
	logger := log.Ctx(ctx).With().Str("team_id", teamID).Logger()

	if cached, ok := c.entries.Get(key); ok {
		obs.RosterCacheRequests.WithLabelValues("hit").Inc()
		return clone(cached.([]core.RosterEntry)), nil
	}
	obs.RosterCacheRequests.WithLabelValues("miss").Inc()

	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FetchTimeout)
		defer cancel()

		members, err := c.fetch(fetchCtx, serviceURL, teamID)
		if err != nil {
			return nil, err
		}
		if len(members) > 0 {
			c.entries.Set(key, members, c.ttl)
			logger.Debug().Int("members", len(members)).Msg("cached team roster")
		} else {
			logger.Warn().Msg("team roster is empty, not caching")
		}
		return members, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]core.RosterEntry)), nil
	}
}

// Invalidate removes the cached roster of teamID.
func (c *Cache) Invalidate(teamID string) {
	c.entries.Delete(Key(teamID))
}

// Flush removes all cached rosters and returns how many there were.
func (c *Cache) Flush() int {
	n := c.entries.ItemCount()
	c.entries.Flush()
	return n
}

// fetch pages through the roster until a page carries no continuation token or no members.
func (c *Cache) fetch(ctx context.Context, serviceURL, teamID string) ([]core.RosterEntry, error) {
	var (
		members      []core.RosterEntry
		continuation string
	)
	for {
		page, err := c.source.GetPagedMembers(ctx, serviceURL, teamID, c.pageSize, continuation)
		if err != nil {
			return nil, fmt.Errorf("fetching team members: %w", err)
		}
		members = append(members, page.Members...)
		continuation = page.ContinuationToken
		if continuation == "" || len(page.Members) == 0 {
			return members, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func clone(entries []core.RosterEntry) []core.RosterEntry {
	out := make([]core.RosterEntry, len(entries))
	copy(out, entries)
	return out
}
