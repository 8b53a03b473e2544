package installations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/rs/zerolog"
)

const (
	cacheKeyPrefix = "manabi::installations::v1"

	// DefaultCacheTTL bounds the staleness of memoized lookups in
	// multi-process deployments, where invalidations aren't shared.
	DefaultCacheTTL = 10 * time.Minute
)

var errNotMemoized = errors.New("not found, so not memoized")

// CacheableStore is a memoizing decorator of another [Store]. It serves repeated
// lookups of the same workspace (i.e. every incoming Slack request) from memory.
// Misses are not memoized, and every write invalidates the keys it affects.
type CacheableStore struct {
	base  Store
	cache repositorycache.CacheService
}

// NewCacheableStore wraps the given store with an in-memory cache.
func NewCacheableStore(base Store, ttl time.Duration) (*CacheableStore, error) {
	if base == nil {
		return nil, errors.New("base installation store is required")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	cfg := repositorycache.DefaultConfig()
	cfg.TTL = ttl
	c, err := repositorycache.NewCacheService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize installation cache: %w", err)
	}

	return &CacheableStore{base: base, cache: c}, nil
}

// cacheKey returns a deterministic key: <prefix>::<kind>::<enterprise>::<team>[::<user>],
// with each segment URL-path escaped after normalization.
func cacheKey(kind, enterpriseID, teamID string, isEnterpriseInstall bool, userID ...string) string {
	e, t := teamKey(enterpriseID, teamID, isEnterpriseInstall)
	segments := append([]string{kind, e, t}, userID...)
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(append([]string{cacheKeyPrefix}, segments...), "::")
}

func (s *CacheableStore) Save(ctx context.Context, i *Installation) error {
	if err := s.base.Save(ctx, i); err != nil {
		return err
	}

	return s.invalidate(ctx,
		cacheKey("bot", i.EnterpriseID, i.TeamID, i.IsEnterpriseInstall),
		cacheKey("installation", i.EnterpriseID, i.TeamID, i.IsEnterpriseInstall, ""),
		cacheKey("installation", i.EnterpriseID, i.TeamID, i.IsEnterpriseInstall, i.UserID),
	)
}

func (s *CacheableStore) FindBot(ctx context.Context, enterpriseID, teamID string, isEnterpriseInstall bool) (*Bot, error) {
	missing := false
	key := cacheKey("bot", enterpriseID, teamID, isEnterpriseInstall)
	b, err := repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (*Bot, error) {
		b, err := s.base.FindBot(ctx, enterpriseID, teamID, isEnterpriseInstall)
		if err == nil && b == nil {
			missing = true
			return nil, errNotMemoized
		}
		return b, err
	})
	if missing || errors.Is(err, errNotMemoized) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b2 := *b
	b2.BotScopes = slices.Clone(b.BotScopes)
	return &b2, nil
}

func (s *CacheableStore) FindInstallation(ctx context.Context, enterpriseID, teamID, userID string, isEnterpriseInstall bool) (*Installation, error) {
	missing := false
	key := cacheKey("installation", enterpriseID, teamID, isEnterpriseInstall, userID)
	i, err := repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (*Installation, error) {
		i, err := s.base.FindInstallation(ctx, enterpriseID, teamID, userID, isEnterpriseInstall)
		if err == nil && i == nil {
			missing = true
			return nil, errNotMemoized
		}
		return i, err
	})
	if missing || errors.Is(err, errNotMemoized) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	i2 := *i
	i2.BotScopes = slices.Clone(i.BotScopes)
	i2.UserScopes = slices.Clone(i.UserScopes)
	return &i2, nil
}

func (s *CacheableStore) DeleteBot(ctx context.Context, enterpriseID, teamID string) error {
	if err := s.base.DeleteBot(ctx, enterpriseID, teamID); err != nil {
		return err
	}

	// Memoized installations embed the bot token too.
	return s.invalidateTeam(ctx, enterpriseID, teamID)
}

func (s *CacheableStore) DeleteInstallation(ctx context.Context, enterpriseID, teamID, userID string) error {
	if err := s.base.DeleteInstallation(ctx, enterpriseID, teamID, userID); err != nil {
		return err
	}

	// The team's latest installation, and therefore its bot, may change.
	return s.invalidateTeam(ctx, enterpriseID, teamID)
}

// invalidateTeam drops every memoized bot and installation of a workspace,
// for all users. Deletions don't specify whether the installation is
// org-wide, so both variants are dropped.
func (s *CacheableStore) invalidateTeam(ctx context.Context, enterpriseID, teamID string) error {
	for _, isOrg := range []bool{false, true} {
		_ = s.invalidate(ctx, cacheKey("bot", enterpriseID, teamID, isOrg))

		prefix := cacheKey("installation", enterpriseID, teamID, isOrg) + "::"
		if err := s.cache.DeleteByPrefix(ctx, prefix); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("cache_key_prefix", prefix).Msg("failed to invalidate cached installations")
		}
	}
	return nil
}

// invalidate never fails the write that triggered it: the base store is
// the source of truth, and the worst case is a stale read until the TTL.
func (s *CacheableStore) invalidate(ctx context.Context, keys ...string) error {
	for _, k := range slices.Compact(keys) {
		if err := s.cache.Delete(ctx, k); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("cache_key", k).Msg("failed to invalidate cached installation")
		}
	}
	return nil
}
