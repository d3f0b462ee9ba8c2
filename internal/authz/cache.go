package authz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionKey = "authz:version"

// Cache memoises engine decisions in Redis. Evaluation is cheap, but
// hot admin surfaces evaluate the same (principal, resource, action)
// triple on every request; the cache keeps that off the critical path
// and collapses concurrent misses through singleflight.
//
// The cache degrades to direct evaluation whenever Redis misbehaves: a
// decision is always returned and never an error.
type Cache struct {
	engine *Engine
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache wraps the engine with a Redis-backed decision cache. A nil
// client yields a pass-through cache.
func NewCache(engine *Engine, client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{engine: engine, client: client, ttl: ttl}
}

// Evaluate returns the cached decision when present, otherwise
// evaluates and stores it.
func (c *Cache) Evaluate(ctx context.Context, p Principal, resource ResourceType, action Action, rctx ResourceContext) Decision {
	if c == nil || c.client == nil {
		return c.engine.Evaluate(p, resource, action, rctx)
	}
	key, err := c.buildKey(ctx, p, resource, action, rctx)
	if err != nil {
		return c.engine.Evaluate(p, resource, action, rctx)
	}

	if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var cached Decision
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached
		}
	}

	value, _, _ := c.group.Do(key, func() (interface{}, error) {
		decision := c.engine.Evaluate(p, resource, action, rctx)
		if raw, err := json.Marshal(decision); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		}
		return decision, nil
	})
	return value.(Decision)
}

// Bump invalidates all cached decisions by incrementing the version
// fragment embedded in every key. Call it after role or matrix
// changes.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *Cache) buildKey(ctx context.Context, p Principal, resource ResourceType, action Action, rctx ResourceContext) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	digest := evaluationDigest(p, resource, action, rctx)
	return fmt.Sprintf("authz:decision:%d:%s", ver, digest), nil
}

// evaluationDigest hashes the evaluation inputs into a stable key.
// Roles and team ids are sorted first so equivalent principals share
// an entry regardless of slice order.
func evaluationDigest(p Principal, resource ResourceType, action Action, rctx ResourceContext) string {
	roles := append([]string(nil), p.Roles...)
	sort.Strings(roles)
	teams := append([]int64(nil), p.TeamIDs...)
	sort.Slice(teams, func(i, j int) bool { return teams[i] < teams[j] })

	var b strings.Builder
	b.WriteString(strconv.FormatInt(p.UserID, 10))
	b.WriteByte('|')
	b.WriteString(strings.Join(roles, ","))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(p.EnterpriseID, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(p.DepartmentID, 10))
	b.WriteByte('|')
	for i, t := range teams {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(t, 10))
	}
	b.WriteByte('|')
	b.WriteString(string(resource))
	b.WriteByte('|')
	b.WriteString(string(action))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(rctx.EnterpriseID, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(rctx.DepartmentID, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(rctx.TeamID, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatBool(rctx.IsOwner))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
