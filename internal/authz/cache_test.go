package authz

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(testEngine(), client, time.Minute), mr
}

func TestCacheEvaluateMatchesEngine(t *testing.T) {
	cache, _ := testCache(t)
	engine := testEngine()
	ctx := context.Background()

	p := Principal{UserID: 1, Roles: []string{RoleDepartmentManager}, EnterpriseID: 1, DepartmentID: 10}
	rctx := ResourceContext{EnterpriseID: 1, DepartmentID: 10}

	want := engine.Evaluate(p, ResourceTeam, ActionCreate, rctx)
	got := cache.Evaluate(ctx, p, ResourceTeam, ActionCreate, rctx)
	if got != want {
		t.Fatalf("cold evaluate diverged: %+v vs %+v", got, want)
	}

	// Second call is served from Redis and must be identical.
	again := cache.Evaluate(ctx, p, ResourceTeam, ActionCreate, rctx)
	if again != want {
		t.Fatalf("cached evaluate diverged: %+v vs %+v", again, want)
	}
}

func TestCacheKeyInsensitiveToRoleOrder(t *testing.T) {
	cache, mr := testCache(t)
	ctx := context.Background()
	rctx := ResourceContext{EnterpriseID: 1}

	a := Principal{UserID: 1, Roles: []string{RoleUser, RoleEnterpriseAdmin}, EnterpriseID: 1, TeamIDs: []int64{2, 1}}
	b := Principal{UserID: 1, Roles: []string{RoleEnterpriseAdmin, RoleUser}, EnterpriseID: 1, TeamIDs: []int64{1, 2}}

	cache.Evaluate(ctx, a, ResourceProject, ActionDelete, rctx)
	keys := mr.Keys()
	cache.Evaluate(ctx, b, ResourceProject, ActionDelete, rctx)
	if got := mr.Keys(); len(got) != len(keys) {
		t.Fatalf("equivalent principals produced distinct keys: %v vs %v", keys, got)
	}
}

func TestCacheBumpInvalidates(t *testing.T) {
	cache, mr := testCache(t)
	ctx := context.Background()

	p := Principal{UserID: 1, Roles: []string{RoleUser}, EnterpriseID: 1}
	rctx := ResourceContext{EnterpriseID: 1}

	d := cache.Evaluate(ctx, p, ResourceProject, ActionRead, rctx)
	if !d.Allowed {
		t.Fatalf("expected allow, got %+v", d)
	}
	before := len(mr.Keys())

	if err := cache.Bump(ctx); err != nil {
		t.Fatalf("bump: %v", err)
	}

	// Same evaluation lands under a fresh versioned key.
	cache.Evaluate(ctx, p, ResourceProject, ActionRead, rctx)
	if after := len(mr.Keys()); after <= before {
		t.Fatalf("expected new key after bump, had %d now %d", before, after)
	}
}

func TestCacheDegradesWhenRedisDown(t *testing.T) {
	cache, mr := testCache(t)
	ctx := context.Background()
	mr.Close()

	p := Principal{UserID: 1, Roles: []string{RoleUser}, EnterpriseID: 1}
	d := cache.Evaluate(ctx, p, ResourceProject, ActionRead, ResourceContext{EnterpriseID: 1})
	if !d.Allowed || d.Reason != ReasonRoleCapability {
		t.Fatalf("degraded evaluate wrong: %+v", d)
	}
}

func TestCacheNilClientPassthrough(t *testing.T) {
	cache := NewCache(testEngine(), nil, time.Minute)
	p := Principal{UserID: 1, Roles: []string{RoleSuperAdmin}}
	d := cache.Evaluate(context.Background(), p, ResourceEnterprise, ActionDelete, ResourceContext{})
	if !d.Allowed || d.Reason != ReasonSuperAdmin {
		t.Fatalf("passthrough evaluate wrong: %+v", d)
	}
}
