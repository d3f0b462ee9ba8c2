package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

// fixedClock steps through the given instants, holding the last one
// once exhausted.
func fixedClock(instants ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		ts := instants[i]
		if i < len(instants)-1 {
			i++
		}
		return ts
	}
}

func testEvent(userID int64, action string, result Result) Event {
	return Event{
		UserID:       userID,
		EnterpriseID: 1,
		Action:       action,
		ResourceType: "Project",
		ResourceID:   "prj-1",
		Result:       result,
	}
}

func TestRecordAssignsIDTimestampAndTier(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil)
	now := mustParse(t, "2026-03-01T10:00:00Z")
	svc.WithNow(fixedClock(now))

	event := testEvent(7, "login", ResultSuccess)
	event.Details = Details{IPAddress: "10.0.0.1", UserAgent: "cli", Extra: map[string]string{"mfa": "true"}}

	entry, err := svc.Record(context.Background(), event)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if entry.ID != 1 {
		t.Fatalf("expected id 1, got %d", entry.ID)
	}
	if !entry.Timestamp.Equal(now) {
		t.Fatalf("expected timestamp %v, got %v", now, entry.Timestamp)
	}
	if entry.RiskTier != RiskMedium {
		t.Fatalf("expected classifier tier medium, got %q", entry.RiskTier)
	}
	if entry.Details.Extra["mfa"] != "true" {
		t.Fatalf("details lost: %+v", entry.Details)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 stored entry, got %d", store.Len())
	}

	// An explicit tier wins over the classifier.
	event.RiskTier = RiskHigh
	entry, err = svc.Record(context.Background(), event)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if entry.ID != 2 || entry.RiskTier != RiskHigh {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestRecordValidation(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)

	bad := []Event{
		{},
		{UserID: 1, Action: "login", ResourceType: "Session", Result: ResultSuccess},
		{UserID: 1, Action: "login", ResourceType: "Session", ResourceID: "s-1", Result: Result("maybe")},
		{UserID: 1, Action: "login", ResourceType: "Session", ResourceID: "s-1", Result: ResultSuccess, RiskTier: RiskTier("extreme")},
	}
	for i, event := range bad {
		if _, err := svc.Record(context.Background(), event); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
	if svc.store.(*MemoryStore).Len() != 0 {
		t.Fatalf("invalid events must not be stored")
	}
}

func TestRecordMonotonicUnderBackwardsClock(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	base := mustParse(t, "2026-03-01T10:00:00Z")
	svc.WithNow(fixedClock(base, base.Add(-time.Minute), base.Add(time.Second)))

	var lastID int64
	lastTS := time.Time{}
	for i := 0; i < 3; i++ {
		entry, err := svc.Record(context.Background(), testEvent(1, "login", ResultSuccess))
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if entry.ID <= lastID {
			t.Fatalf("ids not strictly increasing: %d after %d", entry.ID, lastID)
		}
		if entry.Timestamp.Before(lastTS) {
			t.Fatalf("timestamp went backwards: %v after %v", entry.Timestamp, lastTS)
		}
		lastID, lastTS = entry.ID, entry.Timestamp
	}
}

func TestRecordSeedsFromStore(t *testing.T) {
	store := NewMemoryStore()
	seeded := Entry{
		ID:           41,
		Timestamp:    mustParse(t, "2026-01-01T00:00:00Z"),
		UserID:       1,
		Action:       "login",
		ResourceType: "Session",
		ResourceID:   "s-1",
		Result:       ResultSuccess,
		RiskTier:     RiskMedium,
	}
	if err := store.Append(context.Background(), seeded); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewService(store, nil)
	entry, err := svc.Record(context.Background(), testEvent(2, "logout", ResultSuccess))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if entry.ID != 42 {
		t.Fatalf("expected id 42 after seeding, got %d", entry.ID)
	}
}

func TestQueryOrderingAndPagination(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	base := mustParse(t, "2026-03-01T10:00:00Z")
	svc.WithNow(fixedClock(
		base,
		base.Add(2*time.Minute),
		base.Add(time.Minute),
		base.Add(2*time.Minute),
	))
	for i := 0; i < 4; i++ {
		if _, err := svc.Record(context.Background(), testEvent(1, "login", ResultSuccess)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	result, err := svc.Query(context.Background(), Filter{}, 1, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(result.Entries) != 4 || result.Pagination.Total != 4 {
		t.Fatalf("unexpected result %+v", result.Pagination)
	}
	// Newest first; equal timestamps break ties by id descending. The
	// third record's earlier clock reading was clamped to the second's.
	wantIDs := []int64{4, 3, 2, 1}
	for i, e := range result.Entries {
		if e.ID != wantIDs[i] {
			t.Fatalf("position %d: expected id %d, got %d", i, wantIDs[i], e.ID)
		}
	}

	page2, err := svc.Query(context.Background(), Filter{}, 2, 3)
	if err != nil {
		t.Fatalf("query page 2: %v", err)
	}
	if len(page2.Entries) != 1 || page2.Entries[0].ID != 1 {
		t.Fatalf("unexpected page 2: %+v", page2.Entries)
	}
	if page2.Pagination.TotalPages != 2 || page2.Pagination.HasNext() {
		t.Fatalf("unexpected paging meta %+v", page2.Pagination)
	}

	empty, err := svc.Query(context.Background(), Filter{}, 9, 10)
	if err != nil {
		t.Fatalf("query past end: %v", err)
	}
	if len(empty.Entries) != 0 || empty.Pagination.Total != 4 {
		t.Fatalf("expected empty page with full total, got %+v", empty.Pagination)
	}
}

func TestQueryRejectsBadArguments(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)

	if _, err := svc.Query(context.Background(), Filter{}, 0, 10); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter for page 0, got %v", err)
	}
	if _, err := svc.Query(context.Background(), Filter{}, 1, 0); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter for page size 0, got %v", err)
	}
	inverted := Filter{
		From: mustParse(t, "2026-03-02T00:00:00Z"),
		To:   mustParse(t, "2026-03-01T00:00:00Z"),
	}
	if _, err := svc.Query(context.Background(), inverted, 1, 10); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter for inverted range, got %v", err)
	}
}

func TestQueryFilters(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	base := mustParse(t, "2026-03-01T10:00:00Z")
	svc.WithNow(fixedClock(base, base.Add(time.Hour), base.Add(2*time.Hour)))

	events := []Event{
		testEvent(1, "login", ResultFailure),
		testEvent(2, "delete_project", ResultSuccess),
		testEvent(1, "login", ResultSuccess),
	}
	events[0].Details.IPAddress = "203.0.113.9"
	for i, event := range events {
		if _, err := svc.Record(context.Background(), event); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	byUser, err := svc.Query(context.Background(), Filter{UserID: 1}, 1, 10)
	if err != nil {
		t.Fatalf("query by user: %v", err)
	}
	if len(byUser.Entries) != 2 {
		t.Fatalf("expected 2 entries for user 1, got %d", len(byUser.Entries))
	}

	byTier, err := svc.Query(context.Background(), Filter{RiskTier: RiskHigh}, 1, 10)
	if err != nil {
		t.Fatalf("query by tier: %v", err)
	}
	// Failed login and delete_project both classify high.
	if len(byTier.Entries) != 2 {
		t.Fatalf("expected 2 high entries, got %d", len(byTier.Entries))
	}

	byIP, err := svc.Query(context.Background(), Filter{IPAddress: "203.0.113.9"}, 1, 10)
	if err != nil {
		t.Fatalf("query by ip: %v", err)
	}
	if len(byIP.Entries) != 1 || byIP.Entries[0].ID != 1 {
		t.Fatalf("unexpected ip match: %+v", byIP.Entries)
	}

	windowed, err := svc.Query(context.Background(), Filter{From: base.Add(30 * time.Minute)}, 1, 10)
	if err != nil {
		t.Fatalf("query by window: %v", err)
	}
	if len(windowed.Entries) != 2 {
		t.Fatalf("expected 2 entries in window, got %d", len(windowed.Entries))
	}
}

func TestStats(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	svc.WithNow(fixedClock(mustParse(t, "2026-03-01T10:00:00Z")))

	seed := []struct {
		user   int64
		action string
		result Result
	}{
		{1, "login", ResultSuccess},
		{1, "login", ResultFailure},
		{1, "update_project", ResultSuccess},
		{2, "login", ResultSuccess},
		{2, "delete_project", ResultSuccess},
		{3, "export_data", ResultSuccess},
	}
	for i, s := range seed {
		if _, err := svc.Record(context.Background(), testEvent(s.user, s.action, s.result)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	agg, err := svc.Stats(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if agg.Total != 6 || agg.Success != 5 || agg.Failure != 1 {
		t.Fatalf("unexpected totals %+v", agg)
	}
	if agg.ByRiskTier[RiskMedium] != 3 || agg.ByRiskTier[RiskHigh] != 3 {
		t.Fatalf("unexpected tier counts %+v", agg.ByRiskTier)
	}
	if len(agg.TopActions) != 4 || agg.TopActions[0].Action != "login" || agg.TopActions[0].Count != 3 {
		t.Fatalf("unexpected top actions %+v", agg.TopActions)
	}
	// Ties rank lexically.
	if agg.TopActions[1].Action != "delete_project" {
		t.Fatalf("unexpected tie order %+v", agg.TopActions)
	}
	if len(agg.TopUsers) != 3 || agg.TopUsers[0].UserID != 1 || agg.TopUsers[0].Count != 3 {
		t.Fatalf("unexpected top users %+v", agg.TopUsers)
	}
	// User count ties rank by id ascending.
	if agg.TopUsers[1].UserID != 2 {
		t.Fatalf("unexpected user tie order %+v", agg.TopUsers)
	}
}

func TestSweepRespectsTierWindows(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil)
	now := mustParse(t, "2026-06-01T00:00:00Z")

	stamp := func(id int64, tier RiskTier, age int) Entry {
		return Entry{
			ID:           id,
			Timestamp:    now.AddDate(0, 0, -age),
			UserID:       1,
			Action:       "login",
			ResourceType: "Session",
			ResourceID:   "s-1",
			Result:       ResultSuccess,
			RiskTier:     tier,
		}
	}
	entries := []Entry{
		stamp(1, RiskLow, 91),     // past the 90 day window
		stamp(2, RiskLow, 90),     // exactly at the boundary: deleted
		stamp(3, RiskLow, 89),     // inside the window
		stamp(4, RiskMedium, 181), // past 180 days
		stamp(5, RiskMedium, 179),
		stamp(6, RiskHigh, 366), // past 365 days
		stamp(7, RiskHigh, 364),
	}
	for _, e := range entries {
		if err := store.Append(context.Background(), e); err != nil {
			t.Fatalf("seed %d: %v", e.ID, err)
		}
	}

	svc.WithNow(fixedClock(now))
	result, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Deleted[RiskLow] != 2 || result.Deleted[RiskMedium] != 1 || result.Deleted[RiskHigh] != 1 {
		t.Fatalf("unexpected deletions %+v", result.Deleted)
	}
	if result.Total() != 4 {
		t.Fatalf("expected 4 total deletions, got %d", result.Total())
	}

	remaining, err := svc.Query(context.Background(), Filter{}, 1, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	wantIDs := map[int64]bool{3: true, 5: true, 7: true}
	if len(remaining.Entries) != len(wantIDs) {
		t.Fatalf("expected %d survivors, got %d", len(wantIDs), len(remaining.Entries))
	}
	for _, e := range remaining.Entries {
		if !wantIDs[e.ID] {
			t.Fatalf("entry %d should have been swept", e.ID)
		}
	}
}
