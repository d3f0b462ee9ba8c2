package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/praetor-io/praetor/internal/shared"
)

// Event is the caller-supplied input to Record. Risk tier is optional;
// when empty the classifier assigns it.
type Event struct {
	UserID       int64 `validate:"required"`
	EnterpriseID int64
	Action       string   `validate:"required"`
	ResourceType string   `validate:"required"`
	ResourceID   string   `validate:"required"`
	Result       Result   `validate:"required,oneof=success failure"`
	RiskTier     RiskTier `validate:"omitempty,oneof=low medium high"`
	Details      Details
}

// QueryResult bundles one page of entries with paging metadata.
type QueryResult struct {
	Entries    []Entry
	Pagination shared.Pagination
}

// ActionCount is one row of the top-actions aggregate.
type ActionCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// UserCount is one row of the top-users aggregate.
type UserCount struct {
	UserID int64 `json:"user_id"`
	Count  int   `json:"count"`
}

// Aggregate summarises a filtered entry set.
type Aggregate struct {
	Total      int              `json:"total"`
	Success    int              `json:"success"`
	Failure    int              `json:"failure"`
	ByRiskTier map[RiskTier]int `json:"by_risk_tier"`
	TopActions []ActionCount    `json:"top_actions"`
	TopUsers   []UserCount      `json:"top_users"`
}

// SweepResult reports per-tier deletion counts of a retention sweep.
type SweepResult struct {
	Deleted map[RiskTier]int64
}

// Total sums deletions across tiers.
func (r SweepResult) Total() int64 {
	var n int64
	for _, c := range r.Deleted {
		n += c
	}
	return n
}

const statsTopN = 5

// Service is the audit pipeline. The backing store is the only shared
// mutable state; id and timestamp assignment is serialised so ids are
// strictly increasing and timestamps never go backwards.
type Service struct {
	store    Store
	policy   RetentionPolicy
	validate *validator.Validate
	now      func() time.Time

	mu     sync.Mutex
	seeded bool
	lastID int64
	lastTS time.Time
}

// NewService constructs the pipeline over a store. A nil policy falls
// back to the default retention windows.
func NewService(store Store, policy RetentionPolicy) *Service {
	if policy == nil {
		policy = DefaultRetentionPolicy()
	}
	return &Service{
		store:    store,
		policy:   policy,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Record validates the event, assigns id, timestamp, and risk tier,
// and appends the finalised entry. The returned entry is immutable.
func (s *Service) Record(ctx context.Context, event Event) (Entry, error) {
	if err := s.validate.Struct(event); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	tier := event.RiskTier
	if tier == "" {
		tier = Classify(event.Action, event.Result)
	}

	id, ts, err := s.nextSlot(ctx)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		ID:           id,
		Timestamp:    ts,
		UserID:       event.UserID,
		EnterpriseID: event.EnterpriseID,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Details:      event.Details,
		Result:       event.Result,
		RiskTier:     tier,
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("audit: append: %w", err)
	}
	return entry, nil
}

// nextSlot hands out the next id together with a non-decreasing
// timestamp. Serialising both under one lock upholds the ordering
// invariant under concurrent writers.
func (s *Service) nextSlot(ctx context.Context) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seeded {
		maxID, err := s.store.MaxID(ctx)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("audit: seed id counter: %w", err)
		}
		s.lastID = maxID
		s.seeded = true
	}
	s.lastID++
	ts := s.now().UTC()
	if ts.Before(s.lastTS) {
		ts = s.lastTS
	}
	s.lastTS = ts
	return s.lastID, ts, nil
}

// Query returns one page of matching entries, newest first (timestamp
// descending, ties broken by id descending), plus the unpaginated
// total.
func (s *Service) Query(ctx context.Context, filter Filter, page, pageSize int) (QueryResult, error) {
	if page <= 0 || pageSize <= 0 {
		return QueryResult{}, fmt.Errorf("%w: page and page size must be positive", ErrInvalidFilter)
	}
	if err := filter.Validate(); err != nil {
		return QueryResult{}, err
	}
	entries, err := s.snapshot(ctx, filter)
	if err != nil {
		return QueryResult{}, err
	}
	total := len(entries)
	offset := (page - 1) * pageSize
	if offset > total {
		offset = total
	}
	end := offset + pageSize
	if end > total {
		end = total
	}
	return QueryResult{
		Entries:    entries[offset:end],
		Pagination: shared.NewPagination(page, pageSize, total),
	}, nil
}

// Stats aggregates the same filtered set Query would return, without
// pagination.
func (s *Service) Stats(ctx context.Context, filter Filter) (Aggregate, error) {
	if err := filter.Validate(); err != nil {
		return Aggregate{}, err
	}
	entries, err := s.snapshot(ctx, filter)
	if err != nil {
		return Aggregate{}, err
	}

	agg := Aggregate{
		Total:      len(entries),
		ByRiskTier: make(map[RiskTier]int, 3),
	}
	actions := make(map[string]int)
	users := make(map[int64]int)
	for _, e := range entries {
		switch e.Result {
		case ResultSuccess:
			agg.Success++
		case ResultFailure:
			agg.Failure++
		}
		agg.ByRiskTier[e.RiskTier]++
		actions[e.Action]++
		users[e.UserID]++
	}
	agg.TopActions = topActions(actions, statsTopN)
	agg.TopUsers = topUsers(users, statsTopN)
	return agg, nil
}

// Sweep deletes, per tier, every entry older than its retention
// window. New records are always younger than any cutoff, so the sweep
// never contends with Record beyond the store's own locking.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now().UTC()
	result := SweepResult{Deleted: make(map[RiskTier]int64, 3)}
	for _, tier := range Tiers() {
		cutoff := s.policy.Cutoff(tier, now)
		if cutoff.IsZero() {
			continue
		}
		deleted, err := s.store.DeleteOlderThan(ctx, tier, cutoff)
		if err != nil {
			return result, fmt.Errorf("audit: sweep %s: %w", tier, err)
		}
		result.Deleted[tier] = deleted
	}
	return result, nil
}

// snapshot selects and orders the filtered set newest first.
func (s *Service) snapshot(ctx context.Context, filter Filter) ([]Entry, error) {
	entries, err := s.store.Select(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("audit: select: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

func topActions(counts map[string]int, n int) []ActionCount {
	out := make([]ActionCount, 0, len(counts))
	for action, count := range counts {
		out = append(out, ActionCount{Action: action, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Action < out[j].Action
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func topUsers(counts map[int64]int, n int) []UserCount {
	out := make([]UserCount, 0, len(counts))
	for user, count := range counts {
		out = append(out, UserCount{UserID: user, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
