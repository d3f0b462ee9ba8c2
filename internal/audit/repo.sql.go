package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateID indicates an append reusing an already-assigned id.
var ErrDuplicateID = errors.New("audit: duplicate entry id")

// PostgresStore persists audit entries in the audit_entries table.
//
//	CREATE TABLE audit_entries (
//	    id            BIGINT PRIMARY KEY,
//	    occurred_at   TIMESTAMPTZ NOT NULL,
//	    user_id       BIGINT NOT NULL,
//	    enterprise_id BIGINT NOT NULL DEFAULT 0,
//	    action        TEXT NOT NULL,
//	    resource_type TEXT NOT NULL,
//	    resource_id   TEXT NOT NULL,
//	    ip_address    TEXT NOT NULL DEFAULT '',
//	    user_agent    TEXT NOT NULL DEFAULT '',
//	    extra         JSONB,
//	    result        TEXT NOT NULL,
//	    risk_tier     TEXT NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a store backed by the provided pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Append inserts a finalised entry.
func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	var extra []byte
	if len(entry.Details.Extra) > 0 {
		raw, err := json.Marshal(entry.Details.Extra)
		if err != nil {
			return err
		}
		extra = raw
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_entries (
			id, occurred_at, user_id, enterprise_id, action,
			resource_type, resource_id, ip_address, user_agent,
			extra, result, risk_tier
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		entry.ID, entry.Timestamp, entry.UserID, entry.EnterpriseID, entry.Action,
		entry.ResourceType, entry.ResourceID, entry.Details.IPAddress, entry.Details.UserAgent,
		extra, string(entry.Result), string(entry.RiskTier),
	)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

// Select returns entries matching the filter.
func (s *PostgresStore) Select(ctx context.Context, filter Filter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.UserID != 0 {
		clauses = append(clauses, "user_id = "+arg(filter.UserID))
	}
	if filter.EnterpriseID != 0 {
		clauses = append(clauses, "enterprise_id = "+arg(filter.EnterpriseID))
	}
	if filter.Action != "" {
		clauses = append(clauses, "action = "+arg(filter.Action))
	}
	if filter.ResourceType != "" {
		clauses = append(clauses, "resource_type = "+arg(filter.ResourceType))
	}
	if filter.ResourceID != "" {
		clauses = append(clauses, "resource_id = "+arg(filter.ResourceID))
	}
	if filter.Result != "" {
		clauses = append(clauses, "result = "+arg(string(filter.Result)))
	}
	if filter.RiskTier != "" {
		clauses = append(clauses, "risk_tier = "+arg(string(filter.RiskTier)))
	}
	if filter.IPAddress != "" {
		clauses = append(clauses, "ip_address = "+arg(filter.IPAddress))
	}
	if !filter.From.IsZero() {
		clauses = append(clauses, "occurred_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		clauses = append(clauses, "occurred_at <= "+arg(filter.To))
	}

	query := `
		SELECT id, occurred_at, user_id, enterprise_id, action,
		       resource_type, resource_id, ip_address, user_agent,
		       extra, result, risk_tier
		FROM audit_entries`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: select: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e      Entry
			extra  []byte
			result string
			tier   string
		)
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.UserID, &e.EnterpriseID, &e.Action,
			&e.ResourceType, &e.ResourceID, &e.Details.IPAddress, &e.Details.UserAgent,
			&extra, &result, &tier,
		); err != nil {
			return nil, err
		}
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &e.Details.Extra); err != nil {
				return nil, err
			}
		}
		e.Result = Result(result)
		e.RiskTier = RiskTier(tier)
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MaxID returns the highest assigned id, zero when the log is empty.
func (s *PostgresStore) MaxID(ctx context.Context) (int64, error) {
	var max int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM audit_entries`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("audit: max id: %w", err)
	}
	return max, nil
}

// DeleteOlderThan bulk-deletes expired entries of a tier. Cost is
// proportional to the expired set, not the full log.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, tier RiskTier, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM audit_entries WHERE risk_tier = $1 AND occurred_at <= $2`,
		string(tier), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("audit: delete older than: %w", err)
	}
	return tag.RowsAffected(), nil
}
