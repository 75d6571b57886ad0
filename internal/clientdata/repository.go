// Package clientdata is the persistent response cache shared by the market
// data and FX clients. Entries are JSON blobs with an expiry; expired entries
// are still readable so a client can fall back to them when its upstream is
// down.
package clientdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Entry is a cached payload and the moment it stops being fresh
type Entry struct {
	Data      json.RawMessage
	ExpiresAt time.Time
}

// FreshAt reports whether the entry has not yet expired at t
func (e *Entry) FreshAt(t time.Time) bool {
	return e != nil && t.Before(e.ExpiresAt)
}

// Decode unmarshals the payload into dest
func (e *Entry) Decode(dest interface{}) error {
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return fmt.Errorf("failed to decode cached entry: %w", err)
	}
	return nil
}

// Repository reads and writes client_data.db
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a repository over an open client_data connection
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithClock replaces the time source used for expiry
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// Now returns the repository's current time
func (r *Repository) Now() time.Time {
	return r.now()
}

// Put stores value under key with the table's TTL, replacing any previous entry
func (r *Repository) Put(ctx context.Context, t Table, key string, value interface{}) error {
	return r.PutWithTTL(ctx, t, key, value, t.TTL)
}

// PutWithTTL stores value under key, expiring ttl from now
func (r *Repository) PutWithTTL(ctx context.Context, t Table, key string, value interface{}, ttl time.Duration) error {
	if !t.known() {
		return fmt.Errorf("unknown cache table %q", t.Name)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", t.Name, key, err)
	}

	q := "INSERT INTO " + t.Name + " (" + t.KeyColumn + ", data, expires_at) VALUES (?, ?, ?) " +
		"ON CONFLICT(" + t.KeyColumn + ") DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at"
	if _, err := r.db.ExecContext(ctx, q, key, string(payload), r.now().Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", t.Name, key, err)
	}
	return nil
}

// Lookup returns the entry for key whether or not it has expired, or nil when absent
func (r *Repository) Lookup(ctx context.Context, t Table, key string) (*Entry, error) {
	if !t.known() {
		return nil, fmt.Errorf("unknown cache table %q", t.Name)
	}

	var (
		data      string
		expiresAt int64
	)
	q := "SELECT data, expires_at FROM " + t.Name + " WHERE " + t.KeyColumn + " = ?"
	err := r.db.QueryRowContext(ctx, q, key).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", t.Name, key, err)
	}
	return &Entry{Data: json.RawMessage(data), ExpiresAt: time.Unix(expiresAt, 0)}, nil
}

// Fresh decodes the entry for key into dest only if it has not expired.
// The boolean is false on a miss, an expired entry or a corrupt payload.
func (r *Repository) Fresh(ctx context.Context, t Table, key string, dest interface{}) bool {
	e, err := r.Lookup(ctx, t, key)
	if err != nil || !e.FreshAt(r.now()) {
		return false
	}
	return e.Decode(dest) == nil
}

// Stale decodes the entry for key into dest regardless of expiry
func (r *Repository) Stale(ctx context.Context, t Table, key string, dest interface{}) bool {
	e, err := r.Lookup(ctx, t, key)
	if err != nil || e == nil {
		return false
	}
	return e.Decode(dest) == nil
}

// Remove deletes the entry for key
func (r *Repository) Remove(ctx context.Context, t Table, key string) error {
	if !t.known() {
		return fmt.Errorf("unknown cache table %q", t.Name)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM "+t.Name+" WHERE "+t.KeyColumn+" = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", t.Name, key, err)
	}
	return nil
}

// Purge deletes the expired entries of one table and returns how many went
func (r *Repository) Purge(ctx context.Context, t Table) (int64, error) {
	if !t.known() {
		return 0, fmt.Errorf("unknown cache table %q", t.Name)
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+t.Name+" WHERE expires_at <= ?", r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s: %w", t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged rows in %s: %w", t.Name, err)
	}
	return n, nil
}

// PurgeReport is the outcome of purging every table
type PurgeReport struct {
	Deleted map[string]int64
	Total   int64
}

// PurgeAll purges every table. It stops at the first failing table and
// returns what was purged up to that point.
func (r *Repository) PurgeAll(ctx context.Context) (PurgeReport, error) {
	report := PurgeReport{Deleted: make(map[string]int64, len(Tables))}
	for _, t := range Tables {
		n, err := r.Purge(ctx, t)
		if err != nil {
			return report, err
		}
		report.Deleted[t.Name] = n
		report.Total += n
	}
	return report, nil
}

// Count returns the number of entries per table, expired ones included
func (r *Repository) Count(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(Tables))
	for _, t := range Tables {
		var n int64
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.Name).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", t.Name, err)
		}
		counts[t.Name] = n
	}
	return counts, nil
}
