package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Pizzaface/PizzaPi-sub003/internal/database"
)

// SQLiteStore implements Store on a shared SQLite file. Several relay
// processes on one host can point at the same file; SQLite's write lock makes
// every statement below atomic.
type SQLiteStore struct {
	db  *database.DB
	now func() time.Time
}

// OpenSQLiteStore opens (and migrates) the database at path.
func OpenSQLiteStore(path string, now func() time.Time) (*SQLiteStore, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(db, now), nil
}

// NewSQLiteStore wraps an already-open database.
func NewSQLiteStore(db *database.DB, now func() time.Time) *SQLiteStore {
	if now == nil {
		now = time.Now
	}
	return &SQLiteStore{db: db, now: now}
}

func (s *SQLiteStore) nowMillis() int64 { return s.now().UnixMilli() }

func (s *SQLiteStore) expiryFor(ttl time.Duration) sql.NullInt64 {
	if ttl <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: s.now().Add(ttl).UnixMilli(), Valid: true}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM directory_kv WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, s.nowMillis(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	return value, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO directory_kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, s.expiryFor(ttl),
	)
	if err != nil {
		return unavailable("put", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM directory_kv WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, s.nowMillis(),
	)
	if err != nil {
		return false, unavailable("delete", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("delete", err)
	}
	// Drop an expired leftover too so the key is really gone.
	if rows == 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM directory_kv WHERE key = ?`, key); err != nil {
			return false, unavailable("delete", err)
		}
	}
	return rows > 0, nil
}

func (s *SQLiteStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, 1)
}

func (s *SQLiteStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	now := s.nowMillis()
	initial := strconv.FormatInt(delta, 10)
	var raw string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO directory_kv (key, value, expires_at) VALUES (?, ?, NULL)
		 ON CONFLICT(key) DO UPDATE SET
		   value = CASE
		     WHEN expires_at IS NOT NULL AND expires_at <= ? THEN ?
		     ELSE CAST(CAST(value AS INTEGER) + ? AS TEXT)
		   END,
		   expires_at = CASE
		     WHEN expires_at IS NOT NULL AND expires_at <= ? THEN NULL
		     ELSE expires_at
		   END
		 RETURNING CAST(value AS TEXT)`,
		key, initial, now, initial, delta, now,
	).Scan(&raw)
	if err != nil {
		return 0, unavailable("incr", err)
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (s *SQLiteStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE directory_kv SET expires_at = ? WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		s.expiryFor(ttl), key, s.nowMillis(),
	)
	if err != nil {
		return false, unavailable("expire", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("expire", err)
	}
	return rows > 0, nil
}

func (s *SQLiteStore) Scan(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM directory_kv
		 WHERE key LIKE ? ESCAPE '\' AND (expires_at IS NULL OR expires_at > ?)`,
		escapeLike(prefix)+"%", s.nowMillis(),
	)
	if err != nil {
		return nil, unavailable("scan", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, unavailable("scan", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("scan", err)
	}
	return keys, nil
}

// PurgeExpired removes rows whose ttl has passed. Reads already ignore them;
// this only reclaims space.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM directory_kv WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.nowMillis())
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
