package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/okian/ffnsync/internal/domain/model"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS swim_records (
	id           TEXT PRIMARY KEY,
	athlete_id   TEXT NOT NULL,
	event_name   TEXT NOT NULL,
	pool_length  INTEGER NOT NULL,
	time_seconds REAL,
	record_date  TEXT,
	ffn_points   INTEGER,
	record_type  TEXT NOT NULL,
	notes        TEXT,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	UNIQUE (athlete_id, event_name, pool_length)
);
CREATE INDEX IF NOT EXISTS idx_swim_records_athlete ON swim_records (athlete_id);
CREATE TABLE IF NOT EXISTS athletes (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	iuf            TEXT NOT NULL,
	last_synced_at TEXT
);
`

const recordColumns = `id, athlete_id, event_name, pool_length, time_seconds, record_date, ffn_points, record_type, notes, created_at, updated_at`

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	opts    options
	updater metricsUpdater
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates the schema. Use MemoryDSN for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{path: path, opts: defaultOptions()}
	for _, opt := range opts {
		opt(&s.opts)
	}

	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == MemoryDSN {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s.db = db
	s.updater.start(ctx, s.opts.metricsUpdateInterval, s.Count)
	return s, nil
}

func (s *SQLiteStore) FindRecord(ctx context.Context, athleteID, eventName string, poolLength int) (rec *model.StoredRecord, err error) {
	defer func(start time.Time) { observe("find", start, err) }(time.Now())

	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM swim_records WHERE athlete_id = ? AND event_name = ? AND pool_length = ?`,
		athleteID, eventName, poolLength)
	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) InsertRecord(ctx context.Context, rec *model.StoredRecord) (err error) {
	defer func(start time.Time) { observe("insert", start, err) }(time.Now())
	if err := validateRecord(rec); err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := s.opts.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO swim_records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AthleteID, rec.EventName, rec.PoolLength,
		nullFloat(rec.TimeSeconds), nullString(rec.RecordDate), nullInt(rec.FFNPoints),
		rec.RecordType, nullString(rec.Notes),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if isConstraint(err) {
		return fmt.Errorf("%w: %s %s", ErrDuplicate, rec.AthleteID, rec.Key())
	}
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateRecord(ctx context.Context, id string, fields model.RecordUpdate) (err error) {
	defer func(start time.Time) { observe("update", start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx,
		`UPDATE swim_records
		 SET time_seconds = ?, record_date = ?, ffn_points = ?, record_type = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		fields.TimeSeconds, nullString(fields.RecordDate), nullInt(fields.FFNPoints),
		fields.RecordType, nullString(fields.Notes), formatTime(s.opts.now()), id)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, athleteID string) (out []model.StoredRecord, err error) {
	defer func(start time.Time) { observe("list", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM swim_records WHERE athlete_id = ? ORDER BY pool_length, event_name`,
		athleteID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out = make([]model.StoredRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) UpsertAthlete(ctx context.Context, a model.Athlete) (err error) {
	defer func(start time.Time) { observe("upsert_athlete", start, err) }(time.Now())
	if err := validateAthlete(a); err != nil {
		return err
	}

	var synced sql.NullString
	if a.LastSyncedAt != nil {
		synced = sql.NullString{String: formatTime(*a.LastSyncedAt), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO athletes (id, name, iuf, last_synced_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE athletes.name END,
			iuf = excluded.iuf,
			last_synced_at = COALESCE(excluded.last_synced_at, athletes.last_synced_at)`,
		a.ID, a.Name, a.IUF, synced)
	if err != nil {
		return fmt.Errorf("upsert athlete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAthletes(ctx context.Context) ([]model.Athlete, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, iuf, last_synced_at FROM athletes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list athletes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Athlete, 0)
	for rows.Next() {
		var a model.Athlete
		var synced sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.IUF, &synced); err != nil {
			return nil, fmt.Errorf("list athletes: %w", err)
		}
		if synced.Valid {
			t, err := parseTime(synced.String)
			if err != nil {
				return nil, fmt.Errorf("list athletes: %w", err)
			}
			a.LastSyncedAt = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM swim_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Close stops the metrics updater and closes the database.
func (s *SQLiteStore) Close() error {
	s.updater.stop()
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.StoredRecord, error) {
	var (
		rec                  model.StoredRecord
		timeSeconds          sql.NullFloat64
		recordDate, notes    sql.NullString
		points               sql.NullInt64
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.AthleteID, &rec.EventName, &rec.PoolLength,
		&timeSeconds, &recordDate, &points, &rec.RecordType, &notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if timeSeconds.Valid {
		v := timeSeconds.Float64
		rec.TimeSeconds = &v
	}
	if recordDate.Valid {
		v := recordDate.String
		rec.RecordDate = &v
	}
	if points.Valid {
		v := int(points.Int64)
		rec.FFNPoints = &v
	}
	if notes.Valid {
		v := notes.String
		rec.Notes = &v
	}
	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
