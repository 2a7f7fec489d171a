package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GrahamLi/TDDC/internal/model"
)

// Postgres stores snapshots in a single table keyed by
// (security, sca_date), brackets serialized as JSONB. Upserts make Put
// an idempotent overwrite; the row swap is atomic so readers never see
// a partial record.
type Postgres struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

var _ Store = (*Postgres)(nil)

const snapshotsSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	security     TEXT        NOT NULL,
	sca_date     DATE        NOT NULL,
	total_shares BIGINT      NOT NULL,
	brackets     JSONB       NOT NULL,
	fetched_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (security, sca_date)
)`

const noDataSchema = `
CREATE TABLE IF NOT EXISTS no_data (
	security TEXT        NOT NULL,
	sca_date DATE        NOT NULL,
	noted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (security, sca_date)
)`

// NewPostgres returns a Postgres-backed store on the given pool and
// creates its tables if they do not exist.
func NewPostgres(ctx context.Context, db *pgxpool.Pool, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(ctx, snapshotsSchema); err != nil {
		return nil, fmt.Errorf("ensure snapshots table: %w", err)
	}
	if _, err := db.Exec(ctx, noDataSchema); err != nil {
		return nil, fmt.Errorf("ensure no_data table: %w", err)
	}
	return &Postgres{db: db, logger: logger}, nil
}

// Put implements Store.
func (s *Postgres) Put(ctx context.Context, snapshot *model.OwnershipSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid snapshot: %w", err)
	}

	brackets, err := json.Marshal(snapshot.Brackets)
	if err != nil {
		return fmt.Errorf("encode brackets: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO snapshots (security, sca_date, total_shares, brackets)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (security, sca_date)
		DO UPDATE SET total_shares = EXCLUDED.total_shares,
		              brackets     = EXCLUDED.brackets,
		              fetched_at   = now()`,
		string(snapshot.Security), snapshot.Date.String(), snapshot.TotalShares, brackets,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	// A late publication supersedes any earlier no-data marker.
	_, err = s.db.Exec(ctx, `
		DELETE FROM no_data
		WHERE security = $1 AND sca_date = $2`,
		string(snapshot.Security), snapshot.Date.String(),
	)
	if err != nil {
		return fmt.Errorf("clear no-data marker: %w", err)
	}

	s.logger.Debug("snapshot stored",
		"security", snapshot.Security,
		"date", snapshot.Date.String(),
		"brackets", len(snapshot.Brackets),
	)
	return nil
}

// Get implements Store.
func (s *Postgres) Get(ctx context.Context, security model.SecurityID, date model.Date) (*model.OwnershipSnapshot, error) {
	var (
		totalShares int64
		brackets    []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT total_shares, brackets
		FROM snapshots
		WHERE security = $1 AND sca_date = $2`,
		string(security), date.String(),
	).Scan(&totalShares, &brackets)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	snapshot := model.OwnershipSnapshot{
		Security:    security,
		Date:        date,
		TotalShares: totalShares,
	}
	if err := json.Unmarshal(brackets, &snapshot.Brackets); err != nil {
		return nil, &CorruptRecordError{Security: security, Date: date, Err: err}
	}
	if err := snapshot.Validate(); err != nil {
		return nil, &CorruptRecordError{Security: security, Date: date, Err: err}
	}
	return &snapshot, nil
}

// Exists implements Store.
func (s *Postgres) Exists(ctx context.Context, security model.SecurityID, date model.Date) (bool, error) {
	var one int
	err := s.db.QueryRow(ctx, `
		SELECT 1 FROM snapshots
		WHERE security = $1 AND sca_date = $2`,
		string(security), date.String(),
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query snapshot existence: %w", err)
	}
	return true, nil
}

// ListDates implements Store.
func (s *Postgres) ListDates(ctx context.Context, security model.SecurityID) ([]model.Date, error) {
	rows, err := s.db.Query(ctx, `
		SELECT sca_date::text FROM snapshots
		WHERE security = $1
		ORDER BY sca_date`,
		string(security),
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshot dates: %w", err)
	}
	defer rows.Close()

	dates := []model.Date{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan snapshot date: %w", err)
		}
		date, err := model.ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("stored date %q: %w", raw, err)
		}
		dates = append(dates, date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshot dates: %w", err)
	}
	return dates, nil
}

// MarkNoData implements Store.
func (s *Postgres) MarkNoData(ctx context.Context, security model.SecurityID, date model.Date) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO no_data (security, sca_date)
		VALUES ($1, $2)
		ON CONFLICT (security, sca_date) DO NOTHING`,
		string(security), date.String(),
	)
	if err != nil {
		return fmt.Errorf("mark no data: %w", err)
	}
	return nil
}

// HasNoData implements Store.
func (s *Postgres) HasNoData(ctx context.Context, security model.SecurityID, date model.Date) (bool, error) {
	var one int
	err := s.db.QueryRow(ctx, `
		SELECT 1 FROM no_data
		WHERE security = $1 AND sca_date = $2`,
		string(security), date.String(),
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query no-data marker: %w", err)
	}
	return true, nil
}
