package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"modelscout/internal/catalog"
	"modelscout/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r Repo) InsertRun(ctx context.Context, run domain.Run) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO runs(id,region,started_at,completed_at,catalog_source,available_count,catalog_count,gap_count) VALUES (?,?,?,?,?,?,?,?)`,
		run.ID, run.Region, run.StartedAt, run.CompletedAt, run.CatalogSource, run.AvailableCount, run.CatalogCount, run.GapCount)
	return err
}

func (r Repo) GetRun(ctx context.Context, id string) (domain.Run, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,region,started_at,completed_at,catalog_source,available_count,catalog_count,gap_count FROM runs WHERE id=?`, id)
	var run domain.Run
	err := row.Scan(&run.ID, &run.Region, &run.StartedAt, &run.CompletedAt, &run.CatalogSource, &run.AvailableCount, &run.CatalogCount, &run.GapCount)
	if err == sql.ErrNoRows {
		return run, ErrNotFound
	}
	return run, err
}

func (r Repo) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,region,started_at,completed_at,catalog_source,available_count,catalog_count,gap_count FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Run
	for rows.Next() {
		var run domain.Run
		if err := rows.Scan(&run.ID, &run.Region, &run.StartedAt, &run.CompletedAt, &run.CatalogSource, &run.AvailableCount, &run.CatalogCount, &run.GapCount); err != nil {
			return nil, err
		}
		res = append(res, run)
	}
	return res, rows.Err()
}

func (r Repo) ListEvents(ctx context.Context, runID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id,ts,type,COALESCE(run_id,''),COALESCE(entity_id,''),payload_json FROM events`
	var args []any
	if runID != "" {
		query += ` WHERE run_id=?`
		args = append(args, runID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.RunID, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// CatalogCache persists catalog snapshots so a stale copy can serve as a
// fallback tier when the live document is unreachable.
type CatalogCache struct {
	DB  *sql.DB
	Now func() time.Time
}

func (c CatalogCache) Latest(ctx context.Context) (catalog.Snapshot, error) {
	row := c.DB.QueryRowContext(ctx, `SELECT fetched_at,source,descriptors_json FROM catalog_snapshots ORDER BY fetched_at DESC LIMIT 1`)
	var (
		fetchedAt string
		snap      catalog.Snapshot
		raw       string
	)
	err := row.Scan(&fetchedAt, &snap.Source, &raw)
	if err == sql.ErrNoRows {
		return catalog.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return catalog.Snapshot{}, err
	}
	snap.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	if err := json.Unmarshal([]byte(raw), &snap.Descriptors); err != nil {
		return catalog.Snapshot{}, err
	}
	return snap, nil
}

func (c CatalogCache) Save(ctx context.Context, snap catalog.Snapshot) error {
	raw, err := json.Marshal(snap.Descriptors)
	if err != nil {
		return err
	}
	if snap.FetchedAt.IsZero() {
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		snap.FetchedAt = now()
	}
	id := snap.FetchedAt.UTC().Format("20060102T150405.000000000")
	_, err = c.DB.ExecContext(ctx, `INSERT OR REPLACE INTO catalog_snapshots(id,fetched_at,source,descriptors_json) VALUES (?,?,?,?)`,
		id, snap.FetchedAt.UTC().Format(time.RFC3339), snap.Source, string(raw))
	return err
}

func (c CatalogCache) Invalidate(ctx context.Context) error {
	_, err := c.DB.ExecContext(ctx, `DELETE FROM catalog_snapshots`)
	return err
}

var _ catalog.Cache = CatalogCache{}
