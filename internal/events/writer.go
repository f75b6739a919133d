// Package events appends diagnostic diary entries to the workspace
// database. Downgrades and per-region failures are recorded here instead
// of surfacing as errors.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypeRunStarted      = "run.started"
	TypeRunCompleted    = "run.completed"
	TypeCatalogFallback = "catalog.fallback"
	TypeRegionFailed    = "region.query.failed"
	TypeAccessFallback  = "access.fallback"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event. When tx is nil the writer's own connection is
// used.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, runID, entityID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	exec := w.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	_, err = exec(ctx, `INSERT INTO events(ts,type,run_id,entity_id,payload_json) VALUES (?,?,?,?,?)`,
		ts, evtType, nullable(runID), nullable(entityID), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
