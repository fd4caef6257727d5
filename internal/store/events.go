package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Closed set of event types (spec.md §6.2).
const (
	EventTaskCreated             = "task_created"
	EventTaskUpdated             = "task_updated"
	EventTaskDeleted             = "task_deleted"
	EventFeedbackReceived        = "feedback_received"
	EventCodebaseAnalyzed        = "codebase_analyzed"
	EventDecisionMade            = "decision_made"
	EventGuardianIntervention    = "guardian_intervention"
	EventCodeChanged             = "code_changed"
	EventStatusTransition        = "status_transition"
	EventUserStoryCreated        = "user_story_created"
	EventUserStoryDeleted        = "user_story_deleted"
	EventDependencyAdded         = "dependency_added"
	EventDependencyRemoved       = "dependency_removed"
	EventExecutionOrderChanged   = "execution_order_changed"
	EventAutoAnalysisStarted     = "auto_analysis_started"
	EventTaskAnalysisPrepared    = "task_analysis_prepared"
	EventAutoAnalysisCompleted   = "auto_analysis_completed"
)

// Emit inserts a new unprocessed event. Call after the triggering write's
// transaction has committed, never before.
func (s *Store) Emit(ctx context.Context, eventType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling event payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO event_queue (id, event_type, payload, processed, created_at) VALUES (?,?,?,0,?)`,
		uuid.NewString(), eventType, string(b), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("emitting event: %w", err)
	}
	return nil
}

// FetchUnprocessed returns the oldest unprocessed events, up to limit.
func (s *Store) FetchUnprocessed(ctx context.Context, limit int) ([]*QueuedEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_type, payload, processed, created_at, processed_at FROM event_queue
		 WHERE processed = 0 ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching unprocessed events: %w", err)
	}
	defer rows.Close()

	var out []*QueuedEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkProcessed flips an event's processed flag. Idempotent: marking an
// already-processed event again is a no-op, and never flips true back to false.
func (s *Store) MarkProcessed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE event_queue SET processed = 1, processed_at = ? WHERE id = ? AND processed = 0`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking event processed: %w", err)
	}
	return nil
}

// PurgeOldProcessed removes processed events older than age. Idempotent:
// calling it twice in a row is equivalent to calling it once.
func (s *Store) PurgeOldProcessed(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)
	res, err := s.db.ExecContext(ctx, `DELETE FROM event_queue WHERE processed = 1 AND created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging processed events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanEvent(rows *sql.Rows) (*QueuedEvent, error) {
	var e QueuedEvent
	var payload string
	var processed int
	var processedAt sql.NullTime
	if err := rows.Scan(&e.ID, &e.EventType, &payload, &processed, &e.CreatedAt, &processedAt); err != nil {
		return nil, fmt.Errorf("scanning event: %w", err)
	}
	e.Payload = []byte(payload)
	e.Processed = processed != 0
	if processedAt.Valid {
		t := processedAt.Time
		e.ProcessedAt = &t
	}
	return &e, nil
}
