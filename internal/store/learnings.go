package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AddFeedback inserts a Learning and updates the pattern's frequency
// aggregate in the same transaction, so a concurrent AddFeedback on the
// same pattern serialises at the PatternFrequency row.
func (s *Store) AddFeedback(ctx context.Context, l *Learning) (*Learning, error) {
	if l.TaskID == "" && l.Context == "" {
		return nil, fmt.Errorf("%w: task_id or context required", ErrValidation)
	}
	if l.Pattern == "" {
		return nil, fmt.Errorf("%w: pattern is required", ErrValidation)
	}
	if l.Result == "" {
		return nil, fmt.Errorf("%w: feedback is required", ErrValidation)
	}

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	tags, err := json.Marshal(l.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshaling tags: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO learnings (id, task_id, context, action, result, lesson, type, pattern, tags, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.TaskID, l.Context, l.Action, l.Result, l.Lesson, l.Type, l.Pattern, string(tags), l.CreatedAt); err != nil {
		return nil, fmt.Errorf("inserting learning: %w", err)
	}

	if err := bumpPatternFrequency(tx, l.Pattern, l.Type, l.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return l, nil
}

func bumpPatternFrequency(tx *sql.Tx, pattern, learningType string, now time.Time) error {
	var exists int
	err := tx.QueryRow(`SELECT 1 FROM pattern_frequency WHERE pattern = ?`, pattern).Scan(&exists)
	if err == sql.ErrNoRows {
		if _, err := tx.Exec(`INSERT INTO pattern_frequency (pattern, frequency, success_count, failure_count, improvement_count, first_seen, last_seen)
			VALUES (?,0,0,0,0,?,?)`, pattern, now, now); err != nil {
			return fmt.Errorf("initializing pattern frequency: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("checking pattern frequency: %w", err)
	}

	counterCol := ""
	switch learningType {
	case LearningSuccess:
		counterCol = "success_count"
	case LearningFailure:
		counterCol = "failure_count"
	case LearningImprovement:
		counterCol = "improvement_count"
	}

	query := `UPDATE pattern_frequency SET frequency = frequency + 1, last_seen = ?`
	args := []any{now}
	if counterCol != "" {
		query += fmt.Sprintf(`, %s = %s + 1`, counterCol, counterCol)
	}
	query += ` WHERE pattern = ?`
	args = append(args, pattern)

	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("updating pattern frequency: %w", err)
	}
	return nil
}

// SimilarLearningsFilter narrows SimilarLearnings.
type SimilarLearningsFilter struct {
	Context string
	TaskID  string
	Type    string
	Pattern string
}

// SimilarLearnings performs a sanitised substring match over
// context/action/lesson, newest first.
func (s *Store) SimilarLearnings(ctx context.Context, f SimilarLearningsFilter, limit int) ([]*Learning, error) {
	query := `SELECT id, task_id, context, action, result, lesson, type, pattern, tags, created_at FROM learnings WHERE 1=1`
	var args []any

	needle := sanitizeSearchText(f.Context)
	if needle != "" {
		like := "%" + needle + "%"
		query += ` AND (context LIKE ? OR action LIKE ? OR lesson LIKE ?)`
		args = append(args, like, like, like)
	}
	if f.TaskID != "" {
		query += ` AND task_id = ?`
		args = append(args, f.TaskID)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.Pattern != "" {
		query += ` AND pattern = ?`
		args = append(args, f.Pattern)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying similar learnings: %w", err)
	}
	defer rows.Close()
	return scanLearnings(rows)
}

// sanitizeSearchText strips characters that would otherwise let a caller
// inject LIKE wildcards, and truncates to 100 chars to avoid pathological
// full-table scans on adversarial input.
func sanitizeSearchText(s string) string {
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.TrimSpace(s)
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

func scanLearnings(rows *sql.Rows) ([]*Learning, error) {
	var out []*Learning
	for rows.Next() {
		var l Learning
		var tags string
		if err := rows.Scan(&l.ID, &l.TaskID, &l.Context, &l.Action, &l.Result, &l.Lesson, &l.Type, &l.Pattern, &tags, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning learning: %w", err)
		}
		if tags != "" {
			_ = json.Unmarshal([]byte(tags), &l.Tags)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// ListLearnings returns up to limit learnings, newest first.
func (s *Store) ListLearnings(ctx context.Context, limit int) ([]*Learning, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, context, action, result, lesson, type, pattern, tags, created_at
		 FROM learnings ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing learnings: %w", err)
	}
	defer rows.Close()
	return scanLearnings(rows)
}

// TopPatterns returns patterns ordered by frequency desc, ties by last_seen desc.
func (s *Store) TopPatterns(ctx context.Context, limit int) ([]*PatternFrequency, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pattern, frequency, success_count, failure_count, improvement_count, first_seen, last_seen
		 FROM pattern_frequency ORDER BY frequency DESC, last_seen DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing top patterns: %w", err)
	}
	defer rows.Close()
	return scanPatternFrequencies(rows)
}

// AllPatterns returns every pattern-frequency row.
func (s *Store) AllPatterns(ctx context.Context) ([]*PatternFrequency, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pattern, frequency, success_count, failure_count, improvement_count, first_seen, last_seen FROM pattern_frequency`)
	if err != nil {
		return nil, fmt.Errorf("listing patterns: %w", err)
	}
	defer rows.Close()
	return scanPatternFrequencies(rows)
}

// PatternByName fetches a single pattern's frequency aggregate.
func (s *Store) PatternByName(ctx context.Context, pattern string) (*PatternFrequency, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT pattern, frequency, success_count, failure_count, improvement_count, first_seen, last_seen
		 FROM pattern_frequency WHERE pattern = ?`, pattern)
	var p PatternFrequency
	if err := row.Scan(&p.Pattern, &p.Frequency, &p.SuccessCount, &p.FailureCount, &p.ImprovementCount, &p.FirstSeen, &p.LastSeen); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching pattern: %w", err)
	}
	return &p, nil
}

// PatternLearningCountSince counts learnings for a pattern created at or
// after since, used by TrendingPatterns.
func (s *Store) PatternLearningCountSince(ctx context.Context, pattern string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM learnings WHERE pattern = ? AND created_at >= ?`, pattern, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting recent learnings: %w", err)
	}
	return n, nil
}

func scanPatternFrequencies(rows *sql.Rows) ([]*PatternFrequency, error) {
	var out []*PatternFrequency
	for rows.Next() {
		var p PatternFrequency
		if err := rows.Scan(&p.Pattern, &p.Frequency, &p.SuccessCount, &p.FailureCount, &p.ImprovementCount, &p.FirstSeen, &p.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning pattern frequency: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
