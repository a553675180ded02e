package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const runColumns = `id, item_id, title, workflow, status, stage, message, error_message, started_at, updated_at, finished_at`

// Begin opens a new running entry for itemID under the named workflow.
func (s *Store) Begin(ctx context.Context, itemID, title, workflow string) (*Run, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, errors.New("begin run: item id is required")
	}
	now := time.Now().UTC()
	run := &Run{
		ID:        uuid.NewString(),
		ItemID:    itemID,
		Title:     title,
		Workflow:  workflow,
		Status:    StatusRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
	timestamp := now.Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, item_id, title, workflow, status, started_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ItemID, nullableString(title), run.Workflow, run.Status, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// UpdateStage records the active stage and its latest status message.
func (s *Store) UpdateStage(ctx context.Context, runID, stage, message string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET stage = ?, message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		nullableString(stage), nullableString(message), nowText(), runID, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update run stage: %w", err)
	}
	return expectRow(res, runID)
}

// UpdateMessage records a status message without changing the stage.
func (s *Store) UpdateMessage(ctx context.Context, runID, message string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		nullableString(message), nowText(), runID, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update run message: %w", err)
	}
	return expectRow(res, runID)
}

// Complete marks the run finished successfully.
func (s *Store) Complete(ctx context.Context, runID string) error {
	return s.finish(ctx, runID, StatusCompleted, "")
}

// Fail marks the run terminal with the given failure status and message.
func (s *Store) Fail(ctx context.Context, runID string, status Status, errorMessage string) error {
	if status != StatusFailed && status != StatusRejected {
		return fmt.Errorf("fail run: invalid failure status %q", status)
	}
	return s.finish(ctx, runID, status, errorMessage)
}

func (s *Store) finish(ctx context.Context, runID string, status Status, errorMessage string) error {
	timestamp := nowText()
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, error_message = ?, updated_at = ?, finished_at = ? WHERE id = ? AND status = ?`,
		status, nullableString(errorMessage), timestamp, timestamp, runID, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return expectRow(res, runID)
}

// GetRun fetches a run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs newest first, filtered by opts.
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var (
		where []string
		args  []any
	)
	if opts.ItemID != "" {
		where = append(where, "item_id = ?")
		args = append(args, opts.ItemID)
	}
	if len(opts.Status) > 0 {
		placeholders := make([]string, len(opts.Status))
		for i, status := range opts.Status {
			placeholders[i] = "?"
			args = append(args, status)
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ",")+")")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ResetStale fails every run for itemID still marked running. Callers hold
// the item lock, so no other process can still be driving those runs.
func (s *Store) ResetStale(ctx context.Context, itemID string) (int64, error) {
	timestamp := nowText()
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, error_message = ?, updated_at = ?, finished_at = ? WHERE status = ? AND item_id = ?`,
		StatusFailed, "interrupted", timestamp, timestamp, StatusRunning, itemID,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stale runs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                                 Run
		title, stage, message, errorMessage sql.NullString
		status                              string
		startedAt, updatedAt                string
		finishedAt                          sql.NullString
	)
	if err := row.Scan(
		&run.ID, &run.ItemID, &title, &run.Workflow, &status, &stage, &message, &errorMessage,
		&startedAt, &updatedAt, &finishedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Title = title.String
	run.Status = Status(status)
	run.Stage = stage.String
	run.Message = message.String
	run.ErrorMessage = errorMessage.String
	run.StartedAt = parseTime(startedAt)
	run.UpdatedAt = parseTime(updatedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTime(finishedAt.String)
	}
	return &run, nil
}

func expectRow(res interface{ RowsAffected() (int64, error) }, runID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s is not running", ErrRunNotFound, runID)
	}
	return nil
}
