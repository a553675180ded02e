package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RecordArtifact upserts the latest artifact for (item, mode).
func (s *Store) RecordArtifact(ctx context.Context, artifact Artifact) error {
	if strings.TrimSpace(artifact.ItemID) == "" || strings.TrimSpace(artifact.Mode) == "" {
		return errors.New("record artifact: item id and mode are required")
	}
	saved := artifact.SavedAt
	if saved.IsZero() {
		saved = time.Now().UTC()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO artifacts (item_id, mode, format, path, size, run_id, saved_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(item_id, mode) DO UPDATE SET
             format = excluded.format,
             path = excluded.path,
             size = excluded.size,
             run_id = excluded.run_id,
             saved_at = excluded.saved_at`,
		artifact.ItemID, artifact.Mode, artifact.Format, artifact.Path, artifact.Size,
		nullableString(artifact.RunID), saved.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns the artifacts recorded for itemID ordered by mode.
func (s *Store) ListArtifacts(ctx context.Context, itemID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT item_id, mode, format, path, size, run_id, saved_at FROM artifacts WHERE item_id = ? ORDER BY mode`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var (
			artifact Artifact
			runID    sql.NullString
			savedAt  string
		)
		if err := rows.Scan(&artifact.ItemID, &artifact.Mode, &artifact.Format, &artifact.Path, &artifact.Size, &runID, &savedAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifact.RunID = runID.String
		artifact.SavedAt = parseTime(savedAt)
		artifacts = append(artifacts, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return artifacts, nil
}
