package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calyx-ai/memory-engine/internal/model"
)

// InsertCommunication persists one pending communication row.
func (s *SQLiteStore) InsertCommunication(ctx context.Context, c model.Communication) (string, error) {
	id := s.newID()
	now := time.Now().UTC()

	insightJSON, _ := json.Marshal(c.Insight)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO communications (id, source_app, target_app, insight, relevance_score, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, c.SourceApp, c.TargetApp, string(insightJSON), c.RelevanceScore,
		model.CommStatusPending, now.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("insert communication: %w", err)
	}
	return id, nil
}

// ListCommunications returns communications, optionally filtered by
// status, newest first.
func (s *SQLiteStore) ListCommunications(ctx context.Context, status string, limit int) ([]model.Communication, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, source_app, target_app, insight, relevance_score, status, created_at
	          FROM communications`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Communication
	for rows.Next() {
		var c model.Communication
		var insightJSON, createdAt string
		if err := rows.Scan(&c.ID, &c.SourceApp, &c.TargetApp, &insightJSON, &c.RelevanceScore, &c.Status, &createdAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(insightJSON), &c.Insight)
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkCommunicationProcessed transitions a communication out of pending.
func (s *SQLiteStore) MarkCommunicationProcessed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE communications SET status = ? WHERE id = ?`, model.CommStatusProcessed, id)
	return err
}
