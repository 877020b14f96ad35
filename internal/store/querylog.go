package store

import (
	"context"
	"encoding/json"
	"time"
)

// LogQueryPattern appends the navigation path and success score of one
// search to the query-pattern log. The log is append-only and never
// read back by the engine.
func (s *SQLiteStore) LogQueryPattern(ctx context.Context, query, searchIntent string, entryIDs []string, successScore int) error {
	var idsJSON *string
	if len(entryIDs) > 0 {
		b, _ := json.Marshal(entryIDs)
		v := string(b)
		idsJSON = &v
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_patterns (id, query, search_intent, entry_ids, success_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.newID(), query, searchIntent, idsJSON, successScore,
		time.Now().UTC().Format(time.RFC3339))
	return err
}
