package store

import (
	"context"
	"os"
)

// Stats holds engine storage statistics.
type Stats struct {
	DBPath         string          `json:"db_path"`
	DBSizeBytes    int64           `json:"db_size_bytes"`
	Categories     int             `json:"categories"`
	Clusters       int             `json:"clusters"`
	MemoryEntries  int             `json:"memory_entries"`
	Threads        int             `json:"threads"`
	Turns          int             `json:"turns"`
	Communications int             `json:"communications"`
	QueryPatterns  int             `json:"query_patterns"`
	TopCategories  []CategoryCount `json:"top_categories,omitempty"`
}

// CategoryCount is one category with its cluster count.
type CategoryCount struct {
	Key      string `json:"key"`
	Clusters int    `json:"clusters"`
}

// Stats returns row counts per collection and the database size.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_categories`).Scan(&st.Categories)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subindex_clusters`).Scan(&st.Clusters)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_entries`).Scan(&st.MemoryEntries)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM threads`).Scan(&st.Threads)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&st.Turns)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM communications`).Scan(&st.Communications)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_patterns`).Scan(&st.QueryPatterns)

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.category_key, COUNT(sc.id) AS clusters
		FROM index_categories c
		LEFT JOIN subindex_clusters sc ON sc.category_id = c.id
		GROUP BY c.id ORDER BY clusters DESC LIMIT 5`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var cc CategoryCount
		rows.Scan(&cc.Key, &cc.Clusters)
		st.TopCategories = append(st.TopCategories, cc)
	}
	return st, nil
}
