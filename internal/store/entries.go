package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/calyx-ai/memory-engine/internal/errs"
	"github.com/calyx-ai/memory-engine/internal/model"
)

// EntryParams holds input for a direct memory-entry insert.
type EntryParams struct {
	ClusterID              string
	Content                string
	ReasoningChain         string
	UserIntentAnalysis     string
	CrossDomainConnections []string
	SessionContext         string
}

// InsertEntry stores one memory entry.
func (s *SQLiteStore) InsertEntry(ctx context.Context, p EntryParams) (*model.MemoryEntry, error) {
	now := time.Now().UTC()
	id := s.newID()

	var clusterID interface{}
	if p.ClusterID != "" {
		clusterID = p.ClusterID
	}

	var tagsJSON *string
	if len(p.CrossDomainConnections) > 0 {
		b, _ := json.Marshal(p.CrossDomainConnections)
		v := string(b)
		tagsJSON = &v
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_entries (id, cluster_id, content, reasoning_chain, user_intent_analysis,
		                             cross_domain_connections, session_context, usage_frequency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		id, clusterID, p.Content, p.ReasoningChain, p.UserIntentAnalysis,
		tagsJSON, p.SessionContext, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	return &model.MemoryEntry{
		ID:                     id,
		ClusterID:              p.ClusterID,
		Content:                p.Content,
		ReasoningChain:         p.ReasoningChain,
		UserIntentAnalysis:     p.UserIntentAnalysis,
		CrossDomainConnections: p.CrossDomainConnections,
		SessionContext:         p.SessionContext,
		CreatedAt:              now,
	}, nil
}

// HasEntryForMirrorKey reports whether an entry already mirrors the
// given external turn key.
func (s *SQLiteStore) HasEntryForMirrorKey(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memory_entries WHERE user_intent_analysis = ?`, key).Scan(&n)
	return n > 0, err
}

// ClusterEntry is a memory entry with its owning cluster's confidence,
// used for ranking.
type ClusterEntry struct {
	model.MemoryEntry
	ClusterConfidence int `json:"cluster_confidence"`
}

// EntriesForClusters returns entries owned by the candidate clusters
// that match at least one of: a content/full-text term hit, an
// intent-analysis substring hit, or a cross-domain tag overlapping the
// key concepts.
func (s *SQLiteStore) EntriesForClusters(ctx context.Context, clusterIDs, terms, keyConcepts []string, limit int) ([]ClusterEntry, error) {
	if len(clusterIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 200
	}

	inClause := strings.Repeat("?,", len(clusterIDs))
	inClause = inClause[:len(inClause)-1]

	var args []interface{}
	for _, id := range clusterIDs {
		args = append(args, id)
	}

	var matches []string
	for _, t := range terms {
		matches = append(matches, "m.content LIKE ?", "m.user_intent_analysis LIKE ?")
		args = append(args, "%"+t+"%", "%"+t+"%")
	}
	for _, c := range keyConcepts {
		matches = append(matches, "m.cross_domain_connections LIKE ?")
		args = append(args, `%"`+c+`"%`)
	}
	if len(matches) == 0 {
		matches = append(matches, "1=1")
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT m.id, m.cluster_id, m.content, m.reasoning_chain, m.user_intent_analysis,
		       m.cross_domain_connections, m.session_context, m.usage_frequency, m.created_at, m.accessed_at,
		       c.confidence_level
		FROM memory_entries m
		JOIN subindex_clusters c ON c.id = m.cluster_id
		WHERE m.cluster_id IN (%s) AND (%s)
		ORDER BY c.confidence_level DESC, m.usage_frequency DESC, m.created_at DESC
		LIMIT ?`, inClause, strings.Join(matches, " OR "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClusterEntry
	for rows.Next() {
		var ce ClusterEntry
		var err error
		ce.MemoryEntry, err = scanEntryWith(rows, &ce.ClusterConfidence)
		if err != nil {
			return nil, err
		}
		out = append(out, ce)
	}
	return out, rows.Err()
}

// FullTextSearch runs the FTS5 fallback over all entries, ranked by
// text relevance then usage frequency.
func (s *SQLiteStore) FullTextSearch(ctx context.Context, query string, limit int) ([]model.MemoryEntry, error) {
	if limit <= 0 {
		limit = 15
	}

	match := ftsMatchExpr(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.cluster_id, m.content, m.reasoning_chain, m.user_intent_analysis,
		       m.cross_domain_connections, m.session_context, m.usage_frequency, m.created_at, m.accessed_at
		FROM entries_fts f
		JOIN memory_entries m ON m.rowid = f.rowid
		WHERE entries_fts MATCH ?
		ORDER BY bm25(entries_fts), m.usage_frequency DESC
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MemoryEntry
	for rows.Next() {
		m, err := scanEntryWith(rows, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ftsMatchExpr builds an OR query of quoted alphanumeric tokens so raw
// user text cannot break FTS5 syntax.
func ftsMatchExpr(query string) string {
	var tokens []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
		})
		if f != "" {
			tokens = append(tokens, `"`+f+`"`)
		}
	}
	return strings.Join(tokens, " OR ")
}

// TouchEntries increments usage_frequency and refreshes accessed_at for
// the given entries. Best-effort under concurrency: lost updates are
// acceptable for a ranking signal.
func (s *SQLiteStore) TouchEntries(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	inClause := strings.Repeat("?,", len(ids))
	inClause = inClause[:len(inClause)-1]

	args := []interface{}{time.Now().UTC().Format(time.RFC3339)}
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE memory_entries SET usage_frequency = usage_frequency + 1, accessed_at = ?
		 WHERE id IN (%s)`, inClause), args...)
	return err
}

// GetEntry returns one entry by id.
func (s *SQLiteStore) GetEntry(ctx context.Context, id string) (*model.MemoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, cluster_id, content, reasoning_chain, user_intent_analysis,
		       cross_domain_connections, session_context, usage_frequency, created_at, accessed_at
		FROM memory_entries WHERE id = ?`, id)
	m, err := scanEntryWith(row, nil)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// EntriesByTags returns entries whose cross-domain tags include any of
// the given tags.
func (s *SQLiteStore) EntriesByTags(ctx context.Context, tags []string, limit int) ([]model.MemoryEntry, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var matches []string
	var args []interface{}
	for _, t := range tags {
		matches = append(matches, "cross_domain_connections LIKE ?")
		args = append(args, `%"`+t+`"%`)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, cluster_id, content, reasoning_chain, user_intent_analysis,
		       cross_domain_connections, session_context, usage_frequency, created_at, accessed_at
		FROM memory_entries
		WHERE %s
		ORDER BY usage_frequency DESC, created_at DESC
		LIMIT ?`, strings.Join(matches, " OR ")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MemoryEntry
	for rows.Next() {
		m, err := scanEntryWith(rows, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var validRels = map[string]bool{
	"relates_to":  true,
	"contradicts": true,
	"depends_on":  true,
	"refines":     true,
}

// LinkEntries records a relationship of the given strength (1-10)
// between two entries.
func (s *SQLiteStore) LinkEntries(ctx context.Context, fromID, toID, rel string, strength int) error {
	if rel == "" {
		rel = "relates_to"
	}
	if !validRels[rel] {
		return errs.Validation("invalid relation %q (valid: relates_to, contradicts, depends_on, refines)", rel)
	}
	if strength < 1 || strength > 10 {
		return errs.Validation("invalid strength %d (valid: 1-10)", strength)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entry_links (from_id, to_id, rel, strength, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(from_id, to_id, rel) DO UPDATE SET strength = excluded.strength`,
		fromID, toID, rel, strength, now)
	return err
}

// RelatedEntries returns entries connected to any of the given ids via
// a link of at least minStrength, excluding the ids themselves.
func (s *SQLiteStore) RelatedEntries(ctx context.Context, ids []string, minStrength int) ([]model.MemoryEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	inClause := strings.Repeat("?,", len(ids))
	inClause = inClause[:len(inClause)-1]

	var args []interface{}
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, minStrength)
	for _, id := range ids {
		args = append(args, id)
	}
	for i := 0; i < 2; i++ {
		for _, id := range ids {
			args = append(args, id)
		}
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT m.id, m.cluster_id, m.content, m.reasoning_chain, m.user_intent_analysis,
		       m.cross_domain_connections, m.session_context, m.usage_frequency, m.created_at, m.accessed_at
		FROM entry_links l
		JOIN memory_entries m ON m.id = CASE WHEN l.from_id IN (%s) THEN l.to_id ELSE l.from_id END
		WHERE l.strength >= ?
		  AND (l.from_id IN (%s) OR l.to_id IN (%s))
		  AND m.id NOT IN (%s)`, inClause, inClause, inClause, inClause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MemoryEntry
	seen := map[string]bool{}
	for rows.Next() {
		m, err := scanEntryWith(rows, nil)
		if err != nil {
			return nil, err
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanEntryWith(row scanner, clusterConfidence *int) (model.MemoryEntry, error) {
	var m model.MemoryEntry
	var clusterID, reasoning, intent, tagsJSON, session, accessedAt sql.NullString
	var createdAt string

	dest := []interface{}{
		&m.ID, &clusterID, &m.Content, &reasoning, &intent,
		&tagsJSON, &session, &m.UsageFrequency, &createdAt, &accessedAt,
	}
	if clusterConfidence != nil {
		dest = append(dest, clusterConfidence)
	}
	if err := row.Scan(dest...); err != nil {
		return m, err
	}

	m.ClusterID = clusterID.String
	m.ReasoningChain = reasoning.String
	m.UserIntentAnalysis = intent.String
	m.SessionContext = session.String
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &m.CrossDomainConnections)
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if accessedAt.Valid {
		t, _ := time.Parse(time.RFC3339, accessedAt.String)
		m.AccessedAt = &t
	}
	return m, nil
}
