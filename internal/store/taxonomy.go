package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/calyx-ai/memory-engine/internal/model"
)

// Fallback keys used when a caller files a thread without taxonomy
// placement.
const (
	DefaultIndexKey    = "general-knowledge"
	DefaultSubindexKey = "general"
)

// ConfidencePolicy adjusts a cluster's confidence level when an entry
// is filed under it. The update rule is external to the engine; the
// default keeps confidence unchanged.
type ConfidencePolicy func(current int) int

// SetConfidencePolicy installs the cluster confidence adjustment hook.
func (s *SQLiteStore) SetConfidencePolicy(p ConfidencePolicy) {
	s.confidencePolicy = p
}

// TaxonomyRef is a resolved category/cluster id pair.
type TaxonomyRef struct {
	CategoryID string `json:"category_id"`
	ClusterID  string `json:"cluster_id"`
}

// NormalizeKey canonicalizes a human-readable taxonomy key: trimmed,
// case-folded, inner whitespace collapsed to single dashes.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.Join(strings.Fields(key), "-")
}

// ResolveCategoryAndCluster resolves (creating on first reference) the
// Index Category and Sub-Index Cluster for the given keys. Unset keys
// fall back to the default taxonomy placement.
func (s *SQLiteStore) ResolveCategoryAndCluster(ctx context.Context, indexKey, subindexKey string) (TaxonomyRef, error) {
	indexKey = NormalizeKey(indexKey)
	if indexKey == "" {
		indexKey = DefaultIndexKey
	}
	subindexKey = NormalizeKey(subindexKey)
	if subindexKey == "" {
		subindexKey = DefaultSubindexKey
	}

	cacheKey := indexKey + "|" + subindexKey
	if v, ok := s.taxo.Get(cacheKey); ok {
		if ref, ok := v.(TaxonomyRef); ok {
			return ref, nil
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO index_categories (id, category_key, category_name, created_at)
		 VALUES (?, ?, ?, ?)`,
		s.newID(), indexKey, indexKey, now)
	if err != nil {
		return TaxonomyRef{}, fmt.Errorf("create category: %w", err)
	}

	var categoryID string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM index_categories WHERE category_key = ?`, indexKey).Scan(&categoryID)
	if err != nil {
		return TaxonomyRef{}, fmt.Errorf("resolve category %q: %w", indexKey, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subindex_clusters (id, category_id, cluster_key, cluster_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.newID(), categoryID, subindexKey, subindexKey, now, now)
	if err != nil {
		return TaxonomyRef{}, fmt.Errorf("create cluster: %w", err)
	}

	var clusterID string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM subindex_clusters WHERE category_id = ? AND cluster_key = ?`,
		categoryID, subindexKey).Scan(&clusterID)
	if err != nil {
		return TaxonomyRef{}, fmt.Errorf("resolve cluster %q: %w", subindexKey, err)
	}

	ref := TaxonomyRef{CategoryID: categoryID, ClusterID: clusterID}
	s.taxo.Set(cacheKey, ref, 1)
	return ref, nil
}

// CategoryParams configures an administrative category upsert.
type CategoryParams struct {
	Key             string
	Name            string
	IntentType      string
	ComplexityLevel string
}

// UpsertCategory creates or updates a category with explicit intent and
// complexity tags.
func (s *SQLiteStore) UpsertCategory(ctx context.Context, p CategoryParams) (string, error) {
	key := NormalizeKey(p.Key)
	if key == "" {
		key = DefaultIndexKey
	}
	name := p.Name
	if name == "" {
		name = key
	}
	intent := p.IntentType
	if intent == "" {
		intent = "find-information"
	}
	complexity := p.ComplexityLevel
	if complexity == "" {
		complexity = "detailed-explanations"
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO index_categories (id, category_key, category_name, intent_type, complexity_level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(category_key) DO UPDATE SET
		   category_name = excluded.category_name,
		   intent_type = excluded.intent_type,
		   complexity_level = excluded.complexity_level`,
		s.newID(), key, name, intent, complexity, now)
	if err != nil {
		return "", fmt.Errorf("upsert category: %w", err)
	}

	var id string
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM index_categories WHERE category_key = ?`, key).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// ClusterParams configures a cluster upsert.
type ClusterParams struct {
	CategoryID       string
	Key              string
	Name             string
	SemanticKeywords []string
	ConfidenceLevel  int
}

// UpsertCluster creates or updates a cluster under its category.
func (s *SQLiteStore) UpsertCluster(ctx context.Context, p ClusterParams) (string, error) {
	key := NormalizeKey(p.Key)
	if key == "" {
		key = DefaultSubindexKey
	}
	name := p.Name
	if name == "" {
		name = key
	}
	confidence := p.ConfidenceLevel
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 10 {
		confidence = 10
	}

	var kwJSON *string
	if len(p.SemanticKeywords) > 0 {
		b, _ := json.Marshal(p.SemanticKeywords)
		v := string(b)
		kwJSON = &v
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subindex_clusters (id, category_id, cluster_key, cluster_name, semantic_keywords, confidence_level, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(category_id, cluster_key) DO UPDATE SET
		   cluster_name = excluded.cluster_name,
		   semantic_keywords = excluded.semantic_keywords,
		   confidence_level = excluded.confidence_level,
		   updated_at = excluded.updated_at`,
		s.newID(), p.CategoryID, key, name, kwJSON, confidence, now, now)
	if err != nil {
		return "", fmt.Errorf("upsert cluster: %w", err)
	}

	var id string
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM subindex_clusters WHERE category_id = ? AND cluster_key = ?`,
		p.CategoryID, key).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// TouchCluster refreshes a cluster's updated_at and applies the
// confidence policy, if one is installed.
func (s *SQLiteStore) TouchCluster(ctx context.Context, clusterID string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if s.confidencePolicy != nil {
		var current int
		err := s.db.QueryRowContext(ctx,
			`SELECT confidence_level FROM subindex_clusters WHERE id = ?`, clusterID).Scan(&current)
		if err != nil {
			return err
		}
		next := s.confidencePolicy(current)
		if next < 0 {
			next = 0
		}
		if next > 10 {
			next = 10
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE subindex_clusters SET confidence_level = ?, updated_at = ? WHERE id = ?`,
			next, now, clusterID)
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE subindex_clusters SET updated_at = ? WHERE id = ?`, now, clusterID)
	return err
}

// CategoryInfo is a category with its child cluster count.
type CategoryInfo struct {
	model.IndexCategory
	ClusterCount int `json:"cluster_count"`
}

// ListCategories returns all categories with child-cluster counts.
func (s *SQLiteStore) ListCategories(ctx context.Context) ([]CategoryInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.category_key, c.category_name, c.intent_type, c.complexity_level, c.created_at,
		       COUNT(sc.id)
		FROM index_categories c
		LEFT JOIN subindex_clusters sc ON sc.category_id = c.id
		GROUP BY c.id
		ORDER BY COUNT(sc.id) DESC, c.category_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategoryInfo
	for rows.Next() {
		var ci CategoryInfo
		var createdAt string
		if err := rows.Scan(&ci.ID, &ci.Key, &ci.Name, &ci.IntentType, &ci.ComplexityLevel, &createdAt, &ci.ClusterCount); err != nil {
			return nil, err
		}
		ci.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, ci)
	}
	return out, rows.Err()
}

// ListClusters returns the clusters under the given categories.
func (s *SQLiteStore) ListClusters(ctx context.Context, categoryIDs []string) ([]model.SubIndexCluster, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(categoryIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(categoryIDs))
	for i, id := range categoryIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, category_id, cluster_key, cluster_name, semantic_keywords, confidence_level, created_at, updated_at
		FROM subindex_clusters
		WHERE category_id IN (%s)
		ORDER BY confidence_level DESC, updated_at DESC`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SubIndexCluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCluster(row scanner) (model.SubIndexCluster, error) {
	var c model.SubIndexCluster
	var kwJSON sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.CategoryID, &c.Key, &c.Name, &kwJSON, &c.ConfidenceLevel, &createdAt, &updatedAt)
	if err != nil {
		return c, err
	}
	if kwJSON.Valid {
		json.Unmarshal([]byte(kwJSON.String), &c.SemanticKeywords)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return c, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}
