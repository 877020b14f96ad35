// Package retrieval walks the taxonomy using query analysis, falls
// back to full-text search when no cluster matches, ranks results, and
// updates access statistics.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/calyx-ai/memory-engine/internal/analyzer"
	"github.com/calyx-ai/memory-engine/internal/errs"
	"github.com/calyx-ai/memory-engine/internal/model"
	"github.com/calyx-ai/memory-engine/internal/store"
)

const (
	maxCandidateCategories = 4
	maxCandidateClusters   = 10
	maxClusterResults      = 20
	maxFallbackResults     = 15
	relatedMinStrength     = 6
)

// Engine runs the search pipeline against the store.
type Engine struct {
	store *store.SQLiteStore
	log   *slog.Logger
}

// New builds a retrieval engine.
func New(s *store.SQLiteStore, log *slog.Logger) *Engine {
	return &Engine{store: s, log: log}
}

// Result is one ranked memory entry.
type Result struct {
	model.MemoryEntry
	ClusterConfidence int     `json:"cluster_confidence,omitempty"`
	Relevance         float64 `json:"relevance"`
}

// Response is the full search output.
type Response struct {
	Analysis        model.QueryAnalysis `json:"analysis"`
	Results         []Result            `json:"results"`
	RelatedConcepts []model.MemoryEntry `json:"related_concepts"`
	Refinements     []string            `json:"refinements"`
}

// Search runs the full pipeline for one query.
func (e *Engine) Search(ctx context.Context, query, intentContext string) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.Validation("query required")
	}

	analysis := analyzer.Analyze(query, intentContext)
	terms := queryTerms(query)

	categories, err := e.store.ListCategories(ctx)
	if err != nil {
		return nil, errs.Upstream("list categories", err)
	}
	candidateCategories := pickCategories(categories, analysis)

	var clusters []model.SubIndexCluster
	if len(candidateCategories) > 0 {
		ids := make([]string, len(candidateCategories))
		for i, c := range candidateCategories {
			ids[i] = c.ID
		}
		all, err := e.store.ListClusters(ctx, ids)
		if err != nil {
			return nil, errs.Upstream("list clusters", err)
		}
		clusters = pickClusters(all, analysis.KeyConcepts)
	}

	var results []Result
	candidateCount := 0
	if len(clusters) == 0 {
		// Full-text fallback over all entries.
		entries, err := e.store.FullTextSearch(ctx, query, maxFallbackResults)
		if err != nil {
			return nil, errs.Upstream("full-text search", err)
		}
		candidateCount = len(entries)
		for _, m := range entries {
			results = append(results, Result{MemoryEntry: m, Relevance: textRelevance(m, terms)})
		}
	} else {
		clusterIDs := make([]string, len(clusters))
		for i, c := range clusters {
			clusterIDs[i] = c.ID
		}
		candidates, err := e.store.EntriesForClusters(ctx, clusterIDs, terms, analysis.KeyConcepts, 0)
		if err != nil {
			return nil, errs.Upstream("cluster entries", err)
		}
		candidateCount = len(candidates)
		results = rankClusterEntries(candidates, terms)
		if len(results) > maxClusterResults {
			results = results[:maxClusterResults]
		}
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}

	// Access stats bump happens once per search, not per entry view.
	if err := e.store.TouchEntries(ctx, ids); err != nil {
		e.log.Warn("access stats update failed", "error", err)
	}

	related, err := e.store.RelatedEntries(ctx, ids, relatedMinStrength)
	if err != nil {
		e.log.Warn("related concepts lookup failed", "error", err)
		related = nil
	}

	resp := &Response{
		Analysis:        analysis,
		Results:         results,
		RelatedConcepts: related,
		Refinements:     refinements(candidateCount, len(results), analysis.KeyConcepts),
	}

	// A failed log write never invalidates the search response.
	if err := e.store.LogQueryPattern(ctx, query, analysis.SearchIntent, ids, successScore(len(results))); err != nil {
		e.log.Warn("query pattern log failed", "error", err)
	}

	return resp, nil
}

// pickCategories selects candidate Index Categories. With priority
// domains present, categories whose intent type matches the analysis
// (or the priority domains) or whose complexity matches are preferred,
// domain matches first. Otherwise the top categories by child-cluster
// count, tie-broken by complexity match.
func pickCategories(categories []store.CategoryInfo, a model.QueryAnalysis) []store.CategoryInfo {
	if len(a.PriorityDomains) > 0 {
		var out []store.CategoryInfo
		for _, c := range categories {
			if containsString(a.PriorityDomains, c.IntentType) ||
				c.IntentType == a.SearchIntent ||
				c.ComplexityLevel == a.ExpectedComplexity {
				out = append(out, c)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			di := containsString(a.PriorityDomains, out[i].IntentType)
			dj := containsString(a.PriorityDomains, out[j].IntentType)
			if di != dj {
				return di
			}
			return out[i].ClusterCount > out[j].ClusterCount
		})
		return out
	}

	sorted := make([]store.CategoryInfo, len(categories))
	copy(sorted, categories)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ClusterCount != sorted[j].ClusterCount {
			return sorted[i].ClusterCount > sorted[j].ClusterCount
		}
		return sorted[i].ComplexityLevel == a.ExpectedComplexity &&
			sorted[j].ComplexityLevel != a.ExpectedComplexity
	})
	if len(sorted) > maxCandidateCategories {
		sorted = sorted[:maxCandidateCategories]
	}
	return sorted
}

// pickClusters keeps clusters whose keywords intersect the key
// concepts, or failing that clusters of confidence >= 7, ordered by
// keyword match first, then confidence, then recency.
func pickClusters(clusters []model.SubIndexCluster, keyConcepts []string) []model.SubIndexCluster {
	type scored struct {
		cluster model.SubIndexCluster
		kwMatch bool
	}
	var kept []scored
	for _, c := range clusters {
		match := intersects(c.SemanticKeywords, keyConcepts)
		if match || c.ConfidenceLevel >= 7 {
			kept = append(kept, scored{cluster: c, kwMatch: match})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].kwMatch != kept[j].kwMatch {
			return kept[i].kwMatch
		}
		if kept[i].cluster.ConfidenceLevel != kept[j].cluster.ConfidenceLevel {
			return kept[i].cluster.ConfidenceLevel > kept[j].cluster.ConfidenceLevel
		}
		return kept[i].cluster.UpdatedAt.After(kept[j].cluster.UpdatedAt)
	})

	if len(kept) > maxCandidateClusters {
		kept = kept[:maxCandidateClusters]
	}
	out := make([]model.SubIndexCluster, len(kept))
	for i, s := range kept {
		out[i] = s.cluster
	}
	return out
}

// rankClusterEntries orders candidates by cluster confidence, text
// relevance, usage frequency, then recency.
func rankClusterEntries(candidates []store.ClusterEntry, terms []string) []Result {
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{
			MemoryEntry:       c.MemoryEntry,
			ClusterConfidence: c.ClusterConfidence,
			Relevance:         textRelevance(c.MemoryEntry, terms),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].ClusterConfidence != results[j].ClusterConfidence {
			return results[i].ClusterConfidence > results[j].ClusterConfidence
		}
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		if results[i].UsageFrequency != results[j].UsageFrequency {
			return results[i].UsageFrequency > results[j].UsageFrequency
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results
}

// textRelevance is the fraction of query terms present in the entry's
// content or intent analysis.
func textRelevance(m model.MemoryEntry, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	content := strings.ToLower(m.Content)
	intent := strings.ToLower(m.UserIntentAnalysis)
	hits := 0
	for _, t := range terms {
		if strings.Contains(content, t) || strings.Contains(intent, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func refinements(candidateCount, resultCount int, keyConcepts []string) []string {
	var out []string
	if candidateCount > maxClusterResults {
		out = append(out, "narrow your terms")
	}
	if resultCount < 3 {
		out = append(out, "broaden or rephrase")
	}
	if len(keyConcepts) > 0 {
		out = append(out, fmt.Sprintf("key concepts: %s", strings.Join(keyConcepts, ", ")))
	}
	return out
}

// successScore is the heuristic logged for later tuning.
func successScore(resultCount int) int {
	switch {
	case resultCount == 0:
		return 1
	case resultCount >= 5 && resultCount <= 15:
		return 9
	case resultCount > 15:
		return 7
	default:
		return 6
	}
}

func queryTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) > 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
