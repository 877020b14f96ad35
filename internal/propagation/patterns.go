package propagation

import (
	"context"
	"sort"
	"strings"

	"github.com/calyx-ai/memory-engine/internal/analyzer"
	"github.com/calyx-ai/memory-engine/internal/errs"
	"github.com/calyx-ai/memory-engine/internal/model"
	"github.com/calyx-ai/memory-engine/internal/store"
)

// PatternMatch is one stored entry scored against a requested topic.
type PatternMatch struct {
	Entry model.MemoryEntry `json:"entry"`
	Score float64           `json:"score"`
}

// RequestPatterns applies the propagation overlap scoring against
// stored memory entries instead of live apps: entries matching the
// topic by text or cross-domain tags, ranked by overlap, threshold
// applied the same way as target relevance.
func (e *Engine) RequestPatterns(ctx context.Context, appID, topic string, limit int) ([]PatternMatch, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, errs.Validation("topic is required")
	}
	if limit <= 0 {
		limit = 10
	}

	if _, err := e.store.GetApp(ctx, appID); err != nil {
		return nil, err
	}

	tokens := topicTokens(topic)
	concepts := analyzer.Analyze(topic, "").KeyConcepts

	candidates, err := e.store.FullTextSearch(ctx, topic, 50)
	if err != nil {
		return nil, errs.Upstream("pattern search", err)
	}
	tagged, err := e.store.EntriesByTags(ctx, concepts, 50)
	if err != nil {
		return nil, errs.Upstream("pattern tag search", err)
	}

	seen := map[string]bool{}
	var matches []PatternMatch
	for _, m := range append(candidates, tagged...) {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true

		score := patternScore(m, tokens, concepts)
		if score < MinRelevance {
			continue
		}
		matches = append(matches, PatternMatch{Entry: m, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Entry.UsageFrequency > matches[j].Entry.UsageFrequency
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// patternScore mirrors the relevance formula's keyword/tag-overlap
// philosophy: token hits in content weigh 0.6, concept/tag overlap 0.4.
func patternScore(m model.MemoryEntry, tokens, concepts []string) float64 {
	score := 0.0

	if len(tokens) > 0 {
		content := strings.ToLower(m.Content)
		hits := 0
		for _, t := range tokens {
			if strings.Contains(content, t) {
				hits++
			}
		}
		score += 0.6 * float64(hits) / float64(len(tokens))
	}

	if len(concepts) > 0 {
		overlap := 0
		for _, c := range concepts {
			for _, tag := range m.CrossDomainConnections {
				if c == tag {
					overlap++
					break
				}
			}
		}
		score += 0.4 * float64(overlap) / float64(len(concepts))
	}

	if score > 1 {
		score = 1
	}
	return score
}

// Pollination is the cross-pollinate result for one concept.
type Pollination struct {
	Concept        string              `json:"concept"`
	SourceDomains  []string            `json:"source_domains"`
	Bridges        []store.Bridge      `json:"bridges"`
	BridgedEntries []model.MemoryEntry `json:"bridged_entries"`
}

// CrossPollinate maps a concept through the domain-bridge table and
// returns entries filed under the bridged domains.
func (e *Engine) CrossPollinate(ctx context.Context, appID, concept string) (*Pollination, error) {
	if strings.TrimSpace(concept) == "" {
		return nil, errs.Validation("concept is required")
	}

	if _, err := e.store.GetApp(ctx, appID); err != nil {
		return nil, err
	}

	domains := analyzer.Analyze(concept, "").KeyConcepts
	if len(domains) == 0 {
		domains = topicTokens(concept)
	}

	bridges, err := e.store.BridgesFor(ctx, domains)
	if err != nil {
		return nil, errs.Upstream("bridge lookup", err)
	}

	var bridgedDomains []string
	for _, b := range bridges {
		bridgedDomains = append(bridgedDomains, b.BridgedDomain)
	}

	entries, err := e.store.EntriesByTags(ctx, bridgedDomains, 20)
	if err != nil {
		return nil, errs.Upstream("bridged entries", err)
	}

	return &Pollination{
		Concept:        concept,
		SourceDomains:  domains,
		Bridges:        bridges,
		BridgedEntries: entries,
	}, nil
}

func topicTokens(topic string) []string {
	var tokens []string
	for _, f := range strings.Fields(strings.ToLower(topic)) {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
