// Package analyzer classifies free-text queries into an intent
// category and coarse key concepts. It is a deterministic rule table,
// not a learned classifier, so results are reproducible and testable
// without a model dependency.
package analyzer

import (
	"strings"

	"github.com/calyx-ai/memory-engine/internal/model"
)

// Intent categories.
const (
	IntentUnderstandConcept = "understand-concept"
	IntentSolveProblem      = "solve-problem"
	IntentFindExamples      = "find-examples"
	IntentQuickReference    = "quick-reference"
	IntentFindInformation   = "find-information"
)

// Expected complexity levels.
const (
	ComplexityDetailed = "detailed-explanations"
	ComplexityChains   = "complex-reasoning-chains"
	ComplexityFacts    = "quick-facts"
)

// intentRule is one (predicate, result) pair. Rules are evaluated in
// order; the first match wins. Problem-solving words are tested before
// the wh-words so "how do I fix …" classifies as solve-problem.
type intentRule struct {
	match           func(q string) bool
	intent          string
	complexity      string
	priorityDomains []string
}

var intentRules = []intentRule{
	{
		match:           containsAny("error", "debug", "fix", "issue"),
		intent:          IntentSolveProblem,
		complexity:      ComplexityChains,
		priorityDomains: []string{"debugging", "problem-solving"},
	},
	{
		match:      containsAny("how", "what", "why"),
		intent:     IntentUnderstandConcept,
		complexity: ComplexityDetailed,
	},
	{
		match:      containsAny("build", "implement", "create"),
		intent:     IntentFindExamples,
		complexity: ComplexityDetailed,
	},
	{
		match:      containsAny("quick", "command", "syntax"),
		intent:     IntentQuickReference,
		complexity: ComplexityFacts,
	},
}

// conceptBucket fires when the query contains any trigger word.
type conceptBucket struct {
	name     string
	triggers []string
}

var conceptBuckets = []conceptBucket{
	{"react", []string{"react", "component", "jsx", "hook"}},
	{"database", []string{"database", "sql", "query", "schema"}},
	{"api", []string{"api", "endpoint", "rest", "request"}},
	{"mobile", []string{"mobile", "ios", "android"}},
	{"ui", []string{"ui", "design", "layout", "css"}},
	{"authentication", []string{"auth", "login", "password", "token"}},
	{"deployment", []string{"deploy", "docker", "production", "release"}},
	{"debugging", []string{"error", "bug", "debug", "fix", "crash"}},
	{"optimization", []string{"performance", "optimize", "slow", "cache"}},
}

var whWords = []string{"how", "what", "why", "when", "where", "which", "who"}

// Analyze classifies a query. The optional intent context participates
// in intent and concept matching but not in confidence scoring.
func Analyze(query, intentContext string) model.QueryAnalysis {
	q := strings.ToLower(strings.TrimSpace(query))
	combined := q
	if intentContext != "" {
		combined += " " + strings.ToLower(intentContext)
	}

	a := model.QueryAnalysis{
		SearchIntent:       IntentFindInformation,
		ExpectedComplexity: ComplexityDetailed,
	}
	for _, r := range intentRules {
		if r.match(combined) {
			a.SearchIntent = r.intent
			a.ExpectedComplexity = r.complexity
			a.PriorityDomains = r.priorityDomains
			break
		}
	}

	for _, b := range conceptBuckets {
		for _, t := range b.triggers {
			if strings.Contains(combined, t) {
				a.KeyConcepts = append(a.KeyConcepts, b.name)
				break
			}
		}
	}

	a.Confidence = confidence(q, len(a.KeyConcepts) > 0)
	return a
}

// confidence starts at 5 and is capped at 10.
func confidence(q string, hasConcepts bool) int {
	c := 5
	if len(q) > 10 {
		c++
	}
	if hasConcepts {
		c += 2
	}
	if strings.Contains(q, "?") {
		c++
	}
	for _, w := range whWords {
		if strings.HasPrefix(q, w) {
			c++
			break
		}
	}
	if c > 10 {
		c = 10
	}
	return c
}

func containsAny(subs ...string) func(string) bool {
	return func(q string) bool {
		for _, s := range subs {
			if strings.Contains(q, s) {
				return true
			}
		}
		return false
	}
}
