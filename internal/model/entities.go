// Package model defines the engine's core data types.
package model

import "time"

// IndexCategory is the top level of the taxonomy used to file memory
// entries. Categories are created lazily on first reference and never
// deleted during normal operation.
type IndexCategory struct {
	ID              string    `json:"id"`
	Key             string    `json:"key"`
	Name            string    `json:"name"`
	IntentType      string    `json:"intent_type"`
	ComplexityLevel string    `json:"complexity_level"`
	CreatedAt       time.Time `json:"created_at"`
}

// SubIndexCluster belongs to exactly one IndexCategory. Its key is
// unique within its parent category, not globally.
type SubIndexCluster struct {
	ID               string    `json:"id"`
	CategoryID       string    `json:"category_id"`
	Key              string    `json:"key"`
	Name             string    `json:"name"`
	SemanticKeywords []string  `json:"semantic_keywords,omitempty"`
	ConfidenceLevel  int       `json:"confidence_level"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MemoryEntry is the atomic unit of recall. ClusterID is a weak
// back-reference; an entry without one is reachable only through the
// full-text fallback.
type MemoryEntry struct {
	ID                     string     `json:"id"`
	ClusterID              string     `json:"cluster_id,omitempty"`
	Content                string     `json:"content"`
	ReasoningChain         string     `json:"reasoning_chain,omitempty"`
	UserIntentAnalysis     string     `json:"user_intent_analysis,omitempty"`
	CrossDomainConnections []string   `json:"cross_domain_connections,omitempty"`
	SessionContext         string     `json:"session_context,omitempty"`
	UsageFrequency         int        `json:"usage_frequency"`
	CreatedAt              time.Time  `json:"created_at"`
	AccessedAt             *time.Time `json:"accessed_at,omitempty"`
}

// ThreadMetadata replaces the source's free-form metadata column with
// an explicit structure.
type ThreadMetadata struct {
	Channel       string   `json:"channel,omitempty"`
	ClientVersion string   `json:"client_version,omitempty"`
	Labels        []string `json:"labels,omitempty"`
}

// Thread is one external conversation, keyed by a caller-supplied
// ExternalID that is globally unique per AppSource.
type Thread struct {
	ID         string         `json:"id"`
	ExternalID string         `json:"external_id"`
	AppSource  string         `json:"app_source"`
	Title      string         `json:"title,omitempty"`
	Context    string         `json:"context,omitempty"`
	Metadata   ThreadMetadata `json:"metadata,omitempty"`
	CategoryID string         `json:"category_id,omitempty"`
	ClusterID  string         `json:"cluster_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TurnMessage is one raw message kept for audit.
type TurnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnMetadata holds per-turn structured metadata.
type TurnMetadata struct {
	Model     string   `json:"model,omitempty"`
	LatencyMS int64    `json:"latency_ms,omitempty"`
	Labels    []string `json:"labels,omitempty"`
}

// Turn is one exchange within a Thread, idempotent on
// (thread, external_turn_id).
type Turn struct {
	ID                string        `json:"id"`
	ThreadID          string        `json:"thread_id"`
	ExternalTurnID    string        `json:"external_turn_id"`
	TurnIndex         int           `json:"turn_index"`
	UserText          string        `json:"user_text,omitempty"`
	AssistantResponse string        `json:"assistant_response,omitempty"`
	ThinkingSummary   string        `json:"assistant_thinking_summary,omitempty"`
	Synthesis         string        `json:"assistant_synthesis,omitempty"`
	CodeSummary       string        `json:"code_summary,omitempty"`
	RawMessages       []TurnMessage `json:"raw_messages,omitempty"`
	Metadata          TurnMetadata  `json:"metadata,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// App is one registered tenant application.
type App struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Domains   []string `json:"domains,omitempty"`
	Internal  bool     `json:"internal"`
	AIEnabled bool     `json:"ai_enabled"`
	Active    bool     `json:"active"`
}

// InsightPackage is an ephemeral insight produced by one app and fed to
// the propagation engine. It is never persisted as its own entity.
type InsightPackage struct {
	InsightType          string   `json:"insight_type"`
	PatternData          string   `json:"pattern_data,omitempty"`
	Discovery            string   `json:"discovery,omitempty"`
	ConfidenceLevel      float64  `json:"confidence_level"`
	DomainTags           []string `json:"domain_tags,omitempty"`
	TransferabilityScore float64  `json:"transferability_score"`
}

// TranslatedInsight is the per-target adaptation of an InsightPackage.
type TranslatedInsight struct {
	InsightType          string  `json:"insight_type"`
	PatternData          string  `json:"pattern_data,omitempty"`
	Discovery            string  `json:"discovery,omitempty"`
	TranslatedFor        string  `json:"translated_for"`
	TranslationContext   string  `json:"translation_context"`
	SuggestedApplication string  `json:"suggested_application"`
	RelevanceScore       float64 `json:"relevance_score"`
	ConfidenceAdjusted   float64 `json:"confidence_adjusted"`
}

// Communication statuses.
const (
	CommStatusPending   = "pending"
	CommStatusProcessed = "processed"
)

// Communication is one insight offered from a source app to a target
// app, with its computed relevance and processing status.
type Communication struct {
	ID             string            `json:"id"`
	SourceApp      string            `json:"source_app"`
	TargetApp      string            `json:"target_app"`
	Insight        TranslatedInsight `json:"insight"`
	RelevanceScore float64           `json:"relevance_score"`
	Status         string            `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
}

// QueryAnalysis is the analyzer's classification of a free-text query.
type QueryAnalysis struct {
	SearchIntent       string   `json:"search_intent"`
	ExpectedComplexity string   `json:"expected_complexity"`
	PriorityDomains    []string `json:"priority_domains,omitempty"`
	KeyConcepts        []string `json:"key_concepts,omitempty"`
	Confidence         int      `json:"confidence"`
}
