// Package propagation computes cross-app relevance for insights and
// decides which tenant apps receive a translated copy.
package propagation

import "github.com/calyx-ai/memory-engine/internal/model"

// MinRelevance is the minimum-signal threshold below which a target is
// skipped, so low-relevance tenants are not flooded.
const MinRelevance = 0.3

// Relevance scores how applicable an insight from source is to target,
// in [0,1]. An empty domain-tag list contributes 0 to the overlap term.
func Relevance(insight model.InsightPackage, source, target model.App) float64 {
	score := 0.5 * insight.TransferabilityScore

	if source.Type == target.Type {
		score += 0.3
	}
	if source.Type == "internal" && target.Type == "internal" {
		score += 0.2
	}

	if len(insight.DomainTags) > 0 {
		overlap := 0
		for _, tag := range insight.DomainTags {
			for _, d := range target.Domains {
				if tag == d {
					overlap++
					break
				}
			}
		}
		score += 0.3 * float64(overlap) / float64(len(insight.DomainTags))
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Translate adapts an insight for one target app.
func Translate(insight model.InsightPackage, source, target model.App, relevance float64) model.TranslatedInsight {
	return model.TranslatedInsight{
		InsightType:          insight.InsightType,
		PatternData:          insight.PatternData,
		Discovery:            insight.Discovery,
		TranslatedFor:        target.ID,
		TranslationContext:   "adapted from " + source.Name + " (" + source.Type + ") for " + target.Name + " (" + target.Type + ")",
		SuggestedApplication: suggestApplication(insight.InsightType),
		RelevanceScore:       relevance,
		ConfidenceAdjusted:   insight.ConfidenceLevel * relevance,
	}
}

// suggestApplication is a small rule table keyed by insight type.
func suggestApplication(insightType string) string {
	switch insightType {
	case "optimization":
		return "apply the pattern to your slowest workflows first"
	case "user-behavior":
		return "compare against your own usage patterns before acting"
	case "error-pattern":
		return "check whether the same failure mode exists in your flows"
	case "retention":
		return "evaluate against your engagement funnels"
	default:
		return "review the discovery for applicable workflows"
	}
}
