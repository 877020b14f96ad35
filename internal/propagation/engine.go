package propagation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/calyx-ai/memory-engine/internal/errs"
	"github.com/calyx-ai/memory-engine/internal/model"
	"github.com/calyx-ai/memory-engine/internal/store"
)

// Engine propagates insights between tenant apps.
type Engine struct {
	store *store.SQLiteStore
	log   *slog.Logger
}

// New builds a propagation engine.
func New(s *store.SQLiteStore, log *slog.Logger) *Engine {
	return &Engine{store: s, log: log}
}

// Delivery reports one accepted target.
type Delivery struct {
	TargetApp       string                  `json:"target_app"`
	CommunicationID string                  `json:"communication_id"`
	RelevanceScore  float64                 `json:"relevance_score"`
	Translated      model.TranslatedInsight `json:"translated"`
}

// Propagate scores the insight against each candidate target and
// persists a pending communication for every target above the
// threshold. A failed insert for one target does not abort the rest.
func (e *Engine) Propagate(ctx context.Context, insight model.InsightPackage, sourceAppID string, targetAppIDs []string) ([]Delivery, error) {
	if strings.TrimSpace(sourceAppID) == "" {
		return nil, errs.Validation("source app id is required")
	}
	if strings.TrimSpace(insight.InsightType) == "" {
		return nil, errs.Validation("insight type is required")
	}

	source, err := e.store.GetApp(ctx, sourceAppID)
	if err != nil {
		return nil, err
	}

	var targets []model.App
	if len(targetAppIDs) > 0 {
		for _, id := range targetAppIDs {
			t, err := e.store.GetApp(ctx, id)
			if err != nil {
				if errs.IsNotFound(err) {
					e.log.Warn("skipping unknown target app", "app", id)
					continue
				}
				return nil, err
			}
			targets = append(targets, *t)
		}
	} else {
		targets, err = e.store.EligibleTargets(ctx, sourceAppID)
		if err != nil {
			return nil, errs.Upstream("discover targets", err)
		}
	}

	deliveries := []Delivery{}
	for _, target := range targets {
		rel := Relevance(insight, *source, target)
		if rel < MinRelevance {
			continue
		}

		translated := Translate(insight, *source, target, rel)
		commID, err := e.store.InsertCommunication(ctx, model.Communication{
			SourceApp:      source.ID,
			TargetApp:      target.ID,
			Insight:        translated,
			RelevanceScore: rel,
		})
		if err != nil {
			e.log.Error("communication insert failed", "target", target.ID, "error", err)
			continue
		}

		deliveries = append(deliveries, Delivery{
			TargetApp:       target.ID,
			CommunicationID: commID,
			RelevanceScore:  rel,
			Translated:      translated,
		})
	}

	return deliveries, nil
}
