package propagation

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/calyx-ai/memory-engine/internal/errs"
	"github.com/calyx-ai/memory-engine/internal/model"
	"github.com/calyx-ai/memory-engine/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(s, log), s
}

func seedApps(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	_, err := s.SyncApps(context.Background(), []model.App{
		{ID: "source", Name: "Source", Type: "internal", Internal: true, Active: true},
		{ID: "sibling", Name: "Sibling", Type: "internal", Internal: true, Active: true},
		{ID: "partner", Name: "Partner", Type: "external", AIEnabled: true, Active: true},
		{ID: "dormant", Name: "Dormant", Type: "internal", Internal: true, Active: false},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPropagate_Validation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	if _, err := e.Propagate(ctx, model.InsightPackage{InsightType: "optimization"}, "", nil); !errs.IsValidation(err) {
		t.Errorf("expected validation error for empty source, got %v", err)
	}
	if _, err := e.Propagate(ctx, model.InsightPackage{}, "source", nil); !errs.IsValidation(err) {
		t.Errorf("expected validation error for empty insight type, got %v", err)
	}
}

func TestPropagate_UnknownSource(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.Propagate(ctx, model.InsightPackage{InsightType: "optimization"}, "ghost", nil)
	if !errs.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestPropagate_DiscoveredTargets(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	seedApps(t, s)

	insight := model.InsightPackage{
		InsightType:          "optimization",
		ConfidenceLevel:      0.8,
		TransferabilityScore: 0.9,
	}

	deliveries, err := e.Propagate(ctx, insight, "source", nil)
	if err != nil {
		t.Fatal(err)
	}

	got := map[string]Delivery{}
	for _, d := range deliveries {
		got[d.TargetApp] = d
	}
	// sibling: 0.45 + 0.3 + 0.2 = 0.95; partner: 0.45 only. Both pass
	// the 0.3 floor. The dormant app is never discovered.
	if len(deliveries) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(deliveries))
	}
	if _, ok := got["dormant"]; ok {
		t.Error("inactive app must not receive insights")
	}
	if got["sibling"].RelevanceScore <= got["partner"].RelevanceScore {
		t.Errorf("sibling should outrank partner: %f vs %f",
			got["sibling"].RelevanceScore, got["partner"].RelevanceScore)
	}

	// Each delivery left a pending communication behind.
	pending, err := s.ListCommunications(ctx, model.CommStatusPending, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Errorf("expected 2 pending communications, got %d", len(pending))
	}
}

func TestPropagate_ThresholdCutoff(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	seedApps(t, s)

	// partner (external) ends at 0.5*0.2 = 0.1, below the floor;
	// sibling still clears it on the type terms.
	insight := model.InsightPackage{
		InsightType:          "user-behavior",
		TransferabilityScore: 0.2,
	}

	deliveries, err := e.Propagate(ctx, insight, "source", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(deliveries) != 1 || deliveries[0].TargetApp != "sibling" {
		t.Errorf("expected only sibling, got %+v", deliveries)
	}
}

func TestPropagate_ExplicitTargets(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	seedApps(t, s)

	insight := model.InsightPackage{
		InsightType:          "error-pattern",
		TransferabilityScore: 0.9,
	}

	// An unknown explicit target is skipped, not fatal. The dormant app
	// can be targeted explicitly since discovery rules do not apply.
	deliveries, err := e.Propagate(ctx, insight, "source", []string{"partner", "ghost", "dormant"})
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, d := range deliveries {
		got[d.TargetApp] = true
	}
	if len(deliveries) != 2 || !got["partner"] || !got["dormant"] {
		t.Errorf("expected partner and dormant, got %+v", deliveries)
	}
}

func TestPropagate_NoTargetsReturnsEmptySlice(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	s.UpsertApp(ctx, model.App{ID: "source", Type: "internal", Internal: true, Active: true})

	deliveries, err := e.Propagate(ctx, model.InsightPackage{InsightType: "optimization", TransferabilityScore: 1}, "source", nil)
	if err != nil {
		t.Fatal(err)
	}
	if deliveries == nil || len(deliveries) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", deliveries)
	}
}

func TestPropagate_TranslationPerTarget(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	seedApps(t, s)

	insight := model.InsightPackage{
		InsightType:          "retention",
		ConfidenceLevel:      1.0,
		TransferabilityScore: 0.9,
	}

	deliveries, err := e.Propagate(ctx, insight, "source", []string{"sibling"})
	if err != nil {
		t.Fatal(err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(deliveries))
	}
	tr := deliveries[0].Translated
	if tr.TranslatedFor != "sibling" {
		t.Errorf("translated for %q, want sibling", tr.TranslatedFor)
	}
	if tr.ConfidenceAdjusted != deliveries[0].RelevanceScore {
		t.Errorf("confidence adjusted = %f, want relevance %f for confidence 1.0",
			tr.ConfidenceAdjusted, deliveries[0].RelevanceScore)
	}
}
