package store

import (
	"context"
	"testing"

	"github.com/calyx-ai/memory-engine/internal/errs"
	"github.com/calyx-ai/memory-engine/internal/model"
)

func TestUpsertApp_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	app := model.App{
		ID: "notes", Name: "Notes", Type: "internal",
		Domains: []string{"ui", "database"},
		Internal: true, AIEnabled: true, Active: true,
	}
	if err := s.UpsertApp(ctx, app); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetApp(ctx, "notes")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Notes" || !got.Internal || !got.AIEnabled || !got.Active {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.Domains) != 2 {
		t.Errorf("domains not preserved: %v", got.Domains)
	}

	// Update in place.
	app.Active = false
	s.UpsertApp(ctx, app)
	got, _ = s.GetApp(ctx, "notes")
	if got.Active {
		t.Error("expected deactivated app")
	}
}

func TestUpsertApp_Validation(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertApp(context.Background(), model.App{Name: "no id"}); !errs.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpsertApp_DefaultsType(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertApp(ctx, model.App{ID: "plain", Active: true})
	got, _ := s.GetApp(ctx, "plain")
	if got.Type != "external" {
		t.Errorf("expected default type external, got %q", got.Type)
	}
}

func TestGetApp_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetApp(context.Background(), "ghost"); !errs.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestEligibleTargets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.SyncApps(ctx, []model.App{
		{ID: "source", Internal: true, Active: true},
		{ID: "internal-app", Internal: true, Active: true},
		{ID: "ai-app", AIEnabled: true, Active: true},
		{ID: "plain-app", Active: true},
		{ID: "inactive-app", Internal: true, Active: false},
	})
	if err != nil || n != 5 {
		t.Fatalf("sync: n=%d err=%v", n, err)
	}

	targets, err := s.EligibleTargets(ctx, "source")
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, a := range targets {
		ids[a.ID] = true
	}
	if len(targets) != 2 || !ids["internal-app"] || !ids["ai-app"] {
		t.Errorf("unexpected targets: %v", ids)
	}
}

func TestCommunications_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.InsertCommunication(ctx, model.Communication{
		SourceApp: "source", TargetApp: "notes", RelevanceScore: 0.7,
		Insight: model.TranslatedInsight{RelevanceScore: 0.7},
	})
	if err != nil {
		t.Fatal(err)
	}

	pending, err := s.ListCommunications(ctx, model.CommStatusPending, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("expected one pending communication, got %+v", pending)
	}
	if pending[0].Insight.RelevanceScore != 0.7 {
		t.Errorf("insight payload not preserved: %+v", pending[0].Insight)
	}

	if err := s.MarkCommunicationProcessed(ctx, id); err != nil {
		t.Fatal(err)
	}
	pending, _ = s.ListCommunications(ctx, model.CommStatusPending, 10)
	if len(pending) != 0 {
		t.Errorf("expected no pending communications, got %d", len(pending))
	}
	processed, _ := s.ListCommunications(ctx, model.CommStatusProcessed, 10)
	if len(processed) != 1 {
		t.Errorf("expected one processed communication, got %d", len(processed))
	}
}

func TestBridgesFor(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Seeded on migration.
	bridges, err := s.BridgesFor(ctx, []string{"debugging"})
	if err != nil {
		t.Fatal(err)
	}
	if len(bridges) == 0 {
		t.Fatal("expected seeded bridges for debugging")
	}
	for i := 1; i < len(bridges); i++ {
		if bridges[i].Affinity > bridges[i-1].Affinity {
			t.Errorf("bridges not ordered by affinity: %+v", bridges)
		}
	}

	if err := s.UpsertBridge(ctx, Bridge{Domain: "debugging", BridgedDomain: "testing", Affinity: 0.9}); err != nil {
		t.Fatal(err)
	}
	bridges, _ = s.BridgesFor(ctx, []string{"debugging"})
	if bridges[0].BridgedDomain != "testing" {
		t.Errorf("expected strongest bridge first, got %+v", bridges[0])
	}
}
