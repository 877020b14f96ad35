package store

import (
	"context"
	"testing"

	"github.com/calyx-ai/memory-engine/internal/errs"
)

func seedCluster(t *testing.T, s *SQLiteStore, indexKey, subindexKey string) TaxonomyRef {
	t.Helper()
	ref, err := s.ResolveCategoryAndCluster(context.Background(), indexKey, subindexKey)
	if err != nil {
		t.Fatalf("resolve taxonomy: %v", err)
	}
	return ref
}

func TestInsertEntryAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ref := seedCluster(t, s, "backend", "api-design")

	e, err := s.InsertEntry(ctx, EntryParams{
		ClusterID:              ref.ClusterID,
		Content:                "REST endpoints should be nouns",
		ReasoningChain:         "verbs belong in methods",
		CrossDomainConnections: []string{"api"},
		SessionContext:         "ext-1",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != e.Content || got.ClusterID != ref.ClusterID {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.CrossDomainConnections) != 1 || got.CrossDomainConnections[0] != "api" {
		t.Errorf("tags not preserved: %v", got.CrossDomainConnections)
	}
}

func TestFullTextSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ref := seedCluster(t, s, "backend", "api-design")

	s.InsertEntry(ctx, EntryParams{ClusterID: ref.ClusterID, Content: "pagination cursors beat offsets"})
	s.InsertEntry(ctx, EntryParams{ClusterID: ref.ClusterID, Content: "retry with exponential backoff"})

	hits, err := s.FullTextSearch(ctx, "pagination cursors", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "pagination cursors beat offsets" {
		t.Errorf("unexpected hits: %+v", hits)
	}

	// Punctuation in the query must not break the match expression.
	if _, err := s.FullTextSearch(ctx, `"retry?" (backoff)`, 10); err != nil {
		t.Errorf("quoted query failed: %v", err)
	}
}

func TestEntriesForClusters_TermAndConceptMatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ref := seedCluster(t, s, "backend", "api-design")

	s.InsertEntry(ctx, EntryParams{ClusterID: ref.ClusterID, Content: "token refresh flow"})
	s.InsertEntry(ctx, EntryParams{
		ClusterID: ref.ClusterID, Content: "unrelated note",
		CrossDomainConnections: []string{"authentication"},
	})
	s.InsertEntry(ctx, EntryParams{ClusterID: ref.ClusterID, Content: "grocery list"})

	got, err := s.EntriesForClusters(ctx, []string{ref.ClusterID},
		[]string{"token"}, []string{"authentication"}, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
}

func TestTouchEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ref := seedCluster(t, s, "backend", "api-design")

	e, _ := s.InsertEntry(ctx, EntryParams{ClusterID: ref.ClusterID, Content: "touched"})

	if err := s.TouchEntries(ctx, []string{e.ID}); err != nil {
		t.Fatal(err)
	}
	if err := s.TouchEntries(ctx, []string{e.ID}); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetEntry(ctx, e.ID)
	if got.UsageFrequency != 2 {
		t.Errorf("usage frequency = %d, want 2", got.UsageFrequency)
	}
	if got.AccessedAt == nil {
		t.Error("accessed_at not set")
	}
}

func TestLinkEntriesAndRelated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ref := seedCluster(t, s, "backend", "api-design")

	a, _ := s.InsertEntry(ctx, EntryParams{ClusterID: ref.ClusterID, Content: "a"})
	b, _ := s.InsertEntry(ctx, EntryParams{ClusterID: ref.ClusterID, Content: "b"})
	c, _ := s.InsertEntry(ctx, EntryParams{ClusterID: ref.ClusterID, Content: "c"})

	if err := s.LinkEntries(ctx, a.ID, b.ID, "relates_to", 8); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkEntries(ctx, a.ID, c.ID, "refines", 3); err != nil {
		t.Fatal(err)
	}

	related, err := s.RelatedEntries(ctx, []string{a.ID}, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(related) != 1 || related[0].ID != b.ID {
		t.Errorf("expected only the strong link, got %+v", related)
	}
}

func TestLinkEntries_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ref := seedCluster(t, s, "backend", "api-design")

	a, _ := s.InsertEntry(ctx, EntryParams{ClusterID: ref.ClusterID, Content: "a"})
	b, _ := s.InsertEntry(ctx, EntryParams{ClusterID: ref.ClusterID, Content: "b"})

	if err := s.LinkEntries(ctx, a.ID, b.ID, "loves", 5); !errs.IsValidation(err) {
		t.Errorf("expected validation error for bad relation, got %v", err)
	}
	if err := s.LinkEntries(ctx, a.ID, b.ID, "relates_to", 11); !errs.IsValidation(err) {
		t.Errorf("expected validation error for out-of-range strength, got %v", err)
	}
}

func TestEntriesByTags(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ref := seedCluster(t, s, "backend", "api-design")

	s.InsertEntry(ctx, EntryParams{
		ClusterID: ref.ClusterID, Content: "cache invalidation notes",
		CrossDomainConnections: []string{"optimization", "database"},
	})
	s.InsertEntry(ctx, EntryParams{ClusterID: ref.ClusterID, Content: "untagged"})

	got, err := s.EntriesByTags(ctx, []string{"optimization"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "cache invalidation notes" {
		t.Errorf("unexpected result: %+v", got)
	}
}
