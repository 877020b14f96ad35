package ingest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/calyx-ai/memory-engine/internal/errs"
	"github.com/calyx-ai/memory-engine/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(s, log), s
}

func intPtr(i int) *int { return &i }

func TestIngest_FullThread(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	res, err := svc.Ingest(ctx, ThreadDescriptor{
		ExternalID: "ext-1",
		AppSource:  "notes",
		Title:      "Debugging session",
		IndexKey:   "backend",
		Turns: []TurnDescriptor{
			{TurnIndex: intPtr(0), UserText: "hello", AssistantResponse: "hi"},
			{TurnIndex: intPtr(1), UserText: "why is it slow?", AssistantResponse: "indexes"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ThreadID == "" {
		t.Error("expected thread id")
	}
	if res.TurnsTouched != 2 || res.EntriesCreated != 2 {
		t.Errorf("unexpected counts: %+v", res)
	}
}

func TestIngest_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)

	d := ThreadDescriptor{
		ExternalID: "ext-1",
		AppSource:  "notes",
		Turns: []TurnDescriptor{
			{TurnIndex: intPtr(0), UserText: "hello", AssistantResponse: "hi"},
		},
	}

	first, err := svc.Ingest(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Ingest(ctx, d)
	if err != nil {
		t.Fatal(err)
	}

	if second.ThreadID != first.ThreadID {
		t.Errorf("thread id changed on re-ingest: %s vs %s", first.ThreadID, second.ThreadID)
	}
	if second.EntriesCreated != 0 {
		t.Errorf("re-ingest created %d entries, want 0", second.EntriesCreated)
	}

	exists, err := s.HasEntryForMirrorKey(ctx, "ext-1:0")
	if err != nil || !exists {
		t.Fatalf("expected single mirror entry ext-1:0, exists=%v err=%v", exists, err)
	}
}

func TestIngest_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Ingest(context.Background(), ThreadDescriptor{AppSource: "notes"}); !errs.IsValidation(err) {
		t.Errorf("expected validation error for missing external id, got %v", err)
	}
}

func TestIngest_SkipsEmptyTurns(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	res, err := svc.Ingest(ctx, ThreadDescriptor{
		ExternalID: "ext-1",
		AppSource:  "notes",
		Turns: []TurnDescriptor{
			{AssistantThinkingSummary: "pure thinking, nothing said"},
			{UserText: "real question", AssistantResponse: "real answer"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.TurnsTouched != 1 || res.EntriesCreated != 1 {
		t.Errorf("empty turn must not count: %+v", res)
	}
}

func TestIngest_ThreadOnly(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)

	res, err := svc.Ingest(ctx, ThreadDescriptor{ExternalID: "ext-1", AppSource: "notes"})
	if err != nil {
		t.Fatal(err)
	}
	if res.TurnsTouched != 0 {
		t.Errorf("expected no turns, got %d", res.TurnsTouched)
	}

	th, err := s.GetThread(ctx, "ext-1")
	if err != nil {
		t.Fatal(err)
	}
	if th.ID != res.ThreadID {
		t.Errorf("thread not persisted: %+v", th)
	}
}
