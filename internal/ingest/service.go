// Package ingest implements the external ingest operation: one thread
// descriptor with nested turns, upserted idempotently.
package ingest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/calyx-ai/memory-engine/internal/errs"
	"github.com/calyx-ai/memory-engine/internal/model"
	"github.com/calyx-ai/memory-engine/internal/store"
)

// Service wraps the conversation store for ingestion.
type Service struct {
	store *store.SQLiteStore
	log   *slog.Logger
}

// New builds an ingestion service.
func New(s *store.SQLiteStore, log *slog.Logger) *Service {
	return &Service{store: s, log: log}
}

// TurnDescriptor is one turn in an ingest request.
type TurnDescriptor struct {
	TurnIndex                *int                `json:"turnIndex,omitempty"`
	ExternalTurnID           string              `json:"externalTurnId,omitempty"`
	UserText                 string              `json:"userText,omitempty"`
	AssistantResponse        string              `json:"assistantResponse,omitempty"`
	AssistantThinkingSummary string              `json:"assistantThinkingSummary,omitempty"`
	AssistantSynthesis       string              `json:"assistantSynthesis,omitempty"`
	CodeSummary              string              `json:"codeSummary,omitempty"`
	RawMessages              []model.TurnMessage `json:"rawMessages,omitempty"`
	Metadata                 model.TurnMetadata  `json:"metadata,omitempty"`
}

// ThreadDescriptor is the ingest request body.
type ThreadDescriptor struct {
	ExternalID  string               `json:"externalId"`
	AppSource   string               `json:"appSource"`
	Title       string               `json:"title,omitempty"`
	Context     string               `json:"context,omitempty"`
	IndexKey    string               `json:"indexKey,omitempty"`
	SubindexKey string               `json:"subindexKey,omitempty"`
	Metadata    model.ThreadMetadata `json:"metadata,omitempty"`
	Turns       []TurnDescriptor     `json:"turns,omitempty"`
}

// Result is the ingest response.
type Result struct {
	ThreadID       string `json:"threadId"`
	TurnsTouched   int    `json:"turnsTouched"`
	EntriesCreated int    `json:"entriesCreated"`
}

// Ingest upserts the thread and all nested turns. Re-ingesting the
// same payload touches the same rows and creates no duplicate entries.
func (s *Service) Ingest(ctx context.Context, d ThreadDescriptor) (*Result, error) {
	if strings.TrimSpace(d.ExternalID) == "" {
		return nil, errs.Validation("external id is required")
	}

	threadID, err := s.store.UpsertThread(ctx, store.ThreadParams{
		ExternalID:  d.ExternalID,
		AppSource:   d.AppSource,
		Title:       d.Title,
		Context:     d.Context,
		Metadata:    d.Metadata,
		IndexKey:    d.IndexKey,
		SubindexKey: d.SubindexKey,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{ThreadID: threadID}
	for i, t := range d.Turns {
		tr, err := s.store.UpsertTurn(ctx, store.TurnParams{
			ThreadID:          threadID,
			TurnIndex:         t.TurnIndex,
			ExternalTurnID:    t.ExternalTurnID,
			UserText:          t.UserText,
			AssistantResponse: t.AssistantResponse,
			ThinkingSummary:   t.AssistantThinkingSummary,
			Synthesis:         t.AssistantSynthesis,
			CodeSummary:       t.CodeSummary,
			RawMessages:       t.RawMessages,
			Metadata:          t.Metadata,
		})
		if err != nil {
			return nil, err
		}
		if tr.Skipped {
			s.log.Debug("skipped empty turn", "thread", d.ExternalID, "position", i)
			continue
		}
		res.TurnsTouched++
		if tr.EntryCreated {
			res.EntriesCreated++
		}
	}

	return res, nil
}
