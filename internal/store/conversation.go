package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calyx-ai/memory-engine/internal/errs"
	"github.com/calyx-ai/memory-engine/internal/model"
)

// ThreadParams holds the upsert input for one conversation thread.
type ThreadParams struct {
	ExternalID  string
	AppSource   string
	Title       string
	Context     string
	Metadata    model.ThreadMetadata
	IndexKey    string
	SubindexKey string
}

// UpsertThread resolves taxonomy placement, then inserts or updates the
// thread matched by external_id. Safe under concurrent calls for the
// same external id; the last writer wins on mutable fields.
func (s *SQLiteStore) UpsertThread(ctx context.Context, p ThreadParams) (string, error) {
	if strings.TrimSpace(p.ExternalID) == "" {
		return "", errs.Validation("external id is required")
	}
	appSource := p.AppSource
	if appSource == "" {
		appSource = "unknown"
	}

	ref, err := s.ResolveCategoryAndCluster(ctx, p.IndexKey, p.SubindexKey)
	if err != nil {
		return "", errs.Upstream("resolve taxonomy", err)
	}

	metaJSON, _ := json.Marshal(p.Metadata)
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO threads (id, external_id, app_source, title, context, metadata, category_id, cluster_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_id) DO UPDATE SET
		   title = excluded.title,
		   context = excluded.context,
		   metadata = excluded.metadata,
		   category_id = excluded.category_id,
		   cluster_id = excluded.cluster_id,
		   updated_at = excluded.updated_at`,
		s.newID(), p.ExternalID, appSource, p.Title, p.Context, string(metaJSON),
		ref.CategoryID, ref.ClusterID, now, now)
	if err != nil {
		return "", errs.Upstream("upsert thread", err)
	}

	var id string
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM threads WHERE external_id = ?`, p.ExternalID).Scan(&id); err != nil {
		return "", errs.Upstream("resolve thread id", err)
	}
	return id, nil
}

// GetThread returns a thread by its external id.
func (s *SQLiteStore) GetThread(ctx context.Context, externalID string) (*model.Thread, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, external_id, app_source, title, context, metadata, category_id, cluster_id, created_at, updated_at
		 FROM threads WHERE external_id = ?`, externalID)

	var t model.Thread
	var title, context_, metaJSON, categoryID, clusterID sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.ExternalID, &t.AppSource, &title, &context_, &metaJSON, &categoryID, &clusterID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("thread", externalID)
	}
	if err != nil {
		return nil, errs.Upstream("get thread", err)
	}

	t.Title = title.String
	t.Context = context_.String
	t.CategoryID = categoryID.String
	t.ClusterID = clusterID.String
	if metaJSON.Valid {
		json.Unmarshal([]byte(metaJSON.String), &t.Metadata)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &t, nil
}

// TurnParams holds the upsert input for one turn.
type TurnParams struct {
	ThreadID          string
	TurnIndex         *int // nil means allocate the next unused index
	ExternalTurnID    string
	UserText          string
	AssistantResponse string
	ThinkingSummary   string
	Synthesis         string
	CodeSummary       string
	RawMessages       []model.TurnMessage
	Metadata          model.TurnMetadata
}

// TurnResult reports what an upsert did.
type TurnResult struct {
	TurnID         string
	ExternalTurnID string
	TurnIndex      int
	Created        bool
	EntryCreated   bool
	Skipped        bool
}

// UpsertTurn inserts or updates a turn matched by
// (thread_id, external_turn_id), mirroring exactly one memory entry
// per new external turn id. A turn with neither user text nor an
// assistant response is skipped without advancing state.
func (s *SQLiteStore) UpsertTurn(ctx context.Context, p TurnParams) (TurnResult, error) {
	if p.UserText == "" && p.AssistantResponse == "" {
		return TurnResult{Skipped: true}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TurnResult{}, errs.Upstream("begin turn upsert", err)
	}
	defer tx.Rollback()

	var threadExternalID string
	var threadClusterID sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT external_id, cluster_id FROM threads WHERE id = ?`, p.ThreadID).
		Scan(&threadExternalID, &threadClusterID)
	if errors.Is(err, sql.ErrNoRows) {
		return TurnResult{}, errs.NotFound("thread", p.ThreadID)
	}
	if err != nil {
		return TurnResult{}, errs.Upstream("load thread", err)
	}

	// Resolve the external turn id and index. An explicit external id is
	// looked up first so re-ingestion keeps the stored index stable; a
	// derived id is deterministic in the index itself.
	index := 0
	externalTurnID := p.ExternalTurnID
	var existingID string
	var existingIndex int
	if externalTurnID != "" {
		err = tx.QueryRowContext(ctx,
			`SELECT id, turn_index FROM turns WHERE thread_id = ? AND external_turn_id = ?`,
			p.ThreadID, externalTurnID).Scan(&existingID, &existingIndex)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return TurnResult{}, errs.Upstream("lookup turn", err)
		}
		switch {
		case p.TurnIndex != nil:
			index = *p.TurnIndex
		case existingID != "":
			index = existingIndex
		default:
			index, err = nextTurnIndex(ctx, tx, p.ThreadID)
			if err != nil {
				return TurnResult{}, errs.Upstream("allocate turn index", err)
			}
		}
	} else {
		if p.TurnIndex != nil {
			index = *p.TurnIndex
		} else {
			index, err = nextTurnIndex(ctx, tx, p.ThreadID)
			if err != nil {
				return TurnResult{}, errs.Upstream("allocate turn index", err)
			}
		}
		externalTurnID = fmt.Sprintf("%s:%d", threadExternalID, index)
		err = tx.QueryRowContext(ctx,
			`SELECT id, turn_index FROM turns WHERE thread_id = ? AND external_turn_id = ?`,
			p.ThreadID, externalTurnID).Scan(&existingID, &existingIndex)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return TurnResult{}, errs.Upstream("lookup turn", err)
		}
	}
	created := existingID == ""

	now := time.Now().UTC().Format(time.RFC3339)
	rawJSON, _ := json.Marshal(p.RawMessages)
	metaJSON, _ := json.Marshal(p.Metadata)

	turnID := existingID
	if created {
		turnID = s.newID()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, thread_id, external_turn_id, turn_index, user_text, assistant_response,
		                    thinking_summary, synthesis, code_summary, raw_messages, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(thread_id, external_turn_id) DO UPDATE SET
		   turn_index = excluded.turn_index,
		   user_text = excluded.user_text,
		   assistant_response = excluded.assistant_response,
		   thinking_summary = excluded.thinking_summary,
		   synthesis = excluded.synthesis,
		   code_summary = excluded.code_summary,
		   raw_messages = excluded.raw_messages,
		   metadata = excluded.metadata,
		   updated_at = excluded.updated_at`,
		turnID, p.ThreadID, externalTurnID, index, p.UserText, p.AssistantResponse,
		p.ThinkingSummary, p.Synthesis, p.CodeSummary, string(rawJSON), string(metaJSON), now, now)
	if err != nil {
		return TurnResult{}, errs.Upstream("upsert turn", err)
	}

	// Mirror into the flat entry store, once per external turn id.
	entryCreated := false
	if created {
		var n int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM memory_entries WHERE user_intent_analysis = ?`,
			externalTurnID).Scan(&n)
		if err != nil {
			return TurnResult{}, errs.Upstream("mirror lookup", err)
		}
		if n == 0 {
			var clusterID interface{}
			if threadClusterID.Valid && threadClusterID.String != "" {
				clusterID = threadClusterID.String
			}
			var tags *string
			if len(p.Metadata.Labels) > 0 {
				b, _ := json.Marshal(p.Metadata.Labels)
				v := string(b)
				tags = &v
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO memory_entries (id, cluster_id, content, reasoning_chain, user_intent_analysis,
				                             cross_domain_connections, session_context, usage_frequency, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
				s.newID(), clusterID, mirrorContent(p), mirrorReasoning(p), externalTurnID,
				tags, threadExternalID, now)
			if err != nil {
				return TurnResult{}, errs.Upstream("mirror entry", err)
			}
			entryCreated = true
		}
	}

	if err := tx.Commit(); err != nil {
		return TurnResult{}, errs.Upstream("commit turn upsert", err)
	}

	if entryCreated && threadClusterID.Valid && threadClusterID.String != "" {
		s.TouchCluster(ctx, threadClusterID.String)
	}

	return TurnResult{
		TurnID:         turnID,
		ExternalTurnID: externalTurnID,
		TurnIndex:      index,
		Created:        created,
		EntryCreated:   entryCreated,
	}, nil
}

// NextTurnIndex returns the next unused zero-based index for a thread.
func (s *SQLiteStore) NextTurnIndex(ctx context.Context, threadID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	return nextTurnIndex(ctx, tx, threadID)
}

func nextTurnIndex(ctx context.Context, tx *sql.Tx, threadID string) (int, error) {
	var max sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT MAX(turn_index) FROM turns WHERE thread_id = ?`, threadID).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// ListTurns returns a thread's turns ordered by index.
func (s *SQLiteStore) ListTurns(ctx context.Context, threadID string) ([]model.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, external_turn_id, turn_index, user_text, assistant_response,
		        thinking_summary, synthesis, code_summary, raw_messages, metadata, created_at, updated_at
		 FROM turns WHERE thread_id = ? ORDER BY turn_index`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Turn
	for rows.Next() {
		var t model.Turn
		var userText, resp, thinking, synthesis, code, rawJSON, metaJSON sql.NullString
		var createdAt, updatedAt string
		err := rows.Scan(&t.ID, &t.ThreadID, &t.ExternalTurnID, &t.TurnIndex, &userText, &resp,
			&thinking, &synthesis, &code, &rawJSON, &metaJSON, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}
		t.UserText = userText.String
		t.AssistantResponse = resp.String
		t.ThinkingSummary = thinking.String
		t.Synthesis = synthesis.String
		t.CodeSummary = code.String
		if rawJSON.Valid {
			json.Unmarshal([]byte(rawJSON.String), &t.RawMessages)
		}
		if metaJSON.Valid {
			json.Unmarshal([]byte(metaJSON.String), &t.Metadata)
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

func mirrorContent(p TurnParams) string {
	var parts []string
	if p.UserText != "" {
		parts = append(parts, "User: "+p.UserText)
	}
	if p.AssistantResponse != "" {
		parts = append(parts, "Assistant: "+p.AssistantResponse)
	}
	if p.Synthesis != "" {
		parts = append(parts, "Synthesis: "+p.Synthesis)
	}
	if p.CodeSummary != "" {
		parts = append(parts, "Code: "+p.CodeSummary)
	}
	return strings.Join(parts, "\n")
}

func mirrorReasoning(p TurnParams) string {
	if p.ThinkingSummary != "" {
		return p.ThinkingSummary
	}
	return "captured from conversation turn"
}
