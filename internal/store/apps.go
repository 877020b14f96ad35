package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/calyx-ai/memory-engine/internal/errs"
	"github.com/calyx-ai/memory-engine/internal/model"
)

// UpsertApp creates or updates a tenant app registration.
func (s *SQLiteStore) UpsertApp(ctx context.Context, a model.App) error {
	if a.ID == "" {
		return errs.Validation("app id is required")
	}
	appType := a.Type
	if appType == "" {
		appType = "external"
	}

	var domainsJSON *string
	if len(a.Domains) > 0 {
		b, _ := json.Marshal(a.Domains)
		v := string(b)
		domainsJSON = &v
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO apps (id, name, app_type, domains, internal, ai_enabled, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   app_type = excluded.app_type,
		   domains = excluded.domains,
		   internal = excluded.internal,
		   ai_enabled = excluded.ai_enabled,
		   active = excluded.active`,
		a.ID, a.Name, appType, domainsJSON, boolInt(a.Internal), boolInt(a.AIEnabled), boolInt(a.Active))
	if err != nil {
		return fmt.Errorf("upsert app: %w", err)
	}
	return nil
}

// SyncApps upserts all registry apps. Returns how many were written.
func (s *SQLiteStore) SyncApps(ctx context.Context, apps []model.App) (int, error) {
	n := 0
	for _, a := range apps {
		if err := s.UpsertApp(ctx, a); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// GetApp returns one app by id.
func (s *SQLiteStore) GetApp(ctx context.Context, id string) (*model.App, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, app_type, domains, internal, ai_enabled, active FROM apps WHERE id = ?`, id)

	a, err := scanApp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("app", id)
	}
	if err != nil {
		return nil, errs.Upstream("get app", err)
	}
	return &a, nil
}

// ListApps returns all registered apps.
func (s *SQLiteStore) ListApps(ctx context.Context) ([]model.App, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, app_type, domains, internal, ai_enabled, active FROM apps ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.App
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// EligibleTargets returns active apps, excluding the source, that are
// flagged internal or AI/learning-enabled. This is the propagation
// discovery predicate; scoring is separate.
func (s *SQLiteStore) EligibleTargets(ctx context.Context, sourceAppID string) ([]model.App, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, app_type, domains, internal, ai_enabled, active
		 FROM apps
		 WHERE active = 1 AND id != ? AND (internal = 1 OR ai_enabled = 1)
		 ORDER BY id`, sourceAppID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.App
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanApp(row scanner) (model.App, error) {
	var a model.App
	var domainsJSON sql.NullString
	var internal, aiEnabled, active int

	err := row.Scan(&a.ID, &a.Name, &a.Type, &domainsJSON, &internal, &aiEnabled, &active)
	if err != nil {
		return a, err
	}
	if domainsJSON.Valid {
		json.Unmarshal([]byte(domainsJSON.String), &a.Domains)
	}
	a.Internal = internal == 1
	a.AIEnabled = aiEnabled == 1
	a.Active = active == 1
	return a, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
