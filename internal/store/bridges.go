package store

import (
	"context"
	"fmt"
	"strings"
)

// Bridge links one domain to a related domain with an affinity weight,
// used by cross-pollination lookups.
type Bridge struct {
	Domain        string  `json:"domain"`
	BridgedDomain string  `json:"bridged_domain"`
	Affinity      float64 `json:"affinity"`
}

var defaultBridges = []Bridge{
	{"debugging", "optimization", 0.7},
	{"optimization", "debugging", 0.7},
	{"api", "authentication", 0.6},
	{"authentication", "api", 0.6},
	{"react", "ui", 0.8},
	{"ui", "react", 0.8},
	{"ui", "mobile", 0.6},
	{"mobile", "ui", 0.6},
	{"database", "optimization", 0.6},
	{"database", "api", 0.5},
	{"deployment", "debugging", 0.5},
	{"deployment", "database", 0.4},
}

func (s *SQLiteStore) seedBridges() error {
	for _, b := range defaultBridges {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO domain_bridges (domain, bridged_domain, affinity) VALUES (?, ?, ?)`,
			b.Domain, b.BridgedDomain, b.Affinity)
		if err != nil {
			return fmt.Errorf("seed bridges: %w", err)
		}
	}
	return nil
}

// UpsertBridge adds or reweights one domain bridge.
func (s *SQLiteStore) UpsertBridge(ctx context.Context, b Bridge) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO domain_bridges (domain, bridged_domain, affinity) VALUES (?, ?, ?)
		 ON CONFLICT(domain, bridged_domain) DO UPDATE SET affinity = excluded.affinity`,
		b.Domain, b.BridgedDomain, b.Affinity)
	return err
}

// BridgesFor returns all bridges leading out of the given domains,
// strongest first.
func (s *SQLiteStore) BridgesFor(ctx context.Context, domains []string) ([]Bridge, error) {
	if len(domains) == 0 {
		return nil, nil
	}

	inClause := strings.Repeat("?,", len(domains))
	inClause = inClause[:len(inClause)-1]

	args := make([]interface{}, len(domains))
	for i, d := range domains {
		args[i] = d
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT domain, bridged_domain, affinity FROM domain_bridges
		WHERE domain IN (%s)
		ORDER BY affinity DESC`, inClause), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bridge
	for rows.Next() {
		var b Bridge
		if err := rows.Scan(&b.Domain, &b.BridgedDomain, &b.Affinity); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
