package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/google/uuid"
)

const mappingColumns = `id, source, type, external_id, external_name, grp, internal_key, status, score`

func scanMapping(row scanner) (domain.Mapping, error) {
	var (
		m      domain.Mapping
		status string
	)
	if err := row.Scan(&m.ID, &m.Source, &m.Type, &m.ExternalID, &m.ExternalName, &m.Group,
		&m.InternalKey, &status, &m.Score); err != nil {
		return domain.Mapping{}, err
	}
	m.Status = domain.MappingStatus(status)
	return m, nil
}

// Mapping looks up a bookmaker-side id. ok is false when it was never seen.
func (s *Store) Mapping(ctx context.Context, source, typ, externalID string) (domain.Mapping, bool, error) {
	m, err := scanMapping(s.db.QueryRowContext(ctx, s.q(`
		SELECT `+mappingColumns+` FROM mappings
		WHERE source = ? AND type = ? AND external_id = ?`), source, typ, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Mapping{}, false, nil
	}
	if err != nil {
		return domain.Mapping{}, false, fmt.Errorf("storage.Mapping: %w", err)
	}
	return m, true, nil
}

// MappingByInternal finds the mapped row pointing at internalKey.
func (s *Store) MappingByInternal(ctx context.Context, source, typ, internalKey string) (domain.Mapping, bool, error) {
	m, err := scanMapping(s.db.QueryRowContext(ctx, s.q(`
		SELECT `+mappingColumns+` FROM mappings
		WHERE source = ? AND type = ? AND internal_key = ? AND status = ?
		LIMIT 1`), source, typ, internalKey, string(domain.MappingMapped)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Mapping{}, false, nil
	}
	if err != nil {
		return domain.Mapping{}, false, fmt.Errorf("storage.MappingByInternal: %w", err)
	}
	return m, true, nil
}

// SaveMapping inserts or replaces the row for (source, type, external_id).
func (s *Store) SaveMapping(ctx context.Context, m domain.Mapping) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO mappings (`+mappingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, type, external_id) DO UPDATE SET
			external_name = excluded.external_name,
			grp           = excluded.grp,
			internal_key  = excluded.internal_key,
			status        = excluded.status,
			score         = excluded.score`),
		m.ID, m.Source, m.Type, m.ExternalID, m.ExternalName, m.Group, m.InternalKey, string(m.Status), m.Score,
	); err != nil {
		return fmt.Errorf("storage.SaveMapping: %s/%s/%s: %w", m.Source, m.Type, m.ExternalID, err)
	}
	return nil
}

// MappingCandidates lists the internal entities an external name of typ can
// be matched to. A league group is a sport key, group or title (bookmakers
// label sports their own way); an event group is a league key. An empty
// group means every entity of the type.
func (s *Store) MappingCandidates(ctx context.Context, typ, group string) ([]domain.Candidate, error) {
	var (
		query string
		args  []any
	)
	switch typ {
	case domain.MappingLeague:
		query = `SELECT l.key, l.title FROM leagues l LEFT JOIN sports sp ON sp.key = l.sport_key`
		if group != "" {
			query += ` WHERE l.sport_key = ? OR LOWER(sp.grp) = LOWER(?) OR LOWER(sp.title) = LOWER(?)`
			args = append(args, group, group, group)
		}
		query += ` ORDER BY l.key`
	case domain.MappingEvent:
		query = `SELECT id, home_team || ' vs ' || away_team FROM events WHERE active = 1`
		if group != "" {
			query += ` AND league_key = ?`
			args = append(args, group)
		}
		query += ` ORDER BY commence_time`
	default:
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("storage.MappingCandidates: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.Key, &c.Name); err != nil {
			return nil, fmt.Errorf("storage.MappingCandidates: scan row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
