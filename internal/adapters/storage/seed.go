package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// Seeding entry points used by config bootstrap, the ingester and tests.

// UpsertSport inserts or updates a sport.
func (s *Store) UpsertSport(ctx context.Context, sp domain.Sport) error {
	if _, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO sports (key, title, grp) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET title = excluded.title, grp = excluded.grp`),
		sp.Key, sp.Title, sp.Group,
	); err != nil {
		return fmt.Errorf("storage.UpsertSport: %s: %w", sp.Key, err)
	}
	return nil
}

// UpsertLeague inserts or updates a league.
func (s *Store) UpsertLeague(ctx context.Context, l domain.League) error {
	if _, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO leagues (key, sport_key, title, grp) VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			sport_key = excluded.sport_key,
			title     = excluded.title,
			grp       = excluded.grp`),
		l.Key, l.SportKey, l.Title, l.Group,
	); err != nil {
		return fmt.Errorf("storage.UpsertLeague: %s: %w", l.Key, err)
	}
	return nil
}

// UpsertEvent inserts or updates an event.
func (s *Store) UpsertEvent(ctx context.Context, e domain.Event) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.upsertEvent(ctx, tx, e)
	})
	if err != nil {
		return fmt.Errorf("storage.UpsertEvent: %w", err)
	}
	return nil
}

// DeactivateEvent hides an event from scans and syncs.
func (s *Store) DeactivateEvent(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`UPDATE events SET active = 0 WHERE id = ?`), id); err != nil {
		return fmt.Errorf("storage.DeactivateEvent: %s: %w", id, err)
	}
	return nil
}
