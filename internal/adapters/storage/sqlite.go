package storage

// sqlite.go: one store, two drivers.
//
// The schema sticks to the subset SQLite and PostgreSQL share: TEXT keys,
// DOUBLE PRECISION numbers, TIMESTAMP columns and INTEGER booleans. Queries
// are written with `?` placeholders and rebound to `$n` for PostgreSQL.
// Times are always written in UTC so lexical comparisons on SQLite hold.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/valuebot/internal/ports"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a keyed lookup has no row.
var ErrNotFound = errors.New("storage: not found")

const schema = `
CREATE TABLE IF NOT EXISTS sports (
    key   TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    grp   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS leagues (
    key       TEXT PRIMARY KEY,
    sport_key TEXT NOT NULL,
    title     TEXT NOT NULL DEFAULT '',
    grp       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS events (
    id            TEXT PRIMARY KEY,
    sport_key     TEXT NOT NULL,
    league_key    TEXT NOT NULL,
    home_team     TEXT NOT NULL DEFAULT '',
    away_team     TEXT NOT NULL DEFAULT '',
    commence_time TIMESTAMP NOT NULL,
    active        INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_events_commence ON events(commence_time);
CREATE INDEX IF NOT EXISTS idx_events_league   ON events(league_key);

CREATE TABLE IF NOT EXISTS markets (
    id       TEXT PRIMARY KEY,
    event_id TEXT NOT NULL,
    key      TEXT NOT NULL,
    UNIQUE (event_id, key)
);

CREATE TABLE IF NOT EXISTS bookmakers (
    key        TEXT PRIMARY KEY,
    title      TEXT NOT NULL DEFAULT '',
    model_type TEXT NOT NULL DEFAULT 'simple',
    balance    DOUBLE PRECISION NOT NULL DEFAULT 0,
    active     INTEGER NOT NULL DEFAULT 1,
    config     TEXT NOT NULL DEFAULT '{}'
);

-- One row per bookmaker/selection/point per market. point_key is the
-- textual point ('' when absent) so the unique key works on both engines.
CREATE TABLE IF NOT EXISTS odds (
    id                   TEXT PRIMARY KEY,
    market_id            TEXT NOT NULL,
    bookmaker_key        TEXT NOT NULL,
    selection            TEXT NOT NULL,
    normalized_selection TEXT NOT NULL DEFAULT '',
    price                DOUBLE PRECISION NOT NULL,
    point                DOUBLE PRECISION,
    point_key            TEXT NOT NULL DEFAULT '',
    implied_probability  DOUBLE PRECISION,
    true_odds            DOUBLE PRECISION,
    margin               DOUBLE PRECISION,
    result               TEXT NOT NULL DEFAULT '',
    sid                  TEXT NOT NULL DEFAULT '',
    market_sid           TEXT NOT NULL DEFAULT '',
    event_sid            TEXT NOT NULL DEFAULT '',
    url                  TEXT NOT NULL DEFAULT '',
    bet_limit            DOUBLE PRECISION,
    updated_at           TIMESTAMP NOT NULL,
    UNIQUE (market_id, bookmaker_key, selection, point_key)
);

CREATE INDEX IF NOT EXISTS idx_odds_market    ON odds(market_id);
CREATE INDEX IF NOT EXISTS idx_odds_bookmaker ON odds(bookmaker_key);

-- Criteria live in the JSON config column; only what queries filter on is
-- a real column.
CREATE TABLE IF NOT EXISTS presets (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL DEFAULT '',
    active       INTEGER NOT NULL DEFAULT 1,
    auto_trade   INTEGER NOT NULL DEFAULT 0,
    config       TEXT NOT NULL DEFAULT '{}',
    last_sync_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS hidden_items (
    id         TEXT PRIMARY KEY,
    preset_id  TEXT NOT NULL,
    event_id   TEXT NOT NULL,
    market_key TEXT NOT NULL DEFAULT '',
    selection  TEXT NOT NULL DEFAULT '',
    expiry_at  TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_hidden_preset ON hidden_items(preset_id);

CREATE TABLE IF NOT EXISTS bets (
    id              TEXT PRIMARY KEY,
    preset_id       TEXT NOT NULL DEFAULT '',
    event_id        TEXT NOT NULL,
    bookmaker_key   TEXT NOT NULL,
    market_key      TEXT NOT NULL,
    selection       TEXT NOT NULL,
    price           DOUBLE PRECISION NOT NULL,
    stake           DOUBLE PRECISION NOT NULL,
    status          TEXT NOT NULL,
    external_id     TEXT NOT NULL DEFAULT '',
    message         TEXT NOT NULL DEFAULT '',
    payout          DOUBLE PRECISION,
    placed_at       TIMESTAMP NOT NULL,
    settled_at      TIMESTAMP,
    event_snapshot  TEXT NOT NULL DEFAULT '{}',
    market_snapshot TEXT NOT NULL DEFAULT '{}',
    odds_snapshot   TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_bets_bookmaker ON bets(bookmaker_key, placed_at);
CREATE INDEX IF NOT EXISTS idx_bets_event     ON bets(event_id);

CREATE TABLE IF NOT EXISTS mappings (
    id            TEXT PRIMARY KEY,
    source        TEXT NOT NULL,
    type          TEXT NOT NULL,
    external_id   TEXT NOT NULL,
    external_name TEXT NOT NULL DEFAULT '',
    grp           TEXT NOT NULL DEFAULT '',
    internal_key  TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,
    score         DOUBLE PRECISION NOT NULL DEFAULT 0,
    UNIQUE (source, type, external_id)
);
`

var (
	_ ports.OddsStore      = (*Store)(nil)
	_ ports.PresetStore    = (*Store)(nil)
	_ ports.BookmakerStore = (*Store)(nil)
	_ ports.BetStore       = (*Store)(nil)
	_ ports.MappingStore   = (*Store)(nil)
)

// Store implements every ports store interface on top of database/sql.
type Store struct {
	db       *sql.DB
	postgres bool
}

// NewStore opens the database behind dsn and applies the schema. A
// postgres:// or postgresql:// DSN selects PostgreSQL; anything else is a
// SQLite path (":memory:" included).
func NewStore(dsn string) (*Store, error) {
	driver := "sqlite"
	pg := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
	if pg {
		driver = "postgres"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewStore: open %s: %w", driver, err)
	}
	if !pg {
		db.SetMaxOpenConns(1) // SQLite es single-writer
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewStore: apply schema: %w", err)
	}
	return &Store{db: db, postgres: pg}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// q rebinds `?` placeholders for the active driver.
func (s *Store) q(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// withTx runs fn in a transaction, committing only when fn returns nil.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(vals []string) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}

// --- helpers internos ---

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullTimeVal(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// pointKey is the textual form of a point used in the odds unique key.
func pointKey(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
