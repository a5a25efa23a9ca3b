package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
	"github.com/google/uuid"
)

const oddsColumns = `o.id, o.market_id, o.bookmaker_key, o.selection, o.normalized_selection,
	o.price, o.point, o.implied_probability, o.true_odds, o.margin, o.result,
	o.sid, o.market_sid, o.event_sid, o.url, o.bet_limit, o.updated_at`

// scanner is what *sql.Row and *sql.Rows share.
type scanner interface {
	Scan(dest ...any) error
}

// oddsDest returns scan targets for oddsColumns and a func that copies the
// nullable values into o once Scan succeeded.
func oddsDest(o *domain.Odds) ([]any, func()) {
	var point, implied, trueOdds, margin, limit sql.NullFloat64
	dest := []any{
		&o.ID, &o.MarketID, &o.BookmakerKey, &o.Selection, &o.NormalizedSelection,
		&o.Price, &point, &implied, &trueOdds, &margin, &o.Result,
		&o.SID, &o.MarketSID, &o.EventSID, &o.URL, &limit, &o.UpdatedAt,
	}
	return dest, func() {
		o.Point = floatPtr(point)
		o.ImpliedProbability = floatPtr(implied)
		o.TrueOdds = floatPtr(trueOdds)
		o.Margin = floatPtr(margin)
		o.BetLimit = floatPtr(limit)
	}
}

// ScanRows returns the full opportunity join for active events inside the
// query window. Sport and league rows are optional.
func (s *Store) ScanRows(ctx context.Context, q ports.ScanQuery) ([]domain.Opportunity, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "e.active = 1")
	if !q.CommenceFrom.IsZero() {
		where = append(where, "e.commence_time >= ?")
		args = append(args, q.CommenceFrom.UTC())
	}
	if !q.CommenceTo.IsZero() {
		where = append(where, "e.commence_time <= ?")
		args = append(args, q.CommenceTo.UTC())
	}
	if len(q.BookmakerKeys) > 0 {
		where = append(where, "o.bookmaker_key IN ("+placeholders(len(q.BookmakerKeys))+")")
		args = append(args, stringArgs(q.BookmakerKeys)...)
	}
	if q.APIOnly {
		where = append(where, "b.model_type = ?")
		args = append(args, string(domain.ModelAPI))
	}

	query := `
		SELECT ` + oddsColumns + `,
		       m.key,
		       e.id, e.sport_key, e.league_key, e.home_team, e.away_team, e.commence_time, e.active,
		       b.key, b.title, b.model_type, b.balance, b.active, b.config,
		       COALESCE(sp.title, ''), COALESCE(sp.grp, ''),
		       COALESCE(l.title, ''), COALESCE(l.grp, '')
		FROM odds o
		JOIN markets m     ON m.id = o.market_id
		JOIN events e      ON e.id = m.event_id
		JOIN bookmakers b  ON b.key = o.bookmaker_key
		LEFT JOIN sports sp ON sp.key = e.sport_key
		LEFT JOIN leagues l ON l.key = e.league_key
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY e.commence_time, o.id`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ScanRows: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Opportunity
	for rows.Next() {
		var (
			opp            domain.Opportunity
			evActive       int
			bkActive       int
			modelType, cfg string
		)
		dest, fill := oddsDest(&opp.Odds)
		dest = append(dest,
			&opp.Market.Key,
			&opp.Event.ID, &opp.Event.SportKey, &opp.Event.LeagueKey, &opp.Event.HomeTeam,
			&opp.Event.AwayTeam, &opp.Event.CommenceTime, &evActive,
			&opp.Bookmaker.Key, &opp.Bookmaker.Title, &modelType, &opp.Bookmaker.Balance, &bkActive, &cfg,
			&opp.Sport.Title, &opp.Sport.Group,
			&opp.League.Title, &opp.League.Group,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("storage.ScanRows: scan row: %w", err)
		}
		fill()

		opp.Market.ID = opp.Odds.MarketID
		opp.Market.EventID = opp.Event.ID
		opp.Event.Active = evActive == 1
		opp.Event.CommenceTime = opp.Event.CommenceTime.UTC()
		opp.Bookmaker.ModelType = domain.ModelType(modelType)
		opp.Bookmaker.Active = bkActive == 1
		opp.Bookmaker.Config = decodeBookmakerConfig(cfg)
		opp.Sport.Key = opp.Event.SportKey
		opp.League.Key = opp.Event.LeagueKey
		opp.League.SportKey = opp.Event.SportKey
		out = append(out, opp)
	}
	return out, rows.Err()
}

// MarketOdds returns every odds row of markets whose event starts after since.
func (s *Store) MarketOdds(ctx context.Context, since time.Time) ([]domain.Odds, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+oddsColumns+`
		FROM odds o
		JOIN markets m ON m.id = o.market_id
		JOIN events e  ON e.id = m.event_id
		WHERE e.commence_time > ?
		ORDER BY o.market_id, o.bookmaker_key`), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("storage.MarketOdds: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Odds
	for rows.Next() {
		var o domain.Odds
		dest, fill := oddsDest(&o)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("storage.MarketOdds: scan row: %w", err)
		}
		fill()
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateDerived writes implied probability, true odds and margin in one
// transaction.
func (s *Store) UpdateDerived(ctx context.Context, odds []domain.Odds) error {
	if len(odds) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.q(
			`UPDATE odds SET implied_probability = ?, true_odds = ?, margin = ? WHERE id = ?`))
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, o := range odds {
			if _, err := stmt.ExecContext(ctx,
				nullFloat(o.ImpliedProbability), nullFloat(o.TrueOdds), nullFloat(o.Margin), o.ID,
			); err != nil {
				return fmt.Errorf("update %s: %w", o.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage.UpdateDerived: %w", err)
	}
	return nil
}

// BookmakerOdds returns the bookmaker's rows for the given events.
func (s *Store) BookmakerOdds(ctx context.Context, bookmakerKey string, eventIDs []string) ([]ports.OddsRow, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	args := append([]any{bookmakerKey}, stringArgs(eventIDs)...)
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+oddsColumns+`, m.event_id, m.key
		FROM odds o
		JOIN markets m ON m.id = o.market_id
		WHERE o.bookmaker_key = ? AND m.event_id IN (`+placeholders(len(eventIDs))+`)`), args...)
	if err != nil {
		return nil, fmt.Errorf("storage.BookmakerOdds: query: %w", err)
	}
	defer rows.Close()

	var out []ports.OddsRow
	for rows.Next() {
		var r ports.OddsRow
		dest, fill := oddsDest(&r.Odds)
		dest = append(dest, &r.EventID, &r.MarketKey)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("storage.BookmakerOdds: scan row: %w", err)
		}
		fill()
		out = append(out, r)
	}
	return out, rows.Err()
}

// BookmakerEvents lists active events the bookmaker has odds for, starting
// after since.
func (s *Store) BookmakerEvents(ctx context.Context, bookmakerKey string, since time.Time) ([]ports.BookmakerEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT e.id, e.league_key, e.commence_time, MAX(o.event_sid)
		FROM events e
		JOIN markets m ON m.event_id = e.id
		JOIN odds o    ON o.market_id = m.id
		WHERE o.bookmaker_key = ? AND e.active = 1 AND e.commence_time > ?
		GROUP BY e.id, e.league_key, e.commence_time
		ORDER BY e.commence_time`), bookmakerKey, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("storage.BookmakerEvents: query: %w", err)
	}
	defer rows.Close()

	var out []ports.BookmakerEvent
	for rows.Next() {
		var (
			ev  ports.BookmakerEvent
			sid sql.NullString
		)
		if err := rows.Scan(&ev.Ref.ID, &ev.LeagueKey, &ev.CommenceTime, &sid); err != nil {
			return nil, fmt.Errorf("storage.BookmakerEvents: scan row: %w", err)
		}
		ev.Ref.EventSID = sid.String
		ev.CommenceTime = ev.CommenceTime.UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

// UpdatePrices writes refreshed prices and bookmaker identifiers in one
// transaction. A failure rolls back every row of the batch.
func (s *Store) UpdatePrices(ctx context.Context, odds []domain.Odds) error {
	if len(odds) == 0 {
		return nil
	}
	now := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.q(`
			UPDATE odds SET price = ?, point = ?, point_key = ?, bet_limit = ?,
			       sid = ?, market_sid = ?, event_sid = ?, updated_at = ?
			WHERE id = ?`))
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, o := range odds {
			if _, err := stmt.ExecContext(ctx,
				o.Price, nullFloat(o.Point), pointKey(o.Point), nullFloat(o.BetLimit),
				o.SID, o.MarketSID, o.EventSID, now, o.ID,
			); err != nil {
				return fmt.Errorf("update %s: %w", o.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage.UpdatePrices: %w", err)
	}
	return nil
}

// UpsertEventOdds writes one bookmaker's markets for an internal event,
// creating the event and markets when missing. Returns the number of odds
// rows written.
func (s *Store) UpsertEventOdds(ctx context.Context, event domain.Event, bk domain.BookmakerOdds) (int, error) {
	if event.ID == "" {
		return 0, fmt.Errorf("storage.UpsertEventOdds: event without id")
	}
	now := time.Now().UTC()
	written := 0

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.upsertEvent(ctx, tx, event); err != nil {
			return err
		}

		for _, mk := range bk.Markets {
			marketID, err := s.ensureMarket(ctx, tx, event.ID, mk.Key)
			if err != nil {
				return err
			}
			for _, out := range mk.Outcomes {
				if out.Price <= 0 {
					continue
				}
				norm := domain.NormalizeSelection(out.Name, mk.Key, event.HomeTeam, event.AwayTeam)
				if _, err := tx.ExecContext(ctx, s.q(`
					INSERT INTO odds
						(id, market_id, bookmaker_key, selection, normalized_selection, price,
						 point, point_key, sid, market_sid, event_sid, url, bet_limit, updated_at)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
					ON CONFLICT (market_id, bookmaker_key, selection, point_key) DO UPDATE SET
						normalized_selection = excluded.normalized_selection,
						price      = excluded.price,
						point      = excluded.point,
						sid        = excluded.sid,
						market_sid = excluded.market_sid,
						event_sid  = excluded.event_sid,
						url        = excluded.url,
						bet_limit  = excluded.bet_limit,
						updated_at = excluded.updated_at`),
					uuid.NewString(), marketID, bk.Key, out.Name, norm, out.Price,
					nullFloat(out.Point), pointKey(out.Point), out.SID, mk.SID, bk.SID, out.URL,
					nullFloat(out.BetLimit), now,
				); err != nil {
					return fmt.Errorf("upsert odds %s/%s: %w", mk.Key, out.Name, err)
				}
				written++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("storage.UpsertEventOdds: %w", err)
	}
	return written, nil
}

func (s *Store) upsertEvent(ctx context.Context, tx *sql.Tx, e domain.Event) error {
	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO events (id, sport_key, league_key, home_team, away_team, commence_time, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			sport_key     = excluded.sport_key,
			league_key    = excluded.league_key,
			home_team     = excluded.home_team,
			away_team     = excluded.away_team,
			commence_time = excluded.commence_time,
			active        = excluded.active`),
		e.ID, e.SportKey, e.LeagueKey, e.HomeTeam, e.AwayTeam, e.CommenceTime.UTC(), boolToInt(e.Active),
	); err != nil {
		return fmt.Errorf("upsert event %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) ensureMarket(ctx context.Context, tx *sql.Tx, eventID, key string) (string, error) {
	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO markets (id, event_id, key) VALUES (?, ?, ?)
		ON CONFLICT (event_id, key) DO NOTHING`),
		uuid.NewString(), eventID, key,
	); err != nil {
		return "", fmt.Errorf("insert market %s/%s: %w", eventID, key, err)
	}
	var id string
	if err := tx.QueryRowContext(ctx, s.q(`SELECT id FROM markets WHERE event_id = ? AND key = ?`),
		eventID, key).Scan(&id); err != nil {
		return "", fmt.Errorf("select market %s/%s: %w", eventID, key, err)
	}
	return id, nil
}

// LeagueEvents lists active events of a league.
func (s *Store) LeagueEvents(ctx context.Context, leagueKey string) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, sport_key, league_key, home_team, away_team, commence_time, active
		FROM events WHERE league_key = ? AND active = 1
		ORDER BY commence_time`), leagueKey)
	if err != nil {
		return nil, fmt.Errorf("storage.LeagueEvents: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var (
			e      domain.Event
			active int
		)
		if err := rows.Scan(&e.ID, &e.SportKey, &e.LeagueKey, &e.HomeTeam, &e.AwayTeam, &e.CommenceTime, &active); err != nil {
			return nil, fmt.Errorf("storage.LeagueEvents: scan row: %w", err)
		}
		e.Active = active == 1
		e.CommenceTime = e.CommenceTime.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// SelectionResult returns the result recorded on any odds row of the
// selection. ok is false while no bookmaker reported one.
func (s *Store) SelectionResult(ctx context.Context, eventID, marketKey, normalizedSelection string) (domain.BetStatus, bool, error) {
	var result string
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT o.result
		FROM odds o
		JOIN markets m ON m.id = o.market_id
		WHERE m.event_id = ? AND m.key = ? AND o.normalized_selection = ? AND o.result <> ''
		LIMIT 1`), eventID, marketKey, normalizedSelection).Scan(&result)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage.SelectionResult: %w", err)
	}
	status := domain.BetStatus(strings.ToLower(result))
	if !status.IsTerminal() {
		return "", false, nil
	}
	return status, true, nil
}

// SetSelectionResult records a final result on every odds row of the
// selection.
func (s *Store) SetSelectionResult(ctx context.Context, r domain.EventResult) error {
	if _, err := s.db.ExecContext(ctx, s.q(`
		UPDATE odds SET result = ?
		WHERE normalized_selection = ?
		  AND market_id IN (SELECT id FROM markets WHERE event_id = ? AND key = ?)`),
		string(r.Result), r.NormalizedSelection, r.EventID, r.MarketKey,
	); err != nil {
		return fmt.Errorf("storage.SetSelectionResult: %w", err)
	}
	return nil
}

func decodeBookmakerConfig(raw string) domain.BookmakerConfig {
	var cfg domain.BookmakerConfig
	if raw == "" {
		return cfg
	}
	_ = json.Unmarshal([]byte(raw), &cfg)
	return cfg
}
