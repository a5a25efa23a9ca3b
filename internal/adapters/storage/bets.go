package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/google/uuid"
)

const betColumns = `id, preset_id, event_id, bookmaker_key, market_key, selection, price, stake,
	status, external_id, message, payout, placed_at, settled_at,
	event_snapshot, market_snapshot, odds_snapshot`

// delayStatuses are the statuses domain.BetStatus.CountsForDelay accepts.
var delayStatuses = []any{
	string(domain.BetPending), string(domain.BetOpen), string(domain.BetPlaced),
	string(domain.BetWon), string(domain.BetLost),
}

func scanBet(row scanner) (domain.Bet, error) {
	var (
		b                        domain.Bet
		status                   string
		payout                   sql.NullFloat64
		settledAt                sql.NullTime
		evSnap, mkSnap, oddsSnap string
	)
	if err := row.Scan(
		&b.ID, &b.PresetID, &b.EventID, &b.BookmakerKey, &b.MarketKey, &b.Selection, &b.Price, &b.Stake,
		&status, &b.ExternalID, &b.Message, &payout, &b.PlacedAt, &settledAt,
		&evSnap, &mkSnap, &oddsSnap,
	); err != nil {
		return domain.Bet{}, err
	}
	b.Status = domain.BetStatus(status)
	b.Payout = floatPtr(payout)
	b.PlacedAt = b.PlacedAt.UTC()
	b.SettledAt = timePtr(settledAt)

	// Snapshots are write-once; a corrupt one must not hide the bet.
	_ = json.Unmarshal([]byte(evSnap), &b.EventSnapshot)
	_ = json.Unmarshal([]byte(mkSnap), &b.MarketSnapshot)
	_ = json.Unmarshal([]byte(oddsSnap), &b.OddsSnapshot)
	return b, nil
}

// RecordBet inserts the bet and debits debit from the bookmaker balance in
// the same transaction. An empty ID gets a new uuid.
func (s *Store) RecordBet(ctx context.Context, bet domain.Bet, debit float64) error {
	if bet.ID == "" {
		bet.ID = uuid.NewString()
	}
	evSnap, err := json.Marshal(bet.EventSnapshot)
	if err != nil {
		return fmt.Errorf("storage.RecordBet: encode event snapshot: %w", err)
	}
	mkSnap, err := json.Marshal(bet.MarketSnapshot)
	if err != nil {
		return fmt.Errorf("storage.RecordBet: encode market snapshot: %w", err)
	}
	oddsSnap, err := json.Marshal(bet.OddsSnapshot)
	if err != nil {
		return fmt.Errorf("storage.RecordBet: encode odds snapshot: %w", err)
	}
	placedAt := bet.PlacedAt
	if placedAt.IsZero() {
		placedAt = time.Now()
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO bets
				(id, preset_id, event_id, bookmaker_key, market_key, selection, price, stake,
				 status, external_id, message, payout, placed_at, settled_at,
				 event_snapshot, market_snapshot, odds_snapshot)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			bet.ID, bet.PresetID, bet.EventID, bet.BookmakerKey, bet.MarketKey, bet.Selection,
			bet.Price, bet.Stake, string(bet.Status), bet.ExternalID, bet.Message,
			nullFloat(bet.Payout), placedAt.UTC(), nullTime(bet.SettledAt),
			string(evSnap), string(mkSnap), string(oddsSnap),
		); err != nil {
			return fmt.Errorf("insert bet: %w", err)
		}
		if debit != 0 {
			if _, err := s.adjustBalanceTx(ctx, tx, bet.BookmakerKey, -debit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage.RecordBet: %w", err)
	}
	return nil
}

// Bet returns the bet with the given id.
func (s *Store) Bet(ctx context.Context, id string) (domain.Bet, error) {
	b, err := scanBet(s.db.QueryRowContext(ctx, s.q(`SELECT `+betColumns+` FROM bets WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bet{}, fmt.Errorf("storage.Bet: %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Bet{}, fmt.Errorf("storage.Bet: %s: %w", id, err)
	}
	return b, nil
}

// BetsByStatus lists the bookmaker's bets in any of the given statuses,
// oldest first. An empty bookmakerKey matches every bookmaker.
func (s *Store) BetsByStatus(ctx context.Context, bookmakerKey string, statuses ...domain.BetStatus) ([]domain.Bet, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(statuses)+1)
	for _, st := range statuses {
		args = append(args, string(st))
	}
	query := `SELECT ` + betColumns + ` FROM bets WHERE status IN (` + placeholders(len(statuses)) + `)`
	if bookmakerKey != "" {
		query += ` AND bookmaker_key = ?`
		args = append(args, bookmakerKey)
	}
	rows, err := s.db.QueryContext(ctx, s.q(query+` ORDER BY placed_at`), args...)
	if err != nil {
		return nil, fmt.Errorf("storage.BetsByStatus: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.BetsByStatus: scan row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BetRowKeys returns the row key of every bet placed on the given events.
func (s *Store) BetRowKeys(ctx context.Context, eventIDs []string) (map[string]bool, error) {
	keys := make(map[string]bool)
	if len(eventIDs) == 0 {
		return keys, nil
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT event_id, bookmaker_key, market_key, selection
		FROM bets WHERE event_id IN (`+placeholders(len(eventIDs))+`)`), stringArgs(eventIDs)...)
	if err != nil {
		return nil, fmt.Errorf("storage.BetRowKeys: query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev, bk, mk, sel string
		if err := rows.Scan(&ev, &bk, &mk, &sel); err != nil {
			return nil, fmt.Errorf("storage.BetRowKeys: scan row: %w", err)
		}
		keys[domain.RowKey(ev, bk, mk, sel)] = true
	}
	return keys, rows.Err()
}

// LastBetAt returns when the bookmaker's latest bet that reached the
// bookmaker was placed.
func (s *Store) LastBetAt(ctx context.Context, bookmakerKey string) (time.Time, bool, error) {
	args := append([]any{bookmakerKey}, delayStatuses...)

	// ORDER BY instead of MAX keeps the column type, so SQLite hands back a
	// time.Time.
	var at time.Time
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT placed_at FROM bets
		WHERE bookmaker_key = ? AND status IN (`+placeholders(len(delayStatuses))+`)
		ORDER BY placed_at DESC LIMIT 1`), args...).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("storage.LastBetAt: %s: %w", bookmakerKey, err)
	}
	return at.UTC(), true, nil
}

// SettleBet moves a bet to a result, stores the payout and credits the
// bookmaker balance in one transaction.
func (s *Store) SettleBet(ctx context.Context, betID string, st domain.Settlement, credit float64, at time.Time) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cur, bk, err := s.betStatusTx(ctx, tx, betID)
		if err != nil {
			return err
		}
		if !st.Status.IsTerminal() || !cur.CanTransition(st.Status) {
			return fmt.Errorf("%s -> %s: %w", cur, st.Status, domain.ErrInvalidTransition)
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE bets SET status = ?, payout = ?, settled_at = ? WHERE id = ?`),
			string(st.Status), st.Payout, at.UTC(), betID); err != nil {
			return fmt.Errorf("update bet: %w", err)
		}
		if credit != 0 {
			if _, err := s.adjustBalanceTx(ctx, tx, bk, credit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage.SettleBet: %s: %w", betID, err)
	}
	return nil
}

// ReopenBet moves a settled bet back to open, clears its result and debits
// reversal from the bookmaker balance.
func (s *Store) ReopenBet(ctx context.Context, betID string, reversal float64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cur, bk, err := s.betStatusTx(ctx, tx, betID)
		if err != nil {
			return err
		}
		if !cur.IsTerminal() {
			return fmt.Errorf("%s -> %s: %w", cur, domain.BetOpen, domain.ErrInvalidTransition)
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE bets SET status = ?, payout = NULL, settled_at = NULL WHERE id = ?`),
			string(domain.BetOpen), betID); err != nil {
			return fmt.Errorf("update bet: %w", err)
		}
		if reversal != 0 {
			if _, err := s.adjustBalanceTx(ctx, tx, bk, -reversal); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage.ReopenBet: %s: %w", betID, err)
	}
	return nil
}

// UpdateBetStatus applies a non-settling status change, such as a pending
// bet being confirmed by the bookmaker.
func (s *Store) UpdateBetStatus(ctx context.Context, betID string, status domain.BetStatus, externalID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cur, _, err := s.betStatusTx(ctx, tx, betID)
		if err != nil {
			return err
		}
		if cur == status {
			return nil
		}
		if status.IsTerminal() || !cur.CanTransition(status) {
			return fmt.Errorf("%s -> %s: %w", cur, status, domain.ErrInvalidTransition)
		}
		if _, err := tx.ExecContext(ctx, s.q(`
			UPDATE bets SET status = ?, external_id = CASE WHEN ? = '' THEN external_id ELSE ? END
			WHERE id = ?`), string(status), externalID, externalID, betID); err != nil {
			return fmt.Errorf("update bet: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage.UpdateBetStatus: %s: %w", betID, err)
	}
	return nil
}

func (s *Store) betStatusTx(ctx context.Context, tx *sql.Tx, betID string) (domain.BetStatus, string, error) {
	var status, bk string
	err := tx.QueryRowContext(ctx, s.q(`SELECT status, bookmaker_key FROM bets WHERE id = ?`), betID).Scan(&status, &bk)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("read bet: %w", err)
	}
	return domain.BetStatus(status), bk, nil
}
