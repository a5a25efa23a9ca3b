package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

const bookmakerColumns = `key, title, model_type, balance, active, config`

func scanBookmaker(row scanner) (domain.Bookmaker, error) {
	var (
		b              domain.Bookmaker
		modelType, cfg string
		active         int
	)
	if err := row.Scan(&b.Key, &b.Title, &modelType, &b.Balance, &active, &cfg); err != nil {
		return domain.Bookmaker{}, err
	}
	b.ModelType = domain.ModelType(modelType)
	b.Active = active == 1
	b.Config = decodeBookmakerConfig(cfg)
	return b, nil
}

// Bookmaker returns the bookmaker with the given key.
func (s *Store) Bookmaker(ctx context.Context, key string) (domain.Bookmaker, error) {
	b, err := scanBookmaker(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+bookmakerColumns+` FROM bookmakers WHERE key = ?`), key))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bookmaker{}, fmt.Errorf("storage.Bookmaker: %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return domain.Bookmaker{}, fmt.Errorf("storage.Bookmaker: %s: %w", key, err)
	}
	return b, nil
}

// ActiveBookmakers lists active bookmakers, optionally of one model type.
func (s *Store) ActiveBookmakers(ctx context.Context, modelType domain.ModelType) ([]domain.Bookmaker, error) {
	query := `SELECT ` + bookmakerColumns + ` FROM bookmakers WHERE active = 1`
	var args []any
	if modelType != "" {
		query += ` AND model_type = ?`
		args = append(args, string(modelType))
	}
	rows, err := s.db.QueryContext(ctx, s.q(query+` ORDER BY key`), args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ActiveBookmakers: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Bookmaker
	for rows.Next() {
		b, err := scanBookmaker(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ActiveBookmakers: scan row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AdjustBalance adds delta to the bookmaker balance and returns the new
// value. The update and the read share one transaction.
func (s *Store) AdjustBalance(ctx context.Context, key string, delta float64) (float64, error) {
	var balance float64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		balance, err = s.adjustBalanceTx(ctx, tx, key, delta)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("storage.AdjustBalance: %w", err)
	}
	return balance, nil
}

func (s *Store) adjustBalanceTx(ctx context.Context, tx *sql.Tx, key string, delta float64) (float64, error) {
	res, err := tx.ExecContext(ctx, s.q(`UPDATE bookmakers SET balance = balance + ? WHERE key = ?`), delta, key)
	if err != nil {
		return 0, fmt.Errorf("update balance %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("bookmaker %s: %w", key, ErrNotFound)
	}
	var balance float64
	if err := tx.QueryRowContext(ctx, s.q(`SELECT balance FROM bookmakers WHERE key = ?`), key).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read balance %s: %w", key, err)
	}
	return balance, nil
}

// UpsertBookmaker inserts or reconfigures a bookmaker. A new row starts with
// config.starting_balance; an existing balance is never overwritten.
func (s *Store) UpsertBookmaker(ctx context.Context, b domain.Bookmaker) error {
	cfg, err := json.Marshal(b.Config)
	if err != nil {
		return fmt.Errorf("storage.UpsertBookmaker: encode config: %w", err)
	}
	modelType := b.ModelType
	if modelType == "" {
		modelType = domain.ModelSimple
	}
	if _, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO bookmakers (key, title, model_type, balance, active, config)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			title      = excluded.title,
			model_type = excluded.model_type,
			active     = excluded.active,
			config     = excluded.config`),
		b.Key, b.Title, string(modelType), b.Config.StartingBalance, boolToInt(b.Active), string(cfg),
	); err != nil {
		return fmt.Errorf("storage.UpsertBookmaker: %s: %w", b.Key, err)
	}
	return nil
}
