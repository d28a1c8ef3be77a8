package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
)

const (
	sqlGetSetting = `SELECT value FROM settings WHERE key = $1`

	sqlSaveSetting = `
INSERT INTO settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	sqlAddSettingHistory = `
INSERT INTO setting_history (key, old_value, new_value, changed_by)
VALUES ($1, $2, $3, $4)`

	sqlRecentSettingHistory = `
SELECT key, old_value, new_value, changed_by, changed_at
FROM setting_history
ORDER BY changed_at DESC, id DESC
LIMIT $1`
)

func (db *DB) getRawSetting(ctx context.Context, key string) ([]byte, error) {
	var raw []byte

	if err := db.Pool.QueryRow(ctx, sqlGetSetting, key).Scan(&raw); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap and check pgx.ErrNoRows
	}

	return raw, nil
}

func (db *DB) SaveSettingWithHistory(ctx context.Context, key string, value interface{}, changedBy int64) error {
	// Get old value
	var oldVal []byte

	rawOld, err := db.getRawSetting(ctx, key)
	if err == nil {
		oldVal = rawOld
	}

	val, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal setting value: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, sqlSaveSetting, key, val); err != nil {
		return fmt.Errorf("failed to save setting to DB: %w", err)
	}

	// Only add history if changedBy is provided
	if changedBy != 0 {
		//nolint:errcheck // history logging is best-effort, should not fail the main operation
		_, _ = db.Pool.Exec(ctx, sqlAddSettingHistory,
			key,
			pgtype.Text{String: string(oldVal), Valid: len(oldVal) > 0},
			pgtype.Text{String: string(val), Valid: true},
			changedBy,
		)
	}

	return nil
}

func (db *DB) GetSetting(ctx context.Context, key string, target interface{}) error {
	val, err := db.getRawSetting(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("failed to get setting from DB: %w", err)
	}

	if err := json.Unmarshal(val, target); err != nil {
		return fmt.Errorf("failed to unmarshal setting value: %w", err)
	}

	return nil
}

func (db *DB) GetRecentSettingHistory(ctx context.Context, limit int) ([]domain.SettingHistory, error) {
	rows, err := db.Pool.Query(ctx, sqlRecentSettingHistory, safeIntToInt32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get setting history: %w", err)
	}
	defer rows.Close()

	var res []domain.SettingHistory

	for rows.Next() {
		var (
			h        domain.SettingHistory
			oldValue pgtype.Text
			newValue pgtype.Text
			at       pgtype.Timestamptz
		)

		if err := rows.Scan(&h.Key, &oldValue, &newValue, &h.ChangedBy, &at); err != nil {
			return nil, fmt.Errorf("failed to scan setting history: %w", err)
		}

		h.OldValue = oldValue.String
		h.NewValue = newValue.String
		h.ChangedAt = at.Time

		res = append(res, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read setting history: %w", err)
	}

	return res, nil
}
