package push

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists device push tokens in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert inserts the token or refreshes its device metadata when already
// registered.
func (r *Repository) Upsert(ctx context.Context, t Token) error {
	query := `
		INSERT INTO push_tokens (token, device_id, device_name, platform, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token) DO UPDATE SET
			device_id = EXCLUDED.device_id,
			device_name = EXCLUDED.device_name,
			platform = EXCLUDED.platform,
			updated_at = EXCLUDED.updated_at`

	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, query, t.Token, t.DeviceID, t.DeviceName, t.Platform, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert push token: %w", err)
	}
	return nil
}

// List returns every registered token, most recently updated first.
func (r *Repository) List(ctx context.Context) ([]Token, error) {
	query := `
		SELECT token, device_id, device_name, platform, updated_at
		FROM push_tokens
		ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list push tokens: %w", err)
	}
	defer rows.Close()

	var tokens []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.Token, &t.DeviceID, &t.DeviceName, &t.Platform, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan push token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate push tokens: %w", err)
	}
	return tokens, nil
}

// Delete removes a token after Expo reports it as unregistered.
func (r *Repository) Delete(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM push_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to delete push token: %w", err)
	}
	return nil
}
