// Package audit keeps a trail of quota and rate-limit violations for
// support and abuse investigations. It is a side channel: recording
// failures never affect the quota decision itself.
package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles quota_violations PostgreSQL operations. A nil
// Repository is a no-op, so the service runs fine without a database.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record appends one violation row.
func (r *Repository) Record(ctx context.Context, userID, kind, route string) error {
	if r == nil {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO quota_violations (id, user_id, kind, route) VALUES ($1, $2, $3, $4)`,
		uuid.New(), userID, kind, route)
	if err != nil {
		return fmt.Errorf("recording violation: %w", err)
	}
	return nil
}

// ListByUser returns the user's most recent violations, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]Violation, error) {
	if r == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, kind, route, created_at
		 FROM quota_violations
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing violations: %w", err)
	}
	defer rows.Close()

	var out []Violation
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.ID, &v.UserID, &v.Kind, &v.Route, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning violation: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating violations: %w", err)
	}
	return out, nil
}
