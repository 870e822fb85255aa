package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yourorg/defi-portfolio-engine/internal/model"
)

// AppendSnapshot appends one valuation snapshot to a user's history.
// Histories are append-only; there is deliberately no update or delete path.
func (s *Store) AppendSnapshot(ctx context.Context, userID string, snap model.PortfolioSnapshot) error {
	query := `
		INSERT INTO portfolio_snapshots (user_id, taken_at, total_value, lending, liquidity, farm)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		userID, snap.Timestamp, snap.TotalValue,
		snap.Protocols[model.ProtocolLending],
		snap.Protocols[model.ProtocolLiquidityPool],
		snap.Protocols[model.ProtocolYieldFarm])
	if err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}
	return nil
}

// History returns up to limit snapshots for a user, newest-first, matching
// the analytics engine's declared ordering.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]model.PortfolioSnapshot, error) {
	if limit <= 0 {
		limit = 365
	}

	query := `SELECT taken_at, total_value, lending, liquidity, farm
		FROM portfolio_snapshots
		WHERE user_id = $1
		ORDER BY taken_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []model.PortfolioSnapshot
	for rows.Next() {
		var snap model.PortfolioSnapshot
		if err := rows.Scan(
			&snap.Timestamp, &snap.TotalValue,
			&snap.Protocols[model.ProtocolLending],
			&snap.Protocols[model.ProtocolLiquidityPool],
			&snap.Protocols[model.ProtocolYieldFarm]); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		history = append(history, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history iteration failed: %w", err)
	}
	return history, nil
}

// Principal returns the total principal a user has deposited, or 0 when the
// user has no recorded deposits yet.
func (s *Store) Principal(ctx context.Context, userID string) (float64, error) {
	query := `SELECT deposited FROM principals WHERE user_id = $1 LIMIT 1`

	var deposited sql.NullFloat64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&deposited)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get principal: %w", err)
	}
	if !deposited.Valid {
		return 0, nil
	}
	return deposited.Float64, nil
}

// SetPrincipal records the user's total deposited principal.
func (s *Store) SetPrincipal(ctx context.Context, userID string, deposited float64) error {
	query := `
		INSERT INTO principals (user_id, deposited)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET deposited = EXCLUDED.deposited`

	if _, err := s.db.ExecContext(ctx, query, userID, deposited); err != nil {
		return fmt.Errorf("failed to set principal: %w", err)
	}
	return nil
}
