package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/yourorg/defi-portfolio-engine/internal/model"
)

// SaveProfile replaces a user's risk profile wholesale. Re-assessment never
// partially mutates an existing record.
func (s *Store) SaveProfile(ctx context.Context, rec model.RiskProfileRecord) error {
	if _, err := uuid.Parse(rec.UserID); err != nil {
		return model.NewValidationError("user_id", "not a valid user id: %v", err)
	}

	query := `
		INSERT INTO risk_profiles (user_id, score, profile, version, assessed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			score = EXCLUDED.score,
			profile = EXCLUDED.profile,
			version = EXCLUDED.version,
			assessed_at = EXCLUDED.assessed_at`

	_, err := s.db.ExecContext(ctx, query,
		rec.UserID, rec.Score, string(rec.Profile), rec.Version, rec.AssessedAt)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// GetProfile retrieves the authoritative risk profile for a user.
func (s *Store) GetProfile(ctx context.Context, userID string) (model.RiskProfileRecord, error) {
	query := `SELECT user_id, score, profile, version, assessed_at
		FROM risk_profiles WHERE user_id = $1 LIMIT 1`

	var rec model.RiskProfileRecord
	var profile string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&rec.UserID, &rec.Score, &profile, &rec.Version, &rec.AssessedAt)
	if err == sql.ErrNoRows {
		return model.RiskProfileRecord{}, fmt.Errorf("no risk profile for user %s", userID)
	}
	if err != nil {
		return model.RiskProfileRecord{}, fmt.Errorf("failed to get profile: %w", err)
	}

	rec.Profile = model.RiskProfile(profile)
	return rec, nil
}
