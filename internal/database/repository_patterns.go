package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"smc-trading-bot/internal/patterns"
)

// PatternRepository is the PostgreSQL-backed pattern memory. Upsert
// semantics make concurrent writers safe; counters only grow except on
// explicit reset.
type PatternRepository struct {
	db *DB
}

// NewPatternRepository creates the pgx-backed pattern store.
func NewPatternRepository(db *DB) *PatternRepository {
	return &PatternRepository{db: db}
}

var _ patterns.Store = (*PatternRepository)(nil)

// Score returns the pattern's 0-100 score, a neutral 50 when untested.
func (r *PatternRepository) Score(ctx context.Context, userID, patternID string) (float64, error) {
	query := `
		SELECT pattern_id, wins, losses, times_tested, accumulated_reward
		FROM pattern_stats
		WHERE user_id = $1 AND pattern_id = $2
	`
	stat := patterns.Stat{}
	err := r.db.Pool.QueryRow(ctx, query, userID, patternID).Scan(
		&stat.PatternID, &stat.Wins, &stat.Losses, &stat.TimesTested, &stat.AccumulatedReward,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return 50, nil
	}
	if err != nil {
		return 0, err
	}
	return patterns.ScoreFromStat(stat), nil
}

// Record folds a settled outcome into the pattern's counters via upsert.
func (r *PatternRepository) Record(ctx context.Context, userID, patternID string, win bool, reward float64) error {
	wins, losses := 0, 1
	if win {
		wins, losses = 1, 0
	}

	query := `
		INSERT INTO pattern_stats (user_id, pattern_id, wins, losses, times_tested, accumulated_reward)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (user_id, pattern_id) DO UPDATE SET
			wins = pattern_stats.wins + EXCLUDED.wins,
			losses = pattern_stats.losses + EXCLUDED.losses,
			times_tested = pattern_stats.times_tested + 1,
			accumulated_reward = pattern_stats.accumulated_reward + EXCLUDED.accumulated_reward,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.Pool.Exec(ctx, query, userID, patternID, wins, losses, reward)
	return err
}

// Reset wipes all statistics for a user. Deleting nothing is fine.
func (r *PatternRepository) Reset(ctx context.Context, userID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM pattern_stats WHERE user_id = $1`, userID)
	return err
}

// Stats returns the raw per-pattern counters for a user.
func (r *PatternRepository) Stats(ctx context.Context, userID string) ([]patterns.Stat, error) {
	query := `
		SELECT pattern_id, wins, losses, times_tested, accumulated_reward
		FROM pattern_stats
		WHERE user_id = $1
		ORDER BY times_tested DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []patterns.Stat
	for rows.Next() {
		stat := patterns.Stat{}
		err := rows.Scan(&stat.PatternID, &stat.Wins, &stat.Losses,
			&stat.TimesTested, &stat.AccumulatedReward)
		if err != nil {
			return nil, err
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}
