package repo

import (
	"context"
	"database/sql"

	"shiksharaha/internal/domain"
)

// AwardBadge appends a badge to the earned set. Earning is idempotent: an id
// already present leaves the row (and its earned_at) untouched.
func (r Repo) AwardBadge(ctx context.Context, tx *sql.Tx, badgeID, earnedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO earned_badges(badge_id,earned_at) VALUES (?,?)`, badgeID, earnedAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) ListEarnedBadges(ctx context.Context) ([]domain.EarnedBadge, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT badge_id,earned_at FROM earned_badges ORDER BY earned_at, badge_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.EarnedBadge
	for rows.Next() {
		var b domain.EarnedBadge
		if err := rows.Scan(&b.BadgeID, &b.EarnedAt); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}
