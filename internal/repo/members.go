package repo

import (
	"context"
	"database/sql"

	"shiksharaha/internal/domain"
)

// InsertMember appends an invited member. Re-inviting an email is a no-op.
func (r Repo) InsertMember(ctx context.Context, tx *sql.Tx, m domain.Member) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO members(email,role,status,invited_at) VALUES (?,?,?,?)
ON CONFLICT(email) DO NOTHING`,
		m.Email, nullable(m.Role), m.Status, m.InvitedAt)
	return err
}

func (r Repo) ListMembers(ctx context.Context) ([]domain.Member, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT email,role,status,invited_at FROM members ORDER BY invited_at, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Member
	for rows.Next() {
		var m domain.Member
		var role sql.NullString
		if err := rows.Scan(&m.Email, &role, &m.Status, &m.InvitedAt); err != nil {
			return nil, err
		}
		m.Role = role.String
		res = append(res, m)
	}
	return res, rows.Err()
}

// CountMembersTx counts team members inside an open transaction.
func (r Repo) CountMembersTx(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&n)
	return n, err
}
