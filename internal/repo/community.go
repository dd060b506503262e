package repo

import (
	"context"
	"database/sql"

	"shiksharaha/internal/domain"
)

func (r Repo) InsertDiscussion(ctx context.Context, tx *sql.Tx, d domain.Discussion) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO discussions(id,title,author,reply_count,created_at) VALUES (?,?,?,?,?)`,
		d.ID, d.Title, d.Author, d.ReplyCount, d.CreatedAt)
	return err
}

func (r Repo) GetDiscussion(ctx context.Context, id string) (domain.Discussion, error) {
	var d domain.Discussion
	err := r.DB.QueryRowContext(ctx, `SELECT id,title,author,reply_count,created_at FROM discussions WHERE id=?`, id).
		Scan(&d.ID, &d.Title, &d.Author, &d.ReplyCount, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) ListDiscussions(ctx context.Context) ([]domain.Discussion, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,author,reply_count,created_at FROM discussions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Discussion
	for rows.Next() {
		var d domain.Discussion
		if err := rows.Scan(&d.ID, &d.Title, &d.Author, &d.ReplyCount, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// InsertReply appends a reply and bumps the discussion counter in one step.
// The counter update goes first so an unknown discussion reports ErrNotFound.
func (r Repo) InsertReply(ctx context.Context, tx *sql.Tx, rep domain.Reply) error {
	res, err := tx.ExecContext(ctx, `UPDATE discussions SET reply_count=reply_count+1 WHERE id=?`, rep.DiscussionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO replies(id,discussion_id,author,text,created_at) VALUES (?,?,?,?,?)`,
		rep.ID, rep.DiscussionID, rep.Author, rep.Text, rep.CreatedAt)
	return err
}

func (r Repo) ListReplies(ctx context.Context, discussionID string) ([]domain.Reply, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,discussion_id,author,text,created_at FROM replies WHERE discussion_id=? ORDER BY created_at, id`, discussionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Reply
	for rows.Next() {
		var rep domain.Reply
		if err := rows.Scan(&rep.ID, &rep.DiscussionID, &rep.Author, &rep.Text, &rep.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rep)
	}
	return res, rows.Err()
}
