package repo

import (
	"context"
	"database/sql"

	"shiksharaha/internal/domain"
)

const (
	stateCurrentUser    = "current_user_email"
	stateCurrentProject = "current_project_id"
)

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var name, org, role sql.NullString
	var onboarded int
	err := row.Scan(&u.Email, &name, &org, &role, &onboarded, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Name = name.String
	u.Organization = org.String
	u.Role = role.String
	u.Onboarded = onboarded != 0
	return u, nil
}

func (r Repo) GetUser(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT email,name,organization,role,onboarded,created_at FROM users WHERE email=?`, email))
}

// UpsertUser inserts the user, preserving the onboarded flag of an existing row
// unless resetOnboarding is set (register resets it, login keeps it).
func (r Repo) UpsertUser(ctx context.Context, tx *sql.Tx, u domain.User, resetOnboarding bool) error {
	onboarded := 0
	if u.Onboarded {
		onboarded = 1
	}
	if resetOnboarding {
		_, err := tx.ExecContext(ctx, `INSERT INTO users(email,name,organization,role,onboarded,created_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(email) DO UPDATE SET name=excluded.name, organization=excluded.organization, role=excluded.role, onboarded=excluded.onboarded`,
			u.Email, nullable(u.Name), nullable(u.Organization), nullable(u.Role), onboarded, u.CreatedAt)
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO users(email,name,organization,role,onboarded,created_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(email) DO NOTHING`,
		u.Email, nullable(u.Name), nullable(u.Organization), nullable(u.Role), onboarded, u.CreatedAt)
	return err
}

func (r Repo) SetOnboarded(ctx context.Context, email string, onboarded bool) error {
	v := 0
	if onboarded {
		v = 1
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET onboarded=? WHERE email=?`, v, email)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) setState(ctx context.Context, tx *sql.Tx, key, value string) error {
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	_, err := exec(ctx, `INSERT INTO app_state(key,value) VALUES (?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func (r Repo) getState(ctx context.Context, key string) (string, error) {
	var v string
	err := r.DB.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return v, err
}

func (r Repo) clearState(ctx context.Context, tx *sql.Tx, key string) error {
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	_, err := exec(ctx, `DELETE FROM app_state WHERE key=?`, key)
	return err
}

// SetCurrentUser records the session user pointer.
func (r Repo) SetCurrentUser(ctx context.Context, tx *sql.Tx, email string) error {
	return r.setState(ctx, tx, stateCurrentUser, email)
}

// CurrentUser resolves the session user, ErrNotFound when logged out.
func (r Repo) CurrentUser(ctx context.Context) (domain.User, error) {
	email, err := r.getState(ctx, stateCurrentUser)
	if err != nil {
		return domain.User{}, err
	}
	return r.GetUser(ctx, email)
}

// ClearCurrentUser logs the session out. Projects are untouched.
func (r Repo) ClearCurrentUser(ctx context.Context, tx *sql.Tx) error {
	return r.clearState(ctx, tx, stateCurrentUser)
}

// SetCurrentProject records the open-project pointer.
func (r Repo) SetCurrentProject(ctx context.Context, tx *sql.Tx, projectID string) error {
	return r.setState(ctx, tx, stateCurrentProject, projectID)
}

// CurrentProjectID returns the open-project pointer, "" when none is set.
func (r Repo) CurrentProjectID(ctx context.Context) (string, error) {
	id, err := r.getState(ctx, stateCurrentProject)
	if err == ErrNotFound {
		return "", nil
	}
	return id, err
}

// ClearCurrentProject drops the open-project pointer.
func (r Repo) ClearCurrentProject(ctx context.Context, tx *sql.Tx) error {
	return r.clearState(ctx, tx, stateCurrentProject)
}
