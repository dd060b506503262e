package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertProjectTx(ctx context.Context, tx *sql.Tx, id, name, description, status string, currentStep, progress int, createdAt, updatedAt string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,name,description,status,current_step,progress,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		id, name, nullable(description), status, currentStep, progress, createdAt, updatedAt)
	return err
}

type projectRow struct {
	ID          string
	Name        string
	Description string
	Status      string
	CurrentStep int
	Progress    int
	CreatedAt   string
	UpdatedAt   string
}

func (r Repo) getProjectRow(ctx context.Context, q queryer, id string) (projectRow, error) {
	var p projectRow
	var desc sql.NullString
	err := q.QueryRowContext(ctx, `SELECT id,name,description,status,current_step,progress,created_at,updated_at FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &desc, &p.Status, &p.CurrentStep, &p.Progress, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if desc.Valid {
		p.Description = desc.String
	}
	return p, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetProject returns a fully assembled project: row, step data, completed steps.
func (r Repo) GetProject(ctx context.Context, id string) (Project, error) {
	return r.getProject(ctx, r.DB, id)
}

// GetProjectTx is GetProject inside an open transaction.
func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (Project, error) {
	return r.getProject(ctx, tx, id)
}

// Project is the repo-level assembled record. The domain conversion lives in
// the store so repo stays free of catalog knowledge.
type Project struct {
	ID             string
	Name           string
	Description    string
	Status         string
	CurrentStep    int
	Progress       int
	Data           map[string]map[string]any
	CompletedSteps []int
	CreatedAt      string
	UpdatedAt      string
}

func (r Repo) getProject(ctx context.Context, q queryer, id string) (Project, error) {
	row, err := r.getProjectRow(ctx, q, id)
	if err != nil {
		return Project{}, err
	}
	data, err := r.stepData(ctx, q, id)
	if err != nil {
		return Project{}, err
	}
	completed, err := r.completedSteps(ctx, q, id)
	if err != nil {
		return Project{}, err
	}
	return Project{
		ID:             row.ID,
		Name:           row.Name,
		Description:    row.Description,
		Status:         row.Status,
		CurrentStep:    row.CurrentStep,
		Progress:       row.Progress,
		Data:           data,
		CompletedSteps: completed,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

func (r Repo) ListProjects(ctx context.Context) ([]Project, error) {
	return r.listProjects(ctx, r.DB)
}

// ListProjectsTx lists fully assembled projects inside an open transaction.
// The badge evaluator reads through this so its predicates see the mutation
// they are reacting to.
func (r Repo) ListProjectsTx(ctx context.Context, tx *sql.Tx) ([]Project, error) {
	return r.listProjects(ctx, tx)
}

func (r Repo) listProjects(ctx context.Context, q queryer) ([]Project, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var res []Project
	for _, id := range ids {
		p, err := r.getProject(ctx, q, id)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

func (r Repo) UpdateProjectMeta(ctx context.Context, tx *sql.Tx, id string, name, description, status *string, updatedAt string) error {
	fields := []string{"updated_at=?"}
	args := []any{updatedAt}
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*description))
	}
	if status != nil {
		fields = append(fields, "status=?")
		args = append(args, *status)
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE projects SET %s WHERE id=?`, strings.Join(fields, ","))
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateProjectProgress(ctx context.Context, tx *sql.Tx, id string, currentStep, progress int, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET current_step=?,progress=?,status=?,updated_at=? WHERE id=?`,
		currentStep, progress, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProject(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertStepData replaces the payload for one step wholesale.
func (r Repo) UpsertStepData(ctx context.Context, tx *sql.Tx, projectID, stepKey string, payload map[string]any, updatedAt string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal step payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO project_step_data(project_id,step_key,payload_json,updated_at) VALUES (?,?,?,?)
ON CONFLICT(project_id,step_key) DO UPDATE SET payload_json=excluded.payload_json, updated_at=excluded.updated_at`,
		projectID, stepKey, string(data), updatedAt)
	return err
}

func (r Repo) stepData(ctx context.Context, q queryer, projectID string) (map[string]map[string]any, error) {
	rows, err := q.QueryContext(ctx, `SELECT step_key,payload_json FROM project_step_data WHERE project_id=?`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]map[string]any{}
	for rows.Next() {
		var key, payload string
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, err
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(payload), &obj); err != nil {
			return nil, fmt.Errorf("decode step %s payload: %w", key, err)
		}
		res[key] = obj
	}
	return res, rows.Err()
}

// MarkStepCompleted records a completed step. Idempotent.
func (r Repo) MarkStepCompleted(ctx context.Context, tx *sql.Tx, projectID string, step int, completedAt string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO project_completed_steps(project_id,step,completed_at) VALUES (?,?,?)`,
		projectID, step, completedAt)
	return err
}

func (r Repo) completedSteps(ctx context.Context, q queryer, projectID string) ([]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT step FROM project_completed_steps WHERE project_id=? ORDER BY step`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
