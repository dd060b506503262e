package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shiksharaha/internal/catalog"
	"shiksharaha/internal/domain"
	"shiksharaha/internal/events"
	"shiksharaha/internal/repo"
)

// Store is the single source of truth for all user-visible mutable state.
// Every mutation goes through a named operation so the progress and badge
// invariants are enforced in one place.
type Store struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time

	mu          sync.Mutex
	subscribers []func(Notification)
}

// Notification is delivered to subscribers after a mutation commits.
type Notification struct {
	Type      string
	EntityID  string
	NewBadges []string
}

func New(db *sql.DB) *Store {
	return &Store{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Now:    time.Now,
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Subscribe registers an observer called after each committed mutation.
func (s *Store) Subscribe(fn func(Notification)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) notify(n Notification) {
	s.mu.Lock()
	subs := make([]func(Notification), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(n)
	}
}

type actorKey struct{}

// WithActor stamps an authenticated identity onto the context; mutations
// attribute their audit events to it ahead of the session pointer.
func WithActor(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, actorKey{}, email)
}

func (s *Store) actor(ctx context.Context) string {
	if email, ok := ctx.Value(actorKey{}).(string); ok && email != "" {
		return email
	}
	if u, err := s.Repo.CurrentUser(ctx); err == nil && u.Email != "" {
		return u.Email
	}
	return "local-user"
}

func toDomain(p repo.Project) domain.Project {
	return domain.Project{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Status:         p.Status,
		CurrentStep:    p.CurrentStep,
		Progress:       p.Progress,
		Data:           p.Data,
		CompletedSteps: p.CompletedSteps,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// CreateProject allocates a new draft project at step 1. The template, if any,
// is advisory: the caller pre-fills name and description from it, nothing else
// is copied.
func (s *Store) CreateProject(ctx context.Context, name, description, templateID string) (domain.Project, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Project{}, errors.New("name is required")
	}
	if templateID != "" {
		if _, ok := catalog.TemplateByID(templateID); !ok {
			return domain.Project{}, fmt.Errorf("template %s not found", templateID)
		}
	}
	now := s.now().UTC().Format(time.RFC3339)
	p := domain.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      "draft",
		CurrentStep: 1,
		Progress:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	actor := s.actor(ctx)
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := s.Repo.InsertProjectTx(ctx, tx, p.ID, p.Name, p.Description, p.Status, p.CurrentStep, p.Progress, p.CreatedAt, p.UpdatedAt); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	payload := events.EventPayload{"name": p.Name}
	if templateID != "" {
		payload["template_id"] = templateID
	}
	if err := s.Events.Append(ctx, tx, "project.created", "project", p.ID, actor, payload); err != nil {
		return domain.Project{}, err
	}
	newBadges, err := s.evaluateBadges(ctx, tx, actor)
	if err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	s.notify(Notification{Type: "project.created", EntityID: p.ID, NewBadges: newBadges})
	return p, nil
}

// UpdateProjectData replaces one step's form payload wholesale. The store does
// not validate the payload shape; step-level completeness checks are advisory
// and live with the caller.
func (s *Store) UpdateProjectData(ctx context.Context, projectID, stepKey string, payload map[string]any) error {
	if !catalog.ValidStepKey(stepKey) {
		return fmt.Errorf("invalid step key %s", stepKey)
	}
	now := s.now().UTC().Format(time.RFC3339)
	actor := s.actor(ctx)
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.Repo.GetProjectTx(ctx, tx, projectID); err != nil {
		return err
	}
	if err := s.Repo.UpsertStepData(ctx, tx, projectID, stepKey, payload, now); err != nil {
		return err
	}
	if err := s.Repo.UpdateProjectMeta(ctx, tx, projectID, nil, nil, nil, now); err != nil {
		return err
	}
	if err := s.Events.Append(ctx, tx, "project.data.updated", "project", projectID, actor, events.EventPayload{"step_key": stepKey}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.notify(Notification{Type: "project.data.updated", EntityID: projectID})
	return nil
}

// progressPercent is round(100 * completed / 7).
func progressPercent(completed int) int {
	return int(math.Round(100 * float64(completed) / float64(catalog.StepCount)))
}

func nextIncompleteStep(completed map[int]bool) int {
	for step := 1; step <= catalog.StepCount; step++ {
		if !completed[step] {
			return step
		}
	}
	return catalog.StepCount
}

// deriveStatus keeps "review" sticky until full completion; otherwise the
// label follows the completed-step count.
func deriveStatus(existing string, completed int) string {
	switch {
	case completed == catalog.StepCount:
		return "completed"
	case completed == 0:
		return existing
	case existing == "review":
		return "review"
	default:
		return "in_progress"
	}
}

// UpdateProgress marks a step completed. Completing an already-completed step
// changes nothing. currentStep only ever moves forward, to the first step not
// yet completed.
func (s *Store) UpdateProgress(ctx context.Context, projectID string, step int) (domain.Project, error) {
	if step < 1 || step > catalog.StepCount {
		return domain.Project{}, fmt.Errorf("step must be between 1 and %d", catalog.StepCount)
	}
	now := s.now().UTC().Format(time.RFC3339)
	actor := s.actor(ctx)
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p, err := s.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.Repo.MarkStepCompleted(ctx, tx, projectID, step, now); err != nil {
		return domain.Project{}, err
	}
	completed := map[int]bool{}
	for _, n := range p.CompletedSteps {
		completed[n] = true
	}
	completed[step] = true

	progress := progressPercent(len(completed))
	current := p.CurrentStep
	if step == p.CurrentStep {
		current = nextIncompleteStep(completed)
	}
	status := deriveStatus(p.Status, len(completed))
	if err := s.Repo.UpdateProjectProgress(ctx, tx, projectID, current, progress, status, now); err != nil {
		return domain.Project{}, err
	}
	if err := s.Events.Append(ctx, tx, "step.completed", "project", projectID, actor, events.EventPayload{
		"step":     step,
		"progress": progress,
	}); err != nil {
		return domain.Project{}, err
	}
	newBadges, err := s.evaluateBadges(ctx, tx, actor)
	if err != nil {
		return domain.Project{}, err
	}
	out, err := s.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	s.notify(Notification{Type: "step.completed", EntityID: projectID, NewBadges: newBadges})
	return toDomain(out), nil
}

// UpdateProjectMeta patches name, description or the status label. Status
// "review" is only ever set through this path.
func (s *Store) UpdateProjectMeta(ctx context.Context, projectID string, name, description, status *string) (domain.Project, error) {
	if status != nil {
		switch *status {
		case "draft", "in_progress", "review", "completed":
		default:
			return domain.Project{}, fmt.Errorf("invalid status %s", *status)
		}
	}
	now := s.now().UTC().Format(time.RFC3339)
	actor := s.actor(ctx)
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := s.Repo.UpdateProjectMeta(ctx, tx, projectID, name, description, status, now); err != nil {
		return domain.Project{}, err
	}
	if err := s.Events.Append(ctx, tx, "project.updated", "project", projectID, actor, nil); err != nil {
		return domain.Project{}, err
	}
	out, err := s.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	s.notify(Notification{Type: "project.updated", EntityID: projectID})
	return toDomain(out), nil
}

// DeleteProject removes the project and its child rows. Earned badges are
// never revoked. If the open-project pointer referenced it, the pointer is
// cleared.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	actor := s.actor(ctx)
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.Repo.DeleteProject(ctx, tx, projectID); err != nil {
		return err
	}
	current, err := s.Repo.CurrentProjectID(ctx)
	if err != nil {
		return err
	}
	if current == projectID {
		if err := s.Repo.ClearCurrentProject(ctx, tx); err != nil {
			return err
		}
	}
	if err := s.Events.Append(ctx, tx, "project.deleted", "project", projectID, actor, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.notify(Notification{Type: "project.deleted", EntityID: projectID})
	return nil
}

// GetProject returns the assembled project.
func (s *Store) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	p, err := s.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	return toDomain(p), nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	items, err := s.Repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Project, 0, len(items))
	for _, p := range items {
		res = append(res, toDomain(p))
	}
	return res, nil
}

// SetCurrentProject records the open-project pointer. It is a reference, not a
// copy: subsequent reads see the latest state.
func (s *Store) SetCurrentProject(ctx context.Context, projectID string) error {
	if _, err := s.Repo.GetProject(ctx, projectID); err != nil {
		return err
	}
	return s.Repo.SetCurrentProject(ctx, nil, projectID)
}

// CurrentProject resolves the open-project pointer, ErrNotFound when unset.
func (s *Store) CurrentProject(ctx context.Context) (domain.Project, error) {
	id, err := s.Repo.CurrentProjectID(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	if id == "" {
		return domain.Project{}, repo.ErrNotFound
	}
	return s.GetProject(ctx, id)
}
