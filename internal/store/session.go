package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"shiksharaha/internal/domain"
	"shiksharaha/internal/events"
)

// RegisterOptions are the registration form fields.
type RegisterOptions struct {
	Name         string
	Email        string
	Password     string
	Organization string
	Role         string
}

// Register creates (or overwrites) the user record and opens a session.
// Demo semantics: any non-empty email and password succeed; the password is
// never stored or verified. Onboarding is reset so the new user sees the
// walkthrough.
func (s *Store) Register(ctx context.Context, opts RegisterOptions) (domain.User, error) {
	if strings.TrimSpace(opts.Email) == "" || opts.Password == "" {
		return domain.User{}, errors.New("email and password are required")
	}
	now := s.now().UTC().Format(time.RFC3339)
	u := domain.User{
		Email:        opts.Email,
		Name:         opts.Name,
		Organization: opts.Organization,
		Role:         opts.Role,
		Onboarded:    false,
		CreatedAt:    now,
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := s.Repo.UpsertUser(ctx, tx, u, true); err != nil {
		return domain.User{}, err
	}
	if err := s.Repo.SetCurrentUser(ctx, tx, u.Email); err != nil {
		return domain.User{}, err
	}
	if err := s.Events.Append(ctx, tx, "user.register", "user", u.Email, u.Email, nil); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	s.notify(Notification{Type: "user.register", EntityID: u.Email})
	return u, nil
}

// Login opens a session for the email. Demo semantics: any non-empty password
// is accepted, even a wrong one, and an unknown email gets a fresh user row.
// An existing user keeps their onboarding flag.
func (s *Store) Login(ctx context.Context, email, password string) (domain.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return domain.User{}, errors.New("email and password are required")
	}
	now := s.now().UTC().Format(time.RFC3339)
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	u := domain.User{Email: email, CreatedAt: now}
	if err := s.Repo.UpsertUser(ctx, tx, u, false); err != nil {
		return domain.User{}, err
	}
	if err := s.Repo.SetCurrentUser(ctx, tx, email); err != nil {
		return domain.User{}, err
	}
	if err := s.Events.Append(ctx, tx, "user.login", "user", email, email, nil); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	out, err := s.Repo.GetUser(ctx, email)
	if err != nil {
		return domain.User{}, err
	}
	s.notify(Notification{Type: "user.login", EntityID: email})
	return out, nil
}

// Logout clears the session user. Projects are deliberately left in place;
// the workspace outlives the session.
func (s *Store) Logout(ctx context.Context) error {
	actor := s.actor(ctx)
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.Repo.ClearCurrentUser(ctx, tx); err != nil {
		return err
	}
	if err := s.Events.Append(ctx, tx, "user.logout", "user", actor, actor, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.notify(Notification{Type: "user.logout", EntityID: actor})
	return nil
}

// CurrentUser returns the session user, ErrNotFound when logged out.
func (s *Store) CurrentUser(ctx context.Context) (domain.User, error) {
	return s.Repo.CurrentUser(ctx)
}

// CompleteOnboarding flips the session user's onboarding flag.
func (s *Store) CompleteOnboarding(ctx context.Context) error {
	u, err := s.Repo.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return s.Repo.SetOnboarded(ctx, u.Email, true)
}

// InviteMember appends an invited member record. No invitation is delivered.
func (s *Store) InviteMember(ctx context.Context, email, role string) (domain.Member, error) {
	if strings.TrimSpace(email) == "" {
		return domain.Member{}, errors.New("email is required")
	}
	now := s.now().UTC().Format(time.RFC3339)
	actor := s.actor(ctx)
	m := domain.Member{Email: email, Role: role, Status: "invited", InvitedAt: now}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Member{}, err
	}
	defer tx.Rollback()

	if err := s.Repo.InsertMember(ctx, tx, m); err != nil {
		return domain.Member{}, err
	}
	if err := s.Events.Append(ctx, tx, "member.invited", "member", email, actor, events.EventPayload{"role": role}); err != nil {
		return domain.Member{}, err
	}
	newBadges, err := s.evaluateBadges(ctx, tx, actor)
	if err != nil {
		return domain.Member{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Member{}, err
	}
	s.notify(Notification{Type: "member.invited", EntityID: email, NewBadges: newBadges})
	return m, nil
}

// ListMembers returns the organization members.
func (s *Store) ListMembers(ctx context.Context) ([]domain.Member, error) {
	return s.Repo.ListMembers(ctx)
}

// CreateDiscussion starts a community thread authored by the session user.
func (s *Store) CreateDiscussion(ctx context.Context, title string) (domain.Discussion, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Discussion{}, errors.New("title is required")
	}
	now := s.now().UTC().Format(time.RFC3339)
	actor := s.actor(ctx)
	d := domain.Discussion{
		ID:        uuid.NewString(),
		Title:     title,
		Author:    actor,
		CreatedAt: now,
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Discussion{}, err
	}
	defer tx.Rollback()

	if err := s.Repo.InsertDiscussion(ctx, tx, d); err != nil {
		return domain.Discussion{}, err
	}
	if err := s.Events.Append(ctx, tx, "discussion.created", "discussion", d.ID, actor, nil); err != nil {
		return domain.Discussion{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Discussion{}, err
	}
	s.notify(Notification{Type: "discussion.created", EntityID: d.ID})
	return d, nil
}

// AddDiscussionReply appends a reply authored by the session user and bumps
// the thread's counter.
func (s *Store) AddDiscussionReply(ctx context.Context, discussionID, text string) (domain.Reply, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Reply{}, errors.New("text is required")
	}
	now := s.now().UTC().Format(time.RFC3339)
	actor := s.actor(ctx)
	rep := domain.Reply{
		ID:           uuid.NewString(),
		DiscussionID: discussionID,
		Author:       actor,
		Text:         text,
		CreatedAt:    now,
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Reply{}, err
	}
	defer tx.Rollback()

	if err := s.Repo.InsertReply(ctx, tx, rep); err != nil {
		return domain.Reply{}, err
	}
	if err := s.Events.Append(ctx, tx, "discussion.reply.added", "discussion", discussionID, actor, nil); err != nil {
		return domain.Reply{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Reply{}, err
	}
	s.notify(Notification{Type: "discussion.reply.added", EntityID: discussionID})
	return rep, nil
}

// ListDiscussions returns community threads, newest first.
func (s *Store) ListDiscussions(ctx context.Context) ([]domain.Discussion, error) {
	return s.Repo.ListDiscussions(ctx)
}

// ListReplies returns a thread's replies in posting order.
func (s *Store) ListReplies(ctx context.Context, discussionID string) ([]domain.Reply, error) {
	return s.Repo.ListReplies(ctx, discussionID)
}
