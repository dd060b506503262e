package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"shiksharaha/internal/db"
	"shiksharaha/internal/migrate"
	"shiksharaha/internal/repo"
	"shiksharaha/internal/store"
)

type testEnv struct {
	Store *store.Store
	Ctx   context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := store.New(conn)
	s.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Store: s, Ctx: context.Background()}
}

func earnedSet(t *testing.T, env testEnv) map[string]bool {
	t.Helper()
	badges, err := env.Store.Badges(env.Ctx)
	if err != nil {
		t.Fatalf("badges: %v", err)
	}
	set := map[string]bool{}
	for _, b := range badges {
		if b.Earned {
			set[b.ID] = true
		}
	}
	return set
}

func TestCreateProjectDefaults(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.Store.CreateProject(env.Ctx, "Girls Literacy", "rural program", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := env.Store.CreateProject(env.Ctx, "Teacher Training", "", "teacher-training")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected unique ids, got %q and %q", a.ID, b.ID)
	}
	if a.Status != "draft" || a.CurrentStep != 1 || a.Progress != 0 {
		t.Fatalf("unexpected defaults: %+v", a)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Store.CreateProject(env.Ctx, "  ", "", ""); err == nil {
		t.Fatalf("expected name required error")
	}
	if _, err := env.Store.CreateProject(env.Ctx, "x", "", "no-such-template"); err == nil {
		t.Fatalf("expected unknown template error")
	}
}

func TestStepCompletionProgress(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Store.CreateProject(env.Ctx, "Literacy Program", "", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, step := range []int{1, 2, 3} {
		p, err = env.Store.UpdateProgress(env.Ctx, p.ID, step)
		if err != nil {
			t.Fatalf("complete step %d: %v", step, err)
		}
	}
	if p.Progress != 43 {
		t.Fatalf("expected progress 43 after three steps, got %d", p.Progress)
	}
	if p.CurrentStep != 4 {
		t.Fatalf("expected current step 4, got %d", p.CurrentStep)
	}
	if p.Status != "in_progress" {
		t.Fatalf("expected in_progress, got %s", p.Status)
	}
}

func TestCompleteStepIdempotent(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Store.CreateProject(env.Ctx, "idempotent", "", "")
	if err != nil {
		t.Fatal(err)
	}
	first, err := env.Store.UpdateProgress(env.Ctx, p.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	again, err := env.Store.UpdateProgress(env.Ctx, p.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if again.Progress != first.Progress || len(again.CompletedSteps) != 1 {
		t.Fatalf("repeat completion changed state: %+v vs %+v", again, first)
	}
}

func TestCurrentStepOnlyMovesForward(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Store.CreateProject(env.Ctx, "ordering", "", "")
	if err != nil {
		t.Fatal(err)
	}
	// completing a later step out of order does not move the pointer
	p, err = env.Store.UpdateProgress(env.Ctx, p.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if p.CurrentStep != 1 {
		t.Fatalf("expected current step to stay at 1, got %d", p.CurrentStep)
	}
	// completing the current step skips over the already-completed one
	p, err = env.Store.UpdateProgress(env.Ctx, p.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.CurrentStep != 2 {
		t.Fatalf("expected current step 2, got %d", p.CurrentStep)
	}
	p, err = env.Store.UpdateProgress(env.Ctx, p.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if p.CurrentStep != 4 {
		t.Fatalf("expected current step 4 (3 already done), got %d", p.CurrentStep)
	}
}

func TestFullCompletion(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Store.CreateProject(env.Ctx, "all steps", "", "")
	if err != nil {
		t.Fatal(err)
	}
	for step := 1; step <= 7; step++ {
		p, err = env.Store.UpdateProgress(env.Ctx, p.ID, step)
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
	}
	if p.Progress != 100 || p.Status != "completed" {
		t.Fatalf("expected 100%% completed, got %d%% %s", p.Progress, p.Status)
	}
	if p.CurrentStep != 7 {
		t.Fatalf("expected current step pinned at 7, got %d", p.CurrentStep)
	}
}

func TestStepDataRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Store.CreateProject(env.Ctx, "data", "", "")
	if err != nil {
		t.Fatal(err)
	}
	payload := map[string]any{
		"causes":  []any{"low attendance", "no materials"},
		"effects": []any{"dropout", "low scores"},
	}
	if err := env.Store.UpdateProjectData(env.Ctx, p.ID, "problemTree", payload); err != nil {
		t.Fatalf("update data: %v", err)
	}
	got, err := env.Store.GetProject(env.Ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	tree := got.Data["problemTree"]
	if tree == nil || len(tree["causes"].([]any)) != 2 {
		t.Fatalf("unexpected round-trip payload: %+v", got.Data)
	}
	// a second write replaces wholesale
	if err := env.Store.UpdateProjectData(env.Ctx, p.ID, "problemTree", map[string]any{"causes": []any{"only one"}}); err != nil {
		t.Fatal(err)
	}
	got, _ = env.Store.GetProject(env.Ctx, p.ID)
	if _, ok := got.Data["problemTree"]["effects"]; ok {
		t.Fatalf("expected old keys dropped on replace")
	}
	if err := env.Store.UpdateProjectData(env.Ctx, p.ID, "notAStep", payload); err == nil {
		t.Fatalf("expected invalid step key error")
	}
	if err := env.Store.UpdateProjectData(env.Ctx, "missing", "problemTree", payload); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteProjectIsolation(t *testing.T) {
	env := newTestEnv(t)
	keep, _ := env.Store.CreateProject(env.Ctx, "keep", "", "")
	gone, _ := env.Store.CreateProject(env.Ctx, "gone", "", "")
	if err := env.Store.SetCurrentProject(env.Ctx, gone.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.Store.DeleteProject(env.Ctx, gone.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Store.GetProject(env.Ctx, gone.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := env.Store.GetProject(env.Ctx, keep.ID); err != nil {
		t.Fatalf("sibling project affected: %v", err)
	}
	if _, err := env.Store.CurrentProject(env.Ctx); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected open-project pointer cleared, got %v", err)
	}
}

func TestCurrentProjectIsReference(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.Store.CreateProject(env.Ctx, "open me", "", "")
	if err := env.Store.SetCurrentProject(env.Ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Store.UpdateProgress(env.Ctx, p.ID, 1); err != nil {
		t.Fatal(err)
	}
	cur, err := env.Store.CurrentProject(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cur.CompletedSteps) != 1 {
		t.Fatalf("expected pointer to see latest state, got %+v", cur)
	}
}

func TestBadgeMilestones(t *testing.T) {
	env := newTestEnv(t)
	if earned := earnedSet(t, env); len(earned) != 0 {
		t.Fatalf("fresh workspace should have no badges: %v", earned)
	}
	p, _ := env.Store.CreateProject(env.Ctx, "badge run", "", "")
	earned := earnedSet(t, env)
	if !earned["first-program"] {
		t.Fatalf("expected firstProgram after create, got %v", earned)
	}
	if _, err := env.Store.UpdateProgress(env.Ctx, p.ID, 1); err != nil {
		t.Fatal(err)
	}
	earned = earnedSet(t, env)
	if !earned["problem-solver"] {
		t.Fatalf("expected problemSolver after step 1, got %v", earned)
	}
	// badges are never revoked, even when the qualifying project goes away
	if err := env.Store.DeleteProject(env.Ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	earned = earnedSet(t, env)
	if !earned["first-program"] || !earned["problem-solver"] {
		t.Fatalf("badges must be monotonic, got %v", earned)
	}
}

func TestRootCauseAnalystThreshold(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.Store.CreateProject(env.Ctx, "analysis", "", "")
	thin := map[string]any{"causes": []any{"one"}, "effects": []any{"one", "two"}}
	if err := env.Store.UpdateProjectData(env.Ctx, p.ID, "problemTree", thin); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Store.UpdateProgress(env.Ctx, p.ID, 3); err != nil {
		t.Fatal(err)
	}
	if earned := earnedSet(t, env); earned["root-cause-analyst"] {
		t.Fatalf("one cause should not qualify")
	}
	full := map[string]any{"causes": []any{"one", "two"}, "effects": []any{"one", "two"}}
	if err := env.Store.UpdateProjectData(env.Ctx, p.ID, "problemTree", full); err != nil {
		t.Fatal(err)
	}
	// evaluation runs on the next mutation that re-checks state
	if _, err := env.Store.UpdateProgress(env.Ctx, p.ID, 3); err != nil {
		t.Fatal(err)
	}
	if earned := earnedSet(t, env); !earned["root-cause-analyst"] {
		t.Fatalf("expected rootCauseAnalyst with 2 causes and 2 effects")
	}
}

func TestTeamBuilderBadge(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Store.InviteMember(env.Ctx, "a@ngo.org", "educator"); err != nil {
		t.Fatal(err)
	}
	if earned := earnedSet(t, env); earned["team-builder"] {
		t.Fatalf("one member should not qualify")
	}
	if _, err := env.Store.InviteMember(env.Ctx, "b@ngo.org", ""); err != nil {
		t.Fatal(err)
	}
	if earned := earnedSet(t, env); !earned["team-builder"] {
		t.Fatalf("expected teamBuilder with two members")
	}
}

func TestBadgeNotifications(t *testing.T) {
	env := newTestEnv(t)
	var got []string
	env.Store.Subscribe(func(n store.Notification) {
		got = append(got, n.NewBadges...)
	})
	if _, err := env.Store.CreateProject(env.Ctx, "notified", "", ""); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "first-program" {
		t.Fatalf("expected firstProgram notification, got %v", got)
	}
}

func TestLoginPermissive(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.Store.Login(env.Ctx, "priya@ngo.org", "whatever")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Email != "priya@ngo.org" {
		t.Fatalf("unexpected user: %+v", u)
	}
	// a different password for the same email still succeeds
	if _, err := env.Store.Login(env.Ctx, "priya@ngo.org", "different"); err != nil {
		t.Fatalf("second login: %v", err)
	}
	if _, err := env.Store.Login(env.Ctx, "", "pw"); err == nil {
		t.Fatalf("expected empty email rejected")
	}
	if _, err := env.Store.Login(env.Ctx, "x@y.z", ""); err == nil {
		t.Fatalf("expected empty password rejected")
	}
}

func TestOnboardingSurvivesLogin(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Store.Register(env.Ctx, store.RegisterOptions{Email: "a@b.c", Password: "pw", Name: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := env.Store.CompleteOnboarding(env.Ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Store.Login(env.Ctx, "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	u, err := env.Store.CurrentUser(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !u.Onboarded {
		t.Fatalf("login must keep the onboarding flag")
	}
	// re-registering resets it
	if _, err := env.Store.Register(env.Ctx, store.RegisterOptions{Email: "a@b.c", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	u, _ = env.Store.CurrentUser(env.Ctx)
	if u.Onboarded {
		t.Fatalf("register must reset the onboarding flag")
	}
}

func TestLogoutKeepsProjects(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Store.Login(env.Ctx, "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	p, _ := env.Store.CreateProject(env.Ctx, "survives", "", "")
	if err := env.Store.Logout(env.Ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Store.CurrentUser(env.Ctx); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected logged out, got %v", err)
	}
	if _, err := env.Store.GetProject(env.Ctx, p.ID); err != nil {
		t.Fatalf("logout must not touch projects: %v", err)
	}
}

func TestDiscussionReplies(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Store.Login(env.Ctx, "priya@ngo.org", "pw"); err != nil {
		t.Fatal(err)
	}
	d, err := env.Store.CreateDiscussion(env.Ctx, "Remote stakeholder workshops?")
	if err != nil {
		t.Fatal(err)
	}
	if d.Author != "priya@ngo.org" {
		t.Fatalf("expected session author, got %s", d.Author)
	}
	if _, err := env.Store.AddDiscussionReply(env.Ctx, d.ID, "We use recorded video rounds."); err != nil {
		t.Fatal(err)
	}
	items, err := env.Store.ListDiscussions(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ReplyCount != 1 {
		t.Fatalf("expected reply count 1, got %+v", items)
	}
	if _, err := env.Store.AddDiscussionReply(env.Ctx, "missing", "x"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unknown thread, got %v", err)
	}
}

func TestEventsAppended(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.Store.CreateProject(env.Ctx, "evented", "", "")
	if _, err := env.Store.UpdateProgress(env.Ctx, p.ID, 1); err != nil {
		t.Fatal(err)
	}
	events, err := env.Store.Repo.LatestEvents(env.Ctx, 50, "", "project", p.ID)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if len(events) < 2 {
		t.Fatalf("expected create and step events, got %d", len(events))
	}
	if events[0].Type != "step.completed" {
		t.Fatalf("expected newest first, got %s", events[0].Type)
	}
}
