package store

import (
	"context"
	"database/sql"
	"time"

	"shiksharaha/internal/catalog"
	"shiksharaha/internal/domain"
	"shiksharaha/internal/events"
	"shiksharaha/internal/repo"
)

// badgeState is the snapshot the predicates run over. Evaluation always
// recomputes from the full state rather than keeping incremental counters;
// at tens of projects that is cheap and immune to partial-update drift.
type badgeState struct {
	projects    []repo.Project
	memberCount int
}

func (st badgeState) stepCompleted(id catalog.StepID) bool {
	for _, p := range st.projects {
		for _, n := range p.CompletedSteps {
			if n == int(id) {
				return true
			}
		}
	}
	return false
}

func (st badgeState) problemTreeAnalyzed() bool {
	for _, p := range st.projects {
		if !hasStep(p, catalog.StepProblemTree) {
			continue
		}
		payload := p.Data[stepKey(catalog.StepProblemTree)]
		if listLen(payload["causes"]) >= 2 && listLen(payload["effects"]) >= 2 {
			return true
		}
	}
	return false
}

func (st badgeState) anyProjectCompleted() bool {
	for _, p := range st.projects {
		if len(p.CompletedSteps) == catalog.StepCount {
			return true
		}
	}
	return false
}

func hasStep(p repo.Project, id catalog.StepID) bool {
	for _, n := range p.CompletedSteps {
		if n == int(id) {
			return true
		}
	}
	return false
}

func stepKey(id catalog.StepID) string {
	s, _ := catalog.StepByID(int(id))
	return s.Key
}

func listLen(v any) int {
	items, ok := v.([]any)
	if !ok {
		return 0
	}
	return len(items)
}

// badgePredicates maps each catalog badge to its milestone condition.
var badgePredicates = map[string]func(badgeState) bool{
	catalog.BadgeFirstProgram:     func(st badgeState) bool { return len(st.projects) > 0 },
	catalog.BadgeProblemSolver:    func(st badgeState) bool { return st.stepCompleted(catalog.StepProblemDefinition) },
	catalog.BadgeStakeholderMaper: func(st badgeState) bool { return st.stepCompleted(catalog.StepStakeholders) },
	catalog.BadgeRootCauseAnalyst: badgeState.problemTreeAnalyzed,
	catalog.BadgeVisionBuilder:    func(st badgeState) bool { return st.stepCompleted(catalog.StepObjectiveTree) },
	catalog.BadgeChangeMaker:      func(st badgeState) bool { return st.stepCompleted(catalog.StepResultsChain) },
	catalog.BadgeLogframeMaster:   func(st badgeState) bool { return st.stepCompleted(catalog.StepLogframe) },
	catalog.BadgeMonitoringExpert: func(st badgeState) bool { return st.stepCompleted(catalog.StepMonitoring) },
	catalog.BadgeProgramChampion:  badgeState.anyProjectCompleted,
	catalog.BadgeTeamBuilder:      func(st badgeState) bool { return st.memberCount >= 2 },
}

// evaluateBadges re-runs every predicate against current state inside the
// mutation's transaction and appends any newly qualifying ids. It never
// removes an id, so re-running on unchanged state is a no-op. Returns the
// badges earned by this evaluation, in catalog order.
func (s *Store) evaluateBadges(ctx context.Context, tx *sql.Tx, actor string) ([]string, error) {
	projects, err := s.Repo.ListProjectsTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	memberCount, err := s.Repo.CountMembersTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	st := badgeState{projects: projects, memberCount: memberCount}
	now := s.now().UTC().Format(time.RFC3339)

	var earned []string
	for _, b := range catalog.Badges() {
		pred := badgePredicates[b.ID]
		if pred == nil || !pred(st) {
			continue
		}
		added, err := s.Repo.AwardBadge(ctx, tx, b.ID, now)
		if err != nil {
			return nil, err
		}
		if !added {
			continue
		}
		earned = append(earned, b.ID)
		if err := s.Events.Append(ctx, tx, "badge.earned", "badge", b.ID, actor, events.EventPayload{"name": b.Name}); err != nil {
			return nil, err
		}
	}
	return earned, nil
}

// BadgeStatus pairs a catalog badge with its earned state.
type BadgeStatus struct {
	catalog.Badge
	Earned   bool   `json:"earned"`
	EarnedAt string `json:"earned_at,omitempty" format:"date-time"`
}

// Badges returns the catalog merged with the earned set.
func (s *Store) Badges(ctx context.Context) ([]BadgeStatus, error) {
	earned, err := s.Repo.ListEarnedBadges(ctx)
	if err != nil {
		return nil, err
	}
	when := make(map[string]string, len(earned))
	for _, b := range earned {
		when[b.BadgeID] = b.EarnedAt
	}
	var res []BadgeStatus
	for _, b := range catalog.Badges() {
		ts, ok := when[b.ID]
		res = append(res, BadgeStatus{Badge: b, Earned: ok, EarnedAt: ts})
	}
	return res, nil
}

// EarnedBadges returns only the earned entries.
func (s *Store) EarnedBadges(ctx context.Context) ([]domain.EarnedBadge, error) {
	return s.Repo.ListEarnedBadges(ctx)
}
