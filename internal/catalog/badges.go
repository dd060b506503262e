package catalog

// Badge ids are stable strings; the earned set stores them verbatim.
const (
	BadgeFirstProgram     = "first-program"
	BadgeProblemSolver    = "problem-solver"
	BadgeStakeholderMaper = "stakeholder-mapper"
	BadgeRootCauseAnalyst = "root-cause-analyst"
	BadgeVisionBuilder    = "vision-builder"
	BadgeChangeMaker      = "change-maker"
	BadgeLogframeMaster   = "logframe-master"
	BadgeMonitoringExpert = "monitoring-expert"
	BadgeProgramChampion  = "program-champion"
	BadgeTeamBuilder      = "team-builder"
)

type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

var badges = []Badge{
	{BadgeFirstProgram, "First Program", "Created your first education program", "rocket"},
	{BadgeProblemSolver, "Problem Solver", "Completed a problem definition", "lightbulb"},
	{BadgeStakeholderMaper, "Stakeholder Mapper", "Completed a stakeholder analysis", "users"},
	{BadgeRootCauseAnalyst, "Root Cause Analyst", "Built a problem tree with at least two causes and two effects", "tree-deciduous"},
	{BadgeVisionBuilder, "Vision Builder", "Completed an objective tree", "telescope"},
	{BadgeChangeMaker, "Change Maker", "Completed a results chain", "arrow-up-right"},
	{BadgeLogframeMaster, "Logframe Master", "Completed a logframe matrix", "grid"},
	{BadgeMonitoringExpert, "Monitoring Expert", "Defined monitoring indicators", "bar-chart"},
	{BadgeProgramChampion, "Program Champion", "Took a program through all seven steps", "trophy"},
	{BadgeTeamBuilder, "Team Builder", "Grew your organization to two or more members", "handshake"},
}

// Badges returns the full badge catalog.
func Badges() []Badge {
	out := make([]Badge, len(badges))
	copy(out, badges)
	return out
}

// BadgeByID resolves a catalog badge.
func BadgeByID(id string) (Badge, bool) {
	for _, b := range badges {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}
