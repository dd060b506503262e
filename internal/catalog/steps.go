package catalog

// StepID identifies one of the seven LFA workflow steps.
type StepID int

const (
	StepProblemDefinition StepID = iota + 1
	StepStakeholders
	StepProblemTree
	StepObjectiveTree
	StepResultsChain
	StepLogframe
	StepMonitoring
)

const StepCount = 7

// Step is an immutable workflow step descriptor.
type Step struct {
	ID          StepID `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

var steps = [StepCount]Step{
	{StepProblemDefinition, "problemDefinition", "Problem Definition", "Describe the core education problem your program addresses", "target"},
	{StepStakeholders, "stakeholders", "Stakeholder Analysis", "Identify the people and institutions affected by or influencing the problem", "users"},
	{StepProblemTree, "problemTree", "Problem Tree", "Map the central problem with its root causes and effects", "git-branch"},
	{StepObjectiveTree, "objectiveTree", "Objective Tree", "Turn problems into objectives by restating negatives as positives", "git-merge"},
	{StepResultsChain, "resultsChain", "Results Chain", "Lay out the causal pathway from inputs to impact", "trending-up"},
	{StepLogframe, "logframe", "Logframe Matrix", "Link objectives, indicators, verification sources and assumptions", "table"},
	{StepMonitoring, "monitoring", "Monitoring Indicators", "Define how progress will be measured during implementation", "activity"},
}

// Steps returns the full ordered catalog.
func Steps() []Step {
	out := make([]Step, StepCount)
	copy(out, steps[:])
	return out
}

// StepByID resolves a step number. ok is false outside [1,7].
func StepByID(id int) (Step, bool) {
	if id < 1 || id > StepCount {
		return Step{}, false
	}
	return steps[id-1], true
}

// StepByKey resolves a step by its data key.
func StepByKey(key string) (Step, bool) {
	for _, s := range steps {
		if s.Key == key {
			return s, true
		}
	}
	return Step{}, false
}

// ValidStepKey reports whether key names a workflow step.
func ValidStepKey(key string) bool {
	_, ok := StepByKey(key)
	return ok
}
