package exec

import (
	"context"
	"sort"
)

// StepResult is the outcome of executing one action.
type StepResult struct {
	Action Action
	Output string
	Err    error
}

// Plan is a priority-ordered, already-parsed sequence of actions built
// from recommendation text.
type Plan struct {
	Actions []Action
}

// BuildPlan parses each recommendation into an Action, discarding any
// that don't match a known keyword, then stable-sorts the result by
// Kind.Priority() so execution order is independent of recommendation
// order.
func BuildPlan(recommendations []string) Plan {
	var actions []Action
	for _, rec := range recommendations {
		if a, ok := ParseRecommendation(rec); ok {
			actions = append(actions, a)
		}
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Kind.Priority() < actions[j].Kind.Priority()
	})

	return Plan{Actions: actions}
}

// Result is the aggregate outcome of running a Plan to completion.
type Result struct {
	OverallSuccess bool
	Executed       []StepResult
	Failed         []StepResult
}

// Run executes every action in the plan sequentially against pid,
// recording a (action, result|error) pair for each; a failed action does
// not stop the remaining plan from running.
func (p Plan) Run(ctx context.Context, pid int32) Result {
	var result Result
	for _, a := range p.Actions {
		out, err := Execute(ctx, a, pid)
		step := StepResult{Action: a, Output: out, Err: err}
		if err != nil {
			result.Failed = append(result.Failed, step)
		} else {
			result.Executed = append(result.Executed, step)
		}
	}
	result.OverallSuccess = len(result.Failed) == 0
	return result
}
