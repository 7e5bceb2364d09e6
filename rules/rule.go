package rules

import (
	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/graph"
)

// Rule is a declarative remediation rule loaded from YAML.
type Rule struct {
	Name             string        `yaml:"name"`
	Scene            string        `yaml:"scene"`
	Priority         int           `yaml:"priority"`
	Conditions       []Condition   `yaml:"conditions"`
	RootCausePattern string        `yaml:"root_cause_pattern"`
	SolutionSteps    []string      `yaml:"solution_steps"`
	Applicability    Applicability `yaml:"applicability"`
}

// Applicability gates whether a matched rule is confident enough to act on.
type Applicability struct {
	MinConfidence  float64  `yaml:"min_confidence"`
	RequiredEvents []string `yaml:"required_events,omitempty"`
}

// Matches reports whether every top-level condition holds — matching is
// AND across a rule's top-level conditions; any/all nest explicit logical
// combinators beneath that.
func (r Rule) Matches(events []event.Event, g *graph.Graph) bool {
	for _, c := range r.Conditions {
		if !c.Match(events, g) {
			return false
		}
	}
	return true
}
