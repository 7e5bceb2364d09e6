package rules

import (
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gridwatch/gridwatch/errors"
	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/graph"
)

// Condition is the rule engine's closed condition sum type: exactly one
// of Event, Graph, Metric, Any, or All is populated, selected by Type.
// This is the idiomatic Go rendering of the Rust original's `enum` —
// a discriminant field plus pointer sub-structs, not an interface
// hierarchy, since the variant set is closed and known up front.
type Condition struct {
	Type   string
	Event  *EventCondition
	Graph  *GraphCondition
	Metric *MetricCondition
	Any    []Condition
	All    []Condition
}

// EventCondition matches recent events by kind and optional patterns.
type EventCondition struct {
	Kind            event.Family
	EntityIDPattern string
	ValuePattern    string
	ValueThreshold  *float64
}

// GraphCondition matches existence of an edge of EdgeType with optional
// shell-style patterns on its endpoints.
type GraphCondition struct {
	EdgeType    graph.EdgeKind
	FromPattern string
	ToPattern   string
}

// MetricCheck compares a node attribute against a target value.
type MetricCheck struct {
	Key       string
	Op        string
	Target    string
	ValueType string
}

// MetricCondition matches any node whose attrs satisfy every Check.
type MetricCondition struct {
	NodeType        graph.Kind
	EntityIDPattern string
	Checks          []MetricCheck
}

// conditionYAML is the flat wire shape rule files use; UnmarshalYAML
// decodes into this, then builds the appropriate variant.
type conditionYAML struct {
	Type            string             `yaml:"type"`
	Kind            string             `yaml:"kind,omitempty"`
	EntityIDPattern string             `yaml:"entity_id_pattern,omitempty"`
	ValuePattern    string             `yaml:"value_pattern,omitempty"`
	ValueThreshold  *float64           `yaml:"value_threshold,omitempty"`
	EdgeType        string             `yaml:"edge_type,omitempty"`
	FromPattern     string             `yaml:"from_pattern,omitempty"`
	ToPattern       string             `yaml:"to_pattern,omitempty"`
	NodeType        string             `yaml:"node_type,omitempty"`
	Checks          []metricCheckYAML  `yaml:"checks,omitempty"`
	Any             []Condition        `yaml:"any,omitempty"`
	All             []Condition        `yaml:"all,omitempty"`
}

type metricCheckYAML struct {
	Key       string `yaml:"key"`
	Op        string `yaml:"op"`
	Target    string `yaml:"target"`
	ValueType string `yaml:"value_type,omitempty"`
}

// UnmarshalYAML builds the correct Condition variant from the flat wire
// shape, discriminated by the "type" field.
func (c *Condition) UnmarshalYAML(value *yaml.Node) error {
	var raw conditionYAML
	if err := value.Decode(&raw); err != nil {
		return errors.Wrap(err, "decode condition")
	}

	c.Type = raw.Type

	switch raw.Type {
	case "event":
		c.Event = &EventCondition{
			Kind:            event.Family(raw.Kind),
			EntityIDPattern: raw.EntityIDPattern,
			ValuePattern:    raw.ValuePattern,
			ValueThreshold:  raw.ValueThreshold,
		}
	case "graph":
		c.Graph = &GraphCondition{
			EdgeType:    graph.EdgeKind(raw.EdgeType),
			FromPattern: raw.FromPattern,
			ToPattern:   raw.ToPattern,
		}
	case "metric":
		checks := make([]MetricCheck, len(raw.Checks))
		for i, ch := range raw.Checks {
			valueType := ch.ValueType
			if valueType == "" {
				valueType = "auto"
			}
			checks[i] = MetricCheck{Key: ch.Key, Op: ch.Op, Target: ch.Target, ValueType: valueType}
		}
		c.Metric = &MetricCondition{
			NodeType:        graph.Kind(raw.NodeType),
			EntityIDPattern: raw.EntityIDPattern,
			Checks:          checks,
		}
	case "any":
		c.Any = raw.Any
	case "all":
		c.All = raw.All
	default:
		return errors.Newf("unknown condition type %q", raw.Type)
	}

	return nil
}

// Match evaluates the condition against the recent event window and the
// current graph snapshot.
func (c Condition) Match(events []event.Event, g *graph.Graph) bool {
	switch c.Type {
	case "event":
		return matchEvent(c.Event, events)
	case "graph":
		return matchGraphEdge(c.Graph, g)
	case "metric":
		return matchMetric(c.Metric, g)
	case "any":
		for _, sub := range c.Any {
			if sub.Match(events, g) {
				return true
			}
		}
		return false
	case "all":
		for _, sub := range c.All {
			if !sub.Match(events, g) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func matchEvent(cond *EventCondition, events []event.Event) bool {
	if cond == nil {
		return false
	}
	for _, ev := range events {
		if cond.Kind != "" && ev.Kind != cond.Kind {
			continue
		}
		if cond.EntityIDPattern != "" {
			ok, err := filepath.Match(cond.EntityIDPattern, ev.EntityID)
			if err != nil || !ok {
				continue
			}
		}
		if cond.ValuePattern != "" && !strings.Contains(ev.Value, cond.ValuePattern) {
			continue
		}
		if cond.ValueThreshold != nil {
			v, err := strconv.ParseFloat(ev.Value, 64)
			if err != nil {
				// Non-numeric values never satisfy a numeric threshold —
				// they are not treated as zero.
				continue
			}
			if v < *cond.ValueThreshold {
				continue
			}
		}
		return true
	}
	return false
}

func matchGraphEdge(cond *GraphCondition, g *graph.Graph) bool {
	if cond == nil || g == nil {
		return false
	}
	for _, e := range g.AllEdges() {
		if e.Kind != cond.EdgeType {
			continue
		}
		if cond.FromPattern != "" {
			if ok, err := filepath.Match(cond.FromPattern, e.From); err != nil || !ok {
				continue
			}
		}
		if cond.ToPattern != "" {
			if ok, err := filepath.Match(cond.ToPattern, e.To); err != nil || !ok {
				continue
			}
		}
		return true
	}
	return false
}

func matchMetric(cond *MetricCondition, g *graph.Graph) bool {
	if cond == nil || g == nil {
		return false
	}
	for _, n := range g.AllNodes() {
		if cond.NodeType != "" && n.Kind != cond.NodeType {
			continue
		}
		if cond.EntityIDPattern != "" {
			if ok, err := filepath.Match(cond.EntityIDPattern, n.ID); err != nil || !ok {
				continue
			}
		}

		matchesAll := true
		for _, check := range cond.Checks {
			if !matchCheck(check, n.Attrs) {
				matchesAll = false
				break
			}
		}
		if matchesAll {
			return true
		}
	}
	return false
}

func matchCheck(check MetricCheck, attrs map[string]string) bool {
	actual, ok := attrs[check.Key]
	if !ok {
		return false
	}

	if check.Op == "contains" {
		return strings.Contains(actual, check.Target)
	}

	useNumeric := check.ValueType == "numeric"
	if check.ValueType == "auto" {
		_, errA := strconv.ParseFloat(actual, 64)
		_, errT := strconv.ParseFloat(check.Target, 64)
		useNumeric = errA == nil && errT == nil
	}

	if useNumeric {
		a, errA := strconv.ParseFloat(actual, 64)
		t, errT := strconv.ParseFloat(check.Target, 64)
		if errA != nil || errT != nil {
			return false
		}
		switch check.Op {
		case "gt":
			return a > t
		case "lt":
			return a < t
		case "gte":
			return a >= t
		case "lte":
			return a <= t
		case "eq":
			return a == t
		case "ne":
			return a != t
		default:
			return false
		}
	}

	switch check.Op {
	case "eq":
		return actual == check.Target
	case "ne":
		return actual != check.Target
	default:
		return false
	}
}
