// Package rules evaluates conditional business rules against data rows.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Operator is a comparison applied by a Condition.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpStartsWith         Operator = "starts_with"
	OpEndsWith           Operator = "ends_with"
	OpGreaterThan        Operator = "greater_than"
	OpLessThan           Operator = "less_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpRegex              Operator = "regex"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "not_in"
	OpIsEmpty            Operator = "is_empty"
	OpIsNotEmpty         Operator = "is_not_empty"
)

// IsValid reports whether o is a known operator.
func (o Operator) IsValid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith, OpEndsWith,
		OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual,
		OpRegex, OpIn, OpNotIn, OpIsEmpty, OpIsNotEmpty:
		return true
	}
	return false
}

// Logic combines the children of a ConditionGroup.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Node is either a Condition or a ConditionGroup.
type Node interface {
	node()
}

// Condition compares one row field against a value.
type Condition struct {
	ID       string   `json:"id,omitempty" yaml:"id,omitempty"`
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value" yaml:"value"`
}

// ConditionGroup is a recursive AND/OR tree. No children means it matches any row.
type ConditionGroup struct {
	ID         string `json:"id,omitempty" yaml:"id,omitempty"`
	Logic      Logic  `json:"logic" yaml:"logic"`
	Conditions []Node `json:"conditions" yaml:"conditions"`
}

func (Condition) node()      {}
func (ConditionGroup) node() {}

// ActionType is what a matched rule does to a row.
type ActionType string

const (
	ActionAddToGroup ActionType = "add_to_group"
	ActionSetField   ActionType = "set_field"
	ActionAddTag     ActionType = "add_tag"
	ActionSkip       ActionType = "skip"
)

// Action is applied to a row once its rule matches. Value is a template for set_field.
type Action struct {
	Type  ActionType `json:"type" yaml:"type"`
	Group string     `json:"group,omitempty" yaml:"group,omitempty"`
	Field string     `json:"field,omitempty" yaml:"field,omitempty"`
	Value string     `json:"value,omitempty" yaml:"value,omitempty"`
	Tag   string     `json:"tag,omitempty" yaml:"tag,omitempty"`
}

// Rule pairs a condition tree with actions. Lower priority runs first.
type Rule struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Enabled        bool           `json:"enabled" yaml:"enabled"`
	Priority       int            `json:"priority" yaml:"priority"`
	ConditionGroup ConditionGroup `json:"condition_group" yaml:"condition_group"`
	Actions        []Action       `json:"actions" yaml:"actions"`
}

var ErrInvalidRule = errors.New("invalid rule")

// Validate checks that every action is complete.
func (r Rule) Validate() error {
	for i, a := range r.Actions {
		var missing string
		switch a.Type {
		case ActionAddToGroup:
			if a.Group == "" {
				missing = "group"
			}
		case ActionSetField:
			if a.Field == "" {
				missing = "field"
			}
		case ActionAddTag:
			if a.Tag == "" {
				missing = "tag"
			}
		case ActionSkip:
		default:
			return fmt.Errorf("%w %q: action %d has unknown type %q", ErrInvalidRule, r.ID, i, a.Type)
		}
		if missing != "" {
			return fmt.Errorf("%w %q: %s action %d requires %s", ErrInvalidRule, r.ID, a.Type, i, missing)
		}
	}
	return nil
}

// rawNode is the wire shape of either node kind.
type rawNode struct {
	ID         string    `json:"id" yaml:"id"`
	Field      string    `json:"field" yaml:"field"`
	Operator   Operator  `json:"operator" yaml:"operator"`
	Value      any       `json:"value" yaml:"value"`
	Logic      string    `json:"logic" yaml:"logic"`
	Conditions []rawNode `json:"conditions" yaml:"conditions"`
}

func (r rawNode) isGroup() bool {
	return r.Logic != "" || r.Conditions != nil
}

func (r rawNode) toGroup() (ConditionGroup, error) {
	g := ConditionGroup{ID: r.ID, Logic: Logic(strings.ToUpper(strings.TrimSpace(r.Logic)))}
	if g.Logic == "" {
		g.Logic = LogicAnd
	}
	if g.Logic != LogicAnd && g.Logic != LogicOr {
		return g, fmt.Errorf("condition group %q: unknown logic %q", r.ID, r.Logic)
	}
	g.Conditions = make([]Node, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		if c.isGroup() {
			child, err := c.toGroup()
			if err != nil {
				return g, err
			}
			g.Conditions = append(g.Conditions, child)
			continue
		}
		op := Operator(strings.ToLower(strings.TrimSpace(string(c.Operator))))
		if !op.IsValid() {
			return g, fmt.Errorf("condition %q: unknown operator %q", c.ID, c.Operator)
		}
		g.Conditions = append(g.Conditions, Condition{ID: c.ID, Field: c.Field, Operator: op, Value: c.Value})
	}
	return g, nil
}

func (g *ConditionGroup) UnmarshalJSON(b []byte) error {
	var raw rawNode
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := raw.toGroup()
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

func (g *ConditionGroup) UnmarshalYAML(value *yaml.Node) error {
	var raw rawNode
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := raw.toGroup()
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// And builds an AND group; handy for tests and programmatic rules.
func And(nodes ...Node) ConditionGroup { return ConditionGroup{Logic: LogicAnd, Conditions: nodes} }

// Or builds an OR group.
func Or(nodes ...Node) ConditionGroup { return ConditionGroup{Logic: LogicOr, Conditions: nodes} }

// Cond builds a single condition.
func Cond(field string, op Operator, value any) Condition {
	return Condition{Field: field, Operator: op, Value: value}
}
