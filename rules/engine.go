// Package rules decides which external entities are bridged. Filters are
// expressions compiled against the entity's registry metadata; the first
// matching rule decides, in source order.
package rules

import (
	"fmt"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
)

// Input is the environment a filter expression is evaluated against.
type Input struct {
	ID       string
	Domain   string
	DeviceID string
	AreaID   string
	Labels   []string
}

// Rule pairs a filter expression with an accept or reject outcome.
type Rule struct {
	Description string `yaml:"description"`
	Filter      string `yaml:"filter"`
	Accept      bool   `yaml:"accept"`
}

// CompiledRule is a Rule with its filter compiled.
type CompiledRule struct {
	Description string
	Filter      *vm.Program
	Accept      bool
}

// Engine evaluates an ordered rule list over entities.
type Engine struct {
	rules         []CompiledRule
	defaultAccept bool
}

// NewEngine creates an engine with the outcome applied when no rule
// matches.
func NewEngine(defaultAccept bool) *Engine {
	return &Engine{defaultAccept: defaultAccept}
}

// LoadRules compiles and appends rules, preserving source order.
func (e *Engine) LoadRules(rules []Rule) error {
	for _, rule := range rules {
		cf, err := expr.Compile(rule.Filter, expr.Env(Input{}), expr.AsBool())
		if err != nil {
			return fmt.Errorf("filter compilation: %s: %w", rule.Description, err)
		}

		e.rules = append(e.rules, CompiledRule{
			Description: rule.Description,
			Filter:      cf,
			Accept:      rule.Accept,
		})
	}

	return nil
}

// Evaluate runs the rule list against an entity; the first matching rule
// decides acceptance.
func (e *Engine) Evaluate(in Input) (bool, error) {
	for _, rule := range e.rules {
		matched, err := expr.Run(rule.Filter, in)
		if err != nil {
			return false, fmt.Errorf("filter evaluation: %s: %w", rule.Description, err)
		}

		if matched.(bool) {
			return rule.Accept, nil
		}
	}

	return e.defaultAccept, nil
}
