package analysis

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flowlens/flowlens-cli/api/schemas"
)

// RuleKind selects what evidence a custom rule inspects.
type RuleKind string

const (
	// KindStepSubstring matches failed log entries whose step text contains
	// any of the rule's indicators.
	KindStepSubstring RuleKind = "step_substring"
	// KindStatusCode matches HAR entries of failed transactions with an
	// exact response status code.
	KindStatusCode RuleKind = "status_code"
)

// Rule is a user-supplied pattern detector loaded from a YAML rules file.
type Rule struct {
	Name           string                  `yaml:"name"`
	Kind           RuleKind                `yaml:"kind"`
	Indicators     []string                `yaml:"indicators,omitempty"`
	StatusCode     int                     `yaml:"status_code,omitempty"`
	Type           schemas.PatternType     `yaml:"type"`
	Category       schemas.PatternCategory `yaml:"category,omitempty"`
	Description    string                  `yaml:"description"`
	Recommendation string                  `yaml:"recommendation"`
	Severity       schemas.Severity        `yaml:"severity,omitempty"`
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads and validates a YAML rules file. Rules keep file order;
// category defaults to custom and severity to high when omitted.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var doc rulesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	for i := range doc.Rules {
		rule := &doc.Rules[i]
		if rule.Category == "" {
			rule.Category = schemas.CategoryCustom
		}
		if rule.Severity == "" {
			rule.Severity = schemas.SeverityHigh
		}
		if err := rule.validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, rule.Name, err)
		}
	}
	return doc.Rules, nil
}

func (r *Rule) validate() error {
	if r.Name == "" {
		return fmt.Errorf("missing name")
	}
	if r.Type == "" {
		return fmt.Errorf("missing type")
	}
	switch r.Kind {
	case KindStepSubstring:
		if len(r.Indicators) == 0 {
			return fmt.Errorf("step_substring rule needs at least one indicator")
		}
	case KindStatusCode:
		if r.StatusCode < 100 || r.StatusCode > 599 {
			return fmt.Errorf("status_code rule needs a valid HTTP status, got %d", r.StatusCode)
		}
	default:
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	return nil
}

// apply evaluates the rule against the already-restricted failure evidence.
// Returns nil when nothing matches.
func (r Rule) apply(failed []schemas.LogEntry, failedHAR []schemas.HAREntry) *schemas.FailurePattern {
	template := schemas.FailurePattern{
		Type:           r.Type,
		Category:       r.Category,
		Description:    r.Description,
		Severity:       r.Severity,
		Recommendation: r.Recommendation,
	}

	switch r.Kind {
	case KindStepSubstring:
		return detectSteps(failed, r.Indicators, template)
	case KindStatusCode:
		var group []schemas.HAREntry
		for _, entry := range failedHAR {
			if entry.StatusCode == r.StatusCode {
				group = append(group, entry)
			}
		}
		if len(group) == 0 {
			return nil
		}
		pattern := statusCodePattern(group, template)
		return &pattern
	default:
		return nil
	}
}
