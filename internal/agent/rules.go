package agent

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"twin-assistant-backend/internal/types"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

var ErrBadRule = errors.New("invalid rule")

type ruleFile struct {
	Rules []struct {
		Name    string `yaml:"name"`
		Pattern string `yaml:"pattern"`
		Reply   string `yaml:"reply"`
	} `yaml:"rules"`
	Fallback string `yaml:"fallback"`
}

// Rule maps a case-insensitive pattern to a fixed reply.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Reply   string
}

type RuleSet struct {
	Rules    []Rule
	Fallback string
}

// Match returns the reply of the first rule matching text, or the fallback.
func (rs RuleSet) Match(text string) string {
	for _, r := range rs.Rules {
		if r.Pattern.MatchString(text) {
			return r.Reply
		}
	}
	return rs.Fallback
}

func ParseRules(b []byte) (RuleSet, error) {
	var doc ruleFile
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return RuleSet{}, err
	}
	rs := RuleSet{Fallback: strings.TrimSpace(doc.Fallback)}
	for i, r := range doc.Rules {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}
		if strings.TrimSpace(r.Pattern) == "" || r.Reply == "" {
			return RuleSet{}, fmt.Errorf("%w %s: pattern and reply are required", ErrBadRule, name)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return RuleSet{}, fmt.Errorf("%w %s: %v", ErrBadRule, name, err)
		}
		rs.Rules = append(rs.Rules, Rule{Name: name, Pattern: re, Reply: r.Reply})
	}
	if rs.Fallback == "" {
		rs.Fallback = defaultRules.Fallback
	}
	return rs, nil
}

func LoadRules(path string) (RuleSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, err
	}
	return ParseRules(b)
}

var defaultRules = mustParseDefault()

func mustParseDefault() RuleSet {
	var doc ruleFile
	if err := yaml.Unmarshal(defaultRulesYAML, &doc); err != nil {
		panic(err)
	}
	rs := RuleSet{Fallback: doc.Fallback}
	for _, r := range doc.Rules {
		rs.Rules = append(rs.Rules, Rule{Name: r.Name, Pattern: regexp.MustCompile("(?i)" + r.Pattern), Reply: r.Reply})
	}
	return rs
}

// DefaultRules returns the built-in rule table.
func DefaultRules() RuleSet {
	return RuleSet{Rules: append([]Rule(nil), defaultRules.Rules...), Fallback: defaultRules.Fallback}
}

// RuleResponder answers from a fixed rule table without any network access.
type RuleResponder struct {
	rules RuleSet
}

func NewRuleResponder(rules RuleSet) *RuleResponder {
	return &RuleResponder{rules: rules}
}

func (r *RuleResponder) Generate(_ context.Context, history []types.Message) (string, error) {
	return r.rules.Match(types.LastUserContent(history)), nil
}

func (r *RuleResponder) Mode() string { return ModeRules }
