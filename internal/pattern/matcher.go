package pattern

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/coa-classifier/internal/model"
)

// KeywordMatcher implements Matcher with case-insensitive substring search
// over the normalized description and counterparty.
type KeywordMatcher struct {
	rules   []Rule
	needles []string
}

// NewKeywordMatcher creates a matcher for rules. Keywords are normalized the
// same way transaction text is, so "Office-Supplies" matches "office supplies".
func NewKeywordMatcher(rules []Rule) (*KeywordMatcher, error) {
	m := &KeywordMatcher{
		rules:   make([]Rule, 0, len(rules)),
		needles: make([]string, 0, len(rules)),
	}
	for i, rule := range rules {
		needle := model.Normalize(rule.Keyword)
		if needle == "" {
			return nil, fmt.Errorf("keyword rule %d: keyword is empty", i)
		}
		if strings.TrimSpace(rule.AccountCode) == "" {
			return nil, fmt.Errorf("keyword rule %d (%q): account code is empty", i, rule.Keyword)
		}
		m.rules = append(m.rules, rule)
		m.needles = append(m.needles, needle)
	}
	return m, nil
}

// Rules returns the configured rules in table order.
func (m *KeywordMatcher) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// Match returns the rules hit by txn, in table order.
func (m *KeywordMatcher) Match(ctx context.Context, txn model.Transaction) ([]Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := txn.NormalizedDescription
	if text == "" {
		text = model.Normalize(txn.Description)
	}
	if cp := model.Normalize(txn.Counterparty); cp != "" {
		text += " " + cp
	}

	var matches []Rule
	for i, needle := range m.needles {
		if strings.Contains(text, needle) {
			matches = append(matches, m.rules[i])
		}
	}
	return matches, nil
}
