package model

import (
	"fmt"
	"sort"
)

// StrategyKind identifies which suggestion strategy produced a candidate.
type StrategyKind string

// Strategy kinds in priority order.
const (
	StrategyHistorical  StrategyKind = "historical"
	StrategyKeyword     StrategyKind = "keyword"
	StrategyAccountType StrategyKind = "account_type"
)

// Priority returns the tie-break rank of a strategy; lower wins.
func (k StrategyKind) Priority() int {
	switch k {
	case StrategyHistorical:
		return 0
	case StrategyKeyword:
		return 1
	case StrategyAccountType:
		return 2
	default:
		return 3
	}
}

// Candidate is a proposed account for a transaction.
type Candidate struct {
	AccountCode string       `json:"account_code"`
	AccountName string       `json:"account_name"`
	Reason      string       `json:"reason"`
	Source      StrategyKind `json:"source"`
	AccountID   int64        `json:"account_id"`
	Confidence  float64      `json:"confidence"`
}

// Validate ensures the Candidate has valid data.
func (c *Candidate) Validate() error {
	if c.AccountID == 0 {
		return fmt.Errorf("account id is required")
	}
	if c.Confidence < 0.0 || c.Confidence > 1.0 {
		return fmt.Errorf("confidence must be between 0.0 and 1.0, got %.2f", c.Confidence)
	}
	if c.Reason == "" {
		return fmt.Errorf("reason is required")
	}
	return nil
}

// Candidates is a slice of Candidate that supports ranking.
type Candidates []Candidate

// Len implements sort.Interface.
func (c Candidates) Len() int {
	return len(c)
}

// Less implements sort.Interface. Higher confidence first, then strategy
// priority, then account code.
func (c Candidates) Less(i, j int) bool {
	if c[i].Confidence != c[j].Confidence {
		return c[i].Confidence > c[j].Confidence
	}
	if pi, pj := c[i].Source.Priority(), c[j].Source.Priority(); pi != pj {
		return pi < pj
	}
	return c[i].AccountCode < c[j].AccountCode
}

// Swap implements sort.Interface.
func (c Candidates) Swap(i, j int) {
	c[i], c[j] = c[j], c[i]
}

// Sort orders the candidates in ranking order.
func (c Candidates) Sort() {
	sort.Stable(c)
}

// Dedupe keeps the strongest candidate per account and returns them ranked.
func (c Candidates) Dedupe() Candidates {
	best := make(map[int64]int, len(c))
	out := make(Candidates, 0, len(c))
	for _, cand := range c {
		idx, ok := best[cand.AccountID]
		if !ok {
			best[cand.AccountID] = len(out)
			out = append(out, cand)
			continue
		}
		cur := out[idx]
		if cand.Confidence > cur.Confidence ||
			(cand.Confidence == cur.Confidence && cand.Source.Priority() < cur.Source.Priority()) {
			out[idx] = cand
		}
	}
	out.Sort()
	return out
}

// TopN returns the n highest-ranked candidates.
func (c Candidates) TopN(n int) Candidates {
	if n <= 0 {
		return Candidates{}
	}
	c.Sort()
	if n > len(c) {
		n = len(c)
	}
	result := make(Candidates, n)
	copy(result, c[:n])
	return result
}

// Validate ensures every candidate is valid and no account appears twice.
func (c Candidates) Validate() error {
	seen := make(map[int64]bool)
	for i, cand := range c {
		if err := cand.Validate(); err != nil {
			return fmt.Errorf("invalid candidate at index %d: %w", i, err)
		}
		if seen[cand.AccountID] {
			return fmt.Errorf("duplicate account %d in candidates", cand.AccountID)
		}
		seen[cand.AccountID] = true
	}
	return nil
}

// ClampConfidence bounds v to [0, 1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
