package engine

import "github.com/Veraticus/coa-classifier/internal/model"

// Proposal is what journal posting receives to pre-fill a pending entry.
type Proposal struct {
	SuggestedAccountCode string           `json:"suggested_account_code"`
	Alternates           model.Candidates `json:"alternates"`
	Reasons              []string         `json:"reasons"`
	Confidence           float64          `json:"confidence"`
}

// Proposal renders the result for journal posting. It returns nil when
// there is nothing to propose.
func (r *Result) Proposal() *Proposal {
	if r.Suggestion == nil {
		return nil
	}
	p := &Proposal{
		SuggestedAccountCode: r.Suggestion.AccountCode,
		Confidence:           r.Suggestion.Confidence,
		Alternates:           r.Alternates(),
		Reasons:              make([]string, 0, len(r.Candidates)),
	}
	for _, c := range r.Candidates {
		p.Reasons = append(p.Reasons, c.Reason)
	}
	return p
}
