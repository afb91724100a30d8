package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/retrieval"
)

// Strategy confidences.
const (
	ExactMatchConfidence   = 0.90
	PartialMatchConfidence = 0.60
	AccountTypeConfidence  = 0.50
)

// Strategy is one way of proposing accounts. The set is closed: the
// unexported method keeps other packages from adding variants.
type Strategy interface {
	Kind() model.StrategyKind
	evaluate(ctx context.Context, ev *evaluation) (model.Candidates, error)
}

// evaluation is the shared input of a single Suggest run.
type evaluation struct {
	chart    *model.ChartOfAccounts
	similar  []retrieval.Match
	txn      model.Transaction
	degraded bool
}

func candidateFor(account *model.Account, kind model.StrategyKind, confidence float64, reason string) model.Candidate {
	return model.Candidate{
		AccountID:   account.ID,
		AccountCode: account.Code,
		AccountName: account.Name,
		Confidence:  model.ClampConfidence(confidence),
		Source:      kind,
		Reason:      reason,
	}
}

// historicalStrategy proposes accounts used for the same or similar
// reviewed transactions.
type historicalStrategy struct {
	store           Store
	exactSimilarity float64
	historyLimit    int
}

func (s *historicalStrategy) Kind() model.StrategyKind { return model.StrategyHistorical }

func (s *historicalStrategy) evaluate(ctx context.Context, ev *evaluation) (model.Candidates, error) {
	var out model.Candidates

	// Exact normalized-description matches work without the model.
	if ev.txn.NormalizedDescription != "" {
		history, err := s.store.FindReviewedByDescription(ctx, ev.txn.CompanyID, ev.txn.NormalizedDescription, s.historyLimit)
		if err != nil {
			return nil, fmt.Errorf("loading history: %w", err)
		}
		for _, group := range groupByAccount(history, ev.txn.ID) {
			account, ok := ev.chart.ByID(group.accountID)
			if !ok || !account.Postable() {
				continue
			}
			out = append(out, candidateFor(account, s.Kind(), ExactMatchConfidence,
				fmt.Sprintf("Used %d time(s) for transactions with the same description", group.count)))
		}
	}

	if ev.degraded {
		return out, nil
	}

	type semantic struct {
		accountID int64
		best      float64
		count     int
	}
	byAccount := make(map[int64]*semantic)
	var order []int64
	for _, m := range ev.similar {
		if m.Transaction.ID == ev.txn.ID {
			continue
		}
		sm, ok := byAccount[m.AccountID]
		if !ok {
			sm = &semantic{accountID: m.AccountID}
			byAccount[m.AccountID] = sm
			order = append(order, m.AccountID)
		}
		sm.count++
		if m.Similarity > sm.best {
			sm.best = m.Similarity
		}
	}

	for _, id := range order {
		sm := byAccount[id]
		account, ok := ev.chart.ByID(sm.accountID)
		if !ok || !account.Postable() {
			continue
		}
		if sm.best >= s.exactSimilarity {
			out = append(out, candidateFor(account, s.Kind(), ExactMatchConfidence,
				fmt.Sprintf("Near-identical to %d reviewed transaction(s) (similarity %.2f)", sm.count, sm.best)))
			continue
		}
		out = append(out, candidateFor(account, s.Kind(), PartialMatchConfidence,
			fmt.Sprintf("Similar to %d previous transaction(s) (similarity %.2f)", sm.count, sm.best)))
	}
	return out, nil
}

type accountGroup struct {
	accountID int64
	count     int
}

// groupByAccount counts reviewed transactions per assigned account, most
// used first.
func groupByAccount(txns []model.Transaction, skipID string) []accountGroup {
	counts := make(map[int64]int)
	for _, t := range txns {
		if t.ID == skipID || t.AssignedAccountID == nil {
			continue
		}
		counts[*t.AssignedAccountID]++
	}
	groups := make([]accountGroup, 0, len(counts))
	for id, n := range counts {
		groups = append(groups, accountGroup{accountID: id, count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].accountID < groups[j].accountID
	})
	return groups
}

// keywordStrategy proposes accounts from the keyword table.
type keywordStrategy struct {
	suggester KeywordSuggester
}

func (s *keywordStrategy) Kind() model.StrategyKind { return model.StrategyKeyword }

func (s *keywordStrategy) evaluate(ctx context.Context, ev *evaluation) (model.Candidates, error) {
	if s.suggester == nil {
		return nil, nil
	}
	return s.suggester.Suggest(ctx, ev.txn, ev.chart)
}

// accountTypeStrategy falls back to a default account chosen by the sign
// of the amount.
type accountTypeStrategy struct {
	expenseCode string
	revenueCode string
}

func (s *accountTypeStrategy) Kind() model.StrategyKind { return model.StrategyAccountType }

func (s *accountTypeStrategy) evaluate(_ context.Context, ev *evaluation) (model.Candidates, error) {
	var code, label string
	var accountType model.AccountType
	switch ev.txn.Direction() {
	case model.DirectionOutflow:
		code, label, accountType = s.expenseCode, "expense", model.AccountTypeExpense
	case model.DirectionInflow:
		code, label, accountType = s.revenueCode, "revenue", model.AccountTypeRevenue
	default:
		return nil, nil
	}

	account, ok := ev.chart.ByCode(code)
	if !ok || !account.Postable() || account.Type != accountType {
		account, ok = ev.chart.FirstPostable(accountType)
		if !ok {
			return nil, nil
		}
	}

	sign := "negative"
	if accountType == model.AccountTypeRevenue {
		sign = "positive"
	}
	return model.Candidates{candidateFor(account, s.Kind(), AccountTypeConfidence,
		fmt.Sprintf("Default %s account for a %s amount", label, sign))}, nil
}
