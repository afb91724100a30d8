package model

import (
	"fmt"
	"strings"
	"time"
)

// AccountType is the accounting class of a chart-of-accounts entry.
type AccountType string

// Account type constants.
const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// ParseAccountType converts user input into an AccountType.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return t, nil
	}
	return "", fmt.Errorf("unknown account type %q", s)
}

// Account is a company-scoped chart-of-accounts entry.
type Account struct {
	CreatedAt   time.Time   `json:"created_at"`
	ParentID    *int64      `json:"parent_id,omitempty"`
	CompanyID   string      `json:"company_id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        AccountType `json:"type"`
	ID          int64       `json:"id"`
	IsGroup     bool        `json:"is_group"`
	IsActive    bool        `json:"is_active"`
}

// Postable reports whether transactions may be classified into the account.
func (a *Account) Postable() bool {
	return a.IsActive && !a.IsGroup
}

// ChartOfAccounts indexes a company's accounts by id and code.
type ChartOfAccounts struct {
	byID   map[int64]*Account
	byCode map[string]*Account
	list   []Account
}

// NewChartOfAccounts builds a lookup over accounts.
func NewChartOfAccounts(accounts []Account) *ChartOfAccounts {
	c := &ChartOfAccounts{
		list:   accounts,
		byID:   make(map[int64]*Account, len(accounts)),
		byCode: make(map[string]*Account, len(accounts)),
	}
	for i := range c.list {
		a := &c.list[i]
		c.byID[a.ID] = a
		c.byCode[a.Code] = a
	}
	return c
}

// ByID returns the account with the given id.
func (c *ChartOfAccounts) ByID(id int64) (*Account, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// ByCode returns the account with the given code.
func (c *ChartOfAccounts) ByCode(code string) (*Account, bool) {
	a, ok := c.byCode[code]
	return a, ok
}

// FirstPostable returns the lowest-coded postable account of the given type.
func (c *ChartOfAccounts) FirstPostable(t AccountType) (*Account, bool) {
	var best *Account
	for i := range c.list {
		a := &c.list[i]
		if a.Type != t || !a.Postable() {
			continue
		}
		if best == nil || a.Code < best.Code {
			best = a
		}
	}
	return best, best != nil
}

// Len returns the number of accounts in the chart.
func (c *ChartOfAccounts) Len() int {
	return len(c.list)
}
