// Package chart provides test infrastructure for seeding a company's chart
// of accounts. It offers a fluent API so tests declare only the accounts
// they rely on.
//
// Example usage:
//
//	accounts, err := chart.NewBuilder(t).
//		WithBasicAccounts().
//		WithAccount(chart.Account("6300", "Office Supplies", model.AccountTypeExpense)).
//		Build(ctx, store, "acme")
package chart

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/Veraticus/coa-classifier/internal/accounts"
	"github.com/Veraticus/coa-classifier/internal/model"
)

// Creator persists accounts.
type Creator interface {
	CreateAccount(ctx context.Context, account *model.Account) error
}

// Builder provides a fluent interface for constructing test accounts.
type Builder interface {
	// WithAccount adds a single account to the builder.
	WithAccount(spec Spec) Builder

	// WithCodes adds accounts from the default chart by code.
	WithCodes(codes ...string) Builder

	// WithBasicAccounts adds the fallback and keyword accounts most tests use.
	WithBasicAccounts() Builder

	// WithDefaultChart adds every postable account of the default chart.
	WithDefaultChart() Builder

	// Build creates the accounts for companyID and returns them keyed by code.
	Build(ctx context.Context, store Creator, companyID string) (Accounts, error)
}

// Spec describes an account to create.
type Spec struct {
	Code    string
	Name    string
	Type    model.AccountType
	IsGroup bool
}

// Account returns a postable account spec.
func Account(code, name string, t model.AccountType) Spec {
	return Spec{Code: code, Name: name, Type: t}
}

// Accounts maps account codes to created accounts.
type Accounts map[string]model.Account

// ID returns the id of the account with code, or zero.
func (a Accounts) ID(code string) int64 {
	return a[code].ID
}

// MustGet returns the account with code or fails the test.
func (a Accounts) MustGet(t *testing.T, code string) model.Account {
	t.Helper()
	account, ok := a[code]
	if !ok {
		t.Fatalf("account %q not found in test data", code)
	}
	return account
}

type builder struct {
	t     *testing.T
	specs map[string]Spec
}

// NewBuilder creates a new account builder for the given test.
func NewBuilder(t *testing.T) Builder {
	t.Helper()
	return &builder{t: t, specs: make(map[string]Spec)}
}

func (b *builder) WithAccount(spec Spec) Builder {
	b.specs[spec.Code] = spec
	return b
}

func (b *builder) WithCodes(codes ...string) Builder {
	b.t.Helper()
	list, _ := accounts.DefaultChart()
	chart := model.NewChartOfAccounts(list)
	for _, code := range codes {
		a, ok := chart.ByCode(code)
		if !ok {
			b.t.Fatalf("code %q is not in the default chart", code)
		}
		b.specs[code] = Spec{Code: a.Code, Name: a.Name, Type: a.Type, IsGroup: a.IsGroup}
	}
	return b
}

func (b *builder) WithBasicAccounts() Builder {
	return b.WithCodes("4110", "4920", "5310", "5320", "5330", "5910")
}

func (b *builder) WithDefaultChart() Builder {
	list, _ := accounts.DefaultChart()
	for _, a := range list {
		if !a.IsGroup {
			b.specs[a.Code] = Spec{Code: a.Code, Name: a.Name, Type: a.Type}
		}
	}
	return b
}

func (b *builder) Build(ctx context.Context, store Creator, companyID string) (Accounts, error) {
	b.t.Helper()

	codes := make([]string, 0, len(b.specs))
	for code := range b.specs {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	result := make(Accounts, len(codes))
	for _, code := range codes {
		spec := b.specs[code]
		account := model.Account{
			CompanyID: companyID,
			Code:      spec.Code,
			Name:      spec.Name,
			Type:      spec.Type,
			IsGroup:   spec.IsGroup,
			IsActive:  true,
		}
		if err := store.CreateAccount(ctx, &account); err != nil {
			return nil, fmt.Errorf("failed to create account %q: %w", code, err)
		}
		result[code] = account
	}
	return result, nil
}
