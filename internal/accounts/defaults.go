// Package accounts provides the default US chart of accounts and helpers
// for installing it for a company.
package accounts

import (
	"context"
	"fmt"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
)

// Seeder creates accounts that do not exist yet.
type Seeder interface {
	SeedAccounts(ctx context.Context, companyID string, accounts []model.Account, parentCodes map[string]string) (int, error)
}

type entry struct {
	code   string
	name   string
	kind   model.AccountType
	parent string
	group  bool
}

var defaultChart = []entry{
	{code: "1000", name: "Assets", kind: model.AccountTypeAsset, group: true},
	{code: "1100", name: "Current Assets", kind: model.AccountTypeAsset, parent: "1000", group: true},
	{code: "1110", name: "Cash and Cash Equivalents", kind: model.AccountTypeAsset, parent: "1100"},
	{code: "1120", name: "Accounts Receivable", kind: model.AccountTypeAsset, parent: "1100"},
	{code: "1130", name: "Inventory", kind: model.AccountTypeAsset, parent: "1100"},
	{code: "1140", name: "Prepaid Expenses", kind: model.AccountTypeAsset, parent: "1100"},
	{code: "1200", name: "Fixed Assets", kind: model.AccountTypeAsset, parent: "1000", group: true},
	{code: "1210", name: "Property, Plant & Equipment", kind: model.AccountTypeAsset, parent: "1200"},
	{code: "1220", name: "Accumulated Depreciation", kind: model.AccountTypeAsset, parent: "1200"},

	{code: "2000", name: "Liabilities", kind: model.AccountTypeLiability, group: true},
	{code: "2100", name: "Current Liabilities", kind: model.AccountTypeLiability, parent: "2000", group: true},
	{code: "2110", name: "Accounts Payable", kind: model.AccountTypeLiability, parent: "2100"},
	{code: "2120", name: "Credit Cards Payable", kind: model.AccountTypeLiability, parent: "2100"},
	{code: "2130", name: "Accrued Expenses", kind: model.AccountTypeLiability, parent: "2100"},
	{code: "2140", name: "Payroll Liabilities", kind: model.AccountTypeLiability, parent: "2100"},
	{code: "2200", name: "Long-term Liabilities", kind: model.AccountTypeLiability, parent: "2000", group: true},
	{code: "2210", name: "Long-term Debt", kind: model.AccountTypeLiability, parent: "2200"},

	{code: "3000", name: "Equity", kind: model.AccountTypeEquity, group: true},
	{code: "3100", name: "Owner's Equity", kind: model.AccountTypeEquity, parent: "3000"},
	{code: "3200", name: "Retained Earnings", kind: model.AccountTypeEquity, parent: "3000"},
	{code: "3300", name: "Current Year Earnings", kind: model.AccountTypeEquity, parent: "3000"},

	{code: "4000", name: "Revenue", kind: model.AccountTypeRevenue, group: true},
	{code: "4100", name: "Operating Revenue", kind: model.AccountTypeRevenue, parent: "4000", group: true},
	{code: "4110", name: "Sales Revenue", kind: model.AccountTypeRevenue, parent: "4100"},
	{code: "4120", name: "Service Revenue", kind: model.AccountTypeRevenue, parent: "4100"},
	{code: "4130", name: "Consulting Revenue", kind: model.AccountTypeRevenue, parent: "4100"},
	{code: "4900", name: "Other Revenue", kind: model.AccountTypeRevenue, parent: "4000", group: true},
	{code: "4910", name: "Interest Income", kind: model.AccountTypeRevenue, parent: "4900"},
	{code: "4920", name: "Miscellaneous Income", kind: model.AccountTypeRevenue, parent: "4900"},

	{code: "5000", name: "Expenses", kind: model.AccountTypeExpense, group: true},
	{code: "5100", name: "Cost of Goods Sold", kind: model.AccountTypeExpense, parent: "5000", group: true},
	{code: "5110", name: "Materials", kind: model.AccountTypeExpense, parent: "5100"},
	{code: "5120", name: "Labor", kind: model.AccountTypeExpense, parent: "5100"},
	{code: "5130", name: "Manufacturing Overhead", kind: model.AccountTypeExpense, parent: "5100"},
	{code: "5200", name: "Operating Expenses", kind: model.AccountTypeExpense, parent: "5000", group: true},
	{code: "5210", name: "Salaries and Wages", kind: model.AccountTypeExpense, parent: "5200"},
	{code: "5220", name: "Payroll Taxes", kind: model.AccountTypeExpense, parent: "5200"},
	{code: "5230", name: "Employee Benefits", kind: model.AccountTypeExpense, parent: "5200"},
	{code: "5240", name: "Rent Expense", kind: model.AccountTypeExpense, parent: "5200"},
	{code: "5250", name: "Utilities", kind: model.AccountTypeExpense, parent: "5200"},
	{code: "5260", name: "Insurance", kind: model.AccountTypeExpense, parent: "5200"},
	{code: "5280", name: "Professional Fees", kind: model.AccountTypeExpense, parent: "5200"},
	{code: "5290", name: "Marketing and Advertising", kind: model.AccountTypeExpense, parent: "5200"},
	{code: "5300", name: "Office Expenses", kind: model.AccountTypeExpense, parent: "5000", group: true},
	{code: "5310", name: "Office Supplies", kind: model.AccountTypeExpense, parent: "5300"},
	{code: "5320", name: "Travel and Entertainment", kind: model.AccountTypeExpense, parent: "5300"},
	{code: "5330", name: "Technology and Software", kind: model.AccountTypeExpense, parent: "5300"},
	{code: "5400", name: "Financial Expenses", kind: model.AccountTypeExpense, parent: "5000", group: true},
	{code: "5410", name: "Interest Expense", kind: model.AccountTypeExpense, parent: "5400"},
	{code: "5420", name: "Bank Fees", kind: model.AccountTypeExpense, parent: "5400"},
	{code: "5500", name: "Taxes", kind: model.AccountTypeExpense, parent: "5000", group: true},
	{code: "5510", name: "Federal Income Tax", kind: model.AccountTypeExpense, parent: "5500"},
	{code: "5520", name: "State Income Tax", kind: model.AccountTypeExpense, parent: "5500"},
	{code: "5530", name: "Property Tax", kind: model.AccountTypeExpense, parent: "5500"},
	{code: "5700", name: "Depreciation and Amortization", kind: model.AccountTypeExpense, parent: "5000", group: true},
	{code: "5710", name: "Depreciation Expense", kind: model.AccountTypeExpense, parent: "5700"},
	{code: "5900", name: "Other Expenses", kind: model.AccountTypeExpense, parent: "5000", group: true},
	{code: "5910", name: "Miscellaneous Expense", kind: model.AccountTypeExpense, parent: "5900"},
}

// DefaultChart returns the default accounts, parents before children, and
// the parent code of every account that has one.
func DefaultChart() ([]model.Account, map[string]string) {
	list := make([]model.Account, 0, len(defaultChart))
	parents := make(map[string]string)
	for _, e := range defaultChart {
		list = append(list, model.Account{
			Code:     e.code,
			Name:     e.name,
			Type:     e.kind,
			IsGroup:  e.group,
			IsActive: true,
		})
		if e.parent != "" {
			parents[e.code] = e.parent
		}
	}
	return list, parents
}

// SeedDefaultChart installs the default chart for companyID. Accounts whose
// code already exists are left untouched, so seeding twice is harmless.
// It returns the number of accounts created.
func SeedDefaultChart(ctx context.Context, seeder Seeder, companyID string) (int, error) {
	list, parents := DefaultChart()
	created, err := seeder.SeedAccounts(ctx, companyID, list, parents)
	if err != nil {
		return 0, fmt.Errorf("seeding default chart: %w", err)
	}
	common.LogInfo(common.WithCompany(ctx, companyID), "Default chart seeded", common.Fields{
		"created": created,
	})
	return created, nil
}
