package pattern

// DefaultKeywords returns the keyword table used when none is configured.
// Codes refer to the default chart of accounts.
func DefaultKeywords() []Rule {
	table := []struct {
		code     string
		keywords []string
	}{
		// Office supplies
		{"5310", []string{"office supplies", "staples", "paper", "pens", "stationery"}},
		// Technology and software
		{"5330", []string{"software", "subscription", "saas", "adobe", "microsoft"}},
		// Utilities
		{"5250", []string{"utilities", "electricity", "water", "gas", "internet", "phone", "comcast"}},
		// Rent
		{"5240", []string{"office rent", "rent", "lease"}},
		// Salaries and wages
		{"5210", []string{"salary", "salaries", "wage", "wages", "payroll", "employee"}},
		// Travel, meals and entertainment
		{"5320", []string{"travel", "flight", "hotel", "airfare", "uber", "taxi", "meal", "restaurant", "lunch", "dinner"}},
		// Insurance and fees
		{"5260", []string{"insurance"}},
		{"5420", []string{"bank fee", "service charge", "overdraft"}},
		{"5290", []string{"advertising", "marketing"}},
		// Revenue
		{"4130", []string{"consulting", "consultant", "professional services"}},
		{"4110", []string{"product sale", "sales", "sale", "customer"}},
		{"4910", []string{"interest earned", "interest income"}},
	}

	var rules []Rule
	for _, entry := range table {
		for _, kw := range entry.keywords {
			rules = append(rules, Rule{Keyword: kw, AccountCode: entry.code})
		}
	}
	return rules
}
