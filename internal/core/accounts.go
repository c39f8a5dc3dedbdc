package core

import "strings"

var (
	debtTypes         = map[string]bool{"creditcard": true, "loan": true, "mortgage": true, "otherliability": true, "lineofcredit": true}
	debtNameHints     = []string{"mortgage", "loan", "credit card"}
	propertyNameHints = []string{"home value", "redfin", "zillow", "property value", "real estate"}
	investNameHints   = []string{
		"401k", "401(k)", "ira", "roth", "hsa", "brokerage", "investment", "stock",
		"rsu", "espp", "fidelity", "vanguard", "schwab", "retirement",
	}
	savingsNameHints  = []string{"savings", "emergency", "hysa", "high yield"}
	checkingNameHints = []string{"checking"}
)

// ClassifyAccounts partitions accounts into the net-worth groups. Rules are
// evaluated in order and the first match wins; closed accounts are dropped.
func ClassifyAccounts(accounts []Account) ClassifiedAccounts {
	out := ClassifiedAccounts{
		InvestmentIDs: make(map[string]bool),
		namesByID:     make(map[string]string),
	}

	for _, a := range accounts {
		if a.Closed {
			continue
		}
		out.namesByID[a.ID] = a.Name

		switch classifyAccount(a) {
		case AccountDebt:
			out.Debt = append(out.Debt, a)
		case AccountProperty:
			out.Property = append(out.Property, a)
		case AccountInvestment:
			out.Investment = append(out.Investment, a)
			out.InvestmentIDs[a.ID] = true
		case AccountSavings:
			out.Savings = append(out.Savings, a)
		default:
			out.Cash = append(out.Cash, a)
		}
	}

	return out
}

func classifyAccount(a Account) AccountClass {
	name := strings.ToLower(a.Name)
	typ := strings.ToLower(a.Type)

	switch {
	case debtTypes[typ] || containsAny(name, debtNameHints):
		return AccountDebt
	case containsAny(name, propertyNameHints):
		return AccountProperty
	case typ == "otherasset" || containsAny(name, investNameHints):
		return AccountInvestment
	case typ == "savings" || containsAny(name, savingsNameHints):
		return AccountSavings
	case typ == "checking" || containsAny(name, checkingNameHints):
		return AccountCash
	case a.OnBudget:
		return AccountCash
	default:
		return AccountProperty
	}
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}
