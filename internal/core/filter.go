package core

import "strings"

// TxnClass is the single classification every kept transaction gets.
type TxnClass string

const (
	ClassIncome               TxnClass = "income"
	ClassExpense              TxnClass = "expense"
	ClassRefund               TxnClass = "refund"
	ClassTransferToInvestment TxnClass = "transferToInvestment"
)

// incomeCategoryNames is the fixed set of category names that identify
// income inflows.
var incomeCategoryNames = map[string]bool{
	"Inflow: Ready to Assign":     true,
	"Ready to Assign":             true,
	"To be Budgeted":              true,
	"Deferred Income SubCategory": true,
}

// systemPayees are provider bookkeeping entries, never real cash flow.
var systemPayees = map[string]bool{
	"Reconciliation Balance Adjustment": true,
	"Starting Balance":                  true,
}

// ClassifiedTxn is a kept transaction with its class and resolved bucket.
// Bucket is empty for income.
type ClassifiedTxn struct {
	Transaction
	Class  TxnClass
	Bucket Bucket
}

// FilterResult is the pipeline-ready transaction stream plus the exclusion
// tallies surfaced for diagnostics.
type FilterResult struct {
	Kept []ClassifiedTxn

	// Amounts removed by the user's exclusion lists, by magnitude.
	ExcludedIncome  Money
	ExcludedExpense Money

	DroppedTransfers int
}

// FilterTransactions applies the exclusion and transfer rules, classifies
// each surviving transaction into exactly one class, and resolves its
// spending-plan bucket. Rules apply in order:
//
//  1. system payees dropped
//  2. investment-account activity dropped (tracked, never income/expense)
//  3. transfer handling: outflow to an investment account is kept as a
//     transferToInvestment with a synthetic "Transfer: <target>" category;
//     a categorized transfer is kept; any other transfer is dropped
//  4. user exclusion lists applied, tallied separately
func FilterTransactions(snap BudgetSnapshot, accounts ClassifiedAccounts, settings CSPSettings) FilterResult {
	var res FilterResult

	for _, t := range snap.Transactions {
		if systemPayees[t.PayeeName] {
			continue
		}
		if accounts.InvestmentIDs[t.AccountID] && !settings.IncludeTrackingAccounts {
			continue
		}

		if t.TransferAccountID != "" {
			if accounts.InvestmentIDs[t.TransferAccountID] && t.Amount.IsNegative() {
				target := accounts.AccountName(t.TransferAccountID)
				kept := t
				kept.CategoryName = "Transfer: " + target
				kept.CategoryGroup = ""
				res.Kept = append(res.Kept, ClassifiedTxn{
					Transaction: kept,
					Class:       ClassTransferToInvestment,
					Bucket:      BucketInvestments,
				})
				continue
			}
			if t.CategoryID == "" {
				res.DroppedTransfers++
				continue
			}
			// Categorized transfer (e.g. a mortgage payment): falls through
			// to normal classification below.
		} else if t.CategoryID == "" && hasTransferPayee(t.PayeeName) {
			res.DroppedTransfers++
			continue
		}

		class := classifyAmount(t)

		if settings.ExcludedPayees[t.PayeeName] {
			res.tallyExcluded(class, t.Amount)
			continue
		}
		switch class {
		case ClassIncome:
			if settings.ExcludedIncomeCategories[t.CategoryID] || settings.ExcludedIncomeCategories[t.CategoryName] {
				res.ExcludedIncome = res.ExcludedIncome.Add(t.Amount.Abs())
				continue
			}
		default:
			if settings.ExcludedExpenseCategories[t.CategoryID] || settings.ExcludedExpenseCategories[t.CategoryName] {
				res.ExcludedExpense = res.ExcludedExpense.Add(t.Amount.Abs())
				continue
			}
		}

		ct := ClassifiedTxn{Transaction: t, Class: class}
		if class != ClassIncome {
			ct.Bucket = settings.ResolveBucket(t.CategoryID, t.CategoryName, t.CategoryGroup)
		}
		res.Kept = append(res.Kept, ct)
	}

	return res
}

func (r *FilterResult) tallyExcluded(class TxnClass, amount Money) {
	if class == ClassIncome {
		r.ExcludedIncome = r.ExcludedIncome.Add(amount.Abs())
		return
	}
	r.ExcludedExpense = r.ExcludedExpense.Add(amount.Abs())
}

func classifyAmount(t Transaction) TxnClass {
	if IsIncomeCategory(t.CategoryName) {
		return ClassIncome
	}
	if t.Amount.Cents > 0 {
		return ClassRefund
	}
	return ClassExpense
}

// IsIncomeCategory reports whether a category name marks provider income.
func IsIncomeCategory(name string) bool {
	return incomeCategoryNames[name]
}

func hasTransferPayee(payee string) bool {
	return strings.HasPrefix(strings.ToLower(payee), "transfer :")
}
