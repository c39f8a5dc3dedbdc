package core

import "testing"

func filterSnap(txns ...Transaction) (FilterResult, ClassifiedAccounts) {
	snap := BudgetSnapshot{Accounts: baseAccounts(), Transactions: txns}
	accounts := ClassifyAccounts(snap.Accounts)
	return FilterTransactions(snap, accounts, DefaultCSPSettings()), accounts
}

func TestFilterDropsSystemPayees(t *testing.T) {
	tx := expenseTxn("2026-08-01", "Groceries", "", -100)
	tx.PayeeName = "Starting Balance"
	res, _ := filterSnap(tx)
	if len(res.Kept) != 0 {
		t.Fatalf("system payee should be dropped, kept %+v", res.Kept)
	}
}

func TestFilterDropsInvestmentAccountActivity(t *testing.T) {
	tx := expenseTxn("2026-08-01", "Dividends", "", 250)
	tx.AccountID = "retire"
	res, _ := filterSnap(tx)
	if len(res.Kept) != 0 {
		t.Fatalf("investment account activity should never be income/expense")
	}
}

func TestFilterTransferRules(t *testing.T) {
	// Outflow whose transfer target is an investment account: kept with a
	// synthetic category, classed transferToInvestment, investments bucket.
	toInvest := expenseTxn("2026-08-01", "", "", -500)
	toInvest.CategoryID = ""
	toInvest.CategoryName = ""
	toInvest.TransferAccountID = "retire"

	// Categorized transfer (mortgage payment style): kept as an expense.
	mortgage := expenseTxn("2026-08-02", "Mortgage", "Fixed Costs", -1800)
	mortgage.TransferAccountID = "savings-x"

	// Uncategorized internal transfer: dropped.
	internal := expenseTxn("2026-08-03", "", "", -200)
	internal.CategoryID = ""
	internal.TransferAccountID = "savings-x"

	// Transfer-looking payee with no category: dropped.
	payeeTransfer := expenseTxn("2026-08-04", "", "", -300)
	payeeTransfer.CategoryID = ""
	payeeTransfer.PayeeName = "Transfer : Savings"

	res, _ := filterSnap(toInvest, mortgage, internal, payeeTransfer)

	if len(res.Kept) != 2 {
		t.Fatalf("want 2 kept, got %d: %+v", len(res.Kept), res.Kept)
	}
	if res.DroppedTransfers != 2 {
		t.Fatalf("want 2 dropped transfers, got %d", res.DroppedTransfers)
	}

	inv := res.Kept[0]
	if inv.Class != ClassTransferToInvestment || inv.Bucket != BucketInvestments {
		t.Fatalf("investment transfer misclassified: %+v", inv)
	}
	if inv.CategoryName != "Transfer: 401(k)" {
		t.Fatalf("synthetic category wrong: %q", inv.CategoryName)
	}
	if res.Kept[1].Class != ClassExpense || res.Kept[1].Bucket != BucketFixedCosts {
		t.Fatalf("categorized transfer misclassified: %+v", res.Kept[1])
	}
}

func TestFilterPartitionTotality(t *testing.T) {
	txns := []Transaction{
		incomeTxn("2026-08-01", 5000),
		expenseTxn("2026-08-02", "Groceries", "", -400),
		expenseTxn("2026-08-03", "Groceries", "", 100), // refund
	}
	res, _ := filterSnap(txns...)
	if len(res.Kept) != 3 {
		t.Fatalf("want 3 kept, got %d", len(res.Kept))
	}
	wantClasses := []TxnClass{ClassIncome, ClassExpense, ClassRefund}
	valid := map[TxnClass]bool{
		ClassIncome: true, ClassExpense: true, ClassRefund: true, ClassTransferToInvestment: true,
	}
	for i, tx := range res.Kept {
		if tx.Class != wantClasses[i] {
			t.Fatalf("txn %d: got class %s want %s", i, tx.Class, wantClasses[i])
		}
		if !valid[tx.Class] {
			t.Fatalf("txn %d: class %s outside the partition", i, tx.Class)
		}
	}
}

func TestFilterExclusionLists(t *testing.T) {
	settings := DefaultCSPSettings()
	settings.ExcludedPayees["Venmo"] = true
	settings.ExcludedExpenseCategories["Reimbursable"] = true

	excludedPayee := expenseTxn("2026-08-01", "Dining", "", -80)
	excludedPayee.PayeeName = "Venmo"
	excludedCat := expenseTxn("2026-08-02", "Reimbursable", "", -120)
	kept := expenseTxn("2026-08-03", "Groceries", "", -50)

	snap := BudgetSnapshot{Accounts: baseAccounts(), Transactions: []Transaction{excludedPayee, excludedCat, kept}}
	res := FilterTransactions(snap, ClassifyAccounts(snap.Accounts), settings)

	if len(res.Kept) != 1 || res.Kept[0].CategoryName != "Groceries" {
		t.Fatalf("exclusions not applied: %+v", res.Kept)
	}
	if res.ExcludedExpense.Cents != units(200).Cents {
		t.Fatalf("excluded tally wrong: %v", res.ExcludedExpense)
	}
}
