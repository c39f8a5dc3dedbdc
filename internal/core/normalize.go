package core

import (
	"fmt"
	"time"
)

// Raw provider payload types. Amounts are milliunits exactly as they arrive
// on the wire; Normalize converts them once and nothing downstream touches
// milliunits again.
type (
	RawBudget struct {
		Accounts       []RawAccount       `json:"accounts"`
		Transactions   []RawTransaction   `json:"transactions"`
		CategoryGroups []RawCategoryGroup `json:"category_groups"`
	}

	RawAccount struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Type     string `json:"type"`
		Balance  int64  `json:"balance"`
		OnBudget bool   `json:"on_budget"`
		Closed   bool   `json:"closed"`
	}

	RawTransaction struct {
		ID                string              `json:"id"`
		Date              string              `json:"date"` // YYYY-MM-DD
		AccountID         string              `json:"account_id"`
		CategoryID        string              `json:"category_id,omitempty"`
		CategoryName      string              `json:"category_name,omitempty"`
		CategoryGroupName string              `json:"category_group_name,omitempty"`
		PayeeName         string              `json:"payee_name,omitempty"`
		Amount            int64               `json:"amount"`
		TransferAccountID string              `json:"transfer_account_id,omitempty"`
		Subtransactions   []RawSubTransaction `json:"subtransactions,omitempty"`
	}

	RawSubTransaction struct {
		ID                string `json:"id"`
		Amount            int64  `json:"amount"`
		CategoryID        string `json:"category_id,omitempty"`
		CategoryName      string `json:"category_name,omitempty"`
		PayeeName         string `json:"payee_name,omitempty"`
		TransferAccountID string `json:"transfer_account_id,omitempty"`
	}

	RawCategoryGroup struct {
		Name       string        `json:"name"`
		Categories []RawCategory `json:"categories"`
	}

	RawCategory struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Budgeted int64  `json:"budgeted"`
		Balance  int64  `json:"balance"`
		Hidden   bool   `json:"hidden"`
	}
)

// Normalize converts a raw provider payload into the canonical
// BudgetSnapshot: amounts in cents, split transactions flattened, and a
// category index keyed by id. A transaction with sub-transactions is
// replaced by one record per sub-transaction; each inherits the parent's
// date, account, and payee, and falls back to the parent's category and
// transfer target when its own field is empty.
func Normalize(raw RawBudget) (BudgetSnapshot, error) {
	snap := BudgetSnapshot{
		Accounts:   make([]Account, 0, len(raw.Accounts)),
		Categories: make(map[string]CategoryInfo),
	}

	for i, a := range raw.Accounts {
		if a.ID == "" {
			return BudgetSnapshot{}, fmt.Errorf("account %d missing id: %w", i, ErrInputMalformed)
		}
		snap.Accounts = append(snap.Accounts, Account{
			ID:       a.ID,
			Name:     a.Name,
			Type:     a.Type,
			Balance:  FromMilliunits(a.Balance),
			OnBudget: a.OnBudget,
			Closed:   a.Closed,
		})
	}

	for _, g := range raw.CategoryGroups {
		for _, c := range g.Categories {
			if c.ID == "" {
				continue
			}
			snap.Categories[c.ID] = CategoryInfo{
				Name:      c.Name,
				GroupName: g.Name,
				Hidden:    c.Hidden,
			}
		}
	}

	for i, t := range raw.Transactions {
		if t.AccountID == "" {
			return BudgetSnapshot{}, fmt.Errorf("transaction %d missing account_id: %w", i, ErrInputMalformed)
		}
		date, err := time.Parse("2006-01-02", t.Date)
		if err != nil {
			return BudgetSnapshot{}, fmt.Errorf("transaction %d bad date %q: %w", i, t.Date, ErrInputMalformed)
		}

		if len(t.Subtransactions) == 0 {
			snap.Transactions = append(snap.Transactions, normalizeOne(t, date, snap.Categories))
			continue
		}

		// Split transaction: emit the subs, never the parent.
		for _, sub := range t.Subtransactions {
			flat := t
			flat.Amount = sub.Amount
			if sub.ID != "" {
				flat.ID = sub.ID
			}
			if sub.CategoryID != "" {
				flat.CategoryID = sub.CategoryID
				flat.CategoryName = sub.CategoryName
				flat.CategoryGroupName = ""
			}
			if sub.PayeeName != "" {
				flat.PayeeName = sub.PayeeName
			}
			if sub.TransferAccountID != "" {
				flat.TransferAccountID = sub.TransferAccountID
			}
			snap.Transactions = append(snap.Transactions, normalizeOne(flat, date, snap.Categories))
		}
	}

	return snap, nil
}

func normalizeOne(t RawTransaction, date time.Time, index map[string]CategoryInfo) Transaction {
	name := t.CategoryName
	group := t.CategoryGroupName
	if info, ok := index[t.CategoryID]; ok {
		if name == "" {
			name = info.Name
		}
		if group == "" {
			group = info.GroupName
		}
	}
	return Transaction{
		ID:                t.ID,
		Date:              date,
		AccountID:         t.AccountID,
		CategoryID:        t.CategoryID,
		CategoryName:      name,
		CategoryGroup:     group,
		PayeeName:         t.PayeeName,
		Amount:            FromMilliunits(t.Amount),
		TransferAccountID: t.TransferAccountID,
	}
}
