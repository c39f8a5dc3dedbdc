// Package provider talks to the budget provider's REST API.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetdigest/internal/cache"
	"budgetdigest/internal/core"
)

const responseCacheTTL = 2 * time.Minute

// BudgetRef identifies one budget the authenticated user can read.
type BudgetRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	responses  *cache.TTL[[]byte]
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		responses:  cache.NewTTL[[]byte](64, responseCacheTTL),
	}
}

// ListBudgets returns the budgets visible to the token. Used by the OAuth
// bootstrap to let the user pick one.
func (c *Client) ListBudgets(ctx context.Context, token string) ([]BudgetRef, error) {
	var payload struct {
		Data struct {
			Budgets []BudgetRef `json:"budgets"`
		} `json:"data"`
	}
	if err := c.get(ctx, token, "/budgets", &payload); err != nil {
		return nil, err
	}
	return payload.Data.Budgets, nil
}

// FetchBudget reads accounts, transactions, and categories for one budget
// concurrently and assembles them into a single raw payload. Transactions
// are limited to those on or after sinceDate.
func (c *Client) FetchBudget(ctx context.Context, token, budgetID string, sinceDate time.Time) (core.RawBudget, error) {
	if token == "" {
		return core.RawBudget{}, fmt.Errorf("fetch budget: %w", core.ErrAuthExpired)
	}
	if budgetID == "" {
		return core.RawBudget{}, fmt.Errorf("fetch budget: budget id: %w", core.ErrConfigMissing)
	}

	var (
		accounts struct {
			Data struct {
				Accounts []core.RawAccount `json:"accounts"`
			} `json:"data"`
		}
		transactions struct {
			Data struct {
				Transactions []core.RawTransaction `json:"transactions"`
			} `json:"data"`
		}
		categories struct {
			Data struct {
				CategoryGroups []core.RawCategoryGroup `json:"category_groups"`
			} `json:"data"`
		}
	)

	txnPath := fmt.Sprintf("/budgets/%s/transactions?since_date=%s",
		url.PathEscape(budgetID), sinceDate.Format("2006-01-02"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.get(gctx, token, fmt.Sprintf("/budgets/%s/accounts", url.PathEscape(budgetID)), &accounts)
	})
	g.Go(func() error {
		return c.get(gctx, token, txnPath, &transactions)
	})
	g.Go(func() error {
		return c.get(gctx, token, fmt.Sprintf("/budgets/%s/categories", url.PathEscape(budgetID)), &categories)
	})
	if err := g.Wait(); err != nil {
		return core.RawBudget{}, err
	}

	return core.RawBudget{
		Accounts:       accounts.Data.Accounts,
		Transactions:   transactions.Data.Transactions,
		CategoryGroups: categories.Data.CategoryGroups,
	}, nil
}

func (c *Client) get(ctx context.Context, token, path string, v any) error {
	key := cache.ResponseKey(token, path)
	if body, ok := c.responses.Get(key); ok {
		return json.Unmarshal(body, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("get %s: %w: %v", path, core.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w: %v", path, core.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("get %s: status %d: %w", path, resp.StatusCode, core.ErrAuthExpired)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("get %s: status %d: %w", path, resp.StatusCode, core.ErrProviderUnavailable)
	default:
		return fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, core.ErrInputMalformed)
	}

	c.responses.Set(key, body)
	return nil
}
