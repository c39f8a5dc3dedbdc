// Command oauth-init performs the one-time budget-provider OAuth flow and
// stores the resulting tokens in the user's settings.
package main

import (
	"bufio"
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"budgetdigest/internal/config"
	"budgetdigest/internal/provider"
	"budgetdigest/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.ProviderClientID == "" || cfg.ProviderClientSecret == "" {
		stdlog.Fatalf("set PROVIDER_CLIENT_ID and PROVIDER_CLIENT_SECRET")
	}

	authURL := os.Getenv("PROVIDER_AUTH_URL")
	if authURL == "" {
		authURL = "https://app.ynab.com/oauth/authorize"
	}

	// Local server for redirect_uri http://localhost:8085/callback.
	// The OAuth client must list this URI in its authorized redirects.
	redirectPort := os.Getenv("OAUTH_REDIRECT_PORT")
	if redirectPort == "" {
		redirectPort = "8085"
	}
	redirectURL := "http://localhost:" + redirectPort + "/callback"

	auth := provider.NewAuthenticator(cfg.ProviderClientID, cfg.ProviderClientSecret, cfg.ProviderTokenURL, redirectURL)

	codeCh := make(chan string, 1)
	srv := &http.Server{Addr: ":" + redirectPort}
	http.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		codeCh <- code
		go func() { time.Sleep(500 * time.Millisecond); _ = srv.Close() }()
	})
	go func() { _ = srv.ListenAndServe() }()

	fmt.Printf("Open this URL to authorize:\n%s\n", auth.AuthCodeURL(authURL, "state-token"))

	var code string
	select {
	case code = <-codeCh:
	case <-time.After(5 * time.Minute):
		stdlog.Fatalf("authorization timed out")
	case <-signalChan():
		stdlog.Fatalf("interrupted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := auth.Exchange(ctx, code)
	if err != nil {
		stdlog.Fatalf("token exchange: %v", err)
	}

	client := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderTimeout)
	budgets, err := client.ListBudgets(ctx, token.AccessToken)
	if err != nil {
		stdlog.Fatalf("list budgets: %v", err)
	}
	if len(budgets) == 0 {
		stdlog.Fatalf("the provider account has no budgets")
	}

	budgetID := pickBudget(budgets)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		stdlog.Fatalf("open repository: %v", err)
	}
	defer repo.Close()

	settings, err := repo.GetSettings(ctx, cfg.DefaultUserID)
	if err != nil {
		stdlog.Fatalf("load settings: %v", err)
	}
	settings.Provider = storage.ProviderAuth{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		BudgetID:     budgetID,
	}
	if err := repo.SaveSettings(ctx, cfg.DefaultUserID, settings); err != nil {
		stdlog.Fatalf("save settings: %v", err)
	}

	fmt.Printf("Saved provider credentials for user %q (budget %s)\n", cfg.DefaultUserID, budgetID)
}

func pickBudget(budgets []provider.BudgetRef) string {
	if len(budgets) == 1 {
		fmt.Printf("Using budget %q (%s)\n", budgets[0].Name, budgets[0].ID)
		return budgets[0].ID
	}

	fmt.Println("Budgets:")
	for i, b := range budgets {
		fmt.Printf("  [%d] %s (%s)\n", i+1, b.Name, b.ID)
	}
	fmt.Print("Pick a budget number: ")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err == nil && n >= 1 && n <= len(budgets) {
			return budgets[n-1].ID
		}
		fmt.Printf("Enter a number between 1 and %d: ", len(budgets))
	}
	stdlog.Fatalf("no budget selected")
	return ""
}

func signalChan() <-chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	return c
}
