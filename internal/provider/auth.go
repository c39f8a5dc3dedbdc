package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"budgetdigest/internal/core"
)

// refreshSkew refreshes tokens a little before they actually expire so a
// slow pipeline never sends a token that dies mid-run.
const refreshSkew = 5 * time.Minute

// Token is the stored OAuth state for one user.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Authenticator wraps the provider's OAuth endpoints.
type Authenticator struct {
	cfg *oauth2.Config
}

func NewAuthenticator(clientID, clientSecret, tokenURL, redirectURL string) *Authenticator {
	return &Authenticator{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint: oauth2.Endpoint{
				TokenURL: tokenURL,
			},
		},
	}
}

// AuthCodeURL builds the URL the user visits to grant access.
func (a *Authenticator) AuthCodeURL(authURL, state string) string {
	cfg := *a.cfg
	cfg.Endpoint.AuthURL = authURL
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange turns an authorization code into a token pair.
func (a *Authenticator) Exchange(ctx context.Context, code string) (Token, error) {
	tok, err := a.cfg.Exchange(ctx, code)
	if err != nil {
		return Token{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	return fromOAuth2(tok), nil
}

// EnsureFresh returns a token that is valid for at least refreshSkew,
// refreshing it when needed. The second return reports whether the stored
// token changed and should be persisted.
func (a *Authenticator) EnsureFresh(ctx context.Context, tok Token) (Token, bool, error) {
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return Token{}, false, fmt.Errorf("no stored token: %w", core.ErrAuthExpired)
	}
	// A zero expiry marks a personal access token; those never expire and
	// have no refresh flow, matching oauth2.Token.Valid semantics.
	if tok.AccessToken != "" && (tok.Expiry.IsZero() || time.Until(tok.Expiry) > refreshSkew) {
		return tok, false, nil
	}
	if tok.RefreshToken == "" {
		return Token{}, false, fmt.Errorf("access token expired and no refresh token: %w", core.ErrAuthExpired)
	}

	source := a.cfg.TokenSource(ctx, &oauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	})
	refreshed, err := source.Token()
	if err != nil {
		return Token{}, false, fmt.Errorf("refresh token: %w: %v", core.ErrAuthExpired, err)
	}
	return fromOAuth2(refreshed), true, nil
}

func fromOAuth2(tok *oauth2.Token) Token {
	return Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}
