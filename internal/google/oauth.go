package google

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuthScopes are the Google OAuth scopes the scheduling assistant needs.
// Calendar access plus the OpenID Connect scopes used to identify the user.
var OAuthScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/calendar",
}

// OOB is the out-of-band redirect URI: the user pastes the authorization
// code back instead of being redirected to a local server.
const OOB = "urn:ietf:wg:oauth:2.0:oob"

// OAuthConfig returns the OAuth2 configuration for the Google Calendar API.
// Client credentials come from GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET.
func OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		Endpoint:     google.Endpoint,
		RedirectURL:  OOB,
		Scopes:       OAuthScopes,
	}
}

// AuthURL returns the consent URL a user must visit to link their calendar.
func AuthURL() string {
	conf := OAuthConfig()
	return conf.AuthCodeURL("state", oauth2.AccessTypeOffline)
}

// ExchangeCode exchanges a pasted authorization code for a token and saves
// it in the store under the given user.
func ExchangeCode(ctx context.Context, store TokenStore, userID, authCode string) error {
	conf := OAuthConfig()

	token, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}

	if err := store.SaveToken(ctx, userID, token); err != nil {
		return fmt.Errorf("failed to save token for user: %w", err)
	}

	return nil
}
