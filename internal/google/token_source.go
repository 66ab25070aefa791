package google

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/chatplan/chatplan/internal/instrumentation"
)

// TokenSourceForUser returns an OAuth2 token source for the user's stored
// credential. Expired access tokens are refreshed transparently using the
// stored refresh token; refreshed tokens are written back to the store so
// the new expiry survives process restarts.
//
// Returns ErrTokenNotFound (wrapped) when the user has never linked a
// calendar.
func TokenSourceForUser(ctx context.Context, store TokenStore, userID string) (oauth2.TokenSource, error) {
	return TokenSourceForUserWithMetrics(ctx, store, userID, nil)
}

// TokenSourceForUserWithMetrics is TokenSourceForUser with token refresh
// observability. Each refresh attempt is recorded as success or failure.
func TokenSourceForUserWithMetrics(ctx context.Context, store TokenStore, userID string, metrics *instrumentation.Metrics) (oauth2.TokenSource, error) {
	token, err := store.GetToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential for user: %w", err)
	}

	conf := OAuthConfig()
	return &persistingTokenSource{
		ctx:     ctx,
		store:   store,
		userID:  userID,
		base:    conf.TokenSource(ctx, token),
		last:    token,
		metrics: metrics,
	}, nil
}

// HTTPClientForUser returns an HTTP client authenticated as the user.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors
// against the Google APIs.
func HTTPClientForUser(ctx context.Context, store TokenStore, userID string) (*http.Client, error) {
	return HTTPClientForUserWithMetrics(ctx, store, userID, nil)
}

// HTTPClientForUserWithMetrics is HTTPClientForUser with token refresh
// observability.
func HTTPClientForUserWithMetrics(ctx context.Context, store TokenStore, userID string, metrics *instrumentation.Metrics) (*http.Client, error) {
	ts, err := TokenSourceForUserWithMetrics(ctx, store, userID, metrics)
	if err != nil {
		return nil, err
	}

	client := oauth2.NewClient(ctx, ts)

	// Force HTTP/1.1 by disabling HTTP/2
	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}

	return client, nil
}

// persistingTokenSource wraps an oauth2.TokenSource and writes every
// refreshed token back to the TokenStore. A refresh failure surfaces as the
// underlying oauth2 error (typically *oauth2.RetrieveError); it is never
// retried here.
type persistingTokenSource struct {
	ctx    context.Context
	store  TokenStore
	userID string

	mu      sync.Mutex
	base    oauth2.TokenSource
	last    *oauth2.Token
	metrics *instrumentation.Metrics
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.base.Token()
	if err != nil {
		s.metrics.RecordTokenRefresh(s.ctx, instrumentation.RefreshResultFailure)
		return nil, err
	}

	// Persist only when the access token actually rotated.
	if s.last == nil || token.AccessToken != s.last.AccessToken {
		s.metrics.RecordTokenRefresh(s.ctx, instrumentation.RefreshResultSuccess)
		if err := s.store.SaveToken(s.ctx, s.userID, token); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
		}
		s.last = token
	}

	return token, nil
}
