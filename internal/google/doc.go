// Package google manages per-user Google OAuth credentials.
//
// It owns the OAuth2 configuration (client ID/secret, scopes), the
// TokenStore abstraction that persists one token record per user, and the
// token-source wiring that transparently refreshes expired access tokens
// and writes refreshed tokens back to the store.
//
// Token records never leave this package and the calendar access layer;
// nothing model-facing ever sees a credential.
package google
