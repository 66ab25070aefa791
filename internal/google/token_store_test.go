package google

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestFileTokenStore_RoundTrip(t *testing.T) {
	store := NewFileTokenStore(t.TempDir())
	ctx := context.Background()

	token := &oauth2.Token{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}

	require.NoError(t, store.SaveToken(ctx, "jane@example.com", token))

	got, err := store.GetToken(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, got.AccessToken)
	assert.Equal(t, token.RefreshToken, got.RefreshToken)
	assert.True(t, token.Expiry.Equal(got.Expiry))
}

func TestFileTokenStore_NotFound(t *testing.T) {
	store := NewFileTokenStore(t.TempDir())

	_, err := store.GetToken(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestFileTokenStore_UserIDEscaping(t *testing.T) {
	store := NewFileTokenStore(t.TempDir())
	ctx := context.Background()

	// A user ID with path separators must not escape the store directory.
	userID := "../evil/user"
	token := &oauth2.Token{AccessToken: "x"}

	require.NoError(t, store.SaveToken(ctx, userID, token))

	got, err := store.GetToken(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "x", got.AccessToken)
}

func TestMemoryTokenStore(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	_, err := store.GetToken(ctx, "u1")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	token := &oauth2.Token{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, store.SaveToken(ctx, "u1", token))

	got, err := store.GetToken(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.AccessToken)

	// Mutating the returned token must not affect the stored copy.
	got.AccessToken = "tampered"
	again, err := store.GetToken(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.AccessToken)
}

func TestMemoryTokenStore_Overwrite(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	require.NoError(t, store.SaveToken(ctx, "u1", &oauth2.Token{AccessToken: "old"}))
	require.NoError(t, store.SaveToken(ctx, "u1", &oauth2.Token{AccessToken: "new"}))

	got, err := store.GetToken(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
}
