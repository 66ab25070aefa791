package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/oauth2"
)

// ErrTokenNotFound is returned by a TokenStore when no credential has been
// stored for the user. Callers must treat it as "calendar not linked yet",
// distinct from a stored-but-rejected credential.
var ErrTokenNotFound = errors.New("no stored token for user")

// TokenStore persists one OAuth token record per user. Implementations must
// be safe for concurrent use.
type TokenStore interface {
	// GetToken retrieves the stored token for the user, or ErrTokenNotFound.
	GetToken(ctx context.Context, userID string) (*oauth2.Token, error)

	// SaveToken stores or replaces the token for the user. It is called both
	// on initial linking and after every successful refresh.
	SaveToken(ctx context.Context, userID string, token *oauth2.Token) error
}

// FileTokenStore stores tokens as JSON files, one per user, under a
// directory (default: <user cache dir>/chatplan).
type FileTokenStore struct {
	dir string
}

// NewFileTokenStore creates a file-based token store rooted at dir.
// If dir is empty, the platform cache directory is used.
func NewFileTokenStore(dir string) *FileTokenStore {
	if dir == "" {
		dir = filepath.Join(userCacheDir(), "chatplan")
	}
	return &FileTokenStore{dir: dir}
}

// tokenFile returns the path for a user's token. User IDs are often email
// addresses, so they are path-escaped before use as a file name.
func (s *FileTokenStore) tokenFile(userID string) string {
	return filepath.Join(s.dir, url.PathEscape(userID)+".token")
}

// GetToken reads the user's token from disk.
func (s *FileTokenStore) GetToken(_ context.Context, userID string) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.tokenFile(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	return &token, nil
}

// SaveToken writes the user's token to disk with owner-only permissions.
func (s *FileTokenStore) SaveToken(_ context.Context, userID string, token *oauth2.Token) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := os.WriteFile(s.tokenFile(userID), data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// MemoryTokenStore is an in-memory TokenStore for tests and embedding.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*oauth2.Token
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]*oauth2.Token)}
}

// GetToken retrieves the token stored for the user.
func (s *MemoryTokenStore) GetToken(_ context.Context, userID string) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[userID]
	if !ok {
		return nil, ErrTokenNotFound
	}

	// Copy so callers cannot mutate the stored record.
	copied := *token
	return &copied, nil
}

// SaveToken stores or replaces the token for the user.
func (s *MemoryTokenStore) SaveToken(_ context.Context, userID string, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *token
	s.tokens[userID] = &copied
	return nil
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
