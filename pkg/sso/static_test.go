package sso

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/couchuser/pkg/observability"
	"github.com/platinummonkey/couchuser/pkg/users"
)

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func writeDirectory(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("users:\n")
	for name, password := range entries {
		fmt.Fprintf(&buf, "  %s:\n", name)
		fmt.Fprintf(&buf, "    password_hash: %q\n", hashPassword(t, password))
		fmt.Fprintf(&buf, "    name: %q\n", "User "+name)
		fmt.Fprintf(&buf, "    email: %s@example.com\n", name)
		buf.WriteString("    scopes: [read]\n")
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func newTestStaticProvider(t *testing.T, watch bool) (*StaticProvider, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.yaml")
	writeDirectory(t, path, map[string]string{"alice": "pw"})

	provider, err := NewStaticProvider(&ProviderConfig{
		ProviderType: ProviderTypeStatic,
		StaticConfig: &StaticConfig{Path: path, Watch: watch},
	}, observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{}))
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })

	return provider, path
}

func TestStaticProvider_VerifyCredentials(t *testing.T) {
	provider, _ := newTestStaticProvider(t, false)
	ctx := context.Background()

	profile, err := provider.VerifyCredentials(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "User alice", profile.Name)
	assert.Equal(t, "alice@example.com", profile.Email)
	assert.Equal(t, []string{"read"}, profile.Scopes)

	_, err = provider.VerifyCredentials(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, users.ErrAuthentication)

	_, err = provider.VerifyCredentials(ctx, "mallory", "pw")
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestStaticProvider_VerifyAccount(t *testing.T) {
	provider, _ := newTestStaticProvider(t, false)

	profile, err := provider.VerifyAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "User alice", profile.Name)

	_, err = provider.VerifyAccount(context.Background(), "ghost")
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestStaticProvider_Errors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := NewStaticProvider(&ProviderConfig{ProviderType: ProviderTypeStatic}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "static directory path is required")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewStaticProvider(&ProviderConfig{
			StaticConfig: &StaticConfig{Path: filepath.Join(t.TempDir(), "absent.yaml")},
		}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read static directory")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "users.yaml")
		require.NoError(t, os.WriteFile(path, []byte("users: [unterminated"), 0o600))

		_, err := NewStaticProvider(&ProviderConfig{StaticConfig: &StaticConfig{Path: path}}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse static directory")
	})

	t.Run("entry without hash", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "users.yaml")
		require.NoError(t, os.WriteFile(path, []byte("users:\n  bob:\n    name: Bob\n"), 0o600))

		_, err := NewStaticProvider(&ProviderConfig{StaticConfig: &StaticConfig{Path: path}}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no password_hash")
	})

	t.Run("entry with unreadable hash", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "users.yaml")
		require.NoError(t, os.WriteFile(path, []byte("users:\n  bob:\n    password_hash: plaintext\n"), 0o600))

		_, err := NewStaticProvider(&ProviderConfig{StaticConfig: &StaticConfig{Path: path}}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid password_hash")
	})
}

func TestStaticProvider_UnreadableHashIsAuthorityFault(t *testing.T) {
	provider, _ := newTestStaticProvider(t, false)

	provider.mu.Lock()
	provider.entries["mallory"] = StaticEntry{PasswordHash: "plaintext", Name: "Mallory"}
	provider.mu.Unlock()

	_, err := provider.VerifyCredentials(context.Background(), "mallory", "plaintext")
	require.Error(t, err)
	assert.ErrorIs(t, err, users.ErrAuthorityUnavailable)
	assert.NotErrorIs(t, err, users.ErrAuthentication)
}

func TestStaticProvider_ReloadsOnChange(t *testing.T) {
	provider, path := newTestStaticProvider(t, true)
	require.Equal(t, 1, provider.Len())

	writeDirectory(t, path, map[string]string{"alice": "pw", "bob": "secret"})

	assert.Eventually(t, func() bool {
		_, err := provider.VerifyAccount(context.Background(), "bob")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestStaticProvider_FailedReloadKeepsDirectory(t *testing.T) {
	provider, path := newTestStaticProvider(t, true)

	require.NoError(t, os.WriteFile(path, []byte("users: [unterminated"), 0o600))
	time.Sleep(200 * time.Millisecond)

	_, err := provider.VerifyCredentials(context.Background(), "alice", "pw")
	assert.NoError(t, err)
}

func TestStaticProvider_CloseIsIdempotent(t *testing.T) {
	provider, _ := newTestStaticProvider(t, true)
	assert.NoError(t, provider.Close())
	assert.NoError(t, provider.Close())
}
