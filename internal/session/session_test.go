package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCookieBlob(t *testing.T) {
	creds, err := ParseCookieBlob(" sessionid=abc; csrftoken=def; ds_user_id=42 ")
	require.NoError(t, err)
	require.Equal(t, "abc", creds.SessionID)
	require.Equal(t, "def", creds.CSRFToken)
	require.Equal(t, map[string]string{"ds_user_id": "42"}, creds.Cookies)
	require.Equal(t, SourceCookie, creds.Source)
	require.False(t, creds.Persisted())
	require.Len(t, creds.HTTPCookies(), 3)

	empty, err := ParseCookieBlob("   ")
	require.NoError(t, err)
	require.True(t, empty.Empty())
}

func TestCredentialsWithAPIKey(t *testing.T) {
	creds := Credentials{}.WithAPIKey("k1")
	require.Equal(t, "k1", creds.APIKey)
	require.Equal(t, "k1", creds.WithAPIKey("k2").APIKey)
}

func testStore(t *testing.T, store Store, source Source) {
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, store.Save(ctx, Credentials{Username: "alice", SessionID: "s1", CSRFToken: "c1"}))

	creds, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice", creds.Username)
	require.Equal(t, "s1", creds.SessionID)
	require.Equal(t, source, creds.Source)
	require.True(t, creds.Persisted())
	require.False(t, creds.SavedAt.IsZero())

	require.NoError(t, store.Save(ctx, Credentials{SessionID: "s2"}))
	creds, err = store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "s2", creds.SessionID)

	require.NoError(t, store.Invalidate(ctx))
	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	// invalidating twice is fine
	require.NoError(t, store.Invalidate(ctx))
}

func TestFileStore(t *testing.T) {
	testStore(t, NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json")), SourceFile)
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Close()

	testStore(t, store, SourceSQLite)
}

func TestEnvStore(t *testing.T) {
	env := map[string]string{EnvSessionID: "env-session", EnvCSRFToken: "env-csrf"}
	store := &EnvStore{lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}
	ctx := context.Background()

	creds, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "env-session", creds.SessionID)
	require.Equal(t, SourceEnv, creds.Source)

	require.ErrorIs(t, store.Save(ctx, creds), ErrReadOnly)

	require.NoError(t, store.Invalidate(ctx))
	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)
}
