package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/tdh8316/handlecheck/internal/httpx"
	"github.com/tdh8316/handlecheck/internal/resolve"
)

// clearEnv keeps the host environment from leaking into a test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range append(keys, "PORT", "RAPIDAPI_KEY", "IG_SESSIONID", "IG_CSRFTOKEN") {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil, filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	require.Equal(t, "Instagram", cfg.SiteName())
	require.Equal(t, 10*time.Second, cfg.Timeout())
	require.Equal(t, 1, cfg.HTTP.Retries)
	require.True(t, cfg.AssumeLiveOnAmbiguous200())
	require.False(t, cfg.Probe.UnauthorizedAsAvailable)
	require.Equal(t, "webprofile", cfg.DeepBackend())
	require.Equal(t, "file", cfg.SessionStore())
	require.Equal(t, 1, cfg.Resolve.Concurrency)
	require.Equal(t, "0.0.0.0:8080", cfg.ListenAddr())
	require.Equal(t, int64(2048<<10), cfg.MaxBodyBytes())
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t, "HANDLECHECK_RESOLVE_CONCURRENCY")

	path := filepath.Join(t.TempDir(), "handlecheck.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
probe:
  ambiguous_200: available
  unauthorized_as_available: true
deep:
  backend: rapidapi
resolve:
  concurrency: 2
  fast_delay_min_ms: 100
  fast_delay_max_ms: 200
  deep_delay_min_ms: 300
  deep_delay_max_ms: 400
http:
  tor: true
log:
  format: json
`), 0o600))

	t.Setenv("RAPIDAPI_KEY", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("HANDLECHECK_RESOLVE_CONCURRENCY", "3")

	cfg, err := Load(nil, path)
	require.NoError(t, err)

	require.False(t, cfg.AssumeLiveOnAmbiguous200())
	require.True(t, cfg.Policy().UnauthorizedAsAvailable)
	require.Equal(t, "rapidapi", cfg.DeepBackend())
	require.Equal(t, "secret", cfg.Deep.RapidAPIKey)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 3, cfg.Resolve.Concurrency)
	require.Equal(t, resolve.Pacing{
		Fast: resolve.Range{Min: 100 * time.Millisecond, Max: 200 * time.Millisecond},
		Deep: resolve.Range{Min: 300 * time.Millisecond, Max: 400 * time.Millisecond},
	}, cfg.Pacing())
	require.Equal(t, httpx.DefaultTorProxyURL, cfg.ClientConfig().ProxyURL)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAPIDAPI_KEY", "placeholder")
	require.NoError(t, os.Unsetenv("RAPIDAPI_KEY"))

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RAPIDAPI_KEY=from-dotenv\n"), 0o600))

	cfg, err := Load([]string{filepath.Join(dir, "absent.env"), envFile})
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.Deep.RapidAPIKey)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	testCases := map[string]string{
		"ambiguous": "probe:\n  ambiguous_200: maybe\n",
		"backend":   "deep:\n  backend: scraper\n",
		"store":     "session:\n  store: redis\n",
		"delays":    "resolve:\n  fast_delay_min_ms: 900\n  fast_delay_max_ms: 100\n",
	}
	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(nil, path)
			require.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(nil)
	require.NoError(t, err)

	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"
	var buf bytes.Buffer
	l, err := cfg.NewLogger(&buf)
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, l.GetLevel())

	l.WithField("handle", "alice").Debug("resolved handle")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "alice", line["handle"])

	cfg.Log.Level = "loud"
	_, err = cfg.NewLogger(&buf)
	require.Error(t, err)

	cfg.Log.Level, cfg.Log.Format = "info", "xml"
	_, err = cfg.NewLogger(&buf)
	require.Error(t, err)
}
