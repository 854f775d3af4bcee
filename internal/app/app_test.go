package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tdh8316/handlecheck/internal/probe"
)

type fixture struct {
	dir        string
	configFile string
	envFile    string
}

func newFixture(t *testing.T, extraConfig string) fixture {
	t.Helper()

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/live/":
			w.Write([]byte(`<html><head><title>live</title></head><body>@live</body></html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(site.Close)

	dir := t.TempDir()
	database := filepath.Join(dir, "sites.json")
	require.NoError(t, os.WriteFile(database, []byte(fmt.Sprintf(`{
  "$schema": "data.schema.json",
  "Local": {
    "url": %q,
    "errorMsg": "Page Not Found",
    "matchUsername": true,
    "regexCheck": "^[a-z0-9_.]{1,30}$",
    "username_claimed": "live",
    "username_unclaimed": "ghost"
  }
}`, site.URL+"/{}/")), 0o600))

	configFile := filepath.Join(dir, "handlecheck.yml")
	require.NoError(t, os.WriteFile(configFile, []byte(fmt.Sprintf(`
site:
  database: %s
  name: local
deep:
  backend: none
session:
  store: file
  path: %s
resolve:
  fast_delay_min_ms: 1
  fast_delay_max_ms: 1
  deep_delay_min_ms: 1
  deep_delay_max_ms: 1
log:
  level: error
%s`, database, filepath.Join(dir, "session.json"), extraConfig)), 0o600))

	return fixture{dir: dir, configFile: configFile, envFile: filepath.Join(dir, "missing.env")}
}

func (f fixture) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", f.configFile, "--env-file", f.envFile}, args...)
	code := Run(context.Background(), full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCheckJSON(t *testing.T) {
	f := newFixture(t, "")

	code, stdout, stderr := f.run(t, "check", "--json", "ghost", "", "LIVE", "live")
	require.Equal(t, 0, code, stderr)

	var results []struct {
		Username string       `json:"username"`
		Status   probe.Status `json:"status"`
		Exists   *bool        `json:"exists"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 2)
	require.Equal(t, "ghost", results[0].Username)
	require.Equal(t, probe.StatusAvailable, results[0].Status)
	require.Equal(t, "live", results[1].Username)
	require.Equal(t, probe.StatusTaken, results[1].Status)
	require.True(t, *results[1].Exists)
}

func TestCheckPrinterAndOutputFile(t *testing.T) {
	f := newFixture(t, "")
	outDir := filepath.Join(f.dir, "results")

	code, stdout, stderr := f.run(t, "check", "--no-color", "--output", outDir, "live", "ghost", "bad..name!")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "[+] live: ")
	require.Contains(t, stdout, "[-] ghost: Available")
	require.Contains(t, stdout, "[!] bad..name!: ERROR: handle does not match")

	written, err := os.ReadFile(filepath.Join(outDir, "out.txt"))
	require.NoError(t, err)
	require.Equal(t, 3, strings.Count(string(written), "\n"))
	require.Contains(t, string(written), "[-] ghost: Available")
}

func TestCheckSiteSelfTest(t *testing.T) {
	f := newFixture(t, "")

	code, stdout, stderr := f.run(t, "check", "--no-color", "--test")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "[+] local: working")
}

func TestCheckSiteSelfTestFailure(t *testing.T) {
	f := newFixture(t, "probe:\n  ambiguous_200: available\n")

	// swap the known pair so the check must fail
	database := filepath.Join(f.dir, "sites.json")
	raw, err := os.ReadFile(database)
	require.NoError(t, err)
	swapped := strings.NewReplacer(`"username_claimed": "live"`, `"username_claimed": "ghost"`, `"username_unclaimed": "ghost"`, `"username_unclaimed": "live"`).Replace(string(raw))
	require.NoError(t, os.WriteFile(database, []byte(swapped), 0o600))

	code, stdout, _ := f.run(t, "check", "--no-color", "--test")
	require.Equal(t, 1, code)
	require.Contains(t, stdout, "[-] local: Not working")
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, "")

	code, stdout, _ := f.run(t, "session", "show")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "No saved session")

	code, _, stderr := f.run(t, "session", "save", "--cookies", "sessionid=abcdefghij; csrftoken=tok; ds_user_id=7", "--username", "me")
	require.Equal(t, 0, code, stderr)

	code, stdout, _ = f.run(t, "session", "show")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "source:    file")
	require.Contains(t, stdout, "username:  me")
	require.Contains(t, stdout, "sessionid: abcd******")
	require.NotContains(t, stdout, "abcdefghij")
	require.Contains(t, stdout, "cookies:   1 more")

	code, _, _ = f.run(t, "session", "clear")
	require.Equal(t, 0, code)

	code, stdout, _ = f.run(t, "session", "show")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "No saved session")
}

func TestSessionSaveReadOnlyStore(t *testing.T) {
	f := newFixture(t, "")
	raw, err := os.ReadFile(f.configFile)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.configFile, []byte(strings.Replace(string(raw), "store: file", "store: env", 1)), 0o600))

	code, _, stderr := f.run(t, "session", "save", "--sessionid", "x")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "read-only")
}

func TestConfigCommand(t *testing.T) {
	t.Setenv("RAPIDAPI_KEY", "supersecretkey")
	f := newFixture(t, "")

	code, stdout, stderr := f.run(t, "config")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "local")
	require.NotContains(t, stdout, "supersecretkey")
}

func TestRunExitCodes(t *testing.T) {
	f := newFixture(t, "")

	code, _, stderr := f.run(t, "check", "--no-such-flag")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "Usage:")

	code, _, _ = f.run(t, "serve", "unexpected")
	require.Equal(t, 2, code)

	bad := filepath.Join(f.dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("deep:\n  backend: carrier-pigeon\n"), 0o600))
	var stdout, stderr2 bytes.Buffer
	code = Run(context.Background(), []string{"--config", bad, "--env-file", f.envFile, "check", "x"}, &stdout, &stderr2)
	require.Equal(t, 1, code)
	require.Contains(t, stderr2.String(), "carrier-pigeon")
}

func TestCheckUpdateDatabase(t *testing.T) {
	f := newFixture(t, "")
	database, err := os.ReadFile(filepath.Join(f.dir, "sites.json"))
	require.NoError(t, err)

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(database)
	}))
	defer remote.Close()

	setUpdateURL := func(url string) {
		raw, err := os.ReadFile(f.configFile)
		require.NoError(t, err)
		updated := strings.Replace(string(raw), "  name: local\n", "  name: local\n  update_url: "+url+"\n", 1)
		require.NoError(t, os.WriteFile(f.configFile, []byte(updated), 0o600))
	}
	setUpdateURL(remote.URL + "/data.json")

	fresh := filepath.Join(f.dir, "fresh", "data.json")
	code, stdout, stderr := f.run(t, "check", "--no-color", "--update", "--database", fresh, "live")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "[!] Update database: Downloading... [Done]")
	require.Contains(t, stdout, "[+] live: ")
	downloaded, err := os.ReadFile(fresh)
	require.NoError(t, err)
	require.Equal(t, string(database), string(downloaded))

	t.Run("falls back to existing file", func(t *testing.T) {
		setUpdateURL(remote.URL + "/gone.json")
		code, stdout, stderr := f.run(t, "check", "--no-color", "--update", "--database", fresh, "live")
		require.Equal(t, 0, code, stderr)
		require.Contains(t, stdout, "Failed to update database")
		require.Contains(t, stdout, "(using existing)")
		require.Contains(t, stdout, "[+] live: ")
	})

	t.Run("no file to fall back to", func(t *testing.T) {
		code, _, stderr := f.run(t, "check", "--no-color", "--update", "--database", filepath.Join(f.dir, "none.json"), "live")
		require.Equal(t, 1, code)
		require.Contains(t, stderr, "no existing database found")
	})
}
