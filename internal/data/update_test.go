package data

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestUpdateFromRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data.json":
			w.Write([]byte(`{"$schema":"x","Instagram":{"url":"https://www.instagram.com/{}","errorType":"message","errorMsg":"Page Not Found"}}`))
		case "/garbage.json":
			w.Write([]byte("<html>rate limited</html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("no such file"))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	client := resty.New()
	dest := filepath.Join(t.TempDir(), "db", "data.json")

	require.NoError(t, UpdateFromRemote(ctx, client, srv.URL+"/data.json", dest))
	sd, err := LoadSite(dest, "instagram")
	require.NoError(t, err)
	require.Equal(t, "https://www.instagram.com/alice", sd.ProfileURL("alice"))

	before, err := os.ReadFile(dest)
	require.NoError(t, err)

	err = UpdateFromRemote(ctx, client, srv.URL+"/missing.json", dest)
	require.ErrorContains(t, err, "no such file")

	err = UpdateFromRemote(ctx, client, srv.URL+"/garbage.json", dest)
	require.ErrorContains(t, err, "invalid")

	after, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, before, after)
}
