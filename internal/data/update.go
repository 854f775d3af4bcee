package data

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// SherlockDataURL is the upstream site database.
const SherlockDataURL = "https://raw.githubusercontent.com/sherlock-project/sherlock/master/sherlock_project/resources/data.json"

// DefaultDataFile is where a downloaded database goes when no path is configured.
const DefaultDataFile = "data.json"

// UpdateFromRemote downloads a site database from rawURL and atomically
// replaces destPath with it. The file is left untouched unless the download
// parses as a site database.
func UpdateFromRemote(ctx context.Context, client *resty.Client, rawURL, destPath string) error {
	if rawURL == "" {
		rawURL = SherlockDataURL
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(rawURL)
	if err != nil {
		return errors.Wrap(err, "download database")
	}
	if resp.StatusCode() != http.StatusOK {
		// Keep a small snippet for diagnostics.
		snippet := resp.Body()
		if len(snippet) > 2048 {
			snippet = snippet[:2048]
		}
		return errors.Errorf("download failed: %s (%s)", resp.Status(), string(snippet))
	}

	body := resp.Body()
	if _, err := parseSites(body); err != nil {
		return errors.Wrap(err, "downloaded database is invalid")
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	tmp := destPath + ".tmp"
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, destPath)
}
