package data

import (
	_ "embed"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// DefaultSite is the entry used when no site is named explicitly.
const DefaultSite = "Instagram"

//go:embed sites.json
var embeddedSites []byte

type SiteData struct {
	URL      string `json:"url"`
	URLMain  string `json:"urlMain"`
	URLProbe string `json:"urlProbe"`

	// ErrorMsg is a string or a list of strings; any of them on a 200 page
	// means the handle is free.
	ErrorMsg any `json:"errorMsg"`
	// PresenceMsg markers identify a live profile page.
	PresenceMsg   []string `json:"presenceMsg"`
	MatchUsername bool     `json:"matchUsername"`

	UsedUsername   string `json:"username_claimed"`
	UnusedUsername string `json:"username_unclaimed"`
	RegexCheck     string `json:"regexCheck"`
}

// ProfileURL fills the url template with the handle.
func (sd SiteData) ProfileURL(handle string) string {
	return strings.ReplaceAll(sd.URL, "{}", handle)
}

// ProbeURL is the url actually requested; urlProbe wins over url when set.
func (sd SiteData) ProbeURL(handle string) string {
	if sd.URLProbe != "" {
		return strings.ReplaceAll(sd.URLProbe, "{}", handle)
	}
	return sd.ProfileURL(handle)
}

// NotAvailableMarkers flattens errorMsg into a list.
func (sd SiteData) NotAvailableMarkers() ([]string, error) {
	switch v := sd.ErrorMsg.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, it := range v {
			s, ok := it.(string)
			if !ok || s == "" {
				continue
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.Errorf("unsupported errorMsg type %T", sd.ErrorMsg)
	}
}

// LoadSites loads a sherlock-style site file but safely ignores the top-level "$schema".
// An empty filename loads the embedded database.
func LoadSites(filename string) (map[string]SiteData, error) {
	raw := embeddedSites
	if filename != "" {
		var err error
		raw, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}
	return parseSites(raw)
}

// LoadSite loads one entry, matching the name case-insensitively.
func LoadSite(filename, name string) (SiteData, error) {
	sites, err := LoadSites(filename)
	if err != nil {
		return SiteData{}, err
	}
	if name == "" {
		name = DefaultSite
	}
	for siteName, sd := range sites {
		if strings.EqualFold(siteName, name) {
			if sd.URL == "" {
				return SiteData{}, errors.Errorf("site %q: missing url in database", siteName)
			}
			return sd, nil
		}
	}
	return SiteData{}, errors.Errorf("site %q not found in database", name)
}

func parseSites(raw []byte) (map[string]SiteData, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrap(err, "parse json")
	}

	out := make(map[string]SiteData, len(entries))
	for siteName, msg := range entries {
		// Skip the JSON Schema entry if present.
		if siteName == "$schema" {
			continue
		}

		var sd SiteData
		if err := json.Unmarshal(msg, &sd); err != nil {
			return nil, errors.Wrapf(err, "site %q", siteName)
		}
		out[siteName] = sd
	}

	return out, nil
}
