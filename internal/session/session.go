// Package session holds the credentials used by the deep profile lookup and
// the stores that persist them between runs.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrNoSession is returned by Store.Load when nothing usable is persisted.
var ErrNoSession = errors.New("no saved session")

// ErrReadOnly is returned by stores that cannot persist credentials.
var ErrReadOnly = errors.New("session store is read-only")

type Source string

const (
	SourceNone   Source = ""
	SourceFile   Source = "file"
	SourceSQLite Source = "sqlite"
	SourceEnv    Source = "env"
	SourceCookie Source = "cookie"
)

// Credentials is an immutable authenticated context. The zero value means
// anonymous.
type Credentials struct {
	Username  string            `json:"username,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	CSRFToken string            `json:"csrf_token,omitempty"`
	Cookies   map[string]string `json:"cookies,omitempty"`
	APIKey    string            `json:"api_key,omitempty"`
	SavedAt   time.Time         `json:"saved_at,omitempty"`

	Source Source `json:"-"`
}

// Authenticated reports whether a login session is present.
func (c Credentials) Authenticated() bool {
	return c.SessionID != ""
}

// Empty reports whether c carries nothing at all.
func (c Credentials) Empty() bool {
	return c.SessionID == "" && c.CSRFToken == "" && c.APIKey == "" && len(c.Cookies) == 0
}

// Persisted reports whether c came from a process-wide store, i.e. whether a
// rejection should invalidate that store.
func (c Credentials) Persisted() bool {
	switch c.Source {
	case SourceFile, SourceSQLite, SourceEnv:
		return true
	}
	return false
}

// WithAPIKey returns a copy carrying key unless c already has one.
func (c Credentials) WithAPIKey(key string) Credentials {
	if c.APIKey == "" {
		c.APIKey = key
	}
	return c
}

// HTTPCookies renders c as request cookies.
func (c Credentials) HTTPCookies() []*http.Cookie {
	var out []*http.Cookie
	if c.SessionID != "" {
		out = append(out, &http.Cookie{Name: "sessionid", Value: c.SessionID})
	}
	if c.CSRFToken != "" {
		out = append(out, &http.Cookie{Name: "csrftoken", Value: c.CSRFToken})
	}
	for name, value := range c.Cookies {
		if name == "sessionid" || name == "csrftoken" {
			continue
		}
		out = append(out, &http.Cookie{Name: name, Value: value})
	}
	return out
}

// ParseCookieBlob builds per-request credentials from a Cookie header style
// string such as "sessionid=abc; csrftoken=def; ds_user_id=1".
func ParseCookieBlob(blob string) (Credentials, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return Credentials{}, nil
	}

	cookies, err := http.ParseCookie(blob)
	if err != nil {
		return Credentials{}, err
	}

	creds := Credentials{Source: SourceCookie}
	for _, c := range cookies {
		switch c.Name {
		case "sessionid":
			creds.SessionID = c.Value
		case "csrftoken":
			creds.CSRFToken = c.Value
		default:
			if creds.Cookies == nil {
				creds.Cookies = make(map[string]string, len(cookies))
			}
			creds.Cookies[c.Name] = c.Value
		}
	}
	return creds, nil
}

// Store persists credentials across calls.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Invalidate(ctx context.Context) error
}

// NopStore never has a session.
type NopStore struct{}

func (NopStore) Load(context.Context) (Credentials, error) { return Credentials{}, ErrNoSession }
func (NopStore) Save(context.Context, Credentials) error { return ErrReadOnly }
func (NopStore) Invalidate(context.Context) error { return nil }
