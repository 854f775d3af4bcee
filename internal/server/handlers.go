package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tdh8316/handlecheck/internal/probe"
	"github.com/tdh8316/handlecheck/internal/resolve"
	"github.com/tdh8316/handlecheck/internal/session"
)

const (
	errNotJSON      = "Request must be JSON"
	errNoUsernames  = "Expected body: { usernames: [] }"
	errNotList      = "'usernames' must be a list"
	errBadUsername  = "'usernames' must contain only strings"
	errBadCookies   = "'cookies' must be a cookie header string"
	errBodyTooLarge = "request body too large"
)

type envelope struct {
	Success bool           `json:"success"`
	Data    []probe.Result `json:"data"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type checkRequest struct {
	Usernames json.RawMessage `json:"usernames"`
	Cookies   json.RawMessage `json:"cookies"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, errNotJSON)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errBodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, errNoUsernames)
		return
	}
	if req.Usernames == nil {
		writeError(w, http.StatusBadRequest, errNoUsernames)
		return
	}

	handles, msg := parseUsernames(req.Usernames)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if s.cfg.MaxHandles > 0 {
		if n := len(resolve.Normalize(handles)); n > s.cfg.MaxHandles {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("too many usernames: %d > %d", n, s.cfg.MaxHandles))
			return
		}
	}

	creds, err := s.credentials(r, req.Cookies)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadCookies)
		return
	}

	results, err := s.resolver.Resolve(r.Context(), handles, creds)
	if err != nil {
		// client went away; whatever was resolved is still written
		s.cfg.Logger.WithError(err).WithField("resolved", len(results)).Warn("check interrupted")
	}
	if results == nil {
		results = []probe.Result{}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: results})
}

// parseUsernames accepts a JSON array. Falsy entries (null, false, zero and
// empty strings) are skipped, other numbers are taken as their literal text.
func parseUsernames(raw json.RawMessage) ([]string, string) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, errNotList
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errNotList
	}

	handles := make([]string, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		switch {
		case len(item) == 0, string(item) == "null", string(item) == "false":
			continue
		case item[0] == '"':
			var h string
			if err := json.Unmarshal(item, &h); err != nil {
				return nil, errBadUsername
			}
			handles = append(handles, h)
		case item[0] == '-' || (item[0] >= '0' && item[0] <= '9'):
			n, err := strconv.ParseFloat(string(item), 64)
			if err != nil {
				return nil, errBadUsername
			}
			if n == 0 {
				continue
			}
			handles = append(handles, string(item))
		default:
			return nil, errBadUsername
		}
	}
	return handles, ""
}

// credentials prefers a cookie blob sent with the request over the saved
// session.
func (s *Server) credentials(r *http.Request, raw json.RawMessage) (session.Credentials, error) {
	if len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		var blob string
		if err := json.Unmarshal(raw, &blob); err != nil {
			return session.Credentials{}, err
		}
		if strings.TrimSpace(blob) != "" {
			return session.ParseCookieBlob(blob)
		}
	}

	creds, err := s.cfg.Store.Load(r.Context())
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			s.cfg.Logger.WithError(err).Warn("failed to load saved session, continuing unauthenticated")
		}
		return session.Credentials{}, nil
	}
	return creds, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorEnvelope{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
