package probe

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tdh8316/handlecheck/internal/httpx"
	"github.com/tdh8316/handlecheck/internal/session"
)

// Source is a profile-data backend.
type Source interface {
	Method() Method
	// Available reports whether a lookup can be attempted with creds.
	Available(creds session.Credentials) bool
	// Lookup returns the profile, or an error matching ErrNotFound,
	// ErrAuthRequired or ErrTransient.
	Lookup(ctx context.Context, handle string, creds session.Credentials) (Profile, error)
	// UsesSession reports whether Lookup sends the login session, so that an
	// auth failure can be blamed on it.
	UsesSession() bool
}

// Deep maps a Source lookup onto a Result.
type Deep struct {
	source Source
	policy Policy
}

func NewDeep(source Source, policy Policy) *Deep {
	return &Deep{source: source, policy: policy}
}

func (d *Deep) Available(creds session.Credentials) bool {
	return d != nil && d.source != nil && d.source.Available(creds)
}

// SessionRejected reports whether res means the login session in creds was
// sent and refused.
func (d *Deep) SessionRejected(res Result, creds session.Credentials) bool {
	return res.Kind == KindAuthRequired && res.Status == StatusError &&
		d.source.UsesSession() && creds.Authenticated()
}

func (d *Deep) Probe(ctx context.Context, handle string, creds session.Credentials) Result {
	ctx, span := tracer.Start(ctx, "probe:deep")
	defer span.End()
	span.SetAttributes(
		attribute.String("handle", handle),
		attribute.String("method", string(d.source.Method())),
	)

	profile, err := d.source.Lookup(ctx, handle, creds)
	res := d.result(handle, profile, err)
	if res.Status == StatusError {
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Detail)
	}
	return res
}

func (d *Deep) result(handle string, profile Profile, err error) Result {
	res := Result{Username: handle, Method: d.source.Method()}

	switch {
	case err == nil:
		res.Status, res.Kind = StatusTaken, KindExists
		res.Detail = "profile found"
		res.Profile = &profile

	case errors.Is(err, ErrNotFound):
		res.Status, res.Kind = StatusAvailable, KindNotFound
		res.Detail = "profile does not exist"

	case errors.Is(err, ErrAuthRequired) && d.policy.UnauthorizedAsAvailable:
		res.Status, res.Kind = StatusAvailable, KindAuthRequired
		res.Detail = "unauthorized, treated as not live yet"

	case errors.Is(err, ErrAuthRequired):
		res.Status, res.Kind = StatusError, KindAuthRequired
		res.Detail = "login required"

	default:
		res.Status, res.Kind = StatusError, KindTransient
		res.Detail = err.Error()
	}

	return res
}

// statusError maps a non-200 answer from a profile source onto the error taxonomy.
func statusError(status int, location string) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrAuthRequired
	case isRedirect(status):
		// a profile endpoint only redirects to the login wall
		return pkgerrors.Wrapf(ErrAuthRequired, "redirected to %q", location)
	case status == http.StatusTooManyRequests:
		return pkgerrors.Wrap(ErrTransient, "rate limited (HTTP 429)")
	default:
		return pkgerrors.Wrapf(ErrTransient, "HTTP %d", status)
	}
}

// fetch GETs a JSON document and returns at most DefaultMaxBodyBytes of it.
func fetch(ctx context.Context, client *resty.Client, rawURL string, headers map[string]string, creds session.Credentials) ([]byte, error) {
	req := client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("User-Agent", httpx.RandomUserAgent()).
		SetHeader("Accept", "application/json").
		SetHeaders(headers)
	if cookies := creds.HTTPCookies(); len(cookies) > 0 {
		req.SetCookies(cookies)
	}

	resp, err := req.Get(rawURL)
	if err != nil {
		return nil, pkgerrors.Wrap(ErrTransient, err.Error())
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, statusError(resp.StatusCode(), resp.Header().Get("Location"))
	}

	body, err := io.ReadAll(io.LimitReader(raw, DefaultMaxBodyBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrTransient, "read body: %v", err)
	}
	if int64(len(body)) > DefaultMaxBodyBytes {
		return nil, pkgerrors.Wrapf(ErrTransient, "response larger than %d bytes", DefaultMaxBodyBytes)
	}
	if !gjson.ValidBytes(body) {
		return nil, pkgerrors.Wrap(ErrTransient, "malformed response")
	}
	return body, nil
}

// loginWall reports the JSON shapes Instagram answers with instead of a 401.
func loginWall(body []byte) bool {
	return gjson.GetBytes(body, "require_login").Bool() ||
		gjson.GetBytes(body, "message").String() == "login_required"
}

func optInt(r gjson.Result) *int64 {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	v := r.Int()
	return &v
}

func optBool(r gjson.Result) *bool {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	v := r.Bool()
	return &v
}

func missingField(name string) error {
	return pkgerrors.Wrapf(ErrTransient, "missing %s in response", name)
}
