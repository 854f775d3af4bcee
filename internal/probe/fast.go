package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tdh8316/handlecheck/internal/data"
	"github.com/tdh8316/handlecheck/internal/httpx"
)

// Policy holds the deliberate heuristics both probes apply.
type Policy struct {
	// AssumeLiveOnAmbiguous200 decides a 200 page that carries no marker at
	// all: Taken when set, Available otherwise.
	AssumeLiveOnAmbiguous200 bool
	// UnauthorizedAsAvailable reads a deep-lookup auth failure as "not live
	// yet" instead of an error.
	UnauthorizedAsAvailable bool
}

// DefaultMaxBodyBytes bounds how much of any response body is read.
const DefaultMaxBodyBytes int64 = 2 << 20

type FastConfig struct {
	Policy       Policy
	MaxBodyBytes int64
	// UserAgent is called once per request; defaults to httpx.RandomUserAgent.
	UserAgent func() string
}

// Fast fetches the public profile page and classifies it.
type Fast struct {
	client       *resty.Client
	site         data.SiteData
	notAvailable []string
	cfg          FastConfig
}

func NewFast(client *resty.Client, site data.SiteData, cfg FastConfig) (*Fast, error) {
	markers, err := site.NotAvailableMarkers()
	if err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == nil {
		cfg.UserAgent = httpx.RandomUserAgent
	}
	return &Fast{client: client, site: site, notAvailable: markers, cfg: cfg}, nil
}

func (f *Fast) Probe(ctx context.Context, handle string) Result {
	ctx, span := tracer.Start(ctx, "probe:fast")
	defer span.End()

	res := f.probe(ctx, handle)
	span.SetAttributes(
		attribute.String("handle", handle),
		attribute.String("status", string(res.Status)),
	)
	if res.Status == StatusError {
		span.SetStatus(codes.Error, res.Detail)
	}
	return res
}

func (f *Fast) probe(ctx context.Context, handle string) Result {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("User-Agent", f.cfg.UserAgent()).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		Get(f.site.ProbeURL(handle))
	if err != nil {
		return Result{Username: handle, Status: StatusError, Method: MethodFast, Kind: KindTransient, Detail: err.Error()}
	}
	raw := resp.RawBody()
	defer raw.Close()

	var body string
	if resp.StatusCode() == http.StatusOK {
		b, err := io.ReadAll(io.LimitReader(raw, f.cfg.MaxBodyBytes))
		if err != nil {
			return Result{Username: handle, Status: StatusError, Method: MethodFast, Kind: KindTransient, Detail: "read body: " + err.Error()}
		}
		body = string(b)
	}

	return f.classify(handle, resp.StatusCode(), body, resp.Header().Get("Location"))
}

func (f *Fast) classify(handle string, status int, body, location string) Result {
	res := Result{Username: handle, Method: MethodFast}

	switch {
	case status == http.StatusNotFound:
		res.Status, res.Kind = StatusAvailable, KindNotFound
		res.Detail = "not found"

	case status == http.StatusOK && containsAny(body, f.notAvailable):
		res.Status, res.Kind = StatusAvailable, KindNotFound
		res.Detail = "page not available"

	case status == http.StatusOK && f.hasIdentifyingMarker(handle, body):
		res.Status, res.Kind = StatusTaken, KindExists
		res.Detail = "profile page found"
		if title := pageTitle(body); title != "" {
			res.Detail += ": " + title
		}

	case status == http.StatusOK:
		res.Kind = KindAmbiguous
		if f.cfg.Policy.AssumeLiveOnAmbiguous200 {
			res.Status = StatusTaken
			res.Detail = "no marker on page, assumed live"
		} else {
			res.Status = StatusAvailable
			res.Detail = "no marker on page, assumed available"
		}

	case isRedirect(status):
		res.Status, res.Kind = StatusUncertain, KindAmbiguous
		res.Detail = fmt.Sprintf("redirected (HTTP %d)", status)
		if location != "" {
			res.Detail += " to " + location
		}

	default:
		res.Status, res.Kind = StatusError, KindTransient
		res.Detail = fmt.Sprintf("unexpected HTTP %d", status)
	}

	return res
}

func (f *Fast) hasIdentifyingMarker(handle, body string) bool {
	if containsAny(body, f.site.PresenceMsg) {
		return true
	}
	return f.site.MatchUsername && handle != "" &&
		strings.Contains(strings.ToLower(body), strings.ToLower(handle))
}

func containsAny(body string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(body, m) {
			return true
		}
	}
	return false
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func pageTitle(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
