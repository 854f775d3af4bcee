package probe

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/tdh8316/handlecheck/internal/data"
	"github.com/tdh8316/handlecheck/internal/session"
)

// GraphQL reads the JSON variant of the profile page (?__a=1). It has been
// unstable historically and usually needs a session.
type GraphQL struct {
	client *resty.Client
	site   data.SiteData
	query  string
}

func NewGraphQL(client *resty.Client, site data.SiteData) *GraphQL {
	return &GraphQL{client: client, site: site, query: "__a=1&__d=dis"}
}

func (g *GraphQL) Method() Method { return MethodGraphQL }

func (g *GraphQL) Available(session.Credentials) bool { return true }

func (g *GraphQL) UsesSession() bool { return true }

func (g *GraphQL) Lookup(ctx context.Context, handle string, creds session.Credentials) (Profile, error) {
	metaURL, err := withQuery(g.site.ProfileURL(handle), g.query)
	if err != nil {
		return Profile{}, err
	}

	headers := map[string]string{
		"Accept":  "application/json, text/plain, */*",
		"Referer": g.site.ProfileURL(handle),
	}
	body, err := fetch(ctx, g.client, metaURL, headers, creds)
	if err != nil {
		return Profile{}, err
	}

	if loginWall(body) {
		return Profile{}, ErrAuthRequired
	}
	// Some responses may be different JSON even with 200.
	user := gjson.GetBytes(body, "graphql.user")
	if !user.Exists() {
		return Profile{}, missingField("graphql.user")
	}
	if user.Type == gjson.Null {
		return Profile{}, ErrNotFound
	}
	return graphUser(user), nil
}

func withQuery(rawURL, rawQuery string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", pkgerrors.Wrap(err, "parse profile url")
	}
	u.RawQuery = rawQuery
	return u.String(), nil
}
