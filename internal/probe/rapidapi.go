package probe

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/tdh8316/handlecheck/internal/session"
)

const DefaultRapidAPIURL = "https://instagram-api-fast-reliable-data-scraper.p.rapidapi.com/user_profile?username={}"

// RapidAPI queries a third-party profile proxy keyed by an API key.
type RapidAPI struct {
	client *resty.Client
	url    string
	host   string
}

func NewRapidAPI(client *resty.Client, urlTemplate string) (*RapidAPI, error) {
	if urlTemplate == "" {
		urlTemplate = DefaultRapidAPIURL
	}
	u, err := url.Parse(strings.ReplaceAll(urlTemplate, "{}", "x"))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "parse rapidapi url")
	}
	return &RapidAPI{client: client, url: urlTemplate, host: u.Host}, nil
}

func (r *RapidAPI) Method() Method { return MethodRapidAPI }

func (r *RapidAPI) Available(creds session.Credentials) bool {
	return creds.APIKey != ""
}

// UsesSession is false: a 401 here is about the api key.
func (r *RapidAPI) UsesSession() bool { return false }

func (r *RapidAPI) Lookup(ctx context.Context, handle string, creds session.Credentials) (Profile, error) {
	if creds.APIKey == "" {
		return Profile{}, pkgerrors.Wrap(ErrAuthRequired, "missing api key")
	}

	headers := map[string]string{
		"X-RapidAPI-Key":  creds.APIKey,
		"X-RapidAPI-Host": r.host,
	}
	// the api key travels in headers; cookies are meaningless to the proxy
	body, err := fetch(ctx, r.client, strings.ReplaceAll(r.url, "{}", url.QueryEscape(handle)), headers, session.Credentials{})
	if err != nil {
		return Profile{}, err
	}

	user := gjson.GetBytes(body, "data")
	if !user.Exists() || user.Type == gjson.Null || !user.IsObject() {
		return Profile{}, pkgerrors.Wrap(ErrTransient, "profile data unavailable (rate limit or temporary block)")
	}

	id := user.Get("pk").String()
	if id == "" {
		id = user.Get("id").String()
	}
	return Profile{
		ID:        id,
		FullName:  user.Get("full_name").String(),
		Followers: optInt(user.Get("follower_count")),
		Following: optInt(user.Get("following_count")),
		Private:   optBool(user.Get("is_private")),
		Verified:  optBool(user.Get("is_verified")),
	}, nil
}
