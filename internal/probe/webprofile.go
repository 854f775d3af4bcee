package probe

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/tdh8316/handlecheck/internal/session"
)

const (
	DefaultWebProfileURL = "https://i.instagram.com/api/v1/users/web_profile_info/?username={}"
	DefaultWebAppID      = "936619743392459"
)

// WebProfile queries the first-party web_profile_info endpoint. It works
// anonymously for a while and more reliably with a session cookie.
type WebProfile struct {
	client *resty.Client
	url    string
	appID  string
}

func NewWebProfile(client *resty.Client, urlTemplate, appID string) *WebProfile {
	if urlTemplate == "" {
		urlTemplate = DefaultWebProfileURL
	}
	if appID == "" {
		appID = DefaultWebAppID
	}
	return &WebProfile{client: client, url: urlTemplate, appID: appID}
}

func (w *WebProfile) Method() Method { return MethodWebProfile }

func (w *WebProfile) Available(session.Credentials) bool { return true }

func (w *WebProfile) UsesSession() bool { return true }

func (w *WebProfile) Lookup(ctx context.Context, handle string, creds session.Credentials) (Profile, error) {
	headers := map[string]string{
		"X-IG-App-ID":      w.appID,
		"X-Requested-With": "XMLHttpRequest",
	}
	if creds.CSRFToken != "" {
		headers["X-CSRFToken"] = creds.CSRFToken
	}

	body, err := fetch(ctx, w.client, strings.ReplaceAll(w.url, "{}", url.QueryEscape(handle)), headers, creds)
	if err != nil {
		return Profile{}, err
	}

	if loginWall(body) {
		return Profile{}, ErrAuthRequired
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return Profile{}, missingField("data")
	}
	user := data.Get("user")
	if !user.Exists() || user.Type == gjson.Null {
		return Profile{}, ErrNotFound
	}

	return graphUser(user), nil
}

// graphUser reads the user object shared by web_profile_info and the ?__a=1 page.
func graphUser(user gjson.Result) Profile {
	return Profile{
		ID:        user.Get("id").String(),
		FullName:  user.Get("full_name").String(),
		Followers: optInt(user.Get("edge_followed_by.count")),
		Following: optInt(user.Get("edge_follow.count")),
		Private:   optBool(user.Get("is_private")),
		Verified:  optBool(user.Get("is_verified")),
	}
}
