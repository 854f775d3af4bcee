package httpx

import (
	"context"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
)

const DefaultTorProxyURL = "socks5://127.0.0.1:9050"

const (
	DefaultTimeout = 10 * time.Second
	MinTimeout     = 5 * time.Second
	MaxTimeout     = 10 * time.Second
)

// UserAgents is the identity pool a request header is drawn from.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
}

// RandomUserAgent picks one entry of UserAgents.
func RandomUserAgent() string {
	return UserAgents[rand.IntN(len(UserAgents))]
}

type ClientConfig struct {
	Timeout time.Duration
	// RetryCount is the number of extra attempts after a failed one; clamped to 0..1.
	RetryCount int
	// ProxyURL may be socks5:// (tor) or http(s)://.
	ProxyURL string
}

// NewClient builds the client shared by every probe. Redirects are never
// followed: a 3xx is a classification signal, not something to chase.
func NewClient(cfg ClientConfig) (*resty.Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Timeout = min(max(cfg.Timeout, MinTimeout), MaxTimeout)
	cfg.RetryCount = min(max(cfg.RetryCount, 0), 1)

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if cfg.ProxyURL != "" {
		if err := applyProxy(transport, cfg.ProxyURL); err != nil {
			return nil, err
		}
	}

	client := resty.New().
		SetTransport(transport).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))

	return client, nil
}

func applyProxy(transport *http.Transport, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, "parse proxy url")
	}

	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
		return nil
	}

	dialer, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return errors.Wrap(err, "create proxy dialer")
	}

	transport.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
	return nil
}
