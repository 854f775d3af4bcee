package config

import (
	"fmt"
	"strings"

	"github.com/tdh8316/handlecheck/internal/httpx"
	"github.com/tdh8316/handlecheck/internal/probe"
	"github.com/tdh8316/handlecheck/internal/resolve"
)

func (c *Config) ClientConfig() httpx.ClientConfig {
	proxyURL := c.HTTP.Proxy
	if proxyURL == "" && c.HTTP.Tor {
		proxyURL = httpx.DefaultTorProxyURL
	}
	return httpx.ClientConfig{
		Timeout:    c.Timeout(),
		RetryCount: c.HTTP.Retries,
		ProxyURL:   proxyURL,
	}
}

func (c *Config) Policy() probe.Policy {
	return probe.Policy{
		AssumeLiveOnAmbiguous200: c.AssumeLiveOnAmbiguous200(),
		UnauthorizedAsAvailable:  c.Probe.UnauthorizedAsAvailable,
	}
}

func (c *Config) Pacing() resolve.Pacing {
	return resolve.Pacing{
		Fast: resolve.Range{Min: ms(c.Resolve.FastDelayMinMS), Max: ms(c.Resolve.FastDelayMaxMS)},
		Deep: resolve.Range{Min: ms(c.Resolve.DeepDelayMinMS), Max: ms(c.Resolve.DeepDelayMaxMS)},
	}
}

func (c *Config) DeepBackend() string {
	return strings.ToLower(c.Deep.Backend)
}

func (c *Config) SessionStore() string {
	return strings.ToLower(c.Session.Store)
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
