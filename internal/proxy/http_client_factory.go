package proxy

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy" // For SOCKS5
)

// DefaultHTTPClientFactory builds outbound clients that optionally route
// through a single upstream proxy.
type DefaultHTTPClientFactory struct {
	proxyURL string
	timeout  time.Duration
}

// NewHTTPClientFactory creates a factory. An empty proxyURL means direct
// connections (still honouring HTTP_PROXY and friends from the environment).
func NewHTTPClientFactory(proxyURL string, timeout time.Duration) *DefaultHTTPClientFactory {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &DefaultHTTPClientFactory{proxyURL: proxyURL, timeout: timeout}
}

// ProxyURL returns the configured upstream proxy with any password masked, or "".
func (f *DefaultHTTPClientFactory) ProxyURL() string {
	u, err := url.Parse(f.proxyURL)
	if err != nil {
		return f.proxyURL
	}
	return u.Redacted()
}

// GetClient returns an HTTP client configured with the upstream proxy.
func (f *DefaultHTTPClientFactory) GetClient() (*http.Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if f.proxyURL != "" {
		proxyURL, err := url.Parse(f.proxyURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proxy URL %s: %w", f.proxyURL, err)
		}

		switch proxyURL.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(proxyURL)
		case "socks5":
			dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("failed to create SOCKS5 dialer from %s: %w", proxyURL.Redacted(), err)
			}
			contextDialer, ok := dialer.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("SOCKS5 dialer does not implement proxy.ContextDialer")
			}
			transport.DialContext = contextDialer.DialContext
			transport.Proxy = nil // SOCKS5 is handled by the custom dialer
		default:
			return nil, fmt.Errorf("unsupported proxy type: %s", proxyURL.Scheme)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   f.timeout,
	}, nil
}
