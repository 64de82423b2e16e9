package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/Laisky/llm-gateway/common/logger"
	netutil "github.com/Laisky/llm-gateway/common/network"
	"github.com/Laisky/llm-gateway/internal/gatewayconfig"
)

// HTTPClient is the default outbound client used for relay requests.
var HTTPClient *http.Client

// ImpatientHTTPClient is a short-timeout client for quick health checks or metadata requests.
var ImpatientHTTPClient *http.Client

// UserContentRequestHTTPClient fetches user-supplied resources with strict limits to reduce SSRF/DoS risk.
var UserContentRequestHTTPClient *http.Client

// buildUserContentDialContext enforces that outbound connections only target public IPs.
// Parameters: proxyURL is the optional proxy address; returns a DialContext function for http.Transport.
func buildUserContentDialContext(proxyURL *url.URL) func(ctx context.Context, networkName string, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	proxyHost := ""
	if proxyURL != nil {
		proxyHost = strings.ToLower(proxyURL.Hostname())
	}

	return func(ctx context.Context, networkName string, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, errors.Wrapf(err, "split host and port: %s", addr)
		}

		if proxyHost != "" && strings.EqualFold(host, proxyHost) {
			return dialer.DialContext(ctx, networkName, addr)
		}

		if ip := net.ParseIP(host); ip != nil {
			if netutil.IsForbiddenIP(ip) {
				return nil, errors.Errorf("blocked private address: %s", host)
			}
			return dialer.DialContext(ctx, networkName, net.JoinHostPort(ip.String(), port))
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve host: %s", host)
		}
		if len(ips) == 0 {
			return nil, errors.Errorf("no IPs found for host: %s", host)
		}

		for _, addr := range ips {
			if netutil.IsForbiddenIP(addr.IP) {
				return nil, errors.Errorf("blocked private address for host: %s", host)
			}
		}

		return dialer.DialContext(ctx, networkName, net.JoinHostPort(ips[0].IP.String(), port))
	}
}

// Init builds the shared HTTP clients from the current gateway config
// snapshot's Proxy setting. Called once at startup after gatewayconfig.Load;
// providers that need a per-cookie cookie jar build their own short-lived
// client via NewJarClient instead of using the shared HTTPClient.
func Init() {
	cfg := gatewayconfig.Current()

	// Create a transport with HTTP/2 disabled, a workaround for
	// workaround for stream errors seen against some upstreams.
	createTransport := func(proxyURL *url.URL, restrictExternal bool) *http.Transport {
		transport := &http.Transport{
			TLSNextProto: make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
		}
		if proxyURL != nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
		if restrictExternal {
			transport.DialContext = buildUserContentDialContext(proxyURL)
		}
		return transport
	}

	var proxyURL *url.URL
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			logger.Logger.Fatal(fmt.Sprintf("proxy set but invalid: %s", cfg.Proxy))
		}
		proxyURL = u
		logger.Logger.Info("using egress proxy for upstream provider calls", zap.String("proxy", cfg.Proxy))
	}

	UserContentRequestHTTPClient = &http.Client{
		Transport: createTransport(proxyURL, true),
		Timeout:   30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("stopped after 5 redirects")
			}
			if _, err := netutil.ValidateExternalURL(req.Context(), req.URL.String()); err != nil {
				return errors.Wrap(err, "redirect target not allowed")
			}
			return nil
		},
	}

	transport := createTransport(proxyURL, false)
	HTTPClient = &http.Client{Transport: transport}
	ImpatientHTTPClient = &http.Client{Timeout: 5 * time.Second, Transport: transport}
}

// NewJarClient builds a dedicated HTTP client sharing the egress proxy
// configuration but carrying its own cookie jar, for the Claude Web
// provider's per-request session cookie.
func NewJarClient(jar http.CookieJar) *http.Client {
	cfg := gatewayconfig.Current()
	transport := &http.Transport{
		TLSNextProto: make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
	}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Transport: transport, Jar: jar}
}
