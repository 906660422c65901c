package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// InstallationAuthConfig configures GitHub App installation authentication.
type InstallationAuthConfig struct {
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	Timeout        time.Duration
	BaseTransport  http.RoundTripper
}

// RESTClient wraps the go-github REST client.
type RESTClient struct {
	Client *github.Client
}

// NewTokenHTTPClient creates an HTTP client presenting a static bearer token.
func NewTokenHTTPClient(token string, timeout time.Duration) *http.Client {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(token)})
	client := oauth2.NewClient(context.Background(), source)
	client.Timeout = timeout
	return client
}

// NewAnonymousHTTPClient creates an unauthenticated HTTP client.
func NewAnonymousHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// NewInstallationHTTPClient creates an authenticated HTTP client for one GitHub App installation.
func NewInstallationHTTPClient(cfg InstallationAuthConfig) (*http.Client, error) {
	if cfg.AppID <= 0 {
		return nil, fmt.Errorf("app id must be > 0")
	}
	if cfg.InstallationID <= 0 {
		return nil, fmt.Errorf("installation id must be > 0")
	}
	if strings.TrimSpace(cfg.PrivateKeyPath) == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	baseTransport := cfg.BaseTransport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}

	transport, err := ghinstallation.NewKeyFromFile(baseTransport, cfg.AppID, cfg.InstallationID, cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("create github app transport: %w", err)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, nil
}

// NewRESTClient creates a go-github client with optional API base URL override.
func NewRESTClient(httpClient *http.Client, apiBaseURL string) (*RESTClient, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	client := github.NewClient(httpClient)
	trimmedBaseURL := strings.TrimSpace(apiBaseURL)
	if trimmedBaseURL == "" {
		return &RESTClient{Client: client}, nil
	}

	parsedURL, err := url.Parse(trimmedBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	client.BaseURL = parsedURL
	return &RESTClient{Client: client}, nil
}

// FactoryConfig configures a per-credential hosting client factory.
type FactoryConfig struct {
	APIBaseURL string
	Timeout    time.Duration
	Retry      RetryConfig
	RatePolicy RateLimitPolicy
	// AppClient, when set, is used for calls made without a token.
	AppClient *http.Client
}

// ClientFactory builds hosting clients sharing retry and rate-limit policy,
// one per presented credential.
type ClientFactory struct {
	cfg FactoryConfig
}

// NewClientFactory creates a hosting client factory.
func NewClientFactory(cfg FactoryConfig) *ClientFactory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &ClientFactory{cfg: cfg}
}

// ClientFor builds a hosting client presenting the given token. An empty
// token falls back to the configured App installation client, or anonymous
// access when no App is configured.
func (f *ClientFactory) ClientFor(token string) (*HostingClient, error) {
	httpClient := f.httpClientFor(token)
	requestClient := NewClient(httpClient, f.cfg.Retry, f.cfg.RatePolicy)
	return NewHostingClient(f.cfg.APIBaseURL, requestClient)
}

// HTTPClientFor exposes the credential-resolved HTTP client, used by the
// health probe and scope introspection.
func (f *ClientFactory) HTTPClientFor(token string) *http.Client {
	return f.httpClientFor(token)
}

// APIBaseURL reports the configured API base URL.
func (f *ClientFactory) APIBaseURL() string {
	return f.cfg.APIBaseURL
}

func (f *ClientFactory) httpClientFor(token string) *http.Client {
	if strings.TrimSpace(token) != "" {
		return NewTokenHTTPClient(token, f.cfg.Timeout)
	}
	if f.cfg.AppClient != nil {
		return f.cfg.AppClient
	}
	return NewAnonymousHTTPClient(f.cfg.Timeout)
}
