package stats

import (
	"fmt"

	"github.com/devcard/github-activity/internal/cache"
	"github.com/devcard/github-activity/internal/config"
	"github.com/devcard/github-activity/internal/githubapi"
	"go.uber.org/zap"
)

// githubClientBuilder adapts the concrete githubapi factory to the
// ClientBuilder interface consumed by the orchestrator.
type githubClientBuilder struct {
	factory *githubapi.ClientFactory
}

func (b githubClientBuilder) ClientFor(token string) (HostingClient, error) {
	return b.factory.ClientFor(token)
}

// NewClientFactory builds the per-credential hosting client factory from
// application configuration, including the optional App installation client.
func NewClientFactory(cfg *config.Config) (*githubapi.ClientFactory, error) {
	factoryCfg := githubapi.FactoryConfig{
		APIBaseURL: cfg.GitHub.APIBaseURL,
		Timeout:    cfg.GitHub.RequestTimeout,
		Retry: githubapi.RetryConfig{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxBackoff:     cfg.Retry.MaxBackoff,
		},
		RatePolicy: githubapi.RateLimitPolicy{
			MinRemainingThreshold: cfg.RateLimit.MinRemainingThreshold,
			MinResetBuffer:        cfg.RateLimit.MinResetBuffer,
			SecondaryLimitBackoff: cfg.RateLimit.SecondaryLimitBackoff,
		},
	}

	if cfg.GitHub.App.Enabled {
		appClient, err := githubapi.NewInstallationHTTPClient(githubapi.InstallationAuthConfig{
			AppID:          cfg.GitHub.App.AppID,
			InstallationID: cfg.GitHub.App.InstallationID,
			PrivateKeyPath: cfg.GitHub.App.PrivateKeyPath,
			Timeout:        cfg.GitHub.RequestTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("configure github app credential: %w", err)
		}
		factoryCfg.AppClient = appClient
	}

	return githubapi.NewClientFactory(factoryCfg), nil
}

// NewOrchestratorFromConfig wires an Orchestrator from application
// configuration and a shared hosting client factory.
func NewOrchestratorFromConfig(cfg *config.Config, factory *githubapi.ClientFactory, store cache.Store, logger *zap.Logger) *Orchestrator {
	return NewOrchestrator(githubClientBuilder{factory: factory}, store, logger, OrchestratorConfig{
		FallbackToken: cfg.GitHub.FallbackToken,
		CacheTTL:      cfg.Cache.TTL,
		Collector:     cfg.Collector,
	})
}
