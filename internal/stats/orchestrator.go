package stats

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/devcard/github-activity/internal/cache"
	"github.com/devcard/github-activity/internal/config"
	"go.uber.org/zap"
)

// OrchestratorConfig tunes one Orchestrator. Zero values fall back to the
// production defaults from the config package.
type OrchestratorConfig struct {
	FallbackToken string
	CacheTTL      time.Duration
	Collector     config.CollectorConfig

	// Now and Sleep are injectable for tests.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Orchestrator runs the full stats pipeline for one identity: cache read,
// discovery, collection, aggregation, and a conditional cache write. It
// never returns an error; every failure mode degrades to a usable result.
type Orchestrator struct {
	clients ClientBuilder
	store   cache.Store
	logger  *zap.Logger
	cfg     OrchestratorConfig
}

// NewOrchestrator creates an Orchestrator backed by the given client builder
// and cache store.
func NewOrchestrator(clients ClientBuilder, store cache.Store, logger *zap.Logger, cfg OrchestratorConfig) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}

	cfg.Collector = cfg.Collector.WithDefaults()

	return &Orchestrator{
		clients: clients,
		store:   store,
		logger:  logger,
		cfg:     cfg,
	}
}

// GetStats computes the statistics snapshot for one identity. It never
// panics and never returns an error: degraded upstream conditions surface
// through the RateLimited and PermissionIssue flags on the result.
func (o *Orchestrator) GetStats(ctx context.Context, identity Identity, forceRefresh bool) Result {
	handle := strings.TrimSpace(identity.Handle)
	identity.Handle = handle
	now := o.cfg.Now().UTC()

	if handle == "" {
		return o.emptyResult(now)
	}

	if !forceRefresh {
		if cached, ok := o.readCache(ctx, handle); ok {
			return cached
		}
	}

	result, records := o.compute(ctx, identity, now)

	if !result.RateLimited && !result.PermissionIssue && records > 0 {
		o.writeCache(ctx, handle, result)
	}
	return result
}

// compute runs discovery, collection, and aggregation. Any panic inside the
// pipeline is absorbed into a basic result built from whatever discovery
// produced before the failure.
func (o *Orchestrator) compute(ctx context.Context, identity Identity, now time.Time) (result Result, records int) {
	var discovery Discovery

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("stats computation panicked",
				zap.String("handle", identity.Handle),
				zap.Any("panic", r))
			result = o.basicResult(now, discovery)
			records = 0
		}
	}()

	credential := SelectCredential(identity, o.cfg.FallbackToken)
	client, err := o.clients.ClientFor(credential.Token)
	if err != nil {
		o.logger.Warn("hosting client unavailable", zap.Error(err))
		return o.emptyResult(now), 0
	}

	col := o.cfg.Collector
	d := &discoverer{
		client:       client,
		maxUserPages: col.MaxUserRepoPages,
		maxOrgPages:  col.MaxOrgRepoPages,
		logger:       o.logger,
	}
	discovery = d.discover(ctx, identity)
	if len(discovery.Repos) == 0 {
		return o.basicResult(now, discovery), 0
	}

	personal, organization := partitionRepos(discovery.Repos, identity.Handle)
	c := &collector{
		client:                    client,
		credential:                credential,
		logger:                    o.logger,
		sleep:                     o.cfg.Sleep,
		orgRepoLimit:              col.OrgRepoLimit,
		personalRepoLimit:         col.PersonalRepoLimit,
		maxRepos:                  col.MaxRepos,
		waveSize:                  col.WaveSize,
		waveDelay:                 col.WaveDelay,
		orgCommitPages:            col.OrgCommitPages,
		personalCommitPages:       col.PersonalCommitPages,
		pageEstimateMultiplier:    col.PageEstimateMultiplier,
		matchedEstimateMultiplier: col.MatchedEstimateMultiplier,
	}
	collection := c.collect(ctx, identity.Handle, personal, organization)

	activity := aggregateActivity(collection.Records, now)

	totalCommits := collection.EstimatedTotal
	if totalCommits == 0 {
		totalCommits = activity.ValidRecords * col.RecordEstimateMultiplier
	}

	result = Result{
		TotalCommits:       totalCommits,
		TotalRepositories:  len(discovery.Repos),
		PublicRepositories: countPublic(discovery.Repos),
		Languages:          languageHistogram(discovery.Repos),
		CommitPattern:      activity.Pattern,
		RecentActivity:     activity.Recent,
		RateLimited:        discovery.RateLimited || collection.RateLimited,
		PermissionIssue:    discovery.PermissionIssue,
	}
	return result, activity.ValidRecords
}

// basicResult is the repository-only snapshot used when commit collection
// never ran. All fields are populated so consumers see the same shape.
func (o *Orchestrator) basicResult(now time.Time, discovery Discovery) Result {
	return Result{
		TotalRepositories:  len(discovery.Repos),
		PublicRepositories: countPublic(discovery.Repos),
		Languages:          languageHistogram(discovery.Repos),
		RecentActivity:     aggregateActivity(nil, now).Recent,
		RateLimited:        discovery.RateLimited,
		PermissionIssue:    discovery.PermissionIssue,
	}
}

func (o *Orchestrator) emptyResult(now time.Time) Result {
	return o.basicResult(now, Discovery{})
}

func (o *Orchestrator) readCache(ctx context.Context, handle string) (Result, bool) {
	if o.store == nil {
		return Result{}, false
	}

	payload, ok, err := o.store.Get(ctx, cacheKey(handle))
	if err != nil {
		o.logger.Debug("cache read failed", zap.String("handle", handle), zap.Error(err))
		return Result{}, false
	}
	if !ok {
		return Result{}, false
	}

	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		o.logger.Debug("cache entry corrupt", zap.String("handle", handle), zap.Error(err))
		return Result{}, false
	}
	return result, true
}

func (o *Orchestrator) writeCache(ctx context.Context, handle string, result Result) {
	if o.store == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		o.logger.Debug("cache encode failed", zap.String("handle", handle), zap.Error(err))
		return
	}
	if err := o.store.Set(ctx, cacheKey(handle), payload, o.cfg.CacheTTL); err != nil {
		o.logger.Debug("cache write failed", zap.String("handle", handle), zap.Error(err))
	}
}

func cacheKey(handle string) string {
	return strings.ToLower(handle)
}

func countPublic(repos []RepositoryRef) int {
	count := 0
	for _, repo := range repos {
		if !repo.Private {
			count++
		}
	}
	return count
}
