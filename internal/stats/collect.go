package stats

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devcard/github-activity/internal/githubapi"
	"go.uber.org/zap"
)

// Collection is the outcome of commit collection across the selected
// repositories.
type Collection struct {
	Records        []CommitRecord
	EstimatedTotal int
	RateLimited    bool
}

type collector struct {
	client     HostingClient
	credential Credential
	logger     *zap.Logger
	sleep      func(time.Duration)

	orgRepoLimit        int
	personalRepoLimit   int
	maxRepos            int
	waveSize            int
	waveDelay           time.Duration
	orgCommitPages      int
	personalCommitPages int

	pageEstimateMultiplier    int
	matchedEstimateMultiplier int
}

// collectTarget is a selected repository tagged with the partition it came
// from. The partition, not the owner's account type, decides the author
// filter and the page depth: a collaborator repository owned by another user
// sits in the organization partition.
type collectTarget struct {
	repo         RepositoryRef
	organization bool
}

// collect fetches commit history for the most recently updated repositories,
// in fixed-size waves with a pause between them so that bursty accounts do
// not blow through secondary rate limits. Once any repository reports a rate
// limit, no further waves are scheduled.
func (c *collector) collect(ctx context.Context, handle string, personal, organization []RepositoryRef) Collection {
	selected := c.selectRepos(personal, organization)

	var (
		mu          sync.Mutex
		records     []CommitRecord
		estimated   int
		rateLimited atomic.Bool
	)

	for start := 0; start < len(selected); start += c.waveSize {
		if rateLimited.Load() {
			break
		}
		end := start + c.waveSize
		if end > len(selected) {
			end = len(selected)
		}

		var wg sync.WaitGroup
		for _, target := range selected[start:end] {
			wg.Add(1)
			go func(target collectTarget) {
				defer wg.Done()
				repoRecords, repoEstimate, limited := c.collectRepoSafe(ctx, handle, target)
				mu.Lock()
				records = append(records, repoRecords...)
				estimated += repoEstimate
				mu.Unlock()
				if limited {
					rateLimited.Store(true)
				}
			}(target)
		}
		wg.Wait()

		if end < len(selected) && !rateLimited.Load() {
			c.sleep(c.waveDelay)
		}
	}

	return Collection{
		Records:        records,
		EstimatedTotal: estimated,
		RateLimited:    rateLimited.Load(),
	}
}

// selectRepos picks the repositories worth fetching commits from: the most
// recently updated organization repositories first, then the most recently
// updated personal ones, capped overall.
func (c *collector) selectRepos(personal, organization []RepositoryRef) []collectTarget {
	byRecency := func(repos []RepositoryRef) {
		sort.SliceStable(repos, func(i, j int) bool {
			return repos[i].LastUpdatedAt.After(repos[j].LastUpdatedAt)
		})
	}

	org := append([]RepositoryRef(nil), organization...)
	own := append([]RepositoryRef(nil), personal...)
	byRecency(org)
	byRecency(own)

	if len(org) > c.orgRepoLimit {
		org = org[:c.orgRepoLimit]
	}
	if len(own) > c.personalRepoLimit {
		own = own[:c.personalRepoLimit]
	}

	selected := make([]collectTarget, 0, len(org)+len(own))
	for _, repo := range org {
		selected = append(selected, collectTarget{repo: repo, organization: true})
	}
	for _, repo := range own {
		selected = append(selected, collectTarget{repo: repo})
	}
	if len(selected) > c.maxRepos {
		selected = selected[:c.maxRepos]
	}
	return selected
}

// collectRepoSafe contains a panic from one repository so a single bad
// response cannot take down the whole wave.
func (c *collector) collectRepoSafe(ctx context.Context, handle string, target collectTarget) (records []CommitRecord, estimate int, limited bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("commit collection panicked",
				zap.String("repo", target.repo.FullName),
				zap.Any("panic", r))
			records, estimate, limited = nil, 0, false
		}
	}()
	return c.collectRepo(ctx, handle, target)
}

// collectRepo pages one repository's commit history, keeping commits that
// look authored by the handle. The estimate prefers the paginator's reported
// last page over the matched count, since the former reflects total history
// rather than the sampled slice.
func (c *collector) collectRepo(ctx context.Context, handle string, target collectTarget) ([]CommitRecord, int, bool) {
	repo := target.repo
	owner, name := splitFullName(repo.FullName)
	if owner == "" || name == "" {
		return nil, 0, false
	}

	// The server-side author filter is only reliable on personal-partition
	// repositories and only when authenticated; organization-partition
	// repositories get the unfiltered listing plus the local heuristic.
	author := ""
	if !target.organization && c.credential.Token != "" {
		author = handle
	}

	maxPages := c.personalCommitPages
	if target.organization {
		maxPages = c.orgCommitPages
	}

	var (
		records  []CommitRecord
		lastPage int
	)
	for page := 1; page <= maxPages; page++ {
		result, err := c.client.ListRepoCommits(ctx, owner, name, page, author)
		if err != nil {
			c.logger.Debug("commit page failed",
				zap.String("repo", repo.FullName),
				zap.Int("page", page),
				zap.Error(err))
			break
		}

		if result.Status == githubapi.EndpointStatusForbidden {
			if githubapi.ClassifyForbidden(result.Metadata.LastRateHeaders) == githubapi.ForbiddenRateLimited {
				return records, c.estimate(records, lastPage), true
			}
			break
		}
		if result.Status != githubapi.EndpointStatusOK {
			break
		}

		if result.LastPage > lastPage {
			lastPage = result.LastPage
		}
		// The heuristic also runs on server-filtered listings as a safety
		// net against mislinked author metadata.
		for _, commit := range result.Commits {
			if matchesIdentity(handle, commit) {
				records = append(records, commitRecordFromAPI(commit))
			}
		}
		if len(result.Commits) < githubapi.PageSize || !result.HasNext {
			break
		}
	}

	return records, c.estimate(records, lastPage), false
}

func (c *collector) estimate(records []CommitRecord, lastPage int) int {
	if lastPage > 0 {
		return lastPage * githubapi.PageSize * c.pageEstimateMultiplier
	}
	if len(records) > 0 {
		return len(records) * c.matchedEstimateMultiplier
	}
	return 0
}

// matchesIdentity reports whether a commit looks authored by handle. GitHub
// only links a commit to an account when the email is registered, so name
// and email are consulted as fallbacks.
func matchesIdentity(handle string, commit githubapi.Commit) bool {
	h := strings.ToLower(strings.TrimSpace(handle))
	if h == "" {
		return false
	}
	if strings.ToLower(commit.AuthorLogin) == h {
		return true
	}
	if strings.ToLower(strings.TrimSpace(commit.AuthorName)) == h {
		return true
	}
	email := strings.ToLower(commit.AuthorEmail)
	if email == "" {
		return false
	}
	if local, _, ok := strings.Cut(email, "@"); ok && local == h {
		return true
	}
	return strings.Contains(email, h)
}

func splitFullName(fullName string) (owner, name string) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok {
		return "", ""
	}
	return owner, name
}
