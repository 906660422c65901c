// Package stats computes a contributor's hosting activity statistics from
// the upstream paginated REST API: repository discovery across personal and
// organization listings, bounded commit collection with heuristic author
// matching, time-windowed aggregation, and TTL caching of good results.
package stats

import (
	"context"
	"time"

	"github.com/devcard/github-activity/internal/githubapi"
)

// Identity is the external handle plus optional credential being profiled.
// Immutable for the duration of one GetStats call.
type Identity struct {
	Handle      string
	CallerToken string
}

// RepositoryRef is one discovered repository, keyed by FullName.
type RepositoryRef struct {
	FullName        string
	OwnerLogin      string
	OwnerIsOrg      bool
	Private         bool
	PrimaryLanguage string
	LastUpdatedAt   time.Time
}

// CommitRecord is one collected commit attributed to the identity. The raw
// authored-at string is kept so the aggregator can reject unparseable or
// future-dated timestamps in one place.
type CommitRecord struct {
	AuthoredAt  string
	AuthorLogin string
	AuthorName  string
	AuthorEmail string
}

// CommitPattern counts commits in rolling windows ending now, inclusive.
type CommitPattern struct {
	LastWeek  int `json:"last_week"`
	LastMonth int `json:"last_month"`
	LastYear  int `json:"last_year"`
}

// DayActivity is one daily histogram bucket.
type DayActivity struct {
	Date        string `json:"date"`
	CommitCount int    `json:"commit_count"`
}

// Result is the statistics snapshot returned to callers. It is always fully
// populated; missing data shows up as zeros and empty maps, and degraded
// computations are signaled through the two flags rather than errors.
type Result struct {
	TotalCommits       int            `json:"total_commits"`
	TotalRepositories  int            `json:"total_repositories"`
	PublicRepositories int            `json:"public_repositories"`
	Languages          map[string]int `json:"languages"`
	CommitPattern      CommitPattern  `json:"commit_pattern"`
	RecentActivity     []DayActivity  `json:"recent_activity"`
	RateLimited        bool           `json:"rate_limited"`
	PermissionIssue    bool           `json:"permission_issue"`
}

// HostingClient is the typed hosting API surface the engine consumes.
type HostingClient interface {
	ListUserRepos(ctx context.Context, user string, page int, reduced bool) (githubapi.RepoPage, error)
	ListUserOrgs(ctx context.Context, user string, page int) (githubapi.OrgPage, error)
	ListOrgRepos(ctx context.Context, org string, page int) (githubapi.RepoPage, error)
	ListRepoCommits(ctx context.Context, owner, repo string, page int, author string) (githubapi.CommitPage, error)
}

// ClientBuilder builds a hosting client for one presented credential.
type ClientBuilder interface {
	ClientFor(token string) (HostingClient, error)
}

func repositoryRefFromAPI(repo githubapi.Repository) RepositoryRef {
	ref := RepositoryRef{
		FullName:        repo.FullName,
		OwnerLogin:      repo.OwnerLogin,
		OwnerIsOrg:      repo.OwnerIsOrg,
		Private:         repo.Private,
		PrimaryLanguage: repo.Language,
	}
	if parsed, err := time.Parse(time.RFC3339, repo.UpdatedAt); err == nil {
		ref.LastUpdatedAt = parsed.UTC()
	}
	return ref
}

func commitRecordFromAPI(commit githubapi.Commit) CommitRecord {
	return CommitRecord{
		AuthoredAt:  commit.AuthoredAt,
		AuthorLogin: commit.AuthorLogin,
		AuthorName:  commit.AuthorName,
		AuthorEmail: commit.AuthorEmail,
	}
}
