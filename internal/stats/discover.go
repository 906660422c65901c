package stats

import (
	"context"
	"strings"

	"github.com/devcard/github-activity/internal/githubapi"
	"go.uber.org/zap"
)

// Discovery is the outcome of repository discovery: the deduplicated set of
// repositories visible to the identity plus any degradation signals seen
// along the way.
type Discovery struct {
	Repos           []RepositoryRef
	RateLimited     bool
	PermissionIssue bool
}

type discoverer struct {
	client       HostingClient
	maxUserPages int
	maxOrgPages  int
	logger       *zap.Logger
}

// discover pages the identity's own/collaborator listing and merges in each
// organization's repositories, deduplicating by full name. A single failing
// page or organization contributes nothing but never aborts discovery; the
// one hard stop is a rate limit before anything was collected.
func (d *discoverer) discover(ctx context.Context, identity Identity) Discovery {
	discovery := Discovery{}
	seen := make(map[string]struct{})
	handle := strings.TrimSpace(identity.Handle)

	for page := 1; page <= d.maxUserPages; page++ {
		result, err := d.client.ListUserRepos(ctx, handle, page, false)
		if err != nil {
			d.logger.Debug("user repo page failed", zap.Int("page", page), zap.Error(err))
			break
		}

		if result.Status == githubapi.EndpointStatusUnprocessable {
			// One retry with the optional filters dropped; some accounts
			// reject the filtered listing.
			result, err = d.client.ListUserRepos(ctx, handle, page, true)
			if err != nil {
				break
			}
		}

		if result.Status == githubapi.EndpointStatusForbidden {
			if githubapi.ClassifyForbidden(result.Metadata.LastRateHeaders) == githubapi.ForbiddenMissingScope {
				discovery.PermissionIssue = true
				break
			}
			if len(discovery.Repos) == 0 {
				return Discovery{RateLimited: true}
			}
			discovery.RateLimited = true
			break
		}
		if result.Status != githubapi.EndpointStatusOK {
			break
		}

		addRepos(&discovery, seen, result.Repos)
		if len(result.Repos) < githubapi.PageSize || !result.HasNext {
			break
		}
	}

	listing := resolveOrganizations(ctx, d.client, handle, d.maxUserPages, d.logger)
	discovery.RateLimited = discovery.RateLimited || listing.RateLimited
	discovery.PermissionIssue = discovery.PermissionIssue || listing.PermissionIssue

	for _, org := range listing.Orgs {
		if d.discoverOrgRepos(ctx, org, &discovery, seen) {
			// Rate limited mid-organization: keep what we have and stop
			// hitting the API for the remaining organizations.
			break
		}
	}

	return discovery
}

// discoverOrgRepos merges one organization's repositories into the set and
// reports whether a rate limit was hit.
func (d *discoverer) discoverOrgRepos(ctx context.Context, org string, discovery *Discovery, seen map[string]struct{}) bool {
	for page := 1; page <= d.maxOrgPages; page++ {
		result, err := d.client.ListOrgRepos(ctx, org, page)
		if err != nil {
			d.logger.Debug("org repo page failed", zap.String("org", org), zap.Int("page", page), zap.Error(err))
			return false
		}

		if result.Status == githubapi.EndpointStatusForbidden {
			if githubapi.ClassifyForbidden(result.Metadata.LastRateHeaders) == githubapi.ForbiddenRateLimited {
				discovery.RateLimited = true
				return true
			}
			return false
		}
		if result.Status != githubapi.EndpointStatusOK {
			return false
		}

		addRepos(discovery, seen, result.Repos)
		if len(result.Repos) < githubapi.PageSize || !result.HasNext {
			return false
		}
	}
	return false
}

func addRepos(discovery *Discovery, seen map[string]struct{}, repos []githubapi.Repository) {
	for _, repo := range repos {
		if repo.FullName == "" {
			continue
		}
		if _, exists := seen[repo.FullName]; exists {
			continue
		}
		seen[repo.FullName] = struct{}{}
		discovery.Repos = append(discovery.Repos, repositoryRefFromAPI(repo))
	}
}

// partitionRepos splits the discovered set into personal repositories (owned
// by the identity, or with no distinct owner) and organization repositories.
func partitionRepos(repos []RepositoryRef, handle string) (personal, organization []RepositoryRef) {
	for _, repo := range repos {
		if repo.OwnerLogin == "" || strings.EqualFold(repo.OwnerLogin, handle) {
			personal = append(personal, repo)
			continue
		}
		organization = append(organization, repo)
	}
	return personal, organization
}
