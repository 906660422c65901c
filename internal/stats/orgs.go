package stats

import (
	"context"

	"github.com/devcard/github-activity/internal/githubapi"
	"go.uber.org/zap"
)

// OrgListing is the outcome of organization resolution. Failures are
// non-fatal: discovery continues with directly visible repositories only.
type OrgListing struct {
	Orgs            []string
	RateLimited     bool
	PermissionIssue bool
}

// resolveOrganizations enumerates organizations the identity belongs to,
// classifying a 403 as either quota exhaustion or missing scope from the
// remaining-quota header.
func resolveOrganizations(ctx context.Context, client HostingClient, handle string, maxPages int, logger *zap.Logger) OrgListing {
	listing := OrgListing{}
	for page := 1; page <= maxPages; page++ {
		result, err := client.ListUserOrgs(ctx, handle, page)
		if err != nil {
			logger.Debug("organization listing failed",
				zap.String("handle", handle),
				zap.Int("page", page),
				zap.Error(err))
			return listing
		}

		switch result.Status {
		case githubapi.EndpointStatusOK:
		case githubapi.EndpointStatusForbidden:
			if githubapi.ClassifyForbidden(result.Metadata.LastRateHeaders) == githubapi.ForbiddenMissingScope {
				listing.PermissionIssue = true
			} else {
				listing.RateLimited = true
			}
			return listing
		default:
			return listing
		}

		for _, org := range result.Orgs {
			if org.Login != "" {
				listing.Orgs = append(listing.Orgs, org.Login)
			}
		}
		if len(result.Orgs) < githubapi.PageSize || !result.HasNext {
			return listing
		}
	}
	return listing
}
