package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devcard/github-activity/internal/githubapi"
)

// fakeHostingClient serves scripted pages keyed by handle, organization, or
// repository full name. Missing entries read as empty OK pages.
type fakeHostingClient struct {
	mu sync.Mutex

	userRepoPages        map[string]map[int]githubapi.RepoPage
	reducedUserRepoPages map[string]map[int]githubapi.RepoPage
	orgPages             map[string]map[int]githubapi.OrgPage
	orgRepoPages         map[string]map[int]githubapi.RepoPage
	commitPages          map[string]map[int]githubapi.CommitPage

	errs map[string]error

	calls       int
	commitCalls []commitCall
}

type commitCall struct {
	fullName string
	page     int
	author   string
}

func newFakeHostingClient() *fakeHostingClient {
	return &fakeHostingClient{
		userRepoPages:        make(map[string]map[int]githubapi.RepoPage),
		reducedUserRepoPages: make(map[string]map[int]githubapi.RepoPage),
		orgPages:             make(map[string]map[int]githubapi.OrgPage),
		orgRepoPages:         make(map[string]map[int]githubapi.RepoPage),
		commitPages:          make(map[string]map[int]githubapi.CommitPage),
		errs:                 make(map[string]error),
	}
}

func (f *fakeHostingClient) setUserRepoPage(user string, page int, result githubapi.RepoPage) {
	if f.userRepoPages[user] == nil {
		f.userRepoPages[user] = make(map[int]githubapi.RepoPage)
	}
	f.userRepoPages[user][page] = result
}

func (f *fakeHostingClient) setReducedUserRepoPage(user string, page int, result githubapi.RepoPage) {
	if f.reducedUserRepoPages[user] == nil {
		f.reducedUserRepoPages[user] = make(map[int]githubapi.RepoPage)
	}
	f.reducedUserRepoPages[user][page] = result
}

func (f *fakeHostingClient) setOrgPage(user string, page int, result githubapi.OrgPage) {
	if f.orgPages[user] == nil {
		f.orgPages[user] = make(map[int]githubapi.OrgPage)
	}
	f.orgPages[user][page] = result
}

func (f *fakeHostingClient) setOrgRepoPage(org string, page int, result githubapi.RepoPage) {
	if f.orgRepoPages[org] == nil {
		f.orgRepoPages[org] = make(map[int]githubapi.RepoPage)
	}
	f.orgRepoPages[org][page] = result
}

func (f *fakeHostingClient) setCommitPage(fullName string, page int, result githubapi.CommitPage) {
	if f.commitPages[fullName] == nil {
		f.commitPages[fullName] = make(map[int]githubapi.CommitPage)
	}
	f.commitPages[fullName][page] = result
}

func (f *fakeHostingClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeHostingClient) commitCallsFor(fullName string) []commitCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []commitCall
	for _, call := range f.commitCalls {
		if call.fullName == fullName {
			matched = append(matched, call)
		}
	}
	return matched
}

func (f *fakeHostingClient) ListUserRepos(_ context.Context, user string, page int, reduced bool) (githubapi.RepoPage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if err := f.errs["user:"+user]; err != nil {
		return githubapi.RepoPage{}, err
	}
	pages := f.userRepoPages[user]
	if reduced {
		pages = f.reducedUserRepoPages[user]
	}
	return pages[page], nil
}

func (f *fakeHostingClient) ListUserOrgs(_ context.Context, user string, page int) (githubapi.OrgPage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if err := f.errs["orgs:"+user]; err != nil {
		return githubapi.OrgPage{}, err
	}
	return f.orgPages[user][page], nil
}

func (f *fakeHostingClient) ListOrgRepos(_ context.Context, org string, page int) (githubapi.RepoPage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if err := f.errs["org:"+org]; err != nil {
		return githubapi.RepoPage{}, err
	}
	return f.orgRepoPages[org][page], nil
}

func (f *fakeHostingClient) ListRepoCommits(_ context.Context, owner, repo string, page int, author string) (githubapi.CommitPage, error) {
	fullName := owner + "/" + repo

	f.mu.Lock()
	f.calls++
	f.commitCalls = append(f.commitCalls, commitCall{fullName: fullName, page: page, author: author})
	f.mu.Unlock()

	if err := f.errs["commits:"+fullName]; err != nil {
		return githubapi.CommitPage{}, err
	}
	return f.commitPages[fullName][page], nil
}

type fakeClientBuilder struct {
	client HostingClient
	err    error
}

func (b fakeClientBuilder) ClientFor(string) (HostingClient, error) {
	return b.client, b.err
}

func okRepoPage(hasNext bool, repos ...githubapi.Repository) githubapi.RepoPage {
	return githubapi.RepoPage{
		Status:  githubapi.EndpointStatusOK,
		Repos:   repos,
		HasNext: hasNext,
	}
}

func forbiddenRepoPage(remaining int) githubapi.RepoPage {
	return githubapi.RepoPage{
		Status: githubapi.EndpointStatusForbidden,
		Metadata: githubapi.CallMetadata{
			LastRateHeaders: githubapi.RateLimitHeaders{Remaining: remaining},
		},
	}
}

func okOrgPage(hasNext bool, logins ...string) githubapi.OrgPage {
	page := githubapi.OrgPage{Status: githubapi.EndpointStatusOK, HasNext: hasNext}
	for _, login := range logins {
		page.Orgs = append(page.Orgs, githubapi.Organization{Login: login})
	}
	return page
}

func okCommitPage(hasNext bool, lastPage int, commits ...githubapi.Commit) githubapi.CommitPage {
	return githubapi.CommitPage{
		Status:   githubapi.EndpointStatusOK,
		Commits:  commits,
		HasNext:  hasNext,
		LastPage: lastPage,
	}
}

func forbiddenCommitPage(remaining int) githubapi.CommitPage {
	return githubapi.CommitPage{
		Status: githubapi.EndpointStatusForbidden,
		Metadata: githubapi.CallMetadata{
			LastRateHeaders: githubapi.RateLimitHeaders{Remaining: remaining},
		},
	}
}

func testRepo(fullName, ownerLogin string, ownerIsOrg bool, updated time.Time) githubapi.Repository {
	return githubapi.Repository{
		FullName:   fullName,
		OwnerLogin: ownerLogin,
		OwnerIsOrg: ownerIsOrg,
		UpdatedAt:  updated.UTC().Format(time.RFC3339),
	}
}

func authoredCommit(login string, authoredAt time.Time) githubapi.Commit {
	return githubapi.Commit{
		SHA:         fmt.Sprintf("sha-%s-%d", login, authoredAt.Unix()),
		AuthorLogin: login,
		AuthorName:  login,
		AuthorEmail: login + "@example.com",
		AuthoredAt:  authoredAt.UTC().Format(time.RFC3339),
	}
}
