package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const defaultAPIBaseURL = "https://api.github.com/"

// PageSize is the per_page value used on every paginated listing.
const PageSize = 100

// EndpointStatus represents a normalized hosting API endpoint outcome.
type EndpointStatus string

const (
	// EndpointStatusOK indicates a successful response.
	EndpointStatusOK EndpointStatus = "ok"
	// EndpointStatusForbidden indicates authorization failure or quota exhaustion.
	EndpointStatusForbidden EndpointStatus = "forbidden"
	// EndpointStatusNotFound indicates the resource does not exist or is hidden.
	EndpointStatusNotFound EndpointStatus = "not_found"
	// EndpointStatusUnprocessable indicates request validation/processing failure.
	EndpointStatusUnprocessable EndpointStatus = "unprocessable"
	// EndpointStatusUnavailable indicates a temporary service-side failure.
	EndpointStatusUnavailable EndpointStatus = "unavailable"
	// EndpointStatusUnknown indicates an unclassified non-success status.
	EndpointStatusUnknown EndpointStatus = "unknown"
)

// Repository is one repository as listed by the hosting API.
type Repository struct {
	Name       string
	FullName   string
	OwnerLogin string
	OwnerIsOrg bool
	Private    bool
	Fork       bool
	Language   string
	UpdatedAt  string
}

// Organization is one organization membership entry.
type Organization struct {
	Login string
}

// Commit is one commit summary from the commit list endpoint. AuthoredAt is
// the raw timestamp string; parsing and validity checks happen downstream.
type Commit struct {
	SHA         string
	AuthorLogin string
	AuthorName  string
	AuthorEmail string
	AuthoredAt  string
}

// RepoPage is one page of a repository listing.
type RepoPage struct {
	Status   EndpointStatus
	Repos    []Repository
	HasNext  bool
	Metadata CallMetadata
}

// OrgPage is one page of an organization listing.
type OrgPage struct {
	Status   EndpointStatus
	Orgs     []Organization
	HasNext  bool
	Metadata CallMetadata
}

// CommitPage is one page of a commit listing. LastPage carries the final
// page index from the Link header when the API reveals it, zero otherwise.
type CommitPage struct {
	Status   EndpointStatus
	Commits  []Commit
	HasNext  bool
	LastPage int
	Metadata CallMetadata
}

// HostingClient is a typed hosting REST client for the endpoints the
// activity engine consumes. It fetches single pages; page loops, caps and
// abort policies belong to the caller.
type HostingClient struct {
	baseURL       *url.URL
	requestClient *Client
}

// NewHostingClient creates a typed client over the retry/rate-limit request client.
func NewHostingClient(baseURL string, requestClient *Client) (*HostingClient, error) {
	if requestClient == nil {
		return nil, fmt.Errorf("request client is required")
	}

	parsed, err := parseAPIBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &HostingClient{
		baseURL:       parsed,
		requestClient: requestClient,
	}, nil
}

// ListUserRepos lists one page of a user's own/collaborator repositories.
// The reduced mode drops the optional type/sort filters; callers use it to
// retry a page the API refused as unprocessable.
func (c *HostingClient) ListUserRepos(ctx context.Context, user string, page int, reduced bool) (RepoPage, error) {
	trimmedUser := strings.TrimSpace(user)
	if trimmedUser == "" {
		return RepoPage{}, fmt.Errorf("user is required")
	}
	if page <= 0 {
		return RepoPage{}, fmt.Errorf("page must be > 0")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "users", url.PathEscape(trimmedUser), "repos")
	query := reqURL.Query()
	query.Set("per_page", strconv.Itoa(PageSize))
	query.Set("page", strconv.Itoa(page))
	if !reduced {
		query.Set("type", "all")
		query.Set("sort", "updated")
	}
	reqURL.RawQuery = query.Encode()

	resp, metadata, err := c.get(ctx, reqURL, "list user repos")
	if err != nil {
		return RepoPage{}, err
	}

	result := RepoPage{
		Status:   endpointStatusFromHTTP(resp.StatusCode),
		Metadata: metadata,
	}
	if result.Status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload []repositoryPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return RepoPage{}, fmt.Errorf("decode list user repos response: %w", err)
	}
	for _, repo := range payload {
		result.Repos = append(result.Repos, repo.toRepository())
	}
	result.HasNext = hasNextPage(resp.Header.Get("Link"))
	return result, nil
}

// ListUserOrgs lists one page of a user's organization memberships.
func (c *HostingClient) ListUserOrgs(ctx context.Context, user string, page int) (OrgPage, error) {
	trimmedUser := strings.TrimSpace(user)
	if trimmedUser == "" {
		return OrgPage{}, fmt.Errorf("user is required")
	}
	if page <= 0 {
		return OrgPage{}, fmt.Errorf("page must be > 0")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "users", url.PathEscape(trimmedUser), "orgs")
	query := reqURL.Query()
	query.Set("per_page", strconv.Itoa(PageSize))
	query.Set("page", strconv.Itoa(page))
	reqURL.RawQuery = query.Encode()

	resp, metadata, err := c.get(ctx, reqURL, "list user orgs")
	if err != nil {
		return OrgPage{}, err
	}

	result := OrgPage{
		Status:   endpointStatusFromHTTP(resp.StatusCode),
		Metadata: metadata,
	}
	if result.Status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload []organizationPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return OrgPage{}, fmt.Errorf("decode list user orgs response: %w", err)
	}
	for _, org := range payload {
		result.Orgs = append(result.Orgs, Organization{Login: org.Login})
	}
	result.HasNext = hasNextPage(resp.Header.Get("Link"))
	return result, nil
}

// ListOrgRepos lists one page of an organization's repositories.
func (c *HostingClient) ListOrgRepos(ctx context.Context, org string, page int) (RepoPage, error) {
	trimmedOrg := strings.TrimSpace(org)
	if trimmedOrg == "" {
		return RepoPage{}, fmt.Errorf("organization is required")
	}
	if page <= 0 {
		return RepoPage{}, fmt.Errorf("page must be > 0")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "orgs", url.PathEscape(trimmedOrg), "repos")
	query := reqURL.Query()
	query.Set("per_page", strconv.Itoa(PageSize))
	query.Set("page", strconv.Itoa(page))
	query.Set("type", "all")
	reqURL.RawQuery = query.Encode()

	resp, metadata, err := c.get(ctx, reqURL, "list org repos")
	if err != nil {
		return RepoPage{}, err
	}

	result := RepoPage{
		Status:   endpointStatusFromHTTP(resp.StatusCode),
		Metadata: metadata,
	}
	if result.Status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload []repositoryPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return RepoPage{}, fmt.Errorf("decode list org repos response: %w", err)
	}
	for _, repo := range payload {
		result.Repos = append(result.Repos, repo.toRepository())
	}
	result.HasNext = hasNextPage(resp.Header.Get("Link"))
	return result, nil
}

// ListRepoCommits lists one page of a repository's commits, optionally
// filtered server-side by author login.
func (c *HostingClient) ListRepoCommits(ctx context.Context, owner, repo string, page int, author string) (CommitPage, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" {
		return CommitPage{}, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return CommitPage{}, fmt.Errorf("repo is required")
	}
	if page <= 0 {
		return CommitPage{}, fmt.Errorf("page must be > 0")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "repos", url.PathEscape(trimmedOwner), url.PathEscape(trimmedRepo), "commits")
	query := reqURL.Query()
	query.Set("per_page", strconv.Itoa(PageSize))
	query.Set("page", strconv.Itoa(page))
	if trimmedAuthor := strings.TrimSpace(author); trimmedAuthor != "" {
		query.Set("author", trimmedAuthor)
	}
	reqURL.RawQuery = query.Encode()

	resp, metadata, err := c.get(ctx, reqURL, "list repo commits")
	if err != nil {
		return CommitPage{}, err
	}

	result := CommitPage{
		Status:   endpointStatusFromHTTP(resp.StatusCode),
		Metadata: metadata,
	}
	if result.Status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload []commitListPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return CommitPage{}, fmt.Errorf("decode list repo commits response: %w", err)
	}
	for _, commit := range payload {
		typed := Commit{
			SHA:         commit.SHA,
			AuthorName:  commit.Commit.Author.Name,
			AuthorEmail: commit.Commit.Author.Email,
			AuthoredAt:  commit.Commit.Author.Date,
		}
		if commit.Author != nil {
			typed.AuthorLogin = commit.Author.Login
		}
		result.Commits = append(result.Commits, typed)
	}
	linkHeader := resp.Header.Get("Link")
	result.HasNext = hasNextPage(linkHeader)
	result.LastPage = lastPageIndex(linkHeader)
	return result, nil
}

func (c *HostingClient) get(ctx context.Context, reqURL *url.URL, operation string) (*http.Response, CallMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, CallMetadata{}, fmt.Errorf("build %s request: %w", operation, err)
	}

	resp, metadata, err := c.requestClient.Do(req)
	if err != nil {
		return nil, metadata, fmt.Errorf("%s request failed: %w", operation, err)
	}
	if resp == nil {
		return nil, metadata, fmt.Errorf("%s request failed: nil response", operation)
	}
	return resp, metadata, nil
}

func parseAPIBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultAPIBaseURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed, nil
}

func (c *HostingClient) cloneBaseURL() *url.URL {
	cloned := *c.baseURL
	return &cloned
}

func joinURLPath(base string, segments ...string) string {
	builder := strings.Builder{}
	builder.WriteString(strings.TrimSuffix(base, "/"))
	for _, segment := range segments {
		builder.WriteString("/")
		builder.WriteString(strings.TrimPrefix(segment, "/"))
	}
	return builder.String()
}

func endpointStatusFromHTTP(statusCode int) EndpointStatus {
	switch statusCode {
	case http.StatusForbidden:
		return EndpointStatusForbidden
	case http.StatusNotFound:
		return EndpointStatusNotFound
	case http.StatusUnprocessableEntity:
		return EndpointStatusUnprocessable
	}
	if statusCode >= 200 && statusCode <= 299 {
		return EndpointStatusOK
	}
	if statusCode >= 500 {
		return EndpointStatusUnavailable
	}
	return EndpointStatusUnknown
}

func decodeJSONAndClose(resp *http.Response, target any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

func hasNextPage(linkHeader string) bool {
	for _, part := range strings.Split(linkHeader, ",") {
		if strings.Contains(part, `rel="next"`) {
			return true
		}
	}
	return false
}

// lastPageIndex extracts the page number from the rel="last" Link entry.
func lastPageIndex(linkHeader string) int {
	for _, part := range strings.Split(linkHeader, ",") {
		if !strings.Contains(part, `rel="last"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end <= start {
			return 0
		}
		parsed, err := url.Parse(strings.TrimSpace(part[start+1 : end]))
		if err != nil {
			return 0
		}
		page, err := strconv.Atoi(parsed.Query().Get("page"))
		if err != nil || page < 0 {
			return 0
		}
		return page
	}
	return 0
}

type repositoryPayload struct {
	Name      string        `json:"name"`
	FullName  string        `json:"full_name"`
	Private   bool          `json:"private"`
	Fork      bool          `json:"fork"`
	Language  *string       `json:"language"`
	UpdatedAt string        `json:"updated_at"`
	Owner     *ownerPayload `json:"owner"`
}

func (p repositoryPayload) toRepository() Repository {
	repo := Repository{
		Name:      p.Name,
		FullName:  p.FullName,
		Private:   p.Private,
		Fork:      p.Fork,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Language != nil {
		repo.Language = *p.Language
	}
	if p.Owner != nil {
		repo.OwnerLogin = p.Owner.Login
		repo.OwnerIsOrg = strings.EqualFold(p.Owner.Type, "Organization")
	}
	return repo
}

type ownerPayload struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

type organizationPayload struct {
	Login string `json:"login"`
}

type commitListPayload struct {
	SHA    string          `json:"sha"`
	Author *userPayload    `json:"author"`
	Commit commitCoreBlock `json:"commit"`
}

type commitCoreBlock struct {
	Author commitAuthorBlock `json:"author"`
}

type commitAuthorBlock struct {
	Date  string `json:"date"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type userPayload struct {
	Login string `json:"login"`
}
