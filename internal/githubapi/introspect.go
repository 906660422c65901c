package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Viewer describes the authenticated identity as reported by the hosting API.
type Viewer struct {
	Login  string
	Scopes []string
	Status EndpointStatus
}

// GetViewer introspects the authenticated identity and its granted OAuth
// scopes. Anonymous clients get a forbidden/unknown status back rather than
// an error.
func GetViewer(ctx context.Context, httpClient *http.Client, apiBaseURL string) (Viewer, error) {
	rest, err := NewRESTClient(httpClient, apiBaseURL)
	if err != nil {
		return Viewer{}, err
	}

	user, resp, err := rest.Client.Users.Get(ctx, "")
	if err != nil {
		if resp == nil {
			return Viewer{}, fmt.Errorf("get authenticated user: %w", err)
		}
		return Viewer{Status: endpointStatusFromHTTP(resp.StatusCode)}, nil
	}

	viewer := Viewer{Status: EndpointStatusOK}
	if user != nil {
		viewer.Login = user.GetLogin()
	}
	if resp != nil {
		viewer.Scopes = parseScopeHeader(resp.Header.Get("X-OAuth-Scopes"))
	}
	return viewer, nil
}

func parseScopeHeader(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	scopes := make([]string, 0, len(parts))
	for _, part := range parts {
		if scope := strings.TrimSpace(part); scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}
