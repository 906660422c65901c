package stats

import "strings"

// CredentialSource records which credential was presented upstream.
type CredentialSource string

const (
	// CredentialCaller is a token supplied by the caller of GetStats.
	CredentialCaller CredentialSource = "caller"
	// CredentialService is the process-wide fallback token.
	CredentialService CredentialSource = "service"
	// CredentialAnonymous is unauthenticated, heavily rate-limited access.
	CredentialAnonymous CredentialSource = "anonymous"
)

// Credential is the authorization credential selected for one computation.
type Credential struct {
	Token  string
	Source CredentialSource
}

// SelectCredential picks the credential to present upstream: caller token,
// else the service fallback token, else anonymous.
func SelectCredential(identity Identity, fallbackToken string) Credential {
	if token := strings.TrimSpace(identity.CallerToken); token != "" {
		return Credential{Token: token, Source: CredentialCaller}
	}
	if token := strings.TrimSpace(fallbackToken); token != "" {
		return Credential{Token: token, Source: CredentialService}
	}
	return Credential{Source: CredentialAnonymous}
}
