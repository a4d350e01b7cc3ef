package credential

import "time"

// Status classifies the health of a credential.
type Status string

const (
	// StatusActive means the credential is eligible for selection.
	StatusActive Status = "active"
	// StatusExhausted means the credential has no remaining quota.
	StatusExhausted Status = "exhausted"
	// StatusErrored means the last use failed transiently; the credential
	// stays eligible and self-heals on the next success.
	StatusErrored Status = "errored"
	// StatusInvalid means the credential was rejected outright and must
	// not be selected again.
	StatusInvalid Status = "invalid"
)

// Record is one session credential and its tracked state.
type Record struct {
	// Token is the raw credential secret.
	Token string `json:"token"`

	// Status is the current health classification.
	Status Status `json:"status"`

	// Quota is the remaining request allowance signal reported by the
	// upstream; 0 means exhausted.
	Quota int `json:"quota"`

	// LastClearedAt is when remote assets were last cleared for this
	// credential; zero when never.
	LastClearedAt time.Time `json:"last_cleared_at,omitempty"`

	// FailureCount counts consecutive failures since the last success.
	FailureCount int `json:"failure_count,omitempty"`
}

// Info is the externally visible view of a credential. The raw secret is
// replaced by a masked form.
type Info struct {
	// Token is the raw secret; only handed to components that make
	// upstream calls, never serialized for display.
	Token string `json:"-"`

	// TokenMasked is the display-safe form of the secret.
	TokenMasked string `json:"token_masked"`

	// Pool is the name of the pool this credential belongs to.
	Pool string `json:"pool"`

	// Status is the current health classification.
	Status Status `json:"status"`

	// Quota is the remaining request allowance signal.
	Quota int `json:"quota"`

	// LastClearedAt is when remote assets were last cleared.
	LastClearedAt time.Time `json:"last_cleared_at,omitempty"`
}

// Mask returns a display-safe form of a credential secret: a short prefix
// and suffix with the middle elided. Short secrets are returned unchanged
// since they reveal nothing recoverable.
func Mask(token string) string {
	if len(token) <= 24 {
		return token
	}
	return token[:8] + "..." + token[len(token)-16:]
}
