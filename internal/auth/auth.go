// Package auth defines the identity contract the server depends on.
// Authentication itself happens upstream; the core only needs a user id
// and the premium flag for ownership checks and feature gates.
package auth

import (
	"net/http"
	"strings"
)

// Identity describes the caller of a request. A nil Identity means the
// request is anonymous.
type Identity struct {
	UserID  string
	Premium bool
}

// Provider resolves the caller of an HTTP request
type Provider interface {
	Identify(r *http.Request) *Identity
}

// HeaderProvider trusts identity headers injected by an upstream gateway
type HeaderProvider struct {
	UserIDHeader  string
	PremiumHeader string
}

// NewHeaderProvider creates a provider reading the default gateway headers
func NewHeaderProvider() *HeaderProvider {
	return &HeaderProvider{
		UserIDHeader:  "X-User-ID",
		PremiumHeader: "X-User-Premium",
	}
}

// Identify returns the identity carried by the request headers, or nil
// when no user id header is present.
func (p *HeaderProvider) Identify(r *http.Request) *Identity {
	userID := r.Header.Get(p.UserIDHeader)
	if userID == "" {
		return nil
	}
	return &Identity{
		UserID:  userID,
		Premium: strings.EqualFold(r.Header.Get(p.PremiumHeader), "true"),
	}
}
