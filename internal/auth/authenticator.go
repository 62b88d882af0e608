package auth

import (
	"crypto/subtle"
	"net/url"
	"strings"
)

// Authenticator resolves a credential (bearer token or API key) to a
// principal.
type Authenticator struct {
	jwt  *JWTManager
	keys *APIKeyProvider
}

// NewAuthenticator combines token and key verification. keys may be nil.
func NewAuthenticator(jwt *JWTManager, keys *APIKeyProvider) *Authenticator {
	return &Authenticator{jwt: jwt, keys: keys}
}

// JWT returns the token manager.
func (a *Authenticator) JWT() *JWTManager { return a.jwt }

// Authenticate tries the bearer token first, then the API key.
func (a *Authenticator) Authenticate(token, apiKey string) (Principal, error) {
	if token != "" {
		claims, err := a.jwt.VerifyToken(token)
		if err != nil {
			return Principal{}, err
		}
		return Principal{UserID: claims.Subject, UserName: claims.UserName}, nil
	}
	if apiKey != "" && a.keys != nil {
		return a.keys.Verify(apiKey)
	}
	return Principal{}, ErrUnauthorized
}

// CheckSessionToken compares a relay write token with the stored one in
// constant time.
func CheckSessionToken(stored, presented string) error {
	if stored == "" || presented == "" {
		return ErrTokenMismatch
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}

// OriginPolicy is a browser origin allowlist. "*" allows everything. A
// request without an Origin header (non-browser clients) is always allowed.
type OriginPolicy struct {
	any     bool
	origins map[string]struct{}
}

// NewOriginPolicy builds a policy from configured origins.
func NewOriginPolicy(allowed []string) *OriginPolicy {
	p := &OriginPolicy{origins: make(map[string]struct{})}
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if o == "*" {
			p.any = true
			continue
		}
		p.origins[strings.ToLower(o)] = struct{}{}
	}
	return p
}

// AllowAll reports whether the policy is a wildcard.
func (p *OriginPolicy) AllowAll() bool { return p.any }

// Origins returns the explicit allowlist.
func (p *OriginPolicy) Origins() []string {
	out := make([]string, 0, len(p.origins))
	for o := range p.origins {
		out = append(out, o)
	}
	return out
}

// Check returns ErrOriginRejected for a disallowed origin.
func (p *OriginPolicy) Check(origin string) error {
	if origin == "" || p.any {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrOriginRejected
	}
	if _, ok := p.origins[strings.ToLower(u.Scheme+"://"+u.Host)]; ok {
		return nil
	}
	return ErrOriginRejected
}
