package auth

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Principal is an authenticated user.
type Principal struct {
	UserID   string
	UserName string
}

type apiKeyEntry struct {
	principal Principal
	hash      []byte
}

// APIKeyProvider verifies API keys against configured bcrypt hashes.
type APIKeyProvider struct {
	entries []apiKeyEntry

	mu       sync.Mutex
	verified map[[sha256.Size]byte]Principal
}

// NewAPIKeyProvider parses entries of the form "userId:userName:bcryptHash".
func NewAPIKeyProvider(entries []string) (*APIKeyProvider, error) {
	p := &APIKeyProvider{verified: make(map[[sha256.Size]byte]Principal)}
	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("api key %d: want userId:userName:bcryptHash", i)
		}
		if _, err := bcrypt.Cost([]byte(parts[2])); err != nil {
			return nil, fmt.Errorf("api key %d: %w", i, err)
		}
		p.entries = append(p.entries, apiKeyEntry{
			principal: Principal{UserID: parts[0], UserName: parts[1]},
			hash:      []byte(parts[2]),
		})
	}
	return p, nil
}

// Len returns the number of configured keys.
func (p *APIKeyProvider) Len() int { return len(p.entries) }

// Verify returns the principal owning key. Successful verifications are
// cached by digest so repeat connections skip bcrypt.
func (p *APIKeyProvider) Verify(key string) (Principal, error) {
	if key == "" {
		return Principal{}, ErrUnauthorized
	}
	digest := sha256.Sum256([]byte(key))

	p.mu.Lock()
	principal, ok := p.verified[digest]
	p.mu.Unlock()
	if ok {
		return principal, nil
	}

	for _, e := range p.entries {
		if bcrypt.CompareHashAndPassword(e.hash, []byte(key)) == nil {
			p.mu.Lock()
			p.verified[digest] = e.principal
			p.mu.Unlock()
			return e.principal, nil
		}
	}
	return Principal{}, ErrUnauthorized
}
