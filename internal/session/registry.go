// Package session keeps the capability tokens that authorise guest actions
// on a table session.  A token is issued per join, validated by set
// membership and revoked in bulk when the session closes.  Tokens carry
// no individual expiry.
package session

import (
	"context"
	"sync"

	"github.com/iliyamo/table-settlement/internal/utils"
)

// tokenBytes is the entropy of an issued token (hex-encoded to 64 chars).
const tokenBytes = 32

// Registry is the capability set sessionID -> tokens.  It is injected into
// the engine so a single process map can be swapped for shared storage in a
// multi-instance deployment.
type Registry interface {
	Issue(ctx context.Context, sessionID string) (string, error)
	Validate(ctx context.Context, sessionID, token string) (bool, error)
	RevokeAll(ctx context.Context, sessionID string) error
}

// MemoryRegistry is a process-local Registry.  A restart invalidates every
// token; clients re-join and the session itself is reloaded from the store.
type MemoryRegistry struct {
	mu     sync.RWMutex
	tokens map[string]map[string]struct{}
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{tokens: make(map[string]map[string]struct{})}
}

func (r *MemoryRegistry) Issue(_ context.Context, sessionID string) (string, error) {
	token, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.tokens[sessionID]
	if !ok {
		set = make(map[string]struct{})
		r.tokens[sessionID] = set
	}
	set[token] = struct{}{}
	return token, nil
}

func (r *MemoryRegistry) Validate(_ context.Context, sessionID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tokens[sessionID][token]
	return ok, nil
}

func (r *MemoryRegistry) RevokeAll(_ context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.tokens, sessionID)
	r.mu.Unlock()
	return nil
}
