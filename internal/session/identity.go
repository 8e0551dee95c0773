package session

import (
	"sync"

	"github.com/scp-platform/supplier-console/pkg/model"
)

// IdentityCache is the in-memory identity of one workspace. Guards read it
// before asking the upstream who the caller is.
type IdentityCache struct {
	mu   sync.RWMutex
	user *model.UserIdentity
}

func NewIdentityCache() *IdentityCache {
	return &IdentityCache{}
}

func (c *IdentityCache) Get() (model.UserIdentity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return model.UserIdentity{}, false
	}
	return *c.user, true
}

func (c *IdentityCache) Set(u model.UserIdentity) {
	c.mu.Lock()
	c.user = &u
	c.mu.Unlock()
}

func (c *IdentityCache) Clear() {
	c.mu.Lock()
	c.user = nil
	c.mu.Unlock()
}
