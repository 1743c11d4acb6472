// Package signature implements the process-wide TTL cache of Gemini
// thoughtSignatures: one map keyed by tool_use_id (restoring thoughtSignature
// on tool calls the Anthropic wire doesn't carry) and one keyed by the
// signature itself (recording which model family produced it, to gate
// cross-family reuse of thinking blocks).
package signature

import (
	"sync"
	"time"
)

// Family is the model family that produced a thinking signature.
type Family string

const (
	FamilyClaude Family = "claude"
	FamilyGemini Family = "gemini"
)

type toolEntry struct {
	signature string
	storedAt  time.Time
}

type thinkingEntry struct {
	family   Family
	storedAt time.Time
}

// Cache is the signature cache described by the spec's Signature Cache
// component: two TTL maps, internally mutex-guarded so callers don't need to
// serialise access themselves.
type Cache struct {
	mu  sync.Mutex
	ttl time.Duration

	minSignatureLength int

	tools    map[string]toolEntry
	thinking map[string]thinkingEntry
}

func New(ttl time.Duration, minSignatureLength int) *Cache {
	return &Cache{
		ttl:                ttl,
		minSignatureLength: minSignatureLength,
		tools:              make(map[string]toolEntry),
		thinking:           make(map[string]thinkingEntry),
	}
}

// StoreTool caches signature for toolUseID. No-op if either is empty.
func (c *Cache) StoreTool(toolUseID, signature string) {
	if toolUseID == "" || signature == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools[toolUseID] = toolEntry{signature: signature, storedAt: time.Now()}
}

// LookupTool returns the cached signature for toolUseID, purging it if
// expired. The second return reports presence.
func (c *Cache) LookupTool(toolUseID string) (string, bool) {
	if toolUseID == "" {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.tools[toolUseID]
	if !ok {
		return "", false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.tools, toolUseID)
		return "", false
	}
	return entry.signature, true
}

// StoreThinking records which family produced signature. No-op if signature
// is shorter than the configured MIN_SIGNATURE_LENGTH.
func (c *Cache) StoreThinking(signature string, family Family) {
	if len(signature) < c.minSignatureLength {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thinking[signature] = thinkingEntry{family: family, storedAt: time.Now()}
}

// LookupFamily returns the family that produced signature, if known and
// unexpired.
func (c *Cache) LookupFamily(signature string) (Family, bool) {
	if signature == "" {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.thinking[signature]
	if !ok {
		return "", false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.thinking, signature)
		return "", false
	}
	return entry.family, true
}

// Sweep removes all expired entries from both maps.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, v := range c.tools {
		if now.Sub(v.storedAt) > c.ttl {
			delete(c.tools, k)
		}
	}
	for k, v := range c.thinking {
		if now.Sub(v.storedAt) > c.ttl {
			delete(c.thinking, k)
		}
	}
}

// Size returns the current entry counts, for diagnostics only.
func (c *Cache) Size() (tools int, thinking int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tools), len(c.thinking)
}

var (
	globalOnce sync.Once
	global     *Cache
)

// Global returns (and lazily creates) the process-wide signature cache used
// by converters that don't have a Cache injected explicitly.
func Global() *Cache {
	globalOnce.Do(func() {
		global = New(15*time.Minute, 50)
	})
	return global
}

// InitGlobal installs cache as the process-wide instance; intended to be
// called once at startup with the configured TTL/min-length.
func InitGlobal(cache *Cache) {
	global = cache
}
