package utils

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlacklistToken(t *testing.T) {
	assert.False(t, IsTokenBlacklisted("fresh-token"))

	BlacklistToken("revoked-token")
	assert.True(t, IsTokenBlacklisted("revoked-token"))
}

func TestIsTokenBlacklistedPrunesExpired(t *testing.T) {
	blacklistMutex.Lock()
	blacklistedTokens["stale-token"] = time.Now().Add(-time.Minute)
	blacklistMutex.Unlock()

	assert.False(t, IsTokenBlacklisted("stale-token"))

	blacklistMutex.RLock()
	_, exists := blacklistedTokens["stale-token"]
	blacklistMutex.RUnlock()
	assert.False(t, exists, "expired entry should be pruned")
}

// Run with -race: concurrent lookups of an expired entry prune it, which
// must happen under the write lock.
func TestBlacklistConcurrentAccess(t *testing.T) {
	blacklistMutex.Lock()
	for i := 0; i < 16; i++ {
		blacklistedTokens[fmt.Sprintf("expired-%d", i)] = time.Now().Add(-time.Minute)
	}
	blacklistMutex.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 16; j++ {
				IsTokenBlacklisted(fmt.Sprintf("expired-%d", j))
				BlacklistToken(fmt.Sprintf("live-%d-%d", n, j))
				IsTokenBlacklisted(fmt.Sprintf("live-%d-%d", n, j))
			}
		}(i)
	}
	wg.Wait()
}
