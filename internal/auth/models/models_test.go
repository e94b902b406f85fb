package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenSetExpired(t *testing.T) {
	now := time.Now()

	unset := &TokenSet{AccessToken: "at"}
	assert.False(t, unset.Expired(now), "missing expiry means not expired")

	live := &TokenSet{AccessToken: "at", ExpiresAt: now.Add(time.Minute)}
	assert.False(t, live.Expired(now))

	stale := &TokenSet{AccessToken: "at", ExpiresAt: now.Add(-time.Second)}
	assert.True(t, stale.Expired(now))
}

func TestTokenSetMergePreservesOmittedFields(t *testing.T) {
	prior := &TokenSet{AccessToken: "at-old", RefreshToken: "rt-1", IDToken: "idt-1"}

	refreshed := &TokenSet{AccessToken: "at-new"}
	refreshed.Merge(prior)
	assert.Equal(t, "at-new", refreshed.AccessToken)
	assert.Equal(t, "rt-1", refreshed.RefreshToken)
	assert.Equal(t, "idt-1", refreshed.IDToken)

	rotated := &TokenSet{AccessToken: "at-new", RefreshToken: "rt-2", IDToken: "idt-2"}
	rotated.Merge(prior)
	assert.Equal(t, "rt-2", rotated.RefreshToken, "rotated values win over prior ones")
	assert.Equal(t, "idt-2", rotated.IDToken)
}
