package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_DelegationEnabled(t *testing.T) {
	empty := ""
	hash := "$2a$12$hash"

	assert.False(t, (&User{}).DelegationEnabled())
	assert.False(t, (&User{DelegationPasswordHash: &empty}).DelegationEnabled())
	assert.True(t, (&User{DelegationPasswordHash: &hash}).DelegationEnabled())
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()

	assert.False(t, (&Session{ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.True(t, (&Session{ExpiresAt: now}).Expired(now))
	assert.True(t, (&Session{ExpiresAt: now.Add(-time.Minute)}).Expired(now))
}
