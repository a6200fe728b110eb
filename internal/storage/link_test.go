package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkSigner_RoundTrip(t *testing.T) {
	s := NewLinkSigner("secret")
	token, expiresAt, err := s.Sign(42, "clip_abc123.mp4", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	assert.NoError(t, s.Verify(token, 42, "clip_abc123.mp4"))
	assert.ErrorIs(t, s.Verify(token, 7, "clip_abc123.mp4"), ErrTokenScope)
	assert.ErrorIs(t, s.Verify(token, 42, "other.mp4"), ErrTokenScope)
}

func TestLinkSigner_Rejects(t *testing.T) {
	s := NewLinkSigner("secret")
	token, _, err := s.Sign(42, "f.mp4", time.Hour)
	require.NoError(t, err)

	assert.ErrorIs(t, NewLinkSigner("other").Verify(token, 42, "f.mp4"), ErrInvalidToken)
	assert.ErrorIs(t, s.Verify("garbage", 42, "f.mp4"), ErrInvalidToken)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.ErrorIs(t, s.Verify(token, 42, "f.mp4"), ErrInvalidToken)
}
