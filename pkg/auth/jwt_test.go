package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndResolve(t *testing.T) {
	j := NewJWT("secret", "socialgraph", time.Hour)
	tok, exp, err := j.Issue("u1", "alice")
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	uid, err := j.Resolve(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestResolveRejectsForeignAndExpired(t *testing.T) {
	j := NewJWT("secret", "socialgraph", time.Hour)
	other := NewJWT("other", "socialgraph", time.Hour)
	tok, _, err := other.Issue("u1", "alice")
	require.NoError(t, err)
	_, err = j.Resolve(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	past := NewJWT("secret", "socialgraph", time.Minute)
	past.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, _, err = past.Issue("u1", "alice")
	require.NoError(t, err)
	_, err = j.Resolve(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = j.Resolve("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
