package identity

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexHandle = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestDeriveHandle_GmailAliasingConverges(t *testing.T) {
	t.Parallel()
	d := New("")

	a, err := d.DeriveHandle("A.B+x@gmail.com")
	require.NoError(t, err)
	b, err := d.DeriveHandle("ab@gmail.com")
	require.NoError(t, err)
	c, err := d.DeriveHandle("AB@Gmail.com")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, b, c)
	assert.True(t, hexHandle.MatchString(a))
}

func TestDeriveHandle_NonAliasingDomainPreservesDotsAndPlus(t *testing.T) {
	t.Parallel()
	d := New("")

	a, err := d.DeriveHandle("a.b+x@example.com")
	require.NoError(t, err)
	b, err := d.DeriveHandle("ab@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDeriveHandle_Deterministic(t *testing.T) {
	t.Parallel()
	d := New("ns")
	a, err := d.DeriveHandle("user@example.com")
	require.NoError(t, err)
	b, err := d.DeriveHandle("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveHandle_NamespaceChangesHandle(t *testing.T) {
	t.Parallel()
	a, err := New("ns-a").DeriveHandle("user@example.com")
	require.NoError(t, err)
	b, err := New("ns-b").DeriveHandle("user@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDeriveHandle_InvalidEmail(t *testing.T) {
	t.Parallel()
	d := New("")

	for _, email := range []string{"", "   ", "no-at-sign", "@missing-local", "trailing@"} {
		_, err := d.DeriveHandle(email)
		assert.Error(t, err, email)
	}
}

func TestDeriveHandle_MatchesHandlePattern(t *testing.T) {
	t.Parallel()
	d := New("")
	for _, email := range []string{"simple@example.com", "with+tag@gmail.com", "Mixed.Case@Example.COM"} {
		h, err := d.DeriveHandle(email)
		require.NoError(t, err)
		assert.Regexp(t, hexHandle, h)
	}
}
