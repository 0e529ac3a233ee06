// AngelaMos | 2026
// password_test.go

package core

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("midnight-tour")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, upgraded, err := VerifyPassword("midnight-tour", hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, upgraded)

	ok, _, err = VerifyPassword("daylight-tour", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordUpgradesWeakParams(t *testing.T) {
	weak := argonParams{memory: 8 * 1024, time: 1, threads: 1, keyLen: 32}
	salt := make([]byte, saltLength)
	_, err := rand.Read(salt)
	require.NoError(t, err)

	ok, upgraded, err := VerifyPassword("encore", weak.encode(salt, weak.derive("encore", salt)))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotEmpty(t, upgraded)

	params, _, _, err := parseArgon(upgraded)
	require.NoError(t, err)
	assert.Equal(t, currentArgon, params)
}

func TestVerifyPasswordMalformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$!!$aGFzaA",
	} {
		_, _, err := VerifyPassword("x", encoded)
		assert.ErrorIs(t, err, errMalformedHash, encoded)
	}
}

func TestSealerRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	sealer, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("spotify-refresh"), []byte("u1:spotify"))
	require.NoError(t, err)

	plain, err := sealer.Open(sealed, []byte("u1:spotify"))
	require.NoError(t, err)
	assert.Equal(t, "spotify-refresh", string(plain))

	_, err = sealer.Open(sealed, []byte("u2:spotify"))
	assert.ErrorIs(t, err, ErrSealedDataInvalid)

	_, err = NewSealer([]byte("short"))
	assert.Error(t, err)
}
