// AngelaMos | 2026
// password.go

package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// argonParams describe one argon2id derivation. The encoded form follows
// the PHC string format: $argon2id$v=19$m=65536,t=1,p=4$salt$hash.
type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

var currentArgon = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

const saltLength = 16

var errMalformedHash = errors.New("malformed password hash")

func (p argonParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

func (p argonParams) encode(salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func parseArgon(encoded string) (argonParams, []byte, []byte, error) {
	var p argonParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("argon2 version %q: %w", parts[2], errMalformedHash)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, nil, nil, fmt.Errorf("argon2 params: %w", errMalformedHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("argon2 salt: %w", errMalformedHash)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("argon2 key: %w", errMalformedHash)
	}

	//nolint:gosec // G115: argon2 keys are a few dozen bytes
	p.keyLen = uint32(len(key))

	return p, salt, key, nil
}

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return currentArgon.encode(salt, currentArgon.derive(password, salt)), nil
}

// VerifyPassword reports whether password matches encoded. When it does
// and encoded was produced with outdated parameters, upgraded holds a fresh
// hash the caller should store.
func VerifyPassword(password, encoded string) (ok bool, upgraded string, err error) {
	params, salt, key, err := parseArgon(encoded)
	if err != nil {
		return false, "", err
	}

	if subtle.ConstantTimeCompare(key, params.derive(password, salt)) != 1 {
		return false, "", nil
	}

	if params != currentArgon {
		if fresh, hashErr := HashPassword(password); hashErr == nil {
			upgraded = fresh
		}
	}

	return true, upgraded, nil
}

var (
	decoyOnce sync.Once
	decoyHash string
)

// BurnPasswordCheck spends the same time as a real verification. Login
// calls it for unknown emails so response timing does not reveal which
// addresses have accounts.
func BurnPasswordCheck(password string) {
	decoyOnce.Do(func() {
		//nolint:errcheck // a failed decoy only shortens the burn
		decoyHash, _ = HashPassword("aura-decoy-password")
	})
	//nolint:errcheck // result is discarded
	_, _, _ = VerifyPassword(password, decoyHash)
}
