package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cost 4 keeps each hash in the low milliseconds
func fastPasswords() *PasswordService { return NewPasswordServiceForTest(4) }

// =========================================================================
// HASH TESTS
// =========================================================================

func TestHash(t *testing.T) {
	ps := fastPasswords()

	hash, err := ps.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	assert.True(t, strings.HasPrefix(hash, "$2a$04$"), "unexpected hash %q", hash)

	again, err := ps.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt must differ between hashes")
}

func TestHash_LengthLimit(t *testing.T) {
	ps := fastPasswords()

	_, err := ps.Hash(strings.Repeat("p", MaxPasswordBytes))
	assert.NoError(t, err, "exactly the limit is fine")

	_, err = ps.Hash(strings.Repeat("p", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

// =========================================================================
// VERIFY TESTS
// =========================================================================

func TestVerify(t *testing.T) {
	ps := fastPasswords()
	hash, err := ps.Hash("secret1")
	require.NoError(t, err)

	tests := []struct {
		name      string
		hash      string
		plaintext string
		wantErr   error
	}{
		{"match", hash, "secret1", nil},
		{"wrong password", hash, "secret2", ErrPasswordMismatch},
		{"case matters", hash, "SECRET1", ErrPasswordMismatch},
		{"empty password", hash, "", ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.Verify(tt.hash, tt.plaintext)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	err := fastPasswords().Verify("not-a-bcrypt-hash", "secret1")

	require.Error(t, err)
	if errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Verify() = %v, a malformed hash is not a mismatch", err)
	}
}

// =========================================================================
// REHASH TESTS
// =========================================================================

func TestNeedsRehash(t *testing.T) {
	old, err := NewPasswordServiceForTest(4).Hash("secret1")
	require.NoError(t, err)

	assert.False(t, NewPasswordServiceForTest(4).NeedsRehash(old))
	assert.True(t, NewPasswordServiceForTest(5).NeedsRehash(old))
	assert.False(t, NewPasswordServiceForTest(5).NeedsRehash("garbage"))
}
