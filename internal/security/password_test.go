package security

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/scrypt"
)

func TestHashAndVerifyRoundTrip(t *testing.T) {
	phc, err := HashPassword("Passw0rd!!")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("Passw0rd!!", phc))
}

func TestVerifyRejectsWrongPassword(t *testing.T) {
	phc, err := HashPassword("Passw0rd!!")
	require.NoError(t, err)
	assert.False(t, VerifyPassword("wrong-password", phc))
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	assert.False(t, VerifyPassword("anything", "not-a-phc-string"))
}

func TestHashProducesDistinctSalts(t *testing.T) {
	a, err := HashPassword("Passw0rd!!")
	require.NoError(t, err)
	b, err := HashPassword("Passw0rd!!")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyHonorsCostParamsRecordedInHash(t *testing.T) {
	// A hash minted under a weaker cost than the package's current
	// scryptN/R/P constants must still verify: VerifyPassword is required
	// to re-derive using the PHC string's own ln/r/p, not the package's.
	const plaintext = "Passw0rd!!"
	salt := []byte("0123456789abcdef")
	oldN, oldR, oldP := 1<<10, 4, 2
	hash, err := scrypt.Key([]byte(plaintext), salt, oldN, oldR, oldP, scryptKeyLen)
	require.NoError(t, err)

	phc := fmt.Sprintf("$scrypt$ln=%d,r=%d,p=%d$%s$%s",
		10, oldR, oldP,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))

	assert.True(t, VerifyPassword(plaintext, phc))
	assert.False(t, VerifyPassword("wrong-password", phc))
}

func TestValidateUsernameBounds(t *testing.T) {
	assert.Error(t, ValidateUsername("abc"))
	assert.NoError(t, ValidateUsername("alice"))
	assert.Error(t, ValidateUsername(string(make([]byte, 101))))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@x.com"))
	assert.Error(t, ValidateEmail("not-an-email"))
}

func TestValidatePasswordBounds(t *testing.T) {
	assert.Error(t, ValidatePassword("short"))
	assert.NoError(t, ValidatePassword("Passw0rd!!"))
}
