// Package security implements password hashing (scrypt, PHC string format)
// and the validation rules spec.md §6/§9 mark as "external interface
// contracts": email pattern matching and the username/email/password length
// bounds create-account and login both enforce.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/scrypt"

	"github.com/anarthal/servertech-chat-sub000/internal/apperr"
)

// scrypt parameters. N must be a power of two; these match the
// conservative defaults golang.org/x/crypto/scrypt's own docs recommend for
// interactive logins.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	scryptSaltLen = 16
)

// HashPassword derives a PHC-formatted scrypt hash for plaintext.
func HashPassword(plaintext string) (string, error) {
	salt := make([]byte, scryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", apperr.Of(apperr.KindUnknown, err)
	}
	hash, err := scrypt.Key([]byte(plaintext), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", apperr.Of(apperr.KindUnknown, err)
	}
	return formatPHC(salt, hash), nil
}

// VerifyPassword reports whether plaintext matches the PHC-formatted hash
// previously returned by HashPassword. A malformed hash string is treated
// as a mismatch, never an error — callers collapse this into LOGIN_FAILED
// regardless of the reason.
func VerifyPassword(plaintext, phc string) bool {
	salt, want, params, err := parsePHC(phc)
	if err != nil {
		return false
	}
	// Re-derive with the cost parameters recorded in the stored hash, not
	// the package's current constants, so tuning scryptN/R/P later doesn't
	// invalidate hashes minted under the old cost.
	n := 1 << uint(params["ln"])
	got, err := scrypt.Key([]byte(plaintext), salt, n, params["r"], params["p"], len(want))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

// formatPHC serializes salt/hash as "$scrypt$ln=15,r=8,p=1$<salt>$<hash>",
// base64 (no padding) for the variable-length fields.
func formatPHC(salt, hash []byte) string {
	ln := 0
	for n := scryptN; n > 1; n >>= 1 {
		ln++
	}
	return fmt.Sprintf("$scrypt$ln=%d,r=%d,p=%d$%s$%s",
		ln, scryptR, scryptP,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

func parsePHC(phc string) (salt, hash []byte, params map[string]int, err error) {
	parts := strings.Split(phc, "$")
	// parts[0] is "" (leading $); parts = ["", "scrypt", "ln=..,r=..,p=..", salt, hash]
	if len(parts) != 5 || parts[1] != "scrypt" {
		return nil, nil, nil, fmt.Errorf("security: malformed PHC string")
	}
	params, err = parseParams(parts[2])
	if err != nil {
		return nil, nil, nil, err
	}
	for _, key := range []string{"ln", "r", "p"} {
		if _, ok := params[key]; !ok {
			return nil, nil, nil, fmt.Errorf("security: PHC string missing %q parameter", key)
		}
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, nil, nil, err
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, err
	}
	return salt, hash, params, nil
}

func parseParams(s string) (map[string]int, error) {
	out := make(map[string]int)
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("security: malformed PHC parameter %q", kv)
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, nil
}

// emailPattern is a pragmatic, non-exhaustive email shape check — spec.md
// §6 asks only that it "matches email regex", not that it fully implement
// RFC 5322.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateUsername enforces the 4-100 code point bound (spec.md §6).
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < 4 || n > 100 {
		return apperr.Of(apperr.KindBadRequest, fmt.Errorf("username must be 4-100 characters, got %d", n))
	}
	return nil
}

// ValidateEmail enforces the <=100 code point bound and the email regex.
func ValidateEmail(email string) error {
	if utf8.RuneCountInString(email) > 100 {
		return apperr.Of(apperr.KindBadRequest, fmt.Errorf("email must be at most 100 characters"))
	}
	if !emailPattern.MatchString(email) {
		return apperr.Of(apperr.KindBadRequest, fmt.Errorf("email does not match the expected pattern"))
	}
	return nil
}

// ValidatePassword enforces the 10-100 code point bound.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < 10 || n > 100 {
		return apperr.Of(apperr.KindBadRequest, fmt.Errorf("password must be 10-100 characters, got %d", n))
	}
	return nil
}
