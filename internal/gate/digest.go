package gate

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Digest returns the lowercase hex SHA-256 of passphrase, the form stored
// in rule documents.
func Digest(passphrase string) string {
	sum := sha256.Sum256([]byte(passphrase))
	return hex.EncodeToString(sum[:])
}

// BcryptDigest is an alternative, salted digest accepted by Matches.
func BcryptDigest(passphrase string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Matches reports whether passphrase hashes to digest. Hex digests are
// compared in constant time; bcrypt digests are recognised by prefix.
func Matches(digest, passphrase string) bool {
	digest = strings.TrimSpace(digest)
	if digest == "" {
		return false
	}
	if isBcrypt(digest) {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(passphrase)) == nil
	}
	want := strings.ToLower(digest)
	got := Digest(passphrase)
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") || strings.HasPrefix(digest, "$2b$") || strings.HasPrefix(digest, "$2y$")
}
