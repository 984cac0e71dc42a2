package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// InviteCodeAlphabet excludes characters that are easy to misread (0/O, 1/I/L).
const InviteCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// InviteCodeLength is the number of characters in an invite code.
const InviteCodeLength = 8

const inviteSaltBytes = 16

// ErrMalformedHash is returned when a stored salt or hash cannot be decoded.
var ErrMalformedHash = errors.New("crypto: malformed invite code hash")

// GenerateInviteCode draws an invite code uniformly from InviteCodeAlphabet.
func GenerateInviteCode() (string, error) {
	max := big.NewInt(int64(len(InviteCodeAlphabet)))
	var b strings.Builder
	b.Grow(InviteCodeLength)
	for i := 0; i < InviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		b.WriteByte(InviteCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeInviteCode uppercases the code and drops spaces and hyphens that
// people commonly type when copying a code from an email.
func NormalizeInviteCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.ToUpper(code) {
		switch r {
		case ' ', '-', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// HashInviteCode derives a salted Argon2id hash for code. It returns the hex
// encoded salt and hash for storage.
func HashInviteCode(code string, params Argon2Parameters) (salt string, hash string, err error) {
	raw := make([]byte, inviteSaltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate invite salt: %w", err)
	}
	key, err := DeriveKeyArgon2id([]byte(NormalizeInviteCode(code)), raw, params)
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(raw), hex.EncodeToString(key), nil
}

// VerifyInviteCode re-derives the hash of candidate from the stored salt and
// compares it in constant time.
func VerifyInviteCode(candidate, salt, hash string, params Argon2Parameters) (bool, error) {
	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		return false, ErrMalformedHash
	}
	expected, err := hex.DecodeString(hash)
	if err != nil || len(expected) == 0 {
		return false, ErrMalformedHash
	}
	normalized := NormalizeInviteCode(candidate)
	if normalized == "" {
		return false, nil
	}
	params.KeyLength = uint32(len(expected))
	derived, err := DeriveKeyArgon2id([]byte(normalized), rawSalt, params)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(derived, expected) == 1, nil
}

// InviteCodeLast4 returns the trailing four characters used to help admins
// identify an invite without storing the code.
func InviteCodeLast4(code string) string {
	normalized := NormalizeInviteCode(code)
	if len(normalized) <= 4 {
		return normalized
	}
	return normalized[len(normalized)-4:]
}
