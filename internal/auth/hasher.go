package auth

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// Credential hash envelope:
//
//	[version:1][prf:4 BE][iterations:4 BE][saltLen:4 BE][salt][subkey]
//
// The layout is self-describing so stored hashes remain verifiable after
// the derivation defaults change. New hashes use PBKDF2-HMAC-SHA512;
// verification honours whatever parameters the envelope declares.
const (
	envelopeVersion = 0x01
	headerLength    = 13

	prfHMACSHA1   = 0
	prfHMACSHA256 = 1
	prfHMACSHA512 = 2

	hashIterations = 100_000
	saltLength     = 16 // 128 bits
	subkeyLength   = 32 // 256 bits

	minSaltLength   = 16
	minSubkeyLength = 16
)

// CredentialHasher derives and verifies password hashes.
type CredentialHasher struct{}

func NewCredentialHasher() *CredentialHasher { return &CredentialHasher{} }

// Hash derives a salted subkey from password and returns the encoded
// envelope. Callers may transport the bytes as base64.
func (h *CredentialHasher) Hash(password string) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	subkey := pbkdf2.Key([]byte(password), salt, hashIterations, subkeyLength, sha512.New)

	buf := make([]byte, headerLength+len(salt)+len(subkey))
	buf[0] = envelopeVersion
	binary.BigEndian.PutUint32(buf[1:5], prfHMACSHA512)
	binary.BigEndian.PutUint32(buf[5:9], hashIterations)
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(salt)))
	copy(buf[headerLength:], salt)
	copy(buf[headerLength+len(salt):], subkey)
	return buf, nil
}

// Verify re-derives a subkey from candidate using the parameters embedded
// in encoded and compares it against the stored subkey in constant time.
// Malformed input of any kind verifies as false; it is indistinguishable
// from a wrong password to the caller.
func (h *CredentialHasher) Verify(encoded []byte, candidate string) bool {
	if len(encoded) < headerLength || encoded[0] != envelopeVersion {
		return false
	}
	prf := binary.BigEndian.Uint32(encoded[1:5])
	iterations := binary.BigEndian.Uint32(encoded[5:9])
	saltLen := int(binary.BigEndian.Uint32(encoded[9:13]))
	if iterations < 1 || saltLen < minSaltLength {
		return false
	}
	if len(encoded) < headerLength+saltLen+minSubkeyLength {
		return false
	}

	var newHash func() hash.Hash
	switch prf {
	case prfHMACSHA1:
		newHash = sha1.New
	case prfHMACSHA256:
		newHash = sha256.New
	case prfHMACSHA512:
		newHash = sha512.New
	default:
		return false
	}

	salt := encoded[headerLength : headerLength+saltLen]
	expected := encoded[headerLength+saltLen:]
	derived := pbkdf2.Key([]byte(candidate), salt, int(iterations), len(expected), newHash)
	return subtle.ConstantTimeCompare(derived, expected) == 1
}
