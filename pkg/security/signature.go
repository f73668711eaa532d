package security

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

// SignatureHeader carries "<algorithm>=<hex digest>" of the request body
const SignatureHeader = "X-Signature"

// Supported signature algorithms
const (
	AlgorithmSHA1   = "sha1"
	AlgorithmSHA256 = "sha256"
)

var (
	// ErrSignatureInvalid is returned when the signature is missing, malformed or does not match
	ErrSignatureInvalid = errors.New("invalid signature")

	// ErrUnsupportedAlgorithm is returned when the signature names an unknown digest algorithm
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")
)

var algorithms = map[string]func() hash.Hash{
	AlgorithmSHA1:   sha1.New,
	AlgorithmSHA256: sha256.New,
}

// Verifier checks webhook signatures against a shared secret
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for secret
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("signature secret must not be empty")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify checks header, in "<algorithm>=<hex digest>" form, against the HMAC
// of body. An unknown algorithm yields ErrUnsupportedAlgorithm; every other
// failure yields ErrSignatureInvalid.
func (v *Verifier) Verify(header string, body []byte) error {
	if header == "" {
		return fmt.Errorf("%w: missing %s header", ErrSignatureInvalid, SignatureHeader)
	}

	alg, digest, ok := strings.Cut(header, "=")
	if !ok || alg == "" || digest == "" {
		return fmt.Errorf("%w: expected <algorithm>=<digest>", ErrSignatureInvalid)
	}

	newHash, ok := algorithms[strings.ToLower(alg)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}

	got, err := hex.DecodeString(digest)
	if err != nil {
		return fmt.Errorf("%w: digest is not hex encoded", ErrSignatureInvalid)
	}

	mac := hmac.New(newHash, v.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrSignatureInvalid
	}
	return nil
}

// Sign returns the header value for body using algorithm
func Sign(secret, algorithm string, body []byte) (string, error) {
	newHash, ok := algorithms[strings.ToLower(algorithm)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	return strings.ToLower(algorithm) + "=" + hex.EncodeToString(mac.Sum(nil)), nil
}
