package cryptoutil

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm names a supported password hash format.
type Algorithm string

const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

// ErrUnknownHashFormat is returned when a stored hash has no recognised prefix.
var ErrUnknownHashFormat = errors.New("unknown password hash format")

// DefaultArgon2Params follows the OWASP minimum for argon2id.
var DefaultArgon2Params = &argon2id.Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// DefaultBcryptCost is the work factor for newly created bcrypt hashes.
const DefaultBcryptCost = 12

// Hasher creates password hashes for AdminCredential provisioning.
type Hasher struct {
	Algorithm  Algorithm
	BcryptCost int
	Argon2     *argon2id.Params
}

// NewHasher returns a Hasher for algo with default parameters.
func NewHasher(algo Algorithm) (Hasher, error) {
	switch algo {
	case AlgorithmArgon2id, "":
		return Hasher{Algorithm: AlgorithmArgon2id, Argon2: DefaultArgon2Params}, nil
	case AlgorithmBcrypt:
		return Hasher{Algorithm: AlgorithmBcrypt, BcryptCost: DefaultBcryptCost}, nil
	default:
		return Hasher{}, fmt.Errorf("unsupported hash algorithm %q (valid options: argon2id, bcrypt)", algo)
	}
}

// Hash returns an encoded hash of password.
func (h Hasher) Hash(password string) (string, error) {
	switch h.Algorithm {
	case AlgorithmBcrypt:
		cost := h.BcryptCost
		if cost == 0 {
			cost = DefaultBcryptCost
		}
		b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		if err != nil {
			return "", fmt.Errorf("bcrypt hash: %w", err)
		}
		return string(b), nil
	case AlgorithmArgon2id, "":
		params := h.Argon2
		if params == nil {
			params = DefaultArgon2Params
		}
		s, err := argon2id.CreateHash(password, params)
		if err != nil {
			return "", fmt.Errorf("argon2id hash: %w", err)
		}
		return s, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", h.Algorithm)
	}
}

// DetectAlgorithm identifies the format of an encoded hash.
func DetectAlgorithm(hash string) (Algorithm, error) {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return AlgorithmArgon2id, nil
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return AlgorithmBcrypt, nil
	default:
		return "", ErrUnknownHashFormat
	}
}

// Compare reports whether password matches hash. A mismatch is (false, nil);
// an error means the hash itself could not be used.
func Compare(hash, password string) (bool, error) {
	algo, err := DetectAlgorithm(hash)
	if err != nil {
		return false, err
	}
	switch algo {
	case AlgorithmBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
			return false, nil
		default:
			return false, fmt.Errorf("bcrypt compare: %w", err)
		}
	default:
		ok, err := argon2id.ComparePasswordAndHash(password, hash)
		if err != nil {
			return false, fmt.Errorf("argon2id compare: %w", err)
		}
		return ok, nil
	}
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// CompareDummy burns roughly the same time as a real Compare against a
// default-parameter hash. Used when the username is unknown.
func CompareDummy(password string) {
	dummyOnce.Do(func() {
		buf := make([]byte, 16)
		_, _ = rand.Read(buf)
		dummyHash, _ = Hasher{Algorithm: AlgorithmArgon2id}.Hash(hex.EncodeToString(buf))
	})
	if dummyHash != "" {
		_, _ = Compare(dummyHash, password)
	}
}

// StripWhitespace removes every Unicode whitespace rune from s.
func StripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// CanonicalPassword is the form stored at provisioning time. Verification
// accepts a submitted password whose whitespace-free form matches it.
func CanonicalPassword(password string) string {
	return StripWhitespace(password)
}
