package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/pbkdf2"
)

// DefaultIterations is the PBKDF2 iteration count used by Encrypt.
const DefaultIterations = 100000

const keySize = 32

// Fernet token: version(1) timestamp(8) IV(16) ciphertext(n*16) HMAC(32)
const (
	tokenOverhead = 1 + 8 + 16 + sha256.Size
	tokenBlock    = 16
)

var (
	// ErrBadKey is returned when a record does not authenticate under the
	// derived key. A wrong password and corrupted data look the same.
	ErrBadKey = errors.New("bad key")

	// ErrMissingParameter is returned when neither the record nor the caller
	// provides the salt or the iteration count.
	ErrMissingParameter = errors.New("missing key derivation parameter")

	// ErrMalformed is returned when a record cannot be parsed.
	ErrMalformed = errors.New("malformed envelope")
)

// ZeroSalt returns the fixed salt used when Encrypt neither embeds nor is
// given a salt. Records sealed with it must be decrypted with
// WithSalt(ZeroSalt()).
func ZeroSalt() []byte {
	return make([]byte, SaltSize)
}

type options struct {
	iterations      uint64
	salt            []byte
	embedSalt       bool
	embedIterations bool
}

// Option configures Encrypt and Decrypt.
type Option func(*options)

// WithIterations sets the PBKDF2 iteration count. For Decrypt it is only used
// when the record does not embed one.
func WithIterations(n uint64) Option {
	return func(o *options) { o.iterations = n }
}

// WithSalt sets the PBKDF2 salt. For Decrypt it is only used when the record
// does not embed one.
func WithSalt(salt []byte) Option {
	return func(o *options) { o.salt = salt }
}

// WithoutEmbeddedSalt leaves the salt out of the record. Unless a salt is
// given with WithSalt, ZeroSalt is used.
func WithoutEmbeddedSalt() Option {
	return func(o *options) { o.embedSalt = false }
}

// WithoutEmbeddedIterations leaves the iteration count out of the record.
func WithoutEmbeddedIterations() Option {
	return func(o *options) { o.embedIterations = false }
}

// Encrypt seals plaintext under a key derived from password and returns the
// encoded record.
func Encrypt(plaintext, password []byte, opts ...Option) ([]byte, error) {
	o := options{
		iterations:      DefaultIterations,
		embedSalt:       true,
		embedIterations: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := checkIterations(o.iterations); err != nil {
		return nil, err
	}

	salt := o.salt
	if salt == nil {
		salt = ZeroSalt()
		if o.embedSalt {
			if _, err := rand.Read(salt); err != nil {
				return nil, fmt.Errorf("failed to generate salt: %w", err)
			}
		}
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("invalid salt length %d; want %d", len(salt), SaltSize)
	}

	key := deriveKey(password, salt, o.iterations)
	defer zeroBytes(key[:])

	token, err := fernet.EncryptAndSign(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt: %w", err)
	}

	rec := Record{Token: token}
	if o.embedSalt {
		rec.Salt = salt
	}
	if o.embedIterations {
		rec.Iterations = o.iterations
	}
	return rec.Marshal(), nil
}

// Decrypt opens an encoded record with password. Salt and iteration count
// are taken from the record, falling back to WithSalt and WithIterations.
func Decrypt(record, password []byte, opts ...Option) ([]byte, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rec, err := Parse(record)
	if err != nil {
		return nil, err
	}

	salt := rec.Salt
	if salt == nil {
		salt = o.salt
	}
	iterations := rec.Iterations
	if iterations == 0 {
		iterations = o.iterations
	}
	if salt == nil && iterations == 0 {
		return nil, fmt.Errorf("salt and iterations: %w", ErrMissingParameter)
	}
	if salt == nil {
		return nil, fmt.Errorf("salt: %w", ErrMissingParameter)
	}
	if iterations == 0 {
		return nil, fmt.Errorf("iterations: %w", ErrMissingParameter)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("invalid salt length %d; want %d", len(salt), SaltSize)
	}
	if err := checkIterations(iterations); err != nil {
		return nil, err
	}

	if !wellFormedToken(rec.Token) {
		return nil, ErrBadKey
	}

	key := deriveKey(password, salt, iterations)
	defer zeroBytes(key[:])

	// A negative TTL disables the token age check.
	plaintext := fernet.VerifyAndDecrypt(rec.Token, -1, []*fernet.Key{key})
	if plaintext == nil {
		return nil, ErrBadKey
	}
	return plaintext, nil
}

// wellFormedToken reports whether token decodes to a plausible Fernet token.
func wellFormedToken(token []byte) bool {
	raw, err := base64.URLEncoding.DecodeString(string(token))
	if err != nil {
		return false
	}
	body := len(raw) - tokenOverhead
	return body >= tokenBlock && body%tokenBlock == 0
}

func checkIterations(n uint64) error {
	if n == 0 || n > math.MaxInt32 {
		return fmt.Errorf("iteration count %d out of range: %w", n, ErrMalformed)
	}
	return nil
}

// deriveKey runs PBKDF2-HMAC-SHA256 and uses the result as a Fernet key.
// The 32 bytes are exactly what the URL-safe base64 Fernet key text decodes to.
func deriveKey(password, salt []byte, iterations uint64) *fernet.Key {
	dk := pbkdf2.Key(password, salt, int(iterations), keySize, sha256.New)
	defer zeroBytes(dk)

	var key fernet.Key
	copy(key[:], dk)
	return &key
}

// zeroBytes overwrites a byte slice with zeros
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
