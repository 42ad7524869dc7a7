package container

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tink-crypto/tink-go/v2/insecurecleartextkeyset"
	"github.com/tink-crypto/tink-go/v2/keyset"
	"github.com/tink-crypto/tink-go/v2/streamingaead"
	"github.com/tink-crypto/tink-go/v2/tink"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Tink streaming mystic: password wraps are sealed with XChaCha20-Poly1305
// under an Argon2id key, the payload is a Tink AES256-GCM-HKDF streaming
// ciphertext under the master key.
const (
	TinkStreamingName   = "tsm"
	TinkStreamingHeader = "!myst_tink_streaming"
)

const (
	// Argon2id fixed parameters
	argon2KeyLen = 32
	wrapSaltLen  = 16
)

// Largest Argon2id costs a tsm password wrap may carry. Wraps read from a
// file are checked against them before any key is derived.
const (
	MaxArgon2Time   = 64
	MaxArgon2Memory = 1 << 20 // KiB, 1 GiB
)

// wrap layout: time(4) memory(4) threads(1) salt(16) nonce(24) ciphertext
const wrapParamsLen = 4 + 4 + 1

var defaultArgon2Params = argon2Params{Time: 3, Memory: 64 * 1024, Threads: 4}

func init() {
	Register(Format{
		Name:   TinkStreamingName,
		Header: []byte(TinkStreamingHeader),
		New: func(opts ...Option) Mystic {
			return NewTinkStreaming(opts...)
		},
		Decode: func(r *bufio.Reader, opts ...Option) (Mystic, error) {
			m, err := DecodeTinkStreaming(r, false, opts...)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
	})
}

// TinkStreaming is the tsm container format.
type TinkStreaming struct {
	container
}

func newTinkStreaming(cfg config) *TinkStreaming {
	return &TinkStreaming{
		container: newContainer(
			TinkStreamingName,
			[]byte(TinkStreamingHeader),
			argon2Wrapper{params: cfg.argon2},
			streamingCodec{aad: []byte(TinkStreamingHeader)},
			cfg,
		),
	}
}

// NewTinkStreaming returns a blank tsm container without passwords.
func NewTinkStreaming(opts ...Option) *TinkStreaming {
	m := newTinkStreaming(buildConfig(opts))
	m.initBlank()
	return m
}

// DecodeTinkStreaming reads a tsm container from r. With checkHeader set the
// stream must start with the tsm header line.
func DecodeTinkStreaming(r io.Reader, checkHeader bool, opts ...Option) (*TinkStreaming, error) {
	br := bufio.NewReader(r)
	if checkHeader {
		if err := expectHeader(br, []byte(TinkStreamingHeader)); err != nil {
			return nil, err
		}
	}
	wraps, payload, err := readBody(br)
	if err != nil {
		return nil, err
	}
	m := newTinkStreaming(buildConfig(opts))
	m.initDecoded(wraps, payload)
	return m, nil
}

// argon2Wrapper seals the master key under an Argon2id-derived key. Each wrap
// records the parameters it was made with.
type argon2Wrapper struct {
	params argon2Params
}

func (w argon2Wrapper) Wrap(master, password []byte) ([]byte, error) {
	if err := w.params.validate(); err != nil {
		return nil, err
	}
	salt := make([]byte, wrapSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := deriveKey(password, salt, w.params.Time, w.params.Memory, w.params.Threads, argon2KeyLen)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create wrap cipher: %w", err)
	}

	out := make([]byte, 0, wrapParamsLen+wrapSaltLen+aead.NonceSize()+len(master)+aead.Overhead())
	out = binary.BigEndian.AppendUint32(out, w.params.Time)
	out = binary.BigEndian.AppendUint32(out, w.params.Memory)
	out = append(out, w.params.Threads)
	out = append(out, salt...)

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	out = append(out, nonce...)
	ad := append([]byte(nil), out[:wrapParamsLen]...)
	return aead.Seal(out, nonce, master, ad), nil
}

func (w argon2Wrapper) Unwrap(wrap, password []byte) ([]byte, error) {
	nonceStart := wrapParamsLen + wrapSaltLen
	if len(wrap) < nonceStart+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("password wrap is truncated (%d bytes): %w", len(wrap), ErrFormat)
	}
	params := argon2Params{
		Time:    binary.BigEndian.Uint32(wrap[0:4]),
		Memory:  binary.BigEndian.Uint32(wrap[4:8]),
		Threads: wrap[8],
	}
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("password wrap: %v: %w", err, ErrFormat)
	}
	salt := wrap[wrapParamsLen:nonceStart]
	nonce := wrap[nonceStart : nonceStart+chacha20poly1305.NonceSizeX]
	ciphertext := wrap[nonceStart+chacha20poly1305.NonceSizeX:]

	key := deriveKey(password, salt, params.Time, params.Memory, params.Threads, argon2KeyLen)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create wrap cipher: %w", err)
	}
	master, err := aead.Open(nil, nonce, ciphertext, wrap[:wrapParamsLen])
	if err != nil {
		return nil, ErrBadKey
	}
	return master, nil
}

// streamingCodec encrypts payloads with Tink streaming AEAD keyed by the raw
// master key.
type streamingCodec struct {
	aad []byte
}

func (s streamingCodec) primitive(master []byte) (tink.StreamingAEAD, error) {
	raw, err := rawMasterKey(master)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(raw)

	keysetHandle, err := createKeysetFromKey(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyset: %w", err)
	}
	primitive, err := streamingaead.New(keysetHandle)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming AEAD: %w", err)
	}
	return primitive, nil
}

func (s streamingCodec) Seal(plaintext, master []byte) ([]byte, error) {
	primitive, err := s.primitive(master)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	encWriter, err := primitive.NewEncryptingWriter(&buf, s.aad)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypting writer: %w", err)
	}
	if _, err := encWriter.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encryption failed: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize encryption: %w", err)
	}
	return buf.Bytes(), nil
}

func (s streamingCodec) Open(payload, master []byte) ([]byte, error) {
	primitive, err := s.primitive(master)
	if err != nil {
		return nil, err
	}

	decReader, err := primitive.NewDecryptingReader(bytes.NewReader(payload), s.aad)
	if err != nil {
		return nil, fmt.Errorf("failed to create decrypting reader: %v: %w", err, ErrBadKey)
	}
	plaintext, err := io.ReadAll(decReader)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong key or corrupted data?): %v: %w", err, ErrBadKey)
	}
	return plaintext, nil
}

// argon2Params are the Argon2id costs of one password wrap.
type argon2Params struct {
	Time    uint32
	Memory  uint32 // in KiB
	Threads uint8
}

var errArgon2Params = errors.New("argon2 parameters out of range")

func (p argon2Params) validate() error {
	if p.Time < 1 || p.Time > MaxArgon2Time || p.Memory < 8*uint32(p.Threads) || p.Memory > MaxArgon2Memory || p.Threads < 1 {
		return fmt.Errorf("time=%d memory=%d threads=%d: %w", p.Time, p.Memory, p.Threads, errArgon2Params)
	}
	return nil
}

// deriveKey derives an encryption key from a passphrase using Argon2id
func deriveKey(passphrase, salt []byte, time, memory uint32, threads uint8, keyLen uint32) []byte {
	return argon2.IDKey(passphrase, salt, time, memory, threads, keyLen)
}

// createKeysetFromKey creates a Tink keyset handle from a raw key
func createKeysetFromKey(key []byte) (*keyset.Handle, error) {
	// Tink keyset JSON format for AES-GCM-HKDF streaming key
	keyValue := base64.StdEncoding.EncodeToString(buildAesGcmHkdfStreamingKeyValue(key))

	keysetJSON := fmt.Sprintf(`{
		"primaryKeyId": 1,
		"key": [{
			"keyData": {
				"typeUrl": "type.googleapis.com/google.crypto.tink.AesGcmHkdfStreamingKey",
				"keyMaterialType": "SYMMETRIC",
				"value": "%s"
			},
			"outputPrefixType": "RAW",
			"keyId": 1,
			"status": "ENABLED"
		}]
	}`, keyValue)

	return insecurecleartextkeyset.Read(
		keyset.NewJSONReader(strings.NewReader(keysetJSON)),
	)
}

// buildAesGcmHkdfStreamingKeyValue builds the protobuf-encoded key value
func buildAesGcmHkdfStreamingKeyValue(key []byte) []byte {
	// See: https://github.com/tink-crypto/tink/blob/master/proto/aes_gcm_hkdf_streaming.proto
	segmentSize := uint32(1048576) // 1MB
	derivedKeySize := uint32(32)   // AES-256
	hkdfHashType := uint32(3)      // SHA256

	params := []byte{0x08} // ciphertext_segment_size
	params = append(params, encodeVarint(segmentSize)...)
	params = append(params, 0x10) // derived_key_size
	params = append(params, encodeVarint(derivedKeySize)...)
	params = append(params, 0x18) // hkdf_hash_type
	params = append(params, encodeVarint(hkdfHashType)...)

	result := []byte{0x08, 0x00} // version = 0
	result = append(result, 0x12, byte(len(params)))
	result = append(result, params...)
	result = append(result, 0x1a, byte(len(key)))
	return append(result, key...)
}

func encodeVarint(v uint32) []byte {
	var buf []byte
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}
