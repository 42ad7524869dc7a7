package container

import (
	"encoding/base64"
	"fmt"
	"runtime"

	"github.com/awnumar/memguard"
)

// MasterKeySize is the size of the random key that encrypts the payload.
const MasterKeySize = 32

// Wraps carry the master key as URL-safe base64 text (the Fernet key
// encoding), not as raw bytes.
var masterTextSize = base64.URLEncoding.EncodedLen(MasterKeySize)

// generateMasterKey returns a fresh master key in its text form.
func generateMasterKey() []byte {
	buf := memguard.NewBufferRandom(MasterKeySize)
	defer buf.Destroy()

	text := make([]byte, masterTextSize)
	base64.URLEncoding.Encode(text, buf.Bytes())
	return text
}

// rawMasterKey decodes the text form of a master key.
func rawMasterKey(text []byte) ([]byte, error) {
	if len(text) != masterTextSize {
		return nil, fmt.Errorf("master key text is %d bytes; want %d: %w", len(text), masterTextSize, ErrBadKey)
	}
	raw := make([]byte, MasterKeySize)
	n, err := base64.URLEncoding.Decode(raw, text)
	if err != nil || n != MasterKeySize {
		zeroBytes(raw)
		return nil, fmt.Errorf("master key is not valid base64: %w", ErrBadKey)
	}
	return raw, nil
}

// sealMasterKey moves a copy of key into an encrypted memguard enclave.
func sealMasterKey(key []byte) *memguard.Enclave {
	return memguard.NewEnclave(append([]byte(nil), key...))
}

// openMasterKey returns a copy of the enclave contents. The caller wipes it
// with zeroBytes.
func openMasterKey(e *memguard.Enclave) ([]byte, error) {
	buf, err := e.Open()
	if err != nil {
		return nil, fmt.Errorf("cannot open master key enclave: %w", err)
	}
	defer buf.Destroy()
	return append([]byte(nil), buf.Bytes()...), nil
}

// zeroBytes overwrites a byte slice with zeros
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
