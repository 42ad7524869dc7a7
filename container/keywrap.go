package container

import "mystic/envelope"

// KeyWrapper encrypts the master key under a human password. Unwrap returns
// an error matching ErrBadKey when the password does not open the wrap.
type KeyWrapper interface {
	Wrap(master, password []byte) ([]byte, error)
	Unwrap(wrap, password []byte) ([]byte, error)
}

// envelopeWrapper wraps keys as envelope records with embedded salt and
// iteration count.
type envelopeWrapper struct {
	iterations uint64
}

func (w envelopeWrapper) Wrap(master, password []byte) ([]byte, error) {
	return envelope.Encrypt(master, password, envelope.WithIterations(w.iterations))
}

func (w envelopeWrapper) Unwrap(wrap, password []byte) ([]byte, error) {
	return envelope.Decrypt(wrap, password)
}
