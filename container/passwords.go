package container

import (
	"errors"
	"fmt"
)

// MaxPasswords is the largest number of password wraps a container stores.
const MaxPasswords = 255

// maxWrapSize is the largest wrap the one-byte length prefix can describe.
const maxWrapSize = 255

// passwordSet is the ordered sequence of password wraps of a container. Each
// wrap holds the same master key encrypted under a different password; order
// is insertion order and survives save and load.
type passwordSet struct {
	wraps   [][]byte
	wrapper KeyWrapper
}

func newPasswordSet(wrapper KeyWrapper, wraps [][]byte) passwordSet {
	return passwordSet{wraps: wraps, wrapper: wrapper}
}

// Len returns the number of wraps.
func (ps *passwordSet) Len() int {
	return len(ps.wraps)
}

// Wraps returns a copy of the wrap sequence.
func (ps *passwordSet) Wraps() [][]byte {
	out := make([][]byte, len(ps.wraps))
	for i, w := range ps.wraps {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Resolve tries password against each wrap in order and returns the master
// key held by the first one it opens.
func (ps *passwordSet) Resolve(password []byte) ([]byte, error) {
	_, master, err := ps.find(password)
	return master, err
}

// find returns the index and plaintext of the first wrap password opens.
func (ps *passwordSet) find(password []byte) (int, []byte, error) {
	for i, wrap := range ps.wraps {
		master, err := ps.wrapper.Unwrap(wrap, password)
		if err == nil {
			return i, master, nil
		}
		if !errors.Is(err, ErrBadKey) {
			return -1, nil, fmt.Errorf("password wrap %d: %w", i, err)
		}
	}
	return -1, nil, ErrBadKey
}

// Add wraps master under password and appends the wrap.
func (ps *passwordSet) Add(master, password []byte) error {
	if len(ps.wraps) >= MaxPasswords {
		return fmt.Errorf("mystic already holds %d passwords: %w", len(ps.wraps), ErrTooManyPasswords)
	}
	wrap, err := ps.wrapper.Wrap(master, password)
	if err != nil {
		return fmt.Errorf("cannot wrap master key: %w", err)
	}
	if len(wrap) > maxWrapSize {
		return fmt.Errorf("password wrap is %d bytes: %w", len(wrap), ErrTooManyPasswords)
	}
	ps.wraps = append(ps.wraps, wrap)
	return nil
}

// Remove deletes the first wrap that password opens. The key inside is not
// compared with anything; opening the wrap is enough to identify it.
func (ps *passwordSet) Remove(password []byte) error {
	if len(ps.wraps) == 1 {
		return ErrLastPassword
	}
	if len(ps.wraps) == 0 {
		return ErrNoPassword
	}
	i, master, err := ps.find(password)
	if err != nil {
		return err
	}
	zeroBytes(master)
	ps.wraps = append(ps.wraps[:i:i], ps.wraps[i+1:]...)
	return nil
}
