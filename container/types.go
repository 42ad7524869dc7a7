package container

import "io"

// PasswordFunc supplies a password for the given prompt. It is called
// whenever an operation needs a password that was not passed explicitly.
type PasswordFunc func(prompt string) (string, error)

// StaticPassword returns a PasswordFunc that always answers password.
func StaticPassword(password string) PasswordFunc {
	return func(string) (string, error) { return password, nil }
}

// State is the access state of a container's decrypted mapping.
type State int

const (
	// Locked containers hold no decrypted mapping. Every operation decrypts
	// the payload into a transient mapping and discards it afterwards, so
	// writes made while Locked are lost.
	Locked State = iota
	// Cached containers keep the decrypted mapping and the master key in
	// memory; writes mutate the mapping and are sealed on save.
	Cached
)

func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case Cached:
		return "cached"
	default:
		return "unknown"
	}
}

// Mystic is an encrypted key/value container unlockable by one or more
// passwords.
//
// Reads and writes follow the State of the container. While Locked, Set and
// Delete only affect a transient copy of the mapping and are not persisted;
// call SetCaching(true) before mutating. Update applies several operations to
// a single mapping in either state.
type Mystic interface {
	io.WriterTo

	// Format returns the registered format name.
	Format() string

	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Contains(key string) (bool, error)
	// Keys returns the keys in lexical order; Values follows the same order.
	Keys() ([]string, error)
	Values() ([]string, error)
	// Items returns a copy of the mapping.
	Items() (map[string]string, error)
	Len() (int, error)
	Update(fn func(m map[string]string) error) error

	SetCaching(enabled bool) error
	State() State
	// Changed reports whether the container holds changes not yet written.
	Changed() bool

	// AddPassword wraps the master key under newPassword. An empty password
	// argument is asked from the PasswordFunc.
	AddPassword(oldPassword, newPassword string) error
	// RemovePassword drops the first wrap that password opens.
	RemovePassword(password string) error
	PasswordCount() int

	SetPasswordFunc(f PasswordFunc)
}
