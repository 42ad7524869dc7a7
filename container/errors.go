package container

import (
	"errors"

	"mystic/envelope"
)

var (
	// ErrBadKey is returned when a password opens none of the password
	// wraps, or when the payload does not authenticate under the master key.
	ErrBadKey = envelope.ErrBadKey

	// ErrFormat is returned for truncated or malformed streams and header
	// mismatches.
	ErrFormat = errors.New("malformed mystic stream")

	// ErrUnknownFormat is returned when a header or a format name is not
	// registered.
	ErrUnknownFormat = errors.New("unknown mystic format")

	// ErrNoPassword is returned when a container without any password is
	// serialized.
	ErrNoPassword = errors.New("mystic has no passwords set, it would be inaccessible")

	// ErrTooManyPasswords is returned when the password table cannot be
	// encoded: more than 255 wraps, or a wrap longer than 255 bytes.
	ErrTooManyPasswords = errors.New("too many passwords")

	// ErrLastPassword is returned when removing the only password.
	ErrLastPassword = errors.New("cannot delete the last password of a mystic")

	// ErrKeyNotFound is returned by Get and Delete for absent keys.
	ErrKeyNotFound = errors.New("key not found")

	// ErrNoPasswordFunc is returned when a password is needed, none was
	// passed and no PasswordFunc is configured.
	ErrNoPasswordFunc = errors.New("password required but no password callback configured")

	// ErrEmptyPassword is returned when a PasswordFunc yields an empty
	// password.
	ErrEmptyPassword = errors.New("password cannot be empty")
)
