package envelope

import (
	"encoding/binary"
	"fmt"
)

const (
	// SaltSize is the size of the PBKDF2 salt carried by a record.
	SaltSize = 16

	iterSize = 8
	flagSize = 2
)

const (
	flagAbsent  byte = 0x00
	flagPresent byte = 0x01
)

// Record is the decoded form of an envelope. A nil Salt or a zero Iterations
// means the value was not embedded and must be supplied by the caller.
type Record struct {
	Salt       []byte
	Iterations uint64
	Token      []byte
}

// Parse splits an encoded envelope into its parts without decrypting it.
func Parse(b []byte) (Record, error) {
	var rec Record

	present, rest, err := readFlag(b, "salt")
	if err != nil {
		return Record{}, err
	}
	if present {
		if len(rest) < SaltSize {
			return Record{}, fmt.Errorf("salt is truncated (%d bytes): %w", len(rest), ErrMalformed)
		}
		rec.Salt = append([]byte(nil), rest[:SaltSize]...)
		rest = rest[SaltSize:]
	}

	present, rest, err = readFlag(rest, "iteration")
	if err != nil {
		return Record{}, err
	}
	if present {
		if len(rest) < iterSize {
			return Record{}, fmt.Errorf("iteration count is truncated (%d bytes): %w", len(rest), ErrMalformed)
		}
		rec.Iterations = binary.BigEndian.Uint64(rest[:iterSize])
		rest = rest[iterSize:]
	}

	rec.Token = rest
	return rec, nil
}

func readFlag(b []byte, name string) (bool, []byte, error) {
	if len(b) < flagSize {
		return false, nil, fmt.Errorf("%s flag is truncated: %w", name, ErrMalformed)
	}
	if b[0] != 0 {
		return false, nil, fmt.Errorf("%s flag padding is 0x%02x: %w", name, b[0], ErrMalformed)
	}
	switch b[1] {
	case flagAbsent:
		return false, b[flagSize:], nil
	case flagPresent:
		return true, b[flagSize:], nil
	default:
		return false, nil, fmt.Errorf("%s flag is 0x%02x: %w", name, b[1], ErrMalformed)
	}
}

// Marshal encodes the record. The salt is embedded when non-nil and the
// iteration count when non-zero.
func (rec Record) Marshal() []byte {
	size := 2*flagSize + len(rec.Salt) + len(rec.Token)
	if rec.Iterations != 0 {
		size += iterSize
	}
	out := make([]byte, 0, size)

	if rec.Salt != nil {
		out = append(out, 0, flagPresent)
		out = append(out, rec.Salt...)
	} else {
		out = append(out, 0, flagAbsent)
	}

	if rec.Iterations != 0 {
		out = append(out, 0, flagPresent)
		out = binary.BigEndian.AppendUint64(out, rec.Iterations)
	} else {
		out = append(out, 0, flagAbsent)
	}

	return append(out, rec.Token...)
}
