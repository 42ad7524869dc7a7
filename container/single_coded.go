package container

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"mystic/envelope"
)

// Single coded mystic: password wraps and payload are envelope records. The
// payload record is sealed with the master key text as its password.
const (
	SingleCodedName   = "scm"
	SingleCodedHeader = "!myst_single_coded"
)

func init() {
	Register(Format{
		Name:   SingleCodedName,
		Header: []byte(SingleCodedHeader),
		New: func(opts ...Option) Mystic {
			return NewSingleCoded(opts...)
		},
		Decode: func(r *bufio.Reader, opts ...Option) (Mystic, error) {
			m, err := DecodeSingleCoded(r, false, opts...)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
	})
}

// SingleCoded is the scm container format.
type SingleCoded struct {
	container
}

// envelopeCodec seals payloads as envelope records.
type envelopeCodec struct {
	iterations uint64
}

func (e envelopeCodec) Seal(plaintext, master []byte) ([]byte, error) {
	return envelope.Encrypt(plaintext, master, envelope.WithIterations(e.iterations))
}

func (e envelopeCodec) Open(payload, master []byte) ([]byte, error) {
	return envelope.Decrypt(payload, master)
}

func newSingleCoded(cfg config) *SingleCoded {
	return &SingleCoded{
		container: newContainer(
			SingleCodedName,
			[]byte(SingleCodedHeader),
			envelopeWrapper{iterations: cfg.iterations},
			envelopeCodec{iterations: cfg.iterations},
			cfg,
		),
	}
}

// NewSingleCoded returns a blank scm container without passwords.
func NewSingleCoded(opts ...Option) *SingleCoded {
	m := newSingleCoded(buildConfig(opts))
	m.initBlank()
	return m
}

// DecodeSingleCoded reads an scm container from r. With checkHeader set the
// stream must start with the scm header line; otherwise the header has
// already been consumed.
func DecodeSingleCoded(r io.Reader, checkHeader bool, opts ...Option) (*SingleCoded, error) {
	br := bufio.NewReader(r)
	if checkHeader {
		if err := expectHeader(br, []byte(SingleCodedHeader)); err != nil {
			return nil, err
		}
	}
	wraps, payload, err := readBody(br)
	if err != nil {
		return nil, err
	}
	m := newSingleCoded(buildConfig(opts))
	m.initDecoded(wraps, payload)
	return m, nil
}

// expectHeader consumes the header line and compares it with want.
func expectHeader(r *bufio.Reader, want []byte) error {
	header, err := readHeader(r)
	if err != nil {
		return err
	}
	if !bytes.Equal(header, want) {
		return fmt.Errorf("header mismatch, expected %q, got %q: %w", want, header, ErrFormat)
	}
	return nil
}
