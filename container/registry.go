package container

import (
	"bufio"
	"fmt"
	"io"
	"sort"
)

// Format describes a registered container format.
type Format struct {
	// Name is the short name used by New.
	Name string
	// Header is the literal first line of the format's streams.
	Header []byte
	// New returns a blank container.
	New func(opts ...Option) Mystic
	// Decode reads the rest of a stream whose header line was consumed.
	Decode func(r *bufio.Reader, opts ...Option) (Mystic, error)
}

var (
	formatsByHeader = make(map[string]*Format)
	formatsByName   = make(map[string]*Format)
)

// Register adds a format. It is meant to be called from init functions and
// panics when the name or the header is already registered.
func Register(f Format) {
	if f.Name == "" || len(f.Header) == 0 || f.New == nil || f.Decode == nil {
		panic("container: incomplete format registration")
	}
	if _, dup := formatsByName[f.Name]; dup {
		panic(fmt.Sprintf("container: format %q registered twice", f.Name))
	}
	if _, dup := formatsByHeader[string(f.Header)]; dup {
		panic(fmt.Sprintf("container: header %q registered twice", f.Header))
	}
	formatsByName[f.Name] = &f
	formatsByHeader[string(f.Header)] = &f
}

// Formats returns the registered format names in lexical order.
func Formats() []string {
	names := make([]string, 0, len(formatsByName))
	for name := range formatsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns a blank container of the named format.
func New(name string, opts ...Option) (Mystic, error) {
	f, ok := formatsByName[name]
	if !ok {
		return nil, fmt.Errorf("unrecognized format %q: %w", name, ErrUnknownFormat)
	}
	return f.New(opts...), nil
}

// Load reads a container of any registered format from r, dispatching on
// its header line.
func Load(r io.Reader, opts ...Option) (Mystic, error) {
	br := bufio.NewReader(r)
	header, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	f, ok := formatsByHeader[string(header)]
	if !ok {
		return nil, fmt.Errorf("unrecognised file header %q: %w", header, ErrUnknownFormat)
	}
	return f.Decode(br, opts...)
}

// Save writes m to w.
func Save(m Mystic, w io.Writer) error {
	_, err := m.WriteTo(w)
	return err
}
