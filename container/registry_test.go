package container

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormats(t *testing.T) {
	assert.Equal(t, []string{"scm", "tsm"}, Formats())
}

func TestNewByName(t *testing.T) {
	for _, name := range Formats() {
		m, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.Format())
		assert.Zero(t, m.PasswordCount())
		assert.False(t, m.Changed())
	}

	_, err := New("xyz")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestLoadUnknownHeader(t *testing.T) {
	_, err := Load(strings.NewReader("!myst_nothing\n\x01\x02abpayload"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestLoadDispatchesOnHeader(t *testing.T) {
	for _, name := range Formats() {
		t.Run(name, func(t *testing.T) {
			m, err := New(name, fastOpts(WithPasswordFunc(StaticPassword("pw")))...)
			require.NoError(t, err)
			require.NoError(t, m.AddPassword("", "pw"))
			require.NoError(t, m.SetCaching(true))
			require.NoError(t, m.Set("name", name))

			var buf bytes.Buffer
			require.NoError(t, Save(m, &buf))

			loaded, err := Load(&buf, WithPasswordFunc(StaticPassword("pw")))
			require.NoError(t, err)
			assert.Equal(t, name, loaded.Format())
			v, err := loaded.Get("name")
			require.NoError(t, err)
			assert.Equal(t, name, v)
		})
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	decode := func(*bufio.Reader, ...Option) (Mystic, error) { return nil, nil }
	blank := func(...Option) Mystic { return nil }

	assert.Panics(t, func() {
		Register(Format{Name: "scm", Header: []byte("!other"), New: blank, Decode: decode})
	})
	assert.Panics(t, func() {
		Register(Format{Name: "other", Header: []byte(SingleCodedHeader), New: blank, Decode: decode})
	})
	assert.Panics(t, func() {
		Register(Format{Name: "incomplete"})
	})
	assert.Equal(t, []string{"scm", "tsm"}, Formats())
}
