package container

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteStreamLayout(t *testing.T) {
	var buf bytes.Buffer
	n, err := writeStream(&buf, []byte("!hdr"), [][]byte{[]byte("ab"), []byte("xyz")}, []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "!hdr\n\x02\x02ab\x03xyzpayload", buf.String())
}

func TestReadBody(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("\x02\x02ab\x00payload"))
	wraps, payload, err := readBody(r)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("ab"), {}}, wraps)
	assert.Equal(t, "payload", string(payload))
}

func TestReadHeaderTrimsWhitespace(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("!myst_single_coded \r\nrest"))
	header, err := readHeader(r)
	require.NoError(t, err)
	assert.Equal(t, "!myst_single_coded", string(header))
}

func TestReadMalformed(t *testing.T) {
	tests := []struct {
		name   string
		stream string
	}{
		{"empty", ""},
		{"header without newline", "!myst_single_coded"},
		{"missing count", "!myst_single_coded\n"},
		{"missing wrap length", "!myst_single_coded\n\x01"},
		{"truncated wrap", "!myst_single_coded\n\x01\x05abc"},
		{"missing payload", "!myst_single_coded\n\x01\x02ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSingleCoded(strings.NewReader(tt.stream), true)
			assert.ErrorIs(t, err, ErrFormat)

			_, err = Load(strings.NewReader(tt.stream))
			assert.True(t, errors.Is(err, ErrFormat) || errors.Is(err, ErrUnknownFormat), "got %v", err)
		})
	}
}

func TestPayloadMayEndWithNewline(t *testing.T) {
	m, err := DecodeTinkStreaming(strings.NewReader("!myst_tink_streaming\n\x01\x02ab\x00\x0a"), true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x0a}, m.payload)

	var buf bytes.Buffer
	_, err = writeStream(&buf, []byte(TinkStreamingHeader), m.passwords.wraps, m.payload)
	require.NoError(t, err)
	assert.Equal(t, "!myst_tink_streaming\n\x01\x02ab\x00\x0a", buf.String())
}

func TestHeaderMismatch(t *testing.T) {
	_, err := DecodeSingleCoded(strings.NewReader("!myst_tink_streaming\n\x01\x02abpayload"), true)
	assert.ErrorIs(t, err, ErrFormat)

	_, err = DecodeTinkStreaming(strings.NewReader("!myst_single_coded\n\x01\x02abpayload"), true)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestDecodeWithoutHeaderCheck(t *testing.T) {
	m, err := DecodeSingleCoded(strings.NewReader("\x01\x02abpayload"), false)
	require.NoError(t, err)
	assert.Equal(t, 1, m.PasswordCount())
	assert.Equal(t, "payload", string(m.payload))
	assert.False(t, m.Changed())
	assert.Equal(t, Locked, m.State())
}
