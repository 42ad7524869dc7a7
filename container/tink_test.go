package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTinkStreamingRoundTrip(t *testing.T) {
	m := NewTinkStreaming(fastOpts(WithPasswordFunc(StaticPassword("abcd")))...)
	require.NoError(t, m.SetCaching(true))
	require.NoError(t, m.AddPassword("", "abcd"))
	require.NoError(t, m.AddPassword("abcd", "efgh"))
	require.NoError(t, m.Set("one", "1"))
	require.NoError(t, m.Set("two", "2"))
	require.NoError(t, m.Set("three", "שלוש"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("!myst_tink_streaming\n\x02")))

	for _, pw := range []string{"abcd", "efgh"} {
		loaded, err := DecodeTinkStreaming(bytes.NewReader(buf.Bytes()), true, WithPasswordFunc(StaticPassword(pw)))
		require.NoError(t, err)
		assertEntries(t, loaded)
	}

	loaded, err := Load(bytes.NewReader(buf.Bytes()), WithPasswordFunc(StaticPassword("nope")))
	require.NoError(t, err)
	_, err = loaded.Get("one")
	assert.ErrorIs(t, err, ErrBadKey)
}

func TestTinkStreamingPayloadEndingInNewline(t *testing.T) {
	m := NewTinkStreaming(fastOpts()...)
	require.NoError(t, m.SetCaching(true))
	require.NoError(t, m.AddPassword("", "pw"))

	// The last ciphertext byte is random; reseal until it is '\n'.
	var saved []byte
	for i := 0; i < 1<<13 && saved == nil; i++ {
		require.NoError(t, m.Set("n", fmt.Sprint(i)))
		var buf bytes.Buffer
		_, err := m.WriteTo(&buf)
		require.NoError(t, err)
		if buf.Bytes()[buf.Len()-1] == '\n' {
			saved = buf.Bytes()
		}
	}
	require.NotNil(t, saved, "no payload ended in a newline")

	loaded, err := Load(bytes.NewReader(saved), WithPasswordFunc(StaticPassword("pw")))
	require.NoError(t, err)
	ok, err := loaded.Contains("n")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestArgon2WrapRecordsParameters(t *testing.T) {
	w := argon2Wrapper{params: argon2Params{Time: 2, Memory: 128, Threads: 1}}
	master := generateMasterKey()

	wrap, err := w.Wrap(master, []byte("pw"))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(wrap), maxWrapSize)
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(wrap[0:4]))
	assert.Equal(t, uint32(128), binary.BigEndian.Uint32(wrap[4:8]))
	assert.Equal(t, byte(1), wrap[8])

	// Unwrapping uses the recorded parameters, not the wrapper's own.
	other := argon2Wrapper{params: defaultArgon2Params}
	got, err := other.Unwrap(wrap, []byte("pw"))
	require.NoError(t, err)
	assert.Equal(t, master, got)

	_, err = other.Unwrap(wrap, []byte("wrong"))
	assert.ErrorIs(t, err, ErrBadKey)

	tampered := append([]byte(nil), wrap...)
	tampered[3] = 3
	_, err = other.Unwrap(tampered, []byte("pw"))
	assert.ErrorIs(t, err, ErrBadKey)
}

func TestArgon2WrapMalformed(t *testing.T) {
	w := argon2Wrapper{params: argon2Params{Time: 1, Memory: 64, Threads: 1}}

	_, err := w.Unwrap([]byte("short"), []byte("pw"))
	assert.ErrorIs(t, err, ErrFormat)

	wrap, err := w.Wrap(generateMasterKey(), []byte("pw"))
	require.NoError(t, err)
	binary.BigEndian.PutUint32(wrap[0:4], 0)
	_, err = w.Unwrap(wrap, []byte("pw"))
	assert.ErrorIs(t, err, ErrFormat)

	bad := argon2Wrapper{params: argon2Params{Time: 1, Memory: 64, Threads: 0}}
	_, err = bad.Wrap(generateMasterKey(), []byte("pw"))
	assert.ErrorIs(t, err, errArgon2Params)
}

func TestArgon2WrapCostLimits(t *testing.T) {
	w := argon2Wrapper{params: argon2Params{Time: 1, Memory: 64, Threads: 1}}
	wrap, err := w.Wrap(generateMasterKey(), []byte("pw"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		time   uint32
		memory uint32
	}{
		{"memory", 1, MaxArgon2Memory + 1},
		{"time", MaxArgon2Time + 1, 64},
		{"both", 1 << 31, 1 << 31},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			costly := append([]byte(nil), wrap...)
			binary.BigEndian.PutUint32(costly[0:4], tt.time)
			binary.BigEndian.PutUint32(costly[4:8], tt.memory)
			_, err := w.Unwrap(costly, []byte("pw"))
			assert.ErrorIs(t, err, ErrFormat)
		})
	}

	_, err = argon2Wrapper{params: argon2Params{Time: 1, Memory: MaxArgon2Memory + 1, Threads: 1}}.
		Wrap(generateMasterKey(), []byte("pw"))
	assert.ErrorIs(t, err, errArgon2Params)
}

func TestStreamingCodecRejectsWrongKey(t *testing.T) {
	codec := streamingCodec{aad: []byte(TinkStreamingHeader)}
	key := generateMasterKey()

	sealed, err := codec.Seal([]byte(`{"a":"b"}`), key)
	require.NoError(t, err)

	plaintext, err := codec.Open(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"b"}`, string(plaintext))

	_, err = codec.Open(sealed, generateMasterKey())
	assert.ErrorIs(t, err, ErrBadKey)

	_, err = codec.Seal([]byte("x"), []byte("not a key"))
	assert.ErrorIs(t, err, ErrBadKey)
}

func TestMasterKeyText(t *testing.T) {
	a, b := generateMasterKey(), generateMasterKey()
	assert.Len(t, a, 44)
	assert.NotEqual(t, a, b)

	raw, err := rawMasterKey(a)
	require.NoError(t, err)
	assert.Len(t, raw, MasterKeySize)

	e := sealMasterKey(a)
	opened, err := openMasterKey(e)
	require.NoError(t, err)
	assert.Equal(t, a, opened)
}
