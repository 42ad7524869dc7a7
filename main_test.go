package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mystic/container"
)

func TestParseMemory(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"64", 64 * 1024, false},
		{"64M", 64 * 1024, false},
		{"64mb", 64 * 1024, false},
		{"1G", 1024 * 1024, false},
		{"2048K", 2048, false},
		{"1024M", 1024 * 1024, false},
		{"2G", 0, true},
		{"512K", 0, true},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMemory(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"file.myst", "-f=tsm", "key", "--iterations=5000", "-m=1G", "-t=2", "-V", "value"})
	require.NoError(t, err)
	assert.Equal(t, "tsm", opts.Format)
	assert.Equal(t, uint64(5000), opts.Iterations)
	assert.Equal(t, uint32(1024*1024), opts.Argon2Memory)
	assert.Equal(t, uint32(2), opts.Argon2Time)
	assert.True(t, opts.Verbose)
	assert.Equal(t, []string{"file.myst", "key", "value"}, opts.Args)

	_, err = parseOptions([]string{"--bogus"})
	assert.Error(t, err)

	_, err = parseOptions([]string{"-i=0"})
	assert.Error(t, err)

	_, err = parseOptions([]string{"-t=65"})
	assert.Error(t, err)
}

func runOK(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, run(append(args, "-i=1000"), &out))
	return out.String()
}

func TestCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.myst")
	t.Setenv(PassphraseEnvVar, "abcd")
	t.Setenv(NewPassphraseEnvVar, "abcd")

	runOK(t, "new", path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte(container.SingleCodedHeader+"\n\x01")))

	runOK(t, "set", path, "one", "1")
	runOK(t, "set", path, "two", "שתיים")
	assert.Equal(t, "1\n", runOK(t, "get", path, "one"))
	assert.Equal(t, "שתיים\n", runOK(t, "get", path, "two"))
	assert.Equal(t, "one\ntwo\n", runOK(t, "list", path))

	runOK(t, "del", path, "one")
	assert.Equal(t, "two\n", runOK(t, "list", path))

	t.Setenv(NewPassphraseEnvVar, "efgh")
	runOK(t, "passwd-add", path)

	t.Setenv(PassphraseEnvVar, "efgh")
	assert.Equal(t, "שתיים\n", runOK(t, "get", path, "two"))

	t.Setenv(PassphraseEnvVar, "abcd")
	runOK(t, "passwd-remove", path)

	err = run([]string{"get", path, "two"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, container.ErrBadKey)

	t.Setenv(PassphraseEnvVar, "efgh")
	err = run([]string{"passwd-remove", path}, &bytes.Buffer{})
	assert.ErrorIs(t, err, container.ErrLastPassword)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(PassphraseEnvVar, "abcd")
	t.Setenv(NewPassphraseEnvVar, "abcd")

	assert.Error(t, run(nil, &bytes.Buffer{}))
	assert.Error(t, run([]string{"frobnicate"}, &bytes.Buffer{}))
	assert.Error(t, run([]string{"get"}, &bytes.Buffer{}))

	err := run([]string{"new", filepath.Join(dir, "x.myst"), "-f=nope"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, container.ErrUnknownFormat)

	path := filepath.Join(dir, "a.myst")
	runOK(t, "new", path)
	assert.Error(t, run([]string{"new", path}, &bytes.Buffer{}), "refuses to overwrite")

	err = run([]string{"get", path, "missing"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, container.ErrKeyNotFound)

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("not a mystic\n"), 0o600))
	err = run([]string{"list", garbage}, &bytes.Buffer{})
	assert.ErrorIs(t, err, container.ErrUnknownFormat)
}

func TestFormatsCommand(t *testing.T) {
	assert.Equal(t, "scm\ntsm\n", runOK(t, "formats"))
}
