package container

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// readHeader reads the first line of a stream, dropping the newline and any
// trailing whitespace.
func readHeader(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read header (is it a mystic file?): %v: %w", err, ErrFormat)
	}
	return bytes.TrimRight(line, " \t\r\n\v\f"), nil
}

// readBody reads the password table and the payload that follow the header.
func readBody(r *bufio.Reader) ([][]byte, []byte, error) {
	count, err := r.ReadByte()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read password count: %v: %w", err, ErrFormat)
	}

	wraps := make([][]byte, 0, count)
	for i := 0; i < int(count); i++ {
		size, err := r.ReadByte()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read length of password %d: %v: %w", i, err, ErrFormat)
		}
		wrap := make([]byte, size)
		if _, err := io.ReadFull(r, wrap); err != nil {
			return nil, nil, fmt.Errorf("password %d is truncated: %v: %w", i, err, ErrFormat)
		}
		wraps = append(wraps, wrap)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read payload: %w", err)
	}
	if len(payload) == 0 {
		return nil, nil, fmt.Errorf("payload is missing: %w", ErrFormat)
	}
	return wraps, payload, nil
}

// writeStream writes header, password table and payload to w.
func writeStream(w io.Writer, header []byte, wraps [][]byte, payload []byte) (int64, error) {
	if len(wraps) == 0 {
		return 0, ErrNoPassword
	}
	if len(wraps) > MaxPasswords {
		return 0, fmt.Errorf("%d passwords in one mystic: %w", len(wraps), ErrTooManyPasswords)
	}

	size := len(header) + 2 + len(payload)
	for _, wrap := range wraps {
		size += 1 + len(wrap)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, header...)
	buf = append(buf, '\n', byte(len(wraps)))
	for i, wrap := range wraps {
		if len(wrap) > maxWrapSize {
			return 0, fmt.Errorf("password %d is %d bytes: %w", i, len(wrap), ErrTooManyPasswords)
		}
		buf = append(buf, byte(len(wrap)))
		buf = append(buf, wrap...)
	}
	buf = append(buf, payload...)

	n, err := w.Write(buf)
	if err != nil {
		return int64(n), fmt.Errorf("failed to write mystic: %w", err)
	}
	return int64(n), nil
}
