package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mystic/container"
)

func cmdNew(opts Options) error {
	path, err := opts.arg(0, "FILE")
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	m, err := container.New(opts.Format, opts.containerOptions()...)
	if err != nil {
		return err
	}
	// Keep the fresh master key so saving does not ask again.
	if err := m.SetCaching(true); err != nil {
		return err
	}

	password, err := getPassphraseWithConfirm(NewPassphraseEnvVar, "New password: ", "Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to get password: %w", err)
	}
	defer zeroBytes(password)

	if err := m.AddPassword("", string(password)); err != nil {
		return err
	}
	return saveFile(path, m)
}

func cmdGet(opts Options, stdout io.Writer) error {
	key, err := opts.arg(1, "KEY")
	if err != nil {
		return err
	}
	m, err := loadFile(opts)
	if err != nil {
		return err
	}
	value, err := m.Get(key)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, value)
	return err
}

func cmdSet(opts Options) error {
	key, err := opts.arg(1, "KEY")
	if err != nil {
		return err
	}
	value, err := opts.arg(2, "VALUE")
	if err != nil {
		return err
	}
	return update(opts, func(m container.Mystic) error {
		return m.Set(key, value)
	})
}

func cmdDelete(opts Options) error {
	key, err := opts.arg(1, "KEY")
	if err != nil {
		return err
	}
	return update(opts, func(m container.Mystic) error {
		return m.Delete(key)
	})
}

func cmdList(opts Options, stdout io.Writer) error {
	m, err := loadFile(opts)
	if err != nil {
		return err
	}
	// One password prompt for the whole listing.
	if err := m.SetCaching(true); err != nil {
		return err
	}
	keys, err := m.Keys()
	if err != nil {
		return err
	}
	w := bufio.NewWriter(stdout)
	for _, k := range keys {
		fmt.Fprintln(w, k)
	}
	return w.Flush()
}

func cmdPasswordAdd(opts Options) error {
	m, err := loadFile(opts)
	if err != nil {
		return err
	}
	old, err := getPassphrase(PassphraseEnvVar, "Current password: ")
	if err != nil {
		return fmt.Errorf("failed to get password: %w", err)
	}
	defer zeroBytes(old)

	password, err := getPassphraseWithConfirm(NewPassphraseEnvVar, "New password: ", "Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to get password: %w", err)
	}
	defer zeroBytes(password)

	if err := m.AddPassword(string(old), string(password)); err != nil {
		return err
	}
	return saveFile(opts.Args[0], m)
}

func cmdPasswordRemove(opts Options) error {
	m, err := loadFile(opts)
	if err != nil {
		return err
	}
	if err := m.RemovePassword(""); err != nil {
		return err
	}
	return saveFile(opts.Args[0], m)
}

// update applies fn to a cached container and writes it back.
func update(opts Options, fn func(m container.Mystic) error) error {
	m, err := loadFile(opts)
	if err != nil {
		return err
	}
	if err := m.SetCaching(true); err != nil {
		return err
	}
	if err := fn(m); err != nil {
		return err
	}
	return saveFile(opts.Args[0], m)
}

func (o Options) arg(i int, name string) (string, error) {
	if i >= len(o.Args) {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return o.Args[i], nil
}

func loadFile(opts Options) (container.Mystic, error) {
	path, err := opts.arg(0, "FILE")
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mystic: %w", err)
	}
	defer f.Close()

	m, err := container.Load(f, opts.containerOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s (is it a valid mystic file?): %w", path, err)
	}
	return m, nil
}

// saveFile writes m next to path and renames it into place.
func saveFile(path string, m container.Mystic) error {
	tmpFile := filepath.Join(filepath.Dir(path), filepath.Base(path)+".tmp")

	f, err := os.OpenFile(tmpFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	writer := bufio.NewWriter(f)
	if _, err := m.WriteTo(writer); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return err
	}
	if err := writer.Flush(); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to flush output: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
