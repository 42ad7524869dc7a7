package main

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"syscall"

	"golang.org/x/term"
)

// zeroBytes overwrites a byte slice with zeros
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// promptPassword is the container.PasswordFunc of the command line.
func promptPassword(prompt string) (string, error) {
	passphrase, err := getPassphrase(PassphraseEnvVar, prompt+": ")
	if err != nil {
		return "", err
	}
	defer zeroBytes(passphrase)
	return string(passphrase), nil
}

func getPassphrase(envVar, prompt string) ([]byte, error) {
	// First check environment variable
	if envPass := os.Getenv(envVar); envPass != "" {
		return []byte(envPass), nil
	}

	return readPassword(prompt)
}

func getPassphraseWithConfirm(envVar, prompt, confirmPrompt string) ([]byte, error) {
	// First check environment variable
	if envPass := os.Getenv(envVar); envPass != "" {
		return []byte(envPass), nil
	}

	passphrase, err := readPassword(prompt)
	if err != nil {
		return nil, err
	}

	confirm, err := readPassword(confirmPrompt)
	if err != nil {
		zeroBytes(passphrase)
		return nil, err
	}

	if !bytes.Equal(passphrase, confirm) {
		zeroBytes(passphrase)
		zeroBytes(confirm)
		return nil, fmt.Errorf("passwords do not match")
	}

	zeroBytes(confirm)
	return passphrase, nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	var passphrase []byte
	var err error

	if term.IsTerminal(int(syscall.Stdin)) {
		passphrase, err = term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr) // Print newline after password input
	} else {
		// STDIN is not a terminal (piped), try to read from /dev/tty
		tty, ttyErr := os.Open("/dev/tty")
		if ttyErr != nil {
			if runtime.GOOS == "windows" {
				return nil, fmt.Errorf("password must be set via %s environment variable when STDIN is piped", PassphraseEnvVar)
			}
			return nil, fmt.Errorf("cannot read password: STDIN is piped and /dev/tty is not available. Set %s environment variable", PassphraseEnvVar)
		}
		defer tty.Close()

		passphrase, err = term.ReadPassword(int(tty.Fd()))
		fmt.Fprintln(os.Stderr)
	}

	if err != nil {
		return nil, err
	}
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("password cannot be empty")
	}

	return passphrase, nil
}
