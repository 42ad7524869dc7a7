package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/sirupsen/logrus"

	"mystic/container"
	"mystic/envelope"
)

const (
	Version = "1.0.0"

	// Environment variables for passwords
	PassphraseEnvVar    = "MYSTIC_PASSWORD"
	NewPassphraseEnvVar = "MYSTIC_NEW_PASSWORD"
)

// Options holds the command line options shared by all commands
type Options struct {
	Format       string
	Verbose      bool
	Iterations   uint64 // PBKDF2, scm
	Argon2Memory uint32 // in KB, tsm
	Argon2Time   uint32 // tsm
	Args         []string
}

func main() {
	memguard.CatchInterrupt()
	err := run(os.Args[1:], os.Stdout)
	memguard.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		printUsage()
		return fmt.Errorf("no command specified")
	}

	command := args[0]

	opts, err := parseOptions(args[1:])
	if err != nil {
		return err
	}

	logrus.SetLevel(logrus.WarnLevel)
	if opts.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	switch command {
	case "new":
		return cmdNew(opts)
	case "get":
		return cmdGet(opts, stdout)
	case "set":
		return cmdSet(opts)
	case "del", "delete":
		return cmdDelete(opts)
	case "list", "ls":
		return cmdList(opts, stdout)
	case "passwd-add":
		return cmdPasswordAdd(opts)
	case "passwd-remove":
		return cmdPasswordRemove(opts)
	case "formats":
		for _, name := range container.Formats() {
			fmt.Fprintln(stdout, name)
		}
		return nil
	case "--help", "-h":
		printUsage()
		return nil
	case "--version", "-v":
		fmt.Fprintf(os.Stderr, "mystic version %s\n", Version)
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func parseOptions(args []string) (Options, error) {
	opts := Options{
		Format:       container.SingleCodedName,
		Iterations:   envelope.DefaultIterations,
		Argon2Memory: 64 * 1024, // 64 MB default
		Argon2Time:   3,         // 3 iterations default
	}

	for _, arg := range args {
		switch {
		case arg == "--verbose" || arg == "-V":
			opts.Verbose = true
		case strings.HasPrefix(arg, "--format="):
			opts.Format = strings.TrimPrefix(arg, "--format=")
		case strings.HasPrefix(arg, "-f="):
			opts.Format = strings.TrimPrefix(arg, "-f=")
		case strings.HasPrefix(arg, "--iterations=") || strings.HasPrefix(arg, "-i="):
			val, err := strconv.ParseUint(arg[strings.Index(arg, "=")+1:], 10, 32)
			if err != nil {
				return opts, fmt.Errorf("invalid iterations value: %w", err)
			}
			if val < 1 {
				return opts, fmt.Errorf("iterations must be at least 1")
			}
			opts.Iterations = val
		case strings.HasPrefix(arg, "--memory=") || strings.HasPrefix(arg, "-m="):
			val, err := parseMemory(arg[strings.Index(arg, "=")+1:])
			if err != nil {
				return opts, fmt.Errorf("invalid memory value: %w", err)
			}
			opts.Argon2Memory = val
		case strings.HasPrefix(arg, "--time=") || strings.HasPrefix(arg, "-t="):
			val, err := strconv.ParseUint(arg[strings.Index(arg, "=")+1:], 10, 32)
			if err != nil {
				return opts, fmt.Errorf("invalid time value: %w", err)
			}
			if val < 1 || val > container.MaxArgon2Time {
				return opts, fmt.Errorf("time must be between 1 and %d", container.MaxArgon2Time)
			}
			opts.Argon2Time = uint32(val)
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			return opts, fmt.Errorf("unknown option: %s", arg)
		default:
			opts.Args = append(opts.Args, arg)
		}
	}
	return opts, nil
}

// containerOptions converts command line options for the container package.
func (o Options) containerOptions() []container.Option {
	return []container.Option{
		container.WithPasswordFunc(promptPassword),
		container.WithIterations(o.Iterations),
		container.WithArgon2(o.Argon2Time, o.Argon2Memory, 4),
	}
}

// parseMemory parses memory strings like "64", "64M", "64MB", "1G", "1GB"
// Bare numbers are treated as MB
func parseMemory(s string) (uint32, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	multiplier := uint64(1024) // default MB to KB

	if strings.HasSuffix(s, "GB") || strings.HasSuffix(s, "G") {
		multiplier = 1024 * 1024 // GB to KB
		s = strings.TrimSuffix(strings.TrimSuffix(s, "GB"), "G")
	} else if strings.HasSuffix(s, "MB") || strings.HasSuffix(s, "M") {
		multiplier = 1024 // MB to KB
		s = strings.TrimSuffix(strings.TrimSuffix(s, "MB"), "M")
	} else if strings.HasSuffix(s, "KB") || strings.HasSuffix(s, "K") {
		multiplier = 1
		s = strings.TrimSuffix(strings.TrimSuffix(s, "KB"), "K")
	}

	val, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}

	result := val * multiplier
	if result > 0xFFFFFFFF {
		return 0, fmt.Errorf("memory value too large")
	}

	if result < 1024 {
		return 0, fmt.Errorf("memory must be at least 1MB")
	}
	if result > container.MaxArgon2Memory {
		return 0, fmt.Errorf("memory must be at most %dMB", container.MaxArgon2Memory/1024)
	}

	return uint32(result), nil
}

func printUsage() {
	usage := `mystic - Password-protected key/value secret store

USAGE:
    mystic <command> [options] FILE [ARGS...]

COMMANDS:
    new FILE                Create an empty mystic protected by a new password
    get FILE KEY            Print the value stored under KEY
    set FILE KEY VALUE      Store VALUE under KEY
    del FILE KEY            Remove KEY
    list FILE               Print all keys
    passwd-add FILE         Add a password (asks for a current one first)
    passwd-remove FILE      Remove a password (the last one cannot be removed)
    formats                 Print the supported container formats
    --help, -h              Show this help message
    --version, -v           Show version information

OPTIONS:
    --format=NAME, -f=NAME  Container format for new (default: scm)
    --iterations=N, -i=N    PBKDF2 iterations for scm records (default: 100000)
    --memory=SIZE, -m=SIZE  Argon2 memory cost for tsm passwords (default: 64M)
    --time=N, -t=N          Argon2 iterations for tsm passwords (default: 3)
    --verbose, -V           Log debug information to STDERR

PASSWORDS:
    Set MYSTIC_PASSWORD (and MYSTIC_NEW_PASSWORD for new and passwd-add),
    or enter them interactively.

EXAMPLES:
    mystic new secrets.myst
    mystic set secrets.myst github.token ghp_xxx
    mystic get secrets.myst github.token
    mystic new -f=tsm -m=256M vault.myst

`
	fmt.Fprint(os.Stderr, usage)
}
