package container

import "mystic/envelope"

type config struct {
	passwordFunc PasswordFunc
	iterations   uint64
	argon2       argon2Params
}

func defaultConfig() config {
	return config{
		iterations: envelope.DefaultIterations,
		argon2:     defaultArgon2Params,
	}
}

// Option configures a container created by New, Load or a format
// constructor.
type Option func(*config)

// WithPasswordFunc sets the callback used to ask for passwords.
func WithPasswordFunc(f PasswordFunc) Option {
	return func(c *config) { c.passwordFunc = f }
}

// WithIterations sets the PBKDF2 iteration count for records written by the
// scm format. Existing records keep their own count.
func WithIterations(n uint64) Option {
	return func(c *config) { c.iterations = n }
}

// WithArgon2 sets the Argon2id cost of password wraps written by the tsm
// format. memory is in KiB. Existing wraps keep their own parameters.
func WithArgon2(time, memory uint32, threads uint8) Option {
	return func(c *config) {
		c.argon2 = argon2Params{Time: time, Memory: memory, Threads: threads}
	}
}

func buildConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
