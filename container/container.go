package container

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/awnumar/memguard"
	"github.com/sirupsen/logrus"
)

// payloadCodec seals the serialized mapping under the master key text.
type payloadCodec interface {
	Seal(plaintext, master []byte) ([]byte, error)
	Open(payload, master []byte) ([]byte, error)
}

// container implements Mystic for every format; formats differ in their
// header, key wrapper and payload codec.
type container struct {
	name   string
	header []byte

	passwords passwordSet
	codec     payloadCodec
	prompt    PasswordFunc

	// payload is nil until the container is first sealed.
	payload []byte

	state   State
	mapping map[string]string
	// master is held while Cached, and for a blank container until its first
	// password is added.
	master *memguard.Enclave
	dirty  bool

	log *logrus.Entry
}

func newContainer(name string, header []byte, wrapper KeyWrapper, codec payloadCodec, cfg config) container {
	return container{
		name:      name,
		header:    header,
		passwords: newPasswordSet(wrapper, nil),
		codec:     codec,
		prompt:    cfg.passwordFunc,
		log: logrus.WithFields(logrus.Fields{
			"package": "container",
			"format":  name,
		}),
	}
}

// initBlank gives a new container its master key.
func (c *container) initBlank() {
	key := generateMasterKey()
	c.master = sealMasterKey(key)
	zeroBytes(key)
	c.log.Debug("created blank mystic")
}

// initDecoded fills a container from a decoded stream.
func (c *container) initDecoded(wraps [][]byte, payload []byte) {
	c.passwords.wraps = wraps
	c.payload = payload
	c.log.WithField("passwords", len(wraps)).Debug("decoded mystic")
}

func (c *container) Format() string { return c.name }

func (c *container) State() State { return c.state }

func (c *container) Changed() bool { return c.dirty }

func (c *container) PasswordCount() int { return c.passwords.Len() }

func (c *container) SetPasswordFunc(f PasswordFunc) { c.prompt = f }

// ask obtains a password from the PasswordFunc.
func (c *container) ask(prompt string) ([]byte, error) {
	if c.prompt == nil {
		return nil, ErrNoPasswordFunc
	}
	password, err := c.prompt(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to get password: %w", err)
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}
	return []byte(password), nil
}

// masterKey returns the master key text. While the password set is empty the
// container's own key is used; otherwise password, or the PasswordFunc when
// password is empty, must open one of the wraps.
func (c *container) masterKey(password, prompt string) ([]byte, error) {
	if c.passwords.Len() == 0 {
		if c.master == nil {
			c.initBlank()
		}
		return openMasterKey(c.master)
	}

	pw := []byte(password)
	if password == "" {
		var err error
		if pw, err = c.ask(prompt); err != nil {
			return nil, err
		}
	}
	defer zeroBytes(pw)

	master, err := c.passwords.Resolve(pw)
	if err != nil {
		c.log.WithField("passwords", c.passwords.Len()).Debug("password did not open any wrap")
		return nil, err
	}
	return master, nil
}

// cachedMasterKey returns the held master key, or resolves it through the
// PasswordFunc.
func (c *container) cachedMasterKey(prompt string) ([]byte, error) {
	if c.master != nil {
		return openMasterKey(c.master)
	}
	return c.masterKey("", prompt)
}

// decodeMapping decrypts the payload. A container never sealed has an empty
// mapping.
func (c *container) decodeMapping(master []byte) (map[string]string, error) {
	m := make(map[string]string)
	if c.payload == nil {
		return m, nil
	}
	plaintext, err := c.codec.Open(c.payload, master)
	if err != nil {
		return nil, fmt.Errorf("cannot decrypt payload: %w", err)
	}
	defer zeroBytes(plaintext)
	if err := json.Unmarshal(plaintext, &m); err != nil {
		return nil, fmt.Errorf("cannot decode payload: %v: %w", err, ErrFormat)
	}
	return m, nil
}

// seal encrypts m into the payload.
func (c *container) seal(m map[string]string, master []byte) error {
	plaintext, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("cannot encode payload: %w", err)
	}
	defer zeroBytes(plaintext)
	payload, err := c.codec.Seal(plaintext, master)
	if err != nil {
		return fmt.Errorf("cannot encrypt payload: %w", err)
	}
	c.payload = payload
	return nil
}

// view returns the mapping an operation works on: the cached one, or a
// freshly decrypted transient copy.
func (c *container) view() (map[string]string, error) {
	if c.state == Cached {
		return c.mapping, nil
	}
	master, err := c.masterKey("", "enter password")
	if err != nil {
		return nil, err
	}
	defer zeroBytes(master)
	return c.decodeMapping(master)
}

// wrote records a mutation of the mapping.
func (c *container) wrote(op string) {
	c.dirty = true
	if c.state == Locked {
		c.log.WithField("operation", op).Warn("write discarded: caching is disabled, enable it before mutating")
	}
}

func (c *container) Get(key string) (string, error) {
	m, err := c.view()
	if err != nil {
		return "", err
	}
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%q: %w", key, ErrKeyNotFound)
	}
	return v, nil
}

func (c *container) Set(key, value string) error {
	m, err := c.view()
	if err != nil {
		return err
	}
	m[key] = value
	c.wrote("set")
	return nil
}

func (c *container) Delete(key string) error {
	m, err := c.view()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return fmt.Errorf("%q: %w", key, ErrKeyNotFound)
	}
	delete(m, key)
	c.wrote("delete")
	return nil
}

func (c *container) Contains(key string) (bool, error) {
	m, err := c.view()
	if err != nil {
		return false, err
	}
	_, ok := m[key]
	return ok, nil
}

func (c *container) Keys() ([]string, error) {
	m, err := c.view()
	if err != nil {
		return nil, err
	}
	return sortedKeys(m), nil
}

func (c *container) Values() ([]string, error) {
	m, err := c.view()
	if err != nil {
		return nil, err
	}
	keys := sortedKeys(m)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = m[k]
	}
	return values, nil
}

func (c *container) Items() (map[string]string, error) {
	m, err := c.view()
	if err != nil {
		return nil, err
	}
	return copyMapping(m), nil
}

func (c *container) Len() (int, error) {
	m, err := c.view()
	if err != nil {
		return 0, err
	}
	return len(m), nil
}

// Update runs fn on one mapping. While Locked the mapping is transient and
// the changes fn makes are discarded afterwards. While Cached the changes are
// kept only if fn returns nil.
func (c *container) Update(fn func(m map[string]string) error) error {
	m, err := c.view()
	if err != nil {
		return err
	}
	if c.state == Cached {
		m = copyMapping(m)
	}
	if err := fn(m); err != nil {
		return err
	}
	if c.state == Cached {
		c.mapping = m
	}
	c.wrote("update")
	return nil
}

// SetCaching switches between Locked and Cached. Enabling needs the master
// key and fails with ErrBadKey for a wrong password. Disabling seals pending
// changes into the payload and forgets the mapping and the master key.
func (c *container) SetCaching(enabled bool) error {
	switch {
	case enabled && c.state == Locked:
		master, err := c.masterKey("", "enter password")
		if err != nil {
			return err
		}
		defer zeroBytes(master)
		m, err := c.decodeMapping(master)
		if err != nil {
			return err
		}
		c.mapping = m
		c.master = sealMasterKey(master)
		c.state = Cached
		c.log.WithField("entries", len(m)).Debug("mystic cached")

	case !enabled && c.state == Cached:
		if c.dirty {
			if err := c.commit(); err != nil {
				return err
			}
		}
		c.mapping = nil
		if c.passwords.Len() > 0 {
			c.master = nil
		}
		c.state = Locked
		c.log.Debug("mystic locked")
	}
	return nil
}

// commit seals the cached mapping, or an empty one while Locked, with the
// held master key.
func (c *container) commit() error {
	master, err := c.cachedMasterKey("enter password")
	if err != nil {
		return err
	}
	defer zeroBytes(master)
	m := c.mapping
	if m == nil {
		m = map[string]string{}
	}
	return c.seal(m, master)
}

func (c *container) AddPassword(oldPassword, newPassword string) error {
	if c.passwords.Len() >= MaxPasswords {
		return fmt.Errorf("mystic already holds %d passwords: %w", c.passwords.Len(), ErrTooManyPasswords)
	}
	master, err := c.masterKey(oldPassword, "enter old password")
	if err != nil {
		return err
	}
	defer zeroBytes(master)

	pw := []byte(newPassword)
	if newPassword == "" {
		if pw, err = c.ask("enter new password"); err != nil {
			return err
		}
	}
	defer zeroBytes(pw)

	if err := c.passwords.Add(master, pw); err != nil {
		return err
	}
	c.dirty = true
	if c.state == Locked {
		c.master = nil
	}
	c.log.WithField("passwords", c.passwords.Len()).Info("password added")
	return nil
}

func (c *container) RemovePassword(password string) error {
	switch c.passwords.Len() {
	case 0:
		return ErrNoPassword
	case 1:
		return ErrLastPassword
	}
	pw := []byte(password)
	if password == "" {
		var err error
		if pw, err = c.ask("enter password to remove"); err != nil {
			return err
		}
	}
	defer zeroBytes(pw)

	if err := c.passwords.Remove(pw); err != nil {
		return err
	}
	c.dirty = true
	c.log.WithField("passwords", c.passwords.Len()).Info("password removed")
	return nil
}

// WriteTo serializes the container. The payload is sealed again first when
// the cached mapping changed or the container was never sealed.
func (c *container) WriteTo(w io.Writer) (int64, error) {
	if c.passwords.Len() == 0 {
		return 0, ErrNoPassword
	}
	if c.passwords.Len() > MaxPasswords {
		return 0, fmt.Errorf("%d passwords in one mystic: %w", c.passwords.Len(), ErrTooManyPasswords)
	}
	for i, wrap := range c.passwords.wraps {
		if len(wrap) > maxWrapSize {
			return 0, fmt.Errorf("password %d is %d bytes: %w", i, len(wrap), ErrTooManyPasswords)
		}
	}

	if c.payload == nil || (c.state == Cached && c.dirty) {
		if err := c.commit(); err != nil {
			return 0, err
		}
	}

	n, err := writeStream(w, c.header, c.passwords.wraps, c.payload)
	if err != nil {
		return n, err
	}
	c.dirty = false
	c.log.WithFields(logrus.Fields{
		"passwords": c.passwords.Len(),
		"bytes":     n,
	}).Debug("mystic written")
	return n, nil
}

func copyMapping(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
