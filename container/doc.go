/*
Package container stores string key/value pairs in an encrypted container
that any of up to 255 passwords can unlock.

A random master key encrypts the payload. Each password wraps a copy of the
master key, so passwords can be added and removed without touching the
payload.

Binary Format

   the format header followed by a newline

   1 byte for the number of password wraps

   for each wrap, 1 byte for its length followed by the wrap itself

   All other bytes are the encrypted payload. It is neither length prefixed
   nor newline terminated.

The decrypted payload is a JSON object mapping keys to values.

Formats

scm ("!myst_single_coded") stores wraps and payload as envelope records
(PBKDF2-HMAC-SHA256 and Fernet, see package envelope).

tsm ("!myst_tink_streaming") wraps the master key with XChaCha20-Poly1305
under an Argon2id key and encrypts the payload with Tink streaming AEAD.

Caching

A container starts Locked: each read decrypts the payload again and writes
are discarded. SetCaching(true) keeps the decrypted mapping and the master
key in memory (the key inside a memguard enclave) so that writes stick until
the container is written with WriteTo.
*/
package container
