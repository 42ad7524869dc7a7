/*
Package envelope implements a self-describing password-based encryption
format.

A record is a Fernet token whose key is derived from a password with
PBKDF2-HMAC-SHA256. The salt and the iteration count used for the derivation
may be embedded in front of the token, or left out and supplied again by the
caller when decrypting.

Binary Format

   2 bytes salt flag: 0x00 followed by 0x00 (absent) or 0x01 (present)

   16 bytes salt, only when the salt flag is set

   2 bytes iteration flag: 0x00 followed by 0x00 (absent) or 0x01 (present)

   8 bytes iteration count as a big endian unsigned integer, only when the
   iteration flag is set

   All other bytes are the URL-safe base64 Fernet token.

The leading zero byte of each flag carries no information.
*/
package envelope
