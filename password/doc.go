// Package password implements Argon2id password hashing and verification.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Salt and digest use unpadded standard base64. Padded input is accepted on
// verify so hashes written by older tooling keep working.
//
// [Argon2.Verify] returns a bare bool. Parse failures, unsupported algorithms
// and mismatches are indistinguishable to the caller. If a stored hash was
// produced with weaker parameters, [Argon2.NeedsUpgrade] returns true so the
// caller can re-hash after the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other sessionauth package.
//   - Log plaintext passwords or hashes.
package password
