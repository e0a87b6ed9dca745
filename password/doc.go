// Package password hashes and verifies passwords with Argon2id, for login
// operations that check credentials before returning a security profile.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// caller can rehash after the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import other netapi packages.
//   - Log plaintext passwords.
package password
