// Package auth provides authentication and authorisation for taskledger.
//
// It is built from four parts, leaf first:
//   - CredentialManager: bcrypt (default) or Argon2id password hashing,
//     bounded by a semaphore so hashing cannot starve request handling
//   - TokenCodec: HS256 session tokens carrying the account ID and username
//   - SessionResolver: reads the session cookie and yields an Identity
//   - Filter: the ownership rules applied to every protected operation
//
// All four take an immutable Settings value built at startup; the package
// keeps no global state.
//
// Ownership failures are masked: a task that exists but belongs to another
// account is reported exactly like a task that does not exist.
package auth
