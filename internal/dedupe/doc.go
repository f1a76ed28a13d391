// Package dedupe suppresses repeated paper uploads within a time window.
//
// Uploaded bytes are keyed by ContentKey (SHA-256). Reserve claims a key
// before the backend is called so concurrent uploads of the same file send
// one request; Remember records the resulting document ID and Forget
// releases the claim when the ingest fails.
package dedupe
