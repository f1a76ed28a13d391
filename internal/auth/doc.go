// Package auth provides bearer-token authentication for the mlra HTTP API.
//
// Tokens are HS256 JWTs issued by "mlra" and signed with the configured
// auth.jwt_secret (at least MinSecretLength bytes). The "sub" claim names the
// caller; it is carried through handlers in an AuthContext and recorded in
// logs.
//
// HTTPAuthMiddleware guards the mutating endpoints when a secret is set.
// OptionalAuthMiddleware wraps read endpoints so handlers can still log the
// caller when one is present. Tokens are minted with JWTVerifier.Generate,
// which the "mlra token" command exposes.
package auth
