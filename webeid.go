// Package webeid validates Web eID authentication tokens: a browser-side
// component on a national eID smart card signs a server-issued challenge
// nonce, and this package decides whether to accept the resulting identity.
//
// The validation pipeline runs its checks in a fixed order — certificate
// purpose, validity, policy, trust, then an OCSP revocation check, then the
// token signature itself — and stops at the first failure. Construct a
// Configuration once with NewConfigurationBuilder and reuse the resulting
// AuthTokenValidator across requests; it holds no mutable per-request state
// and is safe for concurrent use.
package webeid
