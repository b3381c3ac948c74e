// Package signon implements passwordless authentication against third
// party identity providers and the registration-continuation flow that
// promotes an asserted external identity into a local account.
//
// Core pieces:
//   - SignedCodec is a generic HMAC-signed, time-limited token codec with
//     no knowledge of auth semantics.
//   - PendingTokenService uses the codec to carry a not-yet-registered
//     identity across the registration form submission; nothing is stored
//     server side until registration completes.
//   - Users is the account repository keyed by (provider, external_id).
//     GetOrCreateByProviderID is idempotent: concurrent creation attempts
//     for the same external identity resolve to a single row, with the
//     uniqueness constraint at the storage layer acting as the arbiter.
//   - SessionStore holds the minimal authenticated payload behind an
//     opaque identifier; SessionGuard enforces it per request.
//
// OAuth orchestration (begin/callback, provider registry, signed state)
// lives in the oauth subpackage; static-credential protection for
// operational surfaces lives in middleware/basicauth.
package signon
