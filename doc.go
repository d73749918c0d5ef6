// Package authstack implements the authentication and session lifecycle for a
// single application: password login, one-time-code email verification,
// federated (OAuth2) login reconciliation, JWT access tokens, and rotating
// device-bound refresh sessions stored in Redis.
//
// The package is the public surface of the subsystem. It exposes [Engine],
// [Builder], [Config], and the collaborator contracts ([UserStore], [Mailer],
// [IdentityVerifier]). Session encoding, random material, and device
// fingerprinting live under internal/ and are never exported.
//
// # Architecture boundaries
//
// authstack does not route HTTP, render cookies, persist users, or talk to
// identity providers. Those are host-application concerns wired in through the
// collaborator interfaces. The engine owns only the state machines with
// security consequences: OTP challenges, refresh-session rotation and
// revocation, and the federated-identity reconciliation decision table.
//
// # Concurrency contract
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]. All Redis mutations that can race (OTP attempt counters,
// rate-limit windows, session delete-plus-index updates) are expressed as
// atomic single-key primitives or Lua scripts, never caller-side
// read-modify-write.
package authstack
