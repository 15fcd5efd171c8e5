// Package auth provides password hashing and JWT issuance for the
// gateway's local admin account.
//
// It implements Argon2id password hashing (OWASP 2025 recommendation) in
// PHC string format, and short-lived HS256 JWTs for internal/httpapi's
// admin-only endpoints. There is a single credential — the admin
// account — so no role model, token rotation, or room scoping is
// needed here.
package auth
