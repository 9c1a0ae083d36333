// Package admin implements the authentication endpoints (sign-up,
// confirmation, sign-in), profile reads and writes, and the role-gated
// user administration surface.
//
// Identities live in the external provider; this package owns the user
// records, the scope checks for admin-created users, and
// the temporary password generation.
package admin
