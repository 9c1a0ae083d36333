// Package identity adapts the external identity provider (a Cognito
// user pool) behind a small capability interface: self-service sign-up
// with email confirmation, password sign-in, and administrative user
// creation with a suppressed welcome mail.
//
// Passwords never touch the rest of the system; the provider's subject
// identifier is persisted verbatim as the userId.
package identity
