// Package middleware provides the authentication middleware that
// resolves the Bearer credential to an acting user, and a token-bucket
// rate limiter.
//
// With a user pool configured, the bearer value is verified as a
// signed token through OIDC discovery and the subject claim becomes
// the user id. Without one (local development), the bearer value is
// taken as the user id directly.
package middleware
