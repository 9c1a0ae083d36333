// Package access holds the role/visibility matrix and the pure access
// predicates consulted on every cross-tenant read and write. Keeping
// the policy out of the storage layer lets every path (listing,
// reading, updating, deleting) share one predicate and lets tests
// exercise it without any backend.
package access
