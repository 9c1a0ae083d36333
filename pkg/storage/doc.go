// Package storage defines the two capability interfaces every service
// is built on — a flat-namespace blob store and a key-value store with
// composite primary keys and named secondary indexes — together with
// the AWS-backed implementations (S3, DynamoDB) and an in-memory
// implementation with identical semantics for tests.
//
// Adapters perform no access control; callers apply the access
// predicate to query results in memory.
package storage
