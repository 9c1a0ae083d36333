package storage

import (
	"context"
)

// Blob is a flat-namespace binary object store. Keys are chosen by
// callers.
type Blob interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// List returns every key under a prefix; used by the orphaned-blob
	// reconciliation sweep.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Key is the composite primary key of an item in the wide table.
type Key struct {
	PK string
	SK string
}

// Index names of the wide table's secondary indexes.
const (
	IndexGSI1 = "GSI1"
	IndexGSI2 = "GSI2"
)

// QueryInput describes a single-partition query against the base table
// or one of the named indexes.
type QueryInput struct {
	// Index is empty for the base table, or IndexGSI1 / IndexGSI2.
	Index string
	// PartitionKey is the value of PK (or GSI*PK) to scan.
	PartitionKey string
	// SortKeyPrefix restricts results to sort keys with this prefix.
	SortKeyPrefix string
	// ScanForward orders ascending by sort key when true, descending
	// when false.
	ScanForward bool
	// Limit bounds the number of returned items; 0 means no limit.
	Limit int
}

// UpdateInput describes a single-item update. Set overwrites
// attributes; Add increments numeric attributes in place, which is the
// only cross-request atomicity the data layout relies on; Remove
// deletes attributes (used to drop index projection keys).
type UpdateInput struct {
	Set    map[string]interface{}
	Add    map[string]float64
	Remove []string
}

// KV is a key-value store over one wide table with composite keys and
// two global secondary indexes.
//
// Put marshals any struct tagged with dynamodbav tags. Get unmarshals
// into out and reports whether the item existed. Query unmarshals the
// result page into out, which must be a pointer to a slice.
type KV interface {
	Put(ctx context.Context, item interface{}) error
	Get(ctx context.Context, pk, sk string, out interface{}) (bool, error)
	Query(ctx context.Context, q QueryInput, out interface{}) error
	Update(ctx context.Context, pk, sk string, update UpdateInput) error
	BatchDelete(ctx context.Context, keys []Key) error
}
