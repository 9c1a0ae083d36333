package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/apperr"
)

// MemoryKV is an in-memory KV with the same composite-key and
// secondary-index semantics as the DynamoDB adapter. It backs unit
// tests and local development.
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string]map[string]map[string]types.AttributeValue // pk -> sk -> item
}

// NewMemoryKV creates an empty in-memory table.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string]map[string]map[string]types.AttributeValue)}
}

// Put stores an item under its PK/SK attributes.
func (m *MemoryKV) Put(ctx context.Context, item interface{}) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("%w: marshal item: %v", apperr.ErrStorage, err)
	}
	pk, sk := stringAttr(av, "PK"), stringAttr(av, "SK")
	if pk == "" || sk == "" {
		return fmt.Errorf("%w: item missing PK/SK", apperr.ErrStorage)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[pk] == nil {
		m.items[pk] = make(map[string]map[string]types.AttributeValue)
	}
	m.items[pk][sk] = av
	return nil
}

// Get reads one item by key.
func (m *MemoryKV) Get(ctx context.Context, pk, sk string, out interface{}) (bool, error) {
	m.mu.RLock()
	av, ok := m.items[pk][sk]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(av, out); err != nil {
		return false, fmt.Errorf("%w: unmarshal item: %v", apperr.ErrStorage, err)
	}
	return true, nil
}

// Query scans one partition of the base table or an index.
func (m *MemoryKV) Query(ctx context.Context, q QueryInput, out interface{}) error {
	pkName, skName := "PK", "SK"
	switch q.Index {
	case IndexGSI1:
		pkName, skName = "GSI1PK", "GSI1SK"
	case IndexGSI2:
		pkName, skName = "GSI2PK", "GSI2SK"
	case "":
	default:
		return fmt.Errorf("%w: unknown index %q", apperr.ErrStorage, q.Index)
	}

	type entry struct {
		sortKey string
		item    map[string]types.AttributeValue
	}

	m.mu.RLock()
	var matched []entry
	for _, partition := range m.items {
		for _, av := range partition {
			if stringAttr(av, pkName) != q.PartitionKey {
				continue
			}
			sk := stringAttr(av, skName)
			if q.SortKeyPrefix != "" && !strings.HasPrefix(sk, q.SortKeyPrefix) {
				continue
			}
			matched = append(matched, entry{sortKey: sk, item: av})
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if q.ScanForward {
			return matched[i].sortKey < matched[j].sortKey
		}
		return matched[i].sortKey > matched[j].sortKey
	})
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	items := make([]map[string]types.AttributeValue, 0, len(matched))
	for _, e := range matched {
		items = append(items, e.item)
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("%w: unmarshal query result: %v", apperr.ErrStorage, err)
	}
	return nil
}

// Update applies SET and ADD clauses to an existing item. Updating a
// missing item creates it, matching DynamoDB's upsert behavior.
func (m *MemoryKV) Update(ctx context.Context, pk, sk string, update UpdateInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.items[pk] == nil {
		m.items[pk] = make(map[string]map[string]types.AttributeValue)
	}
	av, ok := m.items[pk][sk]
	if !ok {
		av = map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		}
		m.items[pk][sk] = av
	}

	for attr, val := range update.Set {
		marshaled, err := attributevalue.Marshal(val)
		if err != nil {
			return fmt.Errorf("%w: marshal update value %s: %v", apperr.ErrStorage, attr, err)
		}
		av[attr] = marshaled
	}
	for _, attr := range update.Remove {
		delete(av, attr)
	}
	for attr, delta := range update.Add {
		current := 0.0
		if n, isNumber := av[attr].(*types.AttributeValueMemberN); isNumber {
			parsed, err := strconv.ParseFloat(n.Value, 64)
			if err != nil {
				return fmt.Errorf("%w: attribute %s is not numeric", apperr.ErrStorage, attr)
			}
			current = parsed
		}
		av[attr] = &types.AttributeValueMemberN{Value: formatNumber(current + delta)}
	}
	return nil
}

// BatchDelete removes the given keys; missing keys are ignored.
func (m *MemoryKV) BatchDelete(ctx context.Context, keys []Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if partition, ok := m.items[k.PK]; ok {
			delete(partition, k.SK)
			if len(partition) == 0 {
				delete(m.items, k.PK)
			}
		}
	}
	return nil
}

// Ping always succeeds.
func (m *MemoryKV) Ping(ctx context.Context) error { return nil }

func stringAttr(av map[string]types.AttributeValue, name string) string {
	if s, ok := av[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

// MemoryBlob is an in-memory Blob for tests.
type MemoryBlob struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryBlob creates an empty in-memory blob store.
func NewMemoryBlob() *MemoryBlob {
	return &MemoryBlob{objects: make(map[string][]byte)}
}

// Put stores a copy of the data under the key.
func (b *MemoryBlob) Put(ctx context.Context, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	b.objects[key] = buf
	return nil
}

// Get returns a copy of the stored data.
func (b *MemoryBlob) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", apperr.ErrNotFound, key)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Delete removes the key; deleting a missing key is not an error.
func (b *MemoryBlob) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// List returns every key under a prefix in lexical order.
func (b *MemoryBlob) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping always succeeds.
func (b *MemoryBlob) Ping(ctx context.Context) error { return nil }
