package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/apperr"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/observability"
)

// batchDeleteChunk is the DynamoDB BatchWriteItem request ceiling.
const batchDeleteChunk = 25

// Dynamo implements KV against a single DynamoDB table with GSI1 and
// GSI2 secondary indexes.
type Dynamo struct {
	client  *dynamodb.Client
	table   string
	metrics *observability.Metrics
}

// NewDynamo creates a KV adapter over the given table. Metrics may be
// nil.
func NewDynamo(client *dynamodb.Client, table string, metrics *observability.Metrics) *Dynamo {
	return &Dynamo{client: client, table: table, metrics: metrics}
}

func (d *Dynamo) record(op string, err error, start time.Time) {
	if d.metrics != nil {
		d.metrics.RecordStorageOperation(op, "dynamodb", err, time.Since(start))
	}
}

// Put writes an item, replacing any existing item with the same key.
func (d *Dynamo) Put(ctx context.Context, item interface{}) error {
	start := time.Now()
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("%w: marshal item: %v", apperr.ErrStorage, err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	d.record("put", err, start)
	if err != nil {
		return fmt.Errorf("%w: put item: %v", apperr.ErrStorage, err)
	}
	return nil
}

// Get reads one item by its composite key and reports whether it
// existed.
func (d *Dynamo) Get(ctx context.Context, pk, sk string, out interface{}) (bool, error) {
	start := time.Now()
	resp, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key:       keyAttributes(pk, sk),
	})
	d.record("get", err, start)
	if err != nil {
		return false, fmt.Errorf("%w: get item: %v", apperr.ErrStorage, err)
	}
	if len(resp.Item) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(resp.Item, out); err != nil {
		return false, fmt.Errorf("%w: unmarshal item: %v", apperr.ErrStorage, err)
	}
	return true, nil
}

// Query runs a single-partition query against the base table or an
// index, following pagination until the limit (or the partition) is
// exhausted.
func (d *Dynamo) Query(ctx context.Context, q QueryInput, out interface{}) error {
	start := time.Now()

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

	keyCond := "#pk = :pk"
	names := map[string]string{"#pk": pkName}
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: q.PartitionKey},
	}
	if q.SortKeyPrefix != "" {
		keyCond += " AND begins_with(#sk, :skp)"
		names["#sk"] = skName
		values[":skp"] = &types.AttributeValueMemberS{Value: q.SortKeyPrefix}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(d.table),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(q.ScanForward),
	}
	if q.Index != "" {
		input.IndexName = aws.String(q.Index)
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(int32(q.Limit))
	}

	var items []map[string]types.AttributeValue
	for {
		resp, err := d.client.Query(ctx, input)
		if err != nil {
			d.record("query", err, start)
			return fmt.Errorf("%w: query: %v", apperr.ErrStorage, err)
		}
		items = append(items, resp.Items...)
		if resp.LastEvaluatedKey == nil || (q.Limit > 0 && len(items) >= q.Limit) {
			break
		}
		input.ExclusiveStartKey = resp.LastEvaluatedKey
	}
	d.record("query", nil, start)

	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("%w: unmarshal query result: %v", apperr.ErrStorage, err)
	}
	return nil
}

// Update applies SET and ADD clauses to a single item. ADD on numeric
// attributes is the table's only cross-request atomic primitive.
func (d *Dynamo) Update(ctx context.Context, pk, sk string, update UpdateInput) error {
	start := time.Now()

	var setParts, addParts []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	i := 0

	for attr, val := range update.Set {
		nameKey := fmt.Sprintf("#n%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(val)
		if err != nil {
			return fmt.Errorf("%w: marshal update value %s: %v", apperr.ErrStorage, attr, err)
		}
		names[nameKey] = attr
		values[valueKey] = av
		setParts = append(setParts, nameKey+" = "+valueKey)
		i++
	}
	for attr, delta := range update.Add {
		nameKey := fmt.Sprintf("#n%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		names[nameKey] = attr
		values[valueKey] = &types.AttributeValueMemberN{Value: formatNumber(delta)}
		addParts = append(addParts, nameKey+" "+valueKey)
		i++
	}
	var removeParts []string
	for _, attr := range update.Remove {
		nameKey := fmt.Sprintf("#n%d", i)
		names[nameKey] = attr
		removeParts = append(removeParts, nameKey)
		i++
	}
	if len(setParts) == 0 && len(addParts) == 0 && len(removeParts) == 0 {
		return nil
	}

	var expr []string
	if len(setParts) > 0 {
		expr = append(expr, "SET "+strings.Join(setParts, ", "))
	}
	if len(addParts) > 0 {
		expr = append(expr, "ADD "+strings.Join(addParts, ", "))
	}
	if len(removeParts) > 0 {
		expr = append(expr, "REMOVE "+strings.Join(removeParts, ", "))
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(d.table),
		Key:                      keyAttributes(pk, sk),
		UpdateExpression:         aws.String(strings.Join(expr, " ")),
		ExpressionAttributeNames: names,
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}
	_, err := d.client.UpdateItem(ctx, input)
	d.record("update", err, start)
	if err != nil {
		return fmt.Errorf("%w: update item: %v", apperr.ErrStorage, err)
	}
	return nil
}

// BatchDelete removes items in chunks, resubmitting unprocessed keys.
func (d *Dynamo) BatchDelete(ctx context.Context, keys []Key) error {
	start := time.Now()
	for len(keys) > 0 {
		n := len(keys)
		if n > batchDeleteChunk {
			n = batchDeleteChunk
		}
		chunk := keys[:n]
		keys = keys[n:]

		requests := make([]types.WriteRequest, 0, len(chunk))
		for _, k := range chunk {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: keyAttributes(k.PK, k.SK)},
			})
		}

		pending := map[string][]types.WriteRequest{d.table: requests}
		for len(pending[d.table]) > 0 {
			resp, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: pending,
			})
			if err != nil {
				d.record("batch_delete", err, start)
				return fmt.Errorf("%w: batch delete: %v", apperr.ErrStorage, err)
			}
			pending = resp.UnprocessedItems
		}
	}
	d.record("batch_delete", nil, start)
	return nil
}

// Ping verifies the table is reachable.
func (d *Dynamo) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.table),
	})
	return err
}

func keyAttributes(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func formatNumber(f float64) string {
	// Integral deltas render without a fractional part so counter
	// attributes stay integers.
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
