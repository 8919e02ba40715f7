package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tesoroschoco/marketplace-api/internal/aws"
)

// ErrNotFound indicates the order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrNoSellerItems indicates the order has no items owned by the seller.
var ErrNoSellerItems = errors.New("no items for this seller in the order")

// ErrBadTransition indicates the requested status change is not allowed
// from the items' current status.
var ErrBadTransition = errors.New("illegal status transition")

// ErrConflict indicates concurrent updates exhausted the retry budget.
var ErrConflict = errors.New("order modified concurrently")

// buyerIndex is the GSI keyed by buyer_id with created_at as sort key.
const buyerIndex = "buyer_id-index"

const updateAttempts = 3

// Store encapsulates operations on the orders table and the seller-orders
// index table. Orders are created only by the checkout transaction; this
// store covers reads and the per-seller fulfillment updates.
type Store struct {
	client           aws.DynamoDBAPI
	tableName        string
	sellerOrderTable string
	nowFunc          func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName, sellerOrderTable string) *Store {
	return &Store{
		client:           client,
		tableName:        tableName,
		sellerOrderTable: sellerOrderTable,
		nowFunc:          time.Now,
	}
}

// TableName returns the orders table this store is bound to.
func (s *Store) TableName() string { return s.tableName }

// SellerOrderTableName returns the seller-orders index table.
func (s *Store) SellerOrderTableName() string { return s.sellerOrderTable }

// Get fetches an order by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       orderKey(orderID),
	})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// ListByBuyer returns the buyer's orders, newest first.
func (s *Store) ListByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	var result []Order
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:              &s.tableName,
			IndexName:              awsString(buyerIndex),
			KeyConditionExpression: awsString("buyer_id = :bid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":bid": &types.AttributeValueMemberS{Value: buyerID},
			},
			ScanIndexForward:  awsBool(false), // created_at sort key, newest first
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query buyer orders: %w", err)
		}
		var page []Order
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal orders page: %w", err)
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return result, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// ListBySeller resolves the seller-orders index and loads the referenced
// orders, newest first, trimmed to the seller's own items.
func (s *Store) ListBySeller(ctx context.Context, sellerID string) ([]Order, error) {
	refs, err := s.sellerRefs(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}

	var views []Order
	// BatchGetItem caps at 100 keys per call
	for start := 0; start < len(refs); start += 100 {
		end := start + 100
		if end > len(refs) {
			end = len(refs)
		}
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, ref := range refs[start:end] {
			keys = append(keys, orderKey(ref.OrderID))
		}
		out, err := s.client.BatchGetItem(ctx, &dyn.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				s.tableName: {Keys: keys},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("batch get orders: %w", err)
		}
		var page []Order
		if err := attributevalue.UnmarshalListOfMaps(out.Responses[s.tableName], &page); err != nil {
			return nil, fmt.Errorf("unmarshal orders batch: %w", err)
		}
		for i := range page {
			views = append(views, page[i].SellerView(sellerID))
		}
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views, nil
}

func (s *Store) sellerRefs(ctx context.Context, sellerID string) ([]SellerOrderRef, error) {
	var refs []SellerOrderRef
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:              &s.sellerOrderTable,
			KeyConditionExpression: awsString("seller_id = :sid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":sid": &types.AttributeValueMemberS{Value: sellerID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query seller order refs: %w", err)
		}
		var page []SellerOrderRef
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal refs page: %w", err)
		}
		refs = append(refs, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return refs, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// UpdateSellerItems moves every item the seller owns in the order to
// newStatus, optionally setting a tracking number, and re-derives the
// order-level status. Items owned by other sellers are untouched. The write
// is guarded by an optimistic condition on updated_at and retried on
// conflict.
func (s *Store) UpdateSellerItems(ctx context.Context, orderID, sellerID, newStatus, trackingNumber string) (*Order, error) {
	for attempt := 0; attempt < updateAttempts; attempt++ {
		order, err := s.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, ErrNotFound
		}

		now := s.nowFunc().UTC()
		owned := 0
		for i := range order.Items {
			if order.Items[i].SellerID != sellerID {
				continue
			}
			owned++
			if !CanTransition(order.Items[i].Status, newStatus) {
				return nil, fmt.Errorf("%w: %s -> %s", ErrBadTransition, order.Items[i].Status, newStatus)
			}
		}
		if owned == 0 {
			return nil, ErrNoSellerItems
		}
		for i := range order.Items {
			if order.Items[i].SellerID != sellerID {
				continue
			}
			order.Items[i].Status = newStatus
			order.Items[i].UpdatedAt = now
			if trackingNumber != "" {
				order.Items[i].TrackingNumber = trackingNumber
			}
		}
		derived := DeriveStatus(order.Items)

		itemsAV, err := attributevalue.Marshal(order.Items)
		if err != nil {
			return nil, fmt.Errorf("marshal items: %w", err)
		}
		seenAV, err := attributevalue.Marshal(order.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("marshal updated_at: %w", err)
		}

		_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
			TableName:        &s.tableName,
			Key:              orderKey(orderID),
			UpdateExpression: awsString("SET #items = :items, #s = :status, updated_at = :ua"),
			ExpressionAttributeNames: map[string]string{
				"#items": "items",
				"#s":     "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":items":  itemsAV,
				":status": &types.AttributeValueMemberS{Value: derived},
				":ua":     &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
				":seen":   seenAV,
			},
			ConditionExpression: awsString("updated_at = :seen"),
		})
		if err == nil {
			order.Status = derived
			order.UpdatedAt = now
			return order, nil
		}
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return nil, fmt.Errorf("update order items: %w", err)
		}
	}
	return nil, ErrConflict
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
