package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tesoroschoco/marketplace-api/internal/aws"
)

// ErrNotFound indicates the product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrNotOwner indicates the product exists but belongs to another seller.
var ErrNotOwner = errors.New("product owned by another seller")

// sellerIndex is the GSI keyed by seller_id.
const sellerIndex = "seller_id-index"

// Store encapsulates operations on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new products Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// TableName returns the products table this store is bound to.
func (s *Store) TableName() string { return s.tableName }

// Create persists a new product. The id must be set by the caller.
func (s *Store) Create(ctx context.Context, p Product) error {
	now := s.nowFunc()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(product_id)"),
	})
	if err != nil {
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

// Get fetches a product by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       productKey(productID),
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// ListActive returns active products, optionally narrowed by a search term
// (matched against name and description) and a category. Search matching is
// done after the scan; the catalog is small and the store has no text index.
func (s *Store) ListActive(ctx context.Context, search, category string) ([]Product, error) {
	all, err := s.scan(ctx, awsString("is_active = :active"), map[string]types.AttributeValue{
		":active": &types.AttributeValueMemberBOOL{Value: true},
	})
	if err != nil {
		return nil, err
	}

	var filtered []Product
	term := strings.ToLower(search)
	for _, p := range all {
		if category != "" && p.Category != category {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.Description), term) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered, nil
}

// ListReported returns products flagged for moderation.
func (s *Store) ListReported(ctx context.Context) ([]Product, error) {
	return s.scan(ctx, awsString("is_reported = :reported"), map[string]types.AttributeValue{
		":reported": &types.AttributeValueMemberBOOL{Value: true},
	})
}

// List returns every product.
func (s *Store) List(ctx context.Context) ([]Product, error) {
	return s.scan(ctx, nil, nil)
}

// ListBySeller returns a seller's products via the seller_id GSI.
func (s *Store) ListBySeller(ctx context.Context, sellerID string) ([]Product, error) {
	var result []Product
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:              &s.tableName,
			IndexName:              awsString(sellerIndex),
			KeyConditionExpression: awsString("seller_id = :sid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":sid": &types.AttributeValueMemberS{Value: sellerID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query seller products: %w", err)
		}
		var page []Product
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal products page: %w", err)
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return result, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// Update applies a partial edit to a product the seller owns. Attribute
// names in fields must be storage names. Returns ErrNotFound if the product
// is missing, ErrNotOwner if it belongs to someone else.
func (s *Store) Update(ctx context.Context, productID, sellerID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	expr := "SET updated_at = :ua"
	names := map[string]string{}
	values := map[string]types.AttributeValue{
		":ua":  &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)},
		":sid": &types.AttributeValueMemberS{Value: sellerID},
	}
	i := 0
	for attr, val := range fields {
		av, err := attributevalue.Marshal(val)
		if err != nil {
			return fmt.Errorf("marshal field %s: %w", attr, err)
		}
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":f%d", i)
		names[nameKey] = attr
		values[valueKey] = av
		expr += fmt.Sprintf(", %s = %s", nameKey, valueKey)
		i++
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       productKey(productID),
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       awsString("attribute_exists(product_id) AND seller_id = :sid"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return s.classifyOwnership(ctx, productID)
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// SetModeration applies an admin moderation change regardless of ownership.
func (s *Store) SetModeration(ctx context.Context, productID string, fields map[string]interface{}) error {
	expr := "SET updated_at = :ua"
	names := map[string]string{}
	values := map[string]types.AttributeValue{
		":ua": &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)},
	}
	i := 0
	for attr, val := range fields {
		av, err := attributevalue.Marshal(val)
		if err != nil {
			return fmt.Errorf("marshal field %s: %w", attr, err)
		}
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":f%d", i)
		names[nameKey] = attr
		values[valueKey] = av
		expr += fmt.Sprintf(", %s = %s", nameKey, valueKey)
		i++
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       productKey(productID),
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       awsString("attribute_exists(product_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("moderate product: %w", err)
	}
	return nil
}

// Delete removes a product the seller owns. The handler is responsible for
// the pending-order check before calling this.
func (s *Store) Delete(ctx context.Context, productID, sellerID string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 productKey(productID),
		ConditionExpression: awsString("attribute_exists(product_id) AND seller_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: sellerID},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return s.classifyOwnership(ctx, productID)
		}
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// classifyOwnership turns a conditional failure into ErrNotFound or
// ErrNotOwner by re-reading the item.
func (s *Store) classifyOwnership(ctx context.Context, productID string) error {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrNotFound
	}
	return ErrNotOwner
}

func (s *Store) scan(ctx context.Context, filter *string, values map[string]types.AttributeValue) ([]Product, error) {
	var result []Product
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:                 &s.tableName,
			FilterExpression:          filter,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan products: %w", err)
		}
		var page []Product
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal products page: %w", err)
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return result, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func productKey(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
}

func awsString(s string) *string { return &s }
