package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tesoroschoco/marketplace-api/internal/aws"
)

// ErrNotFound indicates the target profile does not exist.
var ErrNotFound = errors.New("user not found")

// ErrCartConflict indicates the cart was concurrently modified and the
// mutation retry budget ran out.
var ErrCartConflict = errors.New("cart modified concurrently")

// ErrCartItemMissing indicates the referenced cart line does not exist.
var ErrCartItemMissing = errors.New("cart item not found")

const cartMutateAttempts = 3

// Store encapsulates operations on the users table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new users Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// TableName returns the users table this store is bound to.
func (s *Store) TableName() string { return s.tableName }

// Create writes a profile only if the user id is not taken.
// Returns (created=false, nil) when the profile already exists.
func (s *Store) Create(ctx context.Context, profile UserProfile) (bool, error) {
	now := s.nowFunc()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	item, err := attributevalue.MarshalMap(profile)
	if err != nil {
		return false, fmt.Errorf("marshal profile: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(user_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("put profile: %w", err)
	}
	return true, nil
}

// Get fetches a profile by user id. Returns (nil, nil) if not found.
// The read is strongly consistent so a just-edited cart is visible.
func (s *Store) Get(ctx context.Context, userID string) (*UserProfile, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            userKey(userID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p UserProfile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &p, nil
}

// List returns every profile, following scan pagination.
func (s *Store) List(ctx context.Context) ([]UserProfile, error) {
	return s.scan(ctx, nil, nil)
}

// PendingVendors returns profiles awaiting seller approval.
func (s *Store) PendingVendors(ctx context.Context) ([]UserProfile, error) {
	filter := "#r = :role AND is_approved = :unapproved"
	return s.scan(ctx, &filter, map[string]types.AttributeValue{
		":role":       &types.AttributeValueMemberS{Value: RolePendingVendor},
		":unapproved": &types.AttributeValueMemberBOOL{Value: false},
	})
}

func (s *Store) scan(ctx context.Context, filter *string, values map[string]types.AttributeValue) ([]UserProfile, error) {
	var profiles []UserProfile
	var startKey map[string]types.AttributeValue
	for {
		input := &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: startKey,
		}
		if filter != nil {
			input.FilterExpression = filter
			input.ExpressionAttributeNames = map[string]string{"#r": "role"}
			input.ExpressionAttributeValues = values
		}
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan users: %w", err)
		}
		var page []UserProfile
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal users page: %w", err)
		}
		profiles = append(profiles, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return profiles, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// UpdateFields applies a partial update to an existing profile and bumps
// updated_at. Attribute names in fields must be storage names (snake_case).
// Returns ErrNotFound if the profile does not exist.
func (s *Store) UpdateFields(ctx context.Context, userID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

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
		Key:                       userKey(userID),
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       awsString("attribute_exists(user_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// AddCartItem adds a product to the cart, merging quantities when the
// product is already present.
func (s *Store) AddCartItem(ctx context.Context, userID, productID string, quantity int) error {
	return s.mutateCart(ctx, userID, func(cart []CartItem) ([]CartItem, error) {
		for i := range cart {
			if cart[i].ProductID == productID {
				cart[i].Quantity += quantity
				return cart, nil
			}
		}
		return append(cart, CartItem{
			ProductID: productID,
			Quantity:  quantity,
			AddedAt:   s.nowFunc().UTC(),
		}), nil
	})
}

// UpdateCartItem replaces the quantity of an existing cart line.
func (s *Store) UpdateCartItem(ctx context.Context, userID, productID string, quantity int) error {
	return s.mutateCart(ctx, userID, func(cart []CartItem) ([]CartItem, error) {
		for i := range cart {
			if cart[i].ProductID == productID {
				cart[i].Quantity = quantity
				return cart, nil
			}
		}
		return nil, ErrCartItemMissing
	})
}

// RemoveCartItem drops a cart line.
func (s *Store) RemoveCartItem(ctx context.Context, userID, productID string) error {
	return s.mutateCart(ctx, userID, func(cart []CartItem) ([]CartItem, error) {
		for i := range cart {
			if cart[i].ProductID == productID {
				return append(cart[:i], cart[i+1:]...), nil
			}
		}
		return nil, ErrCartItemMissing
	})
}

// mutateCart runs a read-modify-write on the embedded cart, guarded by an
// optimistic condition on updated_at. A failed condition means somebody else
// touched the profile between our read and write; re-read and retry.
func (s *Store) mutateCart(ctx context.Context, userID string, mutate func([]CartItem) ([]CartItem, error)) error {
	for attempt := 0; attempt < cartMutateAttempts; attempt++ {
		profile, err := s.Get(ctx, userID)
		if err != nil {
			return err
		}
		if profile == nil {
			return ErrNotFound
		}

		cart, err := mutate(append([]CartItem(nil), profile.Cart...))
		if err != nil {
			return err
		}

		cartAV, err := attributevalue.Marshal(cart)
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}
		seenAV, err := attributevalue.Marshal(profile.UpdatedAt)
		if err != nil {
			return fmt.Errorf("marshal updated_at: %w", err)
		}

		_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
			TableName:        &s.tableName,
			Key:              userKey(userID),
			UpdateExpression: awsString("SET cart = :c, updated_at = :ua"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":c":    cartAV,
				":ua":   &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)},
				":seen": seenAV,
			},
			ConditionExpression: awsString("updated_at = :seen"),
		})
		if err == nil {
			return nil
		}
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return fmt.Errorf("write cart: %w", err)
		}
	}
	return ErrCartConflict
}

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
