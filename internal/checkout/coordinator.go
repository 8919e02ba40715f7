package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/tesoroschoco/marketplace-api/internal/aws"
	"github.com/tesoroschoco/marketplace-api/internal/logging"
	"github.com/tesoroschoco/marketplace-api/internal/orders"
	"github.com/tesoroschoco/marketplace-api/internal/products"
	"github.com/tesoroschoco/marketplace-api/internal/users"
)

// maxCartProducts caps the number of distinct products one checkout can
// cover: the write set (1 profile + 1 order + N products + up to N seller
// refs) must fit in a single TransactWriteItems call.
const maxCartProducts = 40

// Outcome labels reported to the recorder.
const (
	OutcomeSuccess           = "success"
	OutcomeEmptyCart         = "empty_cart"
	OutcomeProductVanished   = "product_vanished"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeConflict          = "conflict"
	OutcomeTimeout           = "timeout"
	OutcomeError             = "error"
)

// OutcomeRecorder receives one label per finished checkout. Implementations
// must be best-effort; the coordinator never fails on recording.
type OutcomeRecorder interface {
	CheckoutOutcome(ctx context.Context, outcome string)
}

// Config wires a Coordinator. All dependencies are injected; the Coordinator
// holds no process-global state.
type Config struct {
	DynamoDB          aws.DynamoDBAPI
	UsersTable        string
	ProductsTable     string
	OrdersTable       string
	SellerOrdersTable string
	Timeout           time.Duration
	MaxAttempts       int
	Recorder          OutcomeRecorder
}

// Coordinator executes checkouts: one atomic unit covering the cart read,
// stock validation and decrement, order creation, seller index writes, and
// cart clear. If anything fails, nothing is written.
type Coordinator struct {
	client            aws.DynamoDBAPI
	usersTable        string
	productsTable     string
	ordersTable       string
	sellerOrdersTable string
	timeout           time.Duration
	maxAttempts       int
	recorder          OutcomeRecorder
	nowFunc           func() time.Time
	newID             func() string
}

// New builds a Coordinator from cfg, applying defaults for the tuning knobs.
func New(cfg Config) *Coordinator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 3
	}
	return &Coordinator{
		client:            cfg.DynamoDB,
		usersTable:        cfg.UsersTable,
		productsTable:     cfg.ProductsTable,
		ordersTable:       cfg.OrdersTable,
		sellerOrdersTable: cfg.SellerOrdersTable,
		timeout:           timeout,
		maxAttempts:       attempts,
		recorder:          cfg.Recorder,
		nowFunc:           time.Now,
		newID:             uuid.NewString,
	}
}

// errStaleRead reports that the cart changed between the profile pre-read
// and the transactional read, leaving cart lines outside the read set.
var errStaleRead = errors.New("checkout: cart changed during snapshot read")

// snapshot is one consistent read of the buyer's profile and every product
// the cart references, taken in a single TransactGetItems call.
type snapshot struct {
	profile  users.UserProfile
	products map[string]*products.Product
}

// Checkout converts the buyer's cart into a committed order. On success the
// created order is returned; on any failure no state has changed anywhere.
func (c *Coordinator) Checkout(ctx context.Context, buyerID, shippingAddress string) (*orders.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Fail fast before opening any transaction.
	profile, err := c.getProfile(ctx, buyerID)
	if err != nil {
		return nil, c.finish(ctx, nil, err)
	}
	if len(profile.Cart) == 0 {
		return nil, c.finish(ctx, nil, ErrEmptyCart)
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		snap, err := c.readSnapshot(ctx, buyerID)
		if errors.Is(err, errStaleRead) {
			logging.Log(logging.Fields{
				Service: "checkout",
				Event:   "checkout_retry",
				UserID:  buyerID,
				Message: fmt.Sprintf("attempt %d/%d read a stale cart, retrying with fresh snapshot", attempt, c.maxAttempts),
			})
			continue
		}
		if err != nil {
			return nil, c.finish(ctx, nil, err)
		}
		// The transactional re-read may see a cart emptied since the
		// pre-check (e.g. a duplicate checkout that just committed).
		if len(snap.profile.Cart) == 0 {
			return nil, c.finish(ctx, nil, ErrEmptyCart)
		}

		order, err := c.buildOrder(snap, shippingAddress)
		if err != nil {
			return nil, c.finish(ctx, nil, err)
		}

		err = c.commit(ctx, snap, order)
		if err == nil {
			logging.Log(logging.Fields{
				Service: "checkout",
				Event:   "checkout_committed",
				UserID:  buyerID,
				OrderID: order.OrderID,
			})
			return order, c.finish(ctx, order, nil)
		}
		if !retryable(err) {
			return nil, c.finish(ctx, nil, err)
		}
		logging.Log(logging.Fields{
			Service: "checkout",
			Event:   "checkout_retry",
			UserID:  buyerID,
			Message: fmt.Sprintf("attempt %d/%d aborted, retrying with fresh snapshot", attempt, c.maxAttempts),
		})
	}
	return nil, c.finish(ctx, nil, ErrConflict)
}

func (c *Coordinator) getProfile(ctx context.Context, buyerID string) (*users.UserProfile, error) {
	out, err := c.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &c.usersTable,
		Key:            userKey(buyerID),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, users.ErrNotFound
	}
	var p users.UserProfile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &p, nil
}

// readSnapshot takes the transactional read set: the profile (for the cart)
// plus every product the cart references, all from one point in time.
func (c *Coordinator) readSnapshot(ctx context.Context, buyerID string) (*snapshot, error) {
	// The cart determines which products to read; read the profile first,
	// then include it again in the transactional get so both reads come
	// from the same point in time.
	pre, err := c.getProfile(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	ids := distinctProductIDs(pre.Cart)
	if len(ids) > maxCartProducts {
		return nil, ErrCartTooLarge
	}

	items := make([]types.TransactGetItem, 0, len(ids)+1)
	items = append(items, types.TransactGetItem{
		Get: &types.Get{TableName: &c.usersTable, Key: userKey(buyerID)},
	})
	for _, id := range ids {
		items = append(items, types.TransactGetItem{
			Get: &types.Get{TableName: &c.productsTable, Key: productKey(id)},
		})
	}

	out, err := c.client.TransactGetItems(ctx, &dyn.TransactGetItemsInput{TransactItems: items})
	if err != nil {
		return nil, fmt.Errorf("transact get: %w", err)
	}
	if len(out.Responses) != len(items) {
		return nil, fmt.Errorf("transact get: expected %d responses, got %d", len(items), len(out.Responses))
	}

	snap := &snapshot{products: make(map[string]*products.Product, len(ids))}
	if len(out.Responses[0].Item) == 0 {
		return nil, users.ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(out.Responses[0].Item, &snap.profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	for i, id := range ids {
		item := out.Responses[i+1].Item
		if len(item) == 0 {
			continue // vanished; buildOrder reports it per product id
		}
		var p products.Product
		if err := attributevalue.UnmarshalMap(item, &p); err != nil {
			return nil, fmt.Errorf("unmarshal product %s: %w", id, err)
		}
		snap.products[id] = &p
	}

	// The transactional cart is authoritative. An edit landing between the
	// pre-read and the transactional read can reference products outside the
	// read set; that is not a vanished product, it needs a fresh snapshot.
	read := make(map[string]bool, len(ids))
	for _, id := range ids {
		read[id] = true
	}
	for _, id := range distinctProductIDs(snap.profile.Cart) {
		if !read[id] {
			return nil, errStaleRead
		}
	}
	return snap, nil
}

// buildOrder is the pure order-factory step: it validates every cart line
// against the product snapshot and produces the frozen order payload. No
// partial orders: the first failing line aborts the whole checkout.
func (c *Coordinator) buildOrder(snap *snapshot, shippingAddress string) (*orders.Order, error) {
	now := c.nowFunc().UTC()
	order := &orders.Order{
		OrderID:         c.newID(),
		BuyerID:         snap.profile.UserID,
		Status:          orders.StatusPending,
		ShippingAddress: shippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var total float64
	for _, line := range snap.profile.Cart {
		p, ok := snap.products[line.ProductID]
		if !ok || !p.IsActive {
			return nil, &ProductVanishedError{ProductID: line.ProductID}
		}
		if line.Quantity > p.Stock {
			return nil, &InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: p.Stock,
			}
		}
		image := ""
		if len(p.Images) > 0 {
			image = p.Images[0]
		}
		order.Items = append(order.Items, orders.OrderItem{
			ProductID: p.ProductID,
			SellerID:  p.SellerID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  line.Quantity,
			Image:     image,
			Status:    orders.StatusPending,
			UpdatedAt: now,
		})
		total += p.Price * float64(line.Quantity)
	}
	order.TotalPrice = math.Round(total*100) / 100
	return order, nil
}

// commit issues the single TransactWriteItems call: conditional stock
// decrements, the order put, the seller index puts, and the cart clear.
// Either everything lands or nothing does.
func (c *Coordinator) commit(ctx context.Context, snap *snapshot, order *orders.Order) error {
	now := c.nowFunc().UTC().Format(time.RFC3339Nano)

	seenAV, err := attributevalue.Marshal(snap.profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("marshal profile updated_at: %w", err)
	}
	orderItem, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	writes := []types.TransactWriteItem{
		{
			// Clear the cart. The condition pins the profile to the snapshot
			// we validated against: a concurrent cart edit aborts the commit
			// and the whole flow retries with a fresh snapshot.
			Update: &types.Update{
				TableName:        &c.usersTable,
				Key:              userKey(snap.profile.UserID),
				UpdateExpression: strPtr("SET cart = :empty, updated_at = :ua"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
					":ua":    &types.AttributeValueMemberS{Value: now},
					":seen":  seenAV,
				},
				ConditionExpression: strPtr("updated_at = :seen"),
			},
		},
		{
			Put: &types.Put{
				TableName:           &c.ordersTable,
				Item:                orderItem,
				ConditionExpression: strPtr("attribute_not_exists(order_id)"),
			},
		},
	}

	// One conditional decrement per distinct product. The stock floor is
	// enforced here: a concurrent checkout that drains stock first makes
	// this condition fail and the transaction abort.
	quantities := map[string]int{}
	for _, line := range snap.profile.Cart {
		quantities[line.ProductID] += line.Quantity
	}
	for _, id := range distinctProductIDs(snap.profile.Cart) {
		q := quantities[id]
		writes = append(writes, types.TransactWriteItem{
			Update: &types.Update{
				TableName:        &c.productsTable,
				Key:              productKey(id),
				UpdateExpression: strPtr("SET stock = stock - :q, updated_at = :ua"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":q":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", q)},
					":ua":     &types.AttributeValueMemberS{Value: now},
					":active": &types.AttributeValueMemberBOOL{Value: true},
				},
				ConditionExpression: strPtr("attribute_exists(product_id) AND stock >= :q AND is_active = :active"),
			},
		})
	}

	for _, sellerID := range distinctSellerIDs(order.Items) {
		refItem, err := attributevalue.MarshalMap(orders.SellerOrderRef{
			SellerID:  sellerID,
			OrderID:   order.OrderID,
			BuyerID:   order.BuyerID,
			CreatedAt: order.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal seller ref: %w", err)
		}
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{TableName: &c.sellerOrdersTable, Item: refItem},
		})
	}

	_, err = c.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// retryable reports whether the commit failure came from transaction
// isolation (a conflicting concurrent write) rather than a hard error.
// A fresh snapshot re-validates and either succeeds or surfaces the precise
// validation failure.
func retryable(err error) bool {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return true
	}
	var api smithy.APIError
	if errors.As(err, &api) {
		switch api.ErrorCode() {
		case "TransactionCanceledException", "TransactionConflictException", "TransactionInProgressException":
			return true
		}
	}
	return false
}

// finish maps the result to an outcome label, records it, and normalizes
// deadline errors to ErrTimeout.
func (c *Coordinator) finish(ctx context.Context, order *orders.Order, err error) error {
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && retryable(err))) {
		err = ErrTimeout
	}

	outcome := OutcomeError
	var vanished *ProductVanishedError
	var stock *InsufficientStockError
	switch {
	case err == nil && order != nil:
		outcome = OutcomeSuccess
	case errors.Is(err, ErrEmptyCart):
		outcome = OutcomeEmptyCart
	case errors.As(err, &vanished):
		outcome = OutcomeProductVanished
	case errors.As(err, &stock):
		outcome = OutcomeInsufficientStock
	case errors.Is(err, ErrConflict):
		outcome = OutcomeConflict
	case errors.Is(err, ErrTimeout):
		outcome = OutcomeTimeout
	}
	if c.recorder != nil {
		c.recorder.CheckoutOutcome(context.WithoutCancel(ctx), outcome)
	}
	return err
}

func distinctProductIDs(cart []users.CartItem) []string {
	seen := map[string]bool{}
	var ids []string
	for _, line := range cart {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}
	return ids
}

func distinctSellerIDs(items []orders.OrderItem) []string {
	seen := map[string]bool{}
	var ids []string
	for _, it := range items {
		if !seen[it.SellerID] {
			seen[it.SellerID] = true
			ids = append(ids, it.SellerID)
		}
	}
	return ids
}

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

func productKey(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
