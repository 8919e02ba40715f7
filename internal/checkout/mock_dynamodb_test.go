package checkout

import (
	"context"
	"errors"
	"strconv"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	usersTable        = "users-table"
	productsTable     = "products-table"
	ordersTable       = "orders-table"
	sellerOrdersTable = "seller-orders-table"
)

// mockDynamo simulates the transactional semantics the coordinator relies
// on: TransactGetItems returns a consistent snapshot (one lock for the whole
// call) and TransactWriteItems checks every condition before applying any
// write, cancelling the whole batch on the first failure.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue

	// cancelWrites > 0 cancels that many TransactWriteItems calls without
	// applying them, simulating isolation conflicts
	cancelWrites int

	getCalls         int
	transactGetCalls int
	writeCalls       int
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{tables: map[string]map[string]map[string]types.AttributeValue{
		usersTable:        {},
		productsTable:     {},
		ordersTable:       {},
		sellerOrdersTable: {},
	}}
}

func keyOf(table string, key map[string]types.AttributeValue) string {
	switch table {
	case usersTable:
		return key["user_id"].(*types.AttributeValueMemberS).Value
	case productsTable:
		return key["product_id"].(*types.AttributeValueMemberS).Value
	case ordersTable:
		return key["order_id"].(*types.AttributeValueMemberS).Value
	case sellerOrdersTable:
		return key["seller_id"].(*types.AttributeValueMemberS).Value + "|" + key["order_id"].(*types.AttributeValueMemberS).Value
	}
	return ""
}

func sVal(item map[string]types.AttributeValue, name string) string {
	if av, ok := item[name].(*types.AttributeValueMemberS); ok {
		return av.Value
	}
	return ""
}

func nVal(item map[string]types.AttributeValue, name string) int {
	if av, ok := item[name].(*types.AttributeValueMemberN); ok {
		n, _ := strconv.Atoi(av.Value)
		return n
	}
	return 0
}

func bVal(item map[string]types.AttributeValue, name string) bool {
	if av, ok := item[name].(*types.AttributeValueMemberBOOL); ok {
		return av.Value
	}
	return false
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	item, ok := m.tables[*params.TableName][keyOf(*params.TableName, params.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) TransactGetItems(ctx context.Context, params *dyn.TransactGetItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactGetItemsOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactGetCalls++
	out := &dyn.TransactGetItemsOutput{}
	for _, tgi := range params.TransactItems {
		table := *tgi.Get.TableName
		item := m.tables[table][keyOf(table, tgi.Get.Key)]
		out.Responses = append(out.Responses, types.ItemResponse{Item: item})
	}
	return out, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++

	if m.cancelWrites > 0 {
		m.cancelWrites--
		return nil, &types.TransactionCanceledException{}
	}

	// condition pass first; nothing is applied if any fails
	for _, twi := range params.TransactItems {
		switch {
		case twi.Update != nil:
			u := twi.Update
			table := *u.TableName
			item, exists := m.tables[table][keyOf(table, u.Key)]
			cond := ""
			if u.ConditionExpression != nil {
				cond = *u.ConditionExpression
			}
			switch cond {
			case "updated_at = :seen":
				if !exists || sVal(item, "updated_at") != sVal(u.ExpressionAttributeValues, ":seen") {
					return nil, &types.TransactionCanceledException{}
				}
			case "attribute_exists(product_id) AND stock >= :q AND is_active = :active":
				if !exists {
					return nil, &types.TransactionCanceledException{}
				}
				q, _ := strconv.Atoi(u.ExpressionAttributeValues[":q"].(*types.AttributeValueMemberN).Value)
				if nVal(item, "stock") < q || bVal(item, "is_active") != bVal(u.ExpressionAttributeValues, ":active") {
					return nil, &types.TransactionCanceledException{}
				}
			case "":
			default:
				return nil, errors.New("unsupported condition: " + cond)
			}
		case twi.Put != nil:
			p := twi.Put
			if p.ConditionExpression != nil && *p.ConditionExpression == "attribute_not_exists(order_id)" {
				table := *p.TableName
				k := sVal(p.Item, "order_id")
				if _, exists := m.tables[table][k]; exists {
					return nil, &types.TransactionCanceledException{}
				}
			}
		}
	}

	// apply
	for _, twi := range params.TransactItems {
		switch {
		case twi.Update != nil:
			u := twi.Update
			table := *u.TableName
			k := keyOf(table, u.Key)
			item := m.tables[table][k]
			switch *u.UpdateExpression {
			case "SET cart = :empty, updated_at = :ua":
				item["cart"] = u.ExpressionAttributeValues[":empty"]
				item["updated_at"] = u.ExpressionAttributeValues[":ua"]
			case "SET stock = stock - :q, updated_at = :ua":
				q, _ := strconv.Atoi(u.ExpressionAttributeValues[":q"].(*types.AttributeValueMemberN).Value)
				item["stock"] = &types.AttributeValueMemberN{Value: strconv.Itoa(nVal(item, "stock") - q)}
				item["updated_at"] = u.ExpressionAttributeValues[":ua"]
			default:
				return nil, errors.New("unsupported update: " + *u.UpdateExpression)
			}
			m.tables[table][k] = item
		case twi.Put != nil:
			p := twi.Put
			table := *p.TableName
			var k string
			switch table {
			case ordersTable:
				k = sVal(p.Item, "order_id")
			case sellerOrdersTable:
				k = sVal(p.Item, "seller_id") + "|" + sVal(p.Item, "order_id")
			default:
				return nil, errors.New("unsupported put table: " + table)
			}
			m.tables[table][k] = p.Item
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// Unused surface.

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDynamo) BatchGetItem(ctx context.Context, params *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	return nil, errors.New("not implemented")
}
