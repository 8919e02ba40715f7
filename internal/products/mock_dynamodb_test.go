package products

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo backs the products Store in tests. It interprets only the
// expressions the Store issues.
type mockDynamo struct {
	mu    sync.Mutex
	table map[string]map[string]types.AttributeValue
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{table: map[string]map[string]types.AttributeValue{}}
}

func strAttr(item map[string]types.AttributeValue, name string) string {
	if av, ok := item[name].(*types.AttributeValueMemberS); ok {
		return av.Value
	}
	return ""
}

func boolAttr(item map[string]types.AttributeValue, name string) bool {
	if av, ok := item[name].(*types.AttributeValueMemberBOOL); ok {
		return av.Value
	}
	return false
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := params.Key["product_id"].(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := params.Item["product_id"].(*types.AttributeValueMemberS).Value
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(product_id)" {
		if _, exists := m.table[k]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := params.Key["product_id"].(*types.AttributeValueMemberS).Value
	item, exists := m.table[k]

	if params.ConditionExpression != nil {
		cond := *params.ConditionExpression
		if strings.Contains(cond, "attribute_exists(product_id)") && !exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
		if strings.Contains(cond, "seller_id = :sid") {
			want := params.ExpressionAttributeValues[":sid"].(*types.AttributeValueMemberS).Value
			if strAttr(item, "seller_id") != want {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	if !exists {
		return nil, errors.New("item not found")
	}

	expr := strings.TrimPrefix(*params.UpdateExpression, "SET ")
	for _, clause := range strings.Split(expr, ", ") {
		parts := strings.SplitN(clause, " = ", 2)
		if len(parts) != 2 {
			return nil, errors.New("unsupported update expression: " + clause)
		}
		attr := parts[0]
		if real, ok := params.ExpressionAttributeNames[attr]; ok {
			attr = real
		}
		item[attr] = params.ExpressionAttributeValues[parts[1]]
	}
	m.table[k] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := params.Key["product_id"].(*types.AttributeValueMemberS).Value
	item, exists := m.table[k]
	if params.ConditionExpression != nil {
		cond := *params.ConditionExpression
		if strings.Contains(cond, "attribute_exists(product_id)") && !exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
		if strings.Contains(cond, "seller_id = :sid") {
			want := params.ExpressionAttributeValues[":sid"].(*types.AttributeValueMemberS).Value
			if strAttr(item, "seller_id") != want {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	delete(m.table, k)
	return &dyn.DeleteItemOutput{}, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &dyn.ScanOutput{}
	for _, item := range m.table {
		if params.FilterExpression != nil {
			switch *params.FilterExpression {
			case "is_active = :active":
				if boolAttr(item, "is_active") != params.ExpressionAttributeValues[":active"].(*types.AttributeValueMemberBOOL).Value {
					continue
				}
			case "is_reported = :reported":
				if boolAttr(item, "is_reported") != params.ExpressionAttributeValues[":reported"].(*types.AttributeValueMemberBOOL).Value {
					continue
				}
			default:
				return nil, errors.New("unsupported filter: " + *params.FilterExpression)
			}
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if params.IndexName == nil || *params.IndexName != sellerIndex {
		return nil, errors.New("unsupported query")
	}
	want := params.ExpressionAttributeValues[":sid"].(*types.AttributeValueMemberS).Value
	out := &dyn.QueryOutput{}
	for _, item := range m.table {
		if strAttr(item, "seller_id") == want {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func (m *mockDynamo) BatchGetItem(ctx context.Context, params *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDynamo) TransactGetItems(ctx context.Context, params *dyn.TransactGetItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactGetItemsOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	return nil, errors.New("not implemented")
}
