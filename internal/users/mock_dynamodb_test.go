package users

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a small in-memory stand-in for the users table. It only
// understands the expressions this package's Store issues.
type mockDynamo struct {
	mu    sync.Mutex
	table map[string]map[string]types.AttributeValue

	// when set, the next UpdateItem with a condition fails once, simulating
	// a concurrent writer
	failNextCondition bool

	updateCalls int
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{table: map[string]map[string]types.AttributeValue{}}
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := params.Key["user_id"].(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := params.Item["user_id"].(*types.AttributeValueMemberS).Value
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(user_id)" {
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
	m.updateCalls++
	k := params.Key["user_id"].(*types.AttributeValueMemberS).Value
	item, exists := m.table[k]

	if params.ConditionExpression != nil {
		cond := *params.ConditionExpression
		if m.failNextCondition {
			m.failNextCondition = false
			return nil, &types.ConditionalCheckFailedException{}
		}
		if strings.Contains(cond, "attribute_exists(user_id)") && !exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
		if strings.Contains(cond, "updated_at = :seen") {
			if !exists {
				return nil, &types.ConditionalCheckFailedException{}
			}
			seen := params.ExpressionAttributeValues[":seen"].(*types.AttributeValueMemberS).Value
			current := item["updated_at"].(*types.AttributeValueMemberS).Value
			if seen != current {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	if !exists {
		return nil, errors.New("item not found")
	}

	// naive SET interpreter: "SET a = :v, #n = :w" with name/value maps
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

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &dyn.ScanOutput{}
	for _, item := range m.table {
		if params.FilterExpression != nil {
			role := ""
			if av, ok := item["role"].(*types.AttributeValueMemberS); ok {
				role = av.Value
			}
			approved := false
			if av, ok := item["is_approved"].(*types.AttributeValueMemberBOOL); ok {
				approved = av.Value
			}
			want := params.ExpressionAttributeValues[":role"].(*types.AttributeValueMemberS).Value
			wantApproved := params.ExpressionAttributeValues[":unapproved"].(*types.AttributeValueMemberBOOL).Value
			if role != want || approved != wantApproved {
				continue
			}
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

// Unused parts of the DynamoDB surface.

func (m *mockDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	return nil, errors.New("not implemented")
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
