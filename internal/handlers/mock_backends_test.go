package handlers

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	cogtypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/smithy-go"
)

const (
	usersTable        = "users-table"
	productsTable     = "products-table"
	ordersTable       = "orders-table"
	sellerOrdersTable = "seller-orders-table"
)

// mockDynamo is an in-memory stand-in for the four marketplace tables,
// interpreting the exact expressions the stores and the coordinator emit.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{
			usersTable:        {},
			productsTable:     {},
			ordersTable:       {},
			sellerOrdersTable: {},
		},
	}
}

func keyOf(table string, key map[string]types.AttributeValue) string {
	switch table {
	case usersTable:
		return sVal(key, "user_id")
	case productsTable:
		return sVal(key, "product_id")
	case ordersTable:
		return sVal(key, "order_id")
	case sellerOrdersTable:
		return sVal(key, "seller_id") + "|" + sVal(key, "order_id")
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

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// checkCondition evaluates the handful of condition expressions the stores
// use. exists refers to the target item.
func checkCondition(cond string, item map[string]types.AttributeValue, exists bool, values map[string]types.AttributeValue) bool {
	switch cond {
	case "attribute_not_exists(user_id)", "attribute_not_exists(product_id)", "attribute_not_exists(order_id)":
		return !exists
	case "attribute_exists(user_id)", "attribute_exists(product_id)", "attribute_exists(order_id)":
		return exists
	case "updated_at = :seen":
		return exists && sVal(item, "updated_at") == sVal(values, ":seen")
	case "attribute_exists(product_id) AND seller_id = :sid":
		return exists && sVal(item, "seller_id") == sVal(values, ":sid")
	case "attribute_exists(product_id) AND stock >= :q AND is_active = :active":
		if !exists {
			return false
		}
		q, _ := strconv.Atoi(values[":q"].(*types.AttributeValueMemberN).Value)
		return nVal(item, "stock") >= q && bVal(item, "is_active") == bVal(values, ":active")
	}
	return false
}

// applySet interprets a "SET a = :x, b = :y" update expression, with #name
// placeholders and the stock decrement special case.
func applySet(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) {
	expr = strings.TrimPrefix(expr, "SET ")
	for _, clause := range strings.Split(expr, ", ") {
		parts := strings.SplitN(clause, " = ", 2)
		attr := parts[0]
		if resolved, ok := names[attr]; ok {
			attr = resolved
		}
		rhs := parts[1]
		if rhs == "stock - :q" {
			q, _ := strconv.Atoi(values[":q"].(*types.AttributeValueMemberN).Value)
			item[attr] = &types.AttributeValueMemberN{Value: strconv.Itoa(nVal(item, "stock") - q)}
			continue
		}
		item[attr] = values[rhs]
	}
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	item, ok := m.tables[table][keyOf(table, params.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	k := keyOf(table, params.Item)
	_, exists := m.tables[table][k]
	if params.ConditionExpression != nil &&
		!checkCondition(*params.ConditionExpression, nil, exists, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	m.tables[table][k] = copyItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	k := keyOf(table, params.Key)
	item, exists := m.tables[table][k]
	if params.ConditionExpression != nil &&
		!checkCondition(*params.ConditionExpression, item, exists, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if !exists {
		item = map[string]types.AttributeValue{}
	} else {
		item = copyItem(item)
	}
	applySet(item, *params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	m.tables[table][k] = item
	return &dyn.UpdateItemOutput{}, nil
}

func (m *mockDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	k := keyOf(table, params.Key)
	item, exists := m.tables[table][k]
	if params.ConditionExpression != nil &&
		!checkCondition(*params.ConditionExpression, item, exists, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	delete(m.tables[table], k)
	return &dyn.DeleteItemOutput{}, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	filter := ""
	if params.FilterExpression != nil {
		filter = *params.FilterExpression
	}
	var items []map[string]types.AttributeValue
	for _, item := range m.tables[table] {
		switch filter {
		case "":
		case "is_active = :active":
			if bVal(item, "is_active") != bVal(params.ExpressionAttributeValues, ":active") {
				continue
			}
		case "is_reported = :reported":
			if bVal(item, "is_reported") != bVal(params.ExpressionAttributeValues, ":reported") {
				continue
			}
		case "#r = :role AND is_approved = :unapproved":
			if sVal(item, "role") != sVal(params.ExpressionAttributeValues, ":role") ||
				bVal(item, "is_approved") != bVal(params.ExpressionAttributeValues, ":unapproved") {
				continue
			}
		default:
			return nil, errors.New("unsupported scan filter: " + filter)
		}
		items = append(items, copyItem(item))
	}
	return &dyn.ScanOutput{Items: items}, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName

	var matchAttr, matchValue string
	switch *params.KeyConditionExpression {
	case "seller_id = :sid":
		matchAttr, matchValue = "seller_id", sVal(params.ExpressionAttributeValues, ":sid")
	case "buyer_id = :bid":
		matchAttr, matchValue = "buyer_id", sVal(params.ExpressionAttributeValues, ":bid")
	default:
		return nil, errors.New("unsupported key condition: " + *params.KeyConditionExpression)
	}

	var items []map[string]types.AttributeValue
	for _, item := range m.tables[table] {
		if sVal(item, matchAttr) == matchValue {
			items = append(items, copyItem(item))
		}
	}
	// created_at is RFC3339, string order works
	sort.Slice(items, func(i, j int) bool {
		a, b := sVal(items[i], "created_at"), sVal(items[j], "created_at")
		if params.ScanIndexForward != nil && !*params.ScanIndexForward {
			return a > b
		}
		return a < b
	})
	return &dyn.QueryOutput{Items: items}, nil
}

func (m *mockDynamo) BatchGetItem(ctx context.Context, params *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	responses := map[string][]map[string]types.AttributeValue{}
	for table, req := range params.RequestItems {
		for _, key := range req.Keys {
			if item, ok := m.tables[table][keyOf(table, key)]; ok {
				responses[table] = append(responses[table], copyItem(item))
			}
		}
	}
	return &dyn.BatchGetItemOutput{Responses: responses}, nil
}

func (m *mockDynamo) TransactGetItems(ctx context.Context, params *dyn.TransactGetItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactGetItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &dyn.TransactGetItemsOutput{}
	for _, tgi := range params.TransactItems {
		table := *tgi.Get.TableName
		item, ok := m.tables[table][keyOf(table, tgi.Get.Key)]
		if !ok {
			out.Responses = append(out.Responses, types.ItemResponse{})
			continue
		}
		out.Responses = append(out.Responses, types.ItemResponse{Item: copyItem(item)})
	}
	return out, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// all conditions must pass before any write applies
	for _, twi := range params.TransactItems {
		switch {
		case twi.Update != nil:
			u := twi.Update
			table := *u.TableName
			item, exists := m.tables[table][keyOf(table, u.Key)]
			if u.ConditionExpression != nil &&
				!checkCondition(*u.ConditionExpression, item, exists, u.ExpressionAttributeValues) {
				return nil, &types.TransactionCanceledException{}
			}
		case twi.Put != nil:
			p := twi.Put
			table := *p.TableName
			_, exists := m.tables[table][keyOf(table, p.Item)]
			if p.ConditionExpression != nil &&
				!checkCondition(*p.ConditionExpression, nil, exists, p.ExpressionAttributeValues) {
				return nil, &types.TransactionCanceledException{}
			}
		}
	}

	for _, twi := range params.TransactItems {
		switch {
		case twi.Update != nil:
			u := twi.Update
			table := *u.TableName
			k := keyOf(table, u.Key)
			item := copyItem(m.tables[table][k])
			applySet(item, *u.UpdateExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues)
			m.tables[table][k] = item
		case twi.Put != nil:
			p := twi.Put
			table := *p.TableName
			m.tables[table][keyOf(table, p.Item)] = copyItem(p.Item)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// mockCognito resolves access tokens from a fixed token -> identity map.
type mockCognito struct {
	identities map[string][2]string // token -> {sub, email}
}

func (m *mockCognito) GetUser(ctx context.Context, params *cognitoidentityprovider.GetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GetUserOutput, error) {
	id, ok := m.identities[*params.AccessToken]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NotAuthorizedException", Message: "invalid token"}
	}
	sub, email := id[0], id[1]
	subName, emailName := "sub", "email"
	return &cognitoidentityprovider.GetUserOutput{
		UserAttributes: []cogtypes.AttributeType{
			{Name: &subName, Value: &sub},
			{Name: &emailName, Value: &email},
		},
	}, nil
}

// mockSQS captures published notification events.
type mockSQS struct {
	mu     sync.Mutex
	bodies []string
	attrs  []map[string]string
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies = append(m.bodies, *params.MessageBody)
	attrs := map[string]string{}
	for k, v := range params.MessageAttributes {
		if v.StringValue != nil {
			attrs[k] = *v.StringValue
		}
	}
	m.attrs = append(m.attrs, attrs)
	return &sqs.SendMessageOutput{}, nil
}

func (m *mockSQS) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, a := range m.attrs {
		out = append(out, a["event_type"])
	}
	return out
}
