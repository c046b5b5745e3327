// ABOUTME: DynamoDB-backed cloud store using a single-table layout
// ABOUTME: GSI1 indexes maps by owner and stakeholders by map, sorted by creation time
package cloud

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/harperreed/stakemap/models"
	"go.uber.org/zap"
)

const (
	gsi1Name = "GSI1"

	// sortTimeLayout is fixed width so GSI1SK sorts lexicographically by time.
	sortTimeLayout = "20060102T150405.000000000Z"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DynamoConfig selects the table and, for local development, the endpoint.
type DynamoConfig struct {
	Table    string
	Region   string
	Endpoint string
}

// DynamoStore implements Store and UsageStore on one DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	logger    *zap.Logger
}

// ddbMap represents a map item in DynamoDB.
type ddbMap struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	GSI1PK      string `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK      string `dynamodbav:"GSI1SK,omitempty"`
	EntityType  string `dynamodbav:"EntityType"`
	ID          string `dynamodbav:"ID"`
	Name        string `dynamodbav:"Name"`
	Description string `dynamodbav:"Description"`
	OwnerID     string `dynamodbav:"OwnerID,omitempty"`
	Created     string `dynamodbav:"Created"`
	Updated     string `dynamodbav:"Updated"`
}

// ddbStakeholder represents a stakeholder item in DynamoDB.
type ddbStakeholder struct {
	PK            string           `dynamodbav:"PK"`
	SK            string           `dynamodbav:"SK"`
	GSI1PK        string           `dynamodbav:"GSI1PK"`
	GSI1SK        string           `dynamodbav:"GSI1SK"`
	EntityType    string           `dynamodbav:"EntityType"`
	ID            string           `dynamodbav:"ID"`
	MapID         string           `dynamodbav:"MapID"`
	Name          string           `dynamodbav:"Name"`
	Influence     *int             `dynamodbav:"Influence,omitempty"`
	Impact        *int             `dynamodbav:"Impact,omitempty"`
	Relationship  *int             `dynamodbav:"Relationship,omitempty"`
	Category      string           `dynamodbav:"Category"`
	Interests     string           `dynamodbav:"Interests"`
	Contribution  string           `dynamodbav:"Contribution"`
	Risk          string           `dynamodbav:"Risk"`
	Communication string           `dynamodbav:"Communication"`
	Strategy      string           `dynamodbav:"Strategy"`
	Measurement   string           `dynamodbav:"Measurement"`
	Interactions  []ddbInteraction `dynamodbav:"Interactions"`
	Created       string           `dynamodbav:"Created"`
	Updated       string           `dynamodbav:"Updated"`
}

type ddbInteraction struct {
	ID   string `dynamodbav:"ID"`
	Date string `dynamodbav:"Date"`
	Text string `dynamodbav:"Text"`
}

// ddbUsageEvent represents an append-only usage event item.
type ddbUsageEvent struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`
	models.UsageEvent
}

// ddbUser holds per-user flags.
type ddbUser struct {
	UnlimitedAiAccess bool `dynamodbav:"unlimitedAiAccess"`
}

// ddbLimits holds the global quota configuration.
type ddbLimits struct {
	WeeklyCallLimit *int `dynamodbav:"weeklyCallLimit"`
}

func mapPK(id string) string { return "MAP#" + id }
func stakeholderPK(id string) string { return "STAKEHOLDER#" + id }
func ownerGSI(uid string) string { return "OWNER#" + uid }
func userPK(uid string) string { return "USER#" + uid }
func usagePK(counter string) string { return "USAGE#" + counter }
func usageEventPK(id string) string { return "USAGE_EVENT#" + id }
func userUsageGSI(uid string) string { return "USER#" + uid + "#USAGE" }
func createdSort(t time.Time, id string) string {
	return t.UTC().Format(sortTimeLayout) + "#" + id
}

// NewDynamoStore loads AWS configuration and builds a store on cfg.Table.
func NewDynamoStore(ctx context.Context, cfg DynamoConfig, logger *zap.Logger) (*DynamoStore, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewDynamoStoreWithClient(client, cfg.Table, logger), nil
}

func NewDynamoStoreWithClient(client DynamoAPI, tableName string, logger *zap.Logger) *DynamoStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DynamoStore{client: client, tableName: tableName, logger: logger}
}

// EnsureTable creates the table and its GSI when missing. Used for local
// development and integration tests.
func (d *DynamoStore) EnsureTable(ctx context.Context) error {
	str := types.ScalarAttributeTypeS
	_, err := d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(d.tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: str},
			{AttributeName: aws.String("SK"), AttributeType: str},
			{AttributeName: aws.String("GSI1PK"), AttributeType: str},
			{AttributeName: aws.String("GSI1SK"), AttributeType: str},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{{
			IndexName: aws.String(gsi1Name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("GSI1PK"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("GSI1SK"), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}},
	})
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return nil
	}
	return wrap("create table", err)
}

func (d *DynamoStore) key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// queryGSI1 returns every item under a GSI1 partition in sort-key order.
// When attrs is non-empty only those attributes are fetched.
func (d *DynamoStore) queryGSI1(ctx context.Context, pk string, attrs ...string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(pk))
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if len(attrs) > 0 {
		proj := expression.NamesList(expression.Name(attrs[0]))
		for _, a := range attrs[1:] {
			proj = proj.AddNames(expression.Name(a))
		}
		builder = builder.WithProjection(proj)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		out, err := d.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(d.tableName),
			IndexName:                 aws.String(gsi1Name),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ProjectionExpression:      expr.Projection(),
			ScanIndexForward:          aws.Bool(true),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (d *DynamoStore) FetchMaps(ctx context.Context, ownerID string) ([]*models.Map, error) {
	items, err := d.queryGSI1(ctx, ownerGSI(ownerID))
	if err != nil {
		return nil, wrap("fetch maps", err)
	}

	maps := make([]*models.Map, 0, len(items))
	for _, item := range items {
		var rec ddbMap
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			d.logger.Warn("skipping undecodable map item", zap.String("owner_id", ownerID), zap.Error(err))
			continue
		}
		m, err := mapFromItem(rec)
		if err != nil {
			d.logger.Warn("skipping invalid map item", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		maps = append(maps, m)
	}
	return maps, nil
}

func (d *DynamoStore) FetchStakeholders(ctx context.Context, mapID string) ([]*models.Stakeholder, error) {
	items, err := d.queryGSI1(ctx, mapPK(mapID))
	if err != nil {
		return nil, wrap("fetch stakeholders", err)
	}

	list := make([]*models.Stakeholder, 0, len(items))
	for _, item := range items {
		var rec ddbStakeholder
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			d.logger.Warn("skipping undecodable stakeholder item", zap.String("map_id", mapID), zap.Error(err))
			continue
		}
		st, err := stakeholderFromItem(rec)
		if err != nil {
			d.logger.Warn("skipping invalid stakeholder item", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		list = append(list, st)
	}
	return list, nil
}

// PutMap upserts a map, conditioned on the stored owner being absent or equal.
func (d *DynamoStore) PutMap(ctx context.Context, m *models.Map) error {
	item, err := attributevalue.MarshalMap(mapToItem(m))
	if err != nil {
		return fmt.Errorf("failed to marshal map: %w", err)
	}

	cond := expression.Name("PK").AttributeNotExists().
		Or(expression.Name("OwnerID").AttributeNotExists()).
		Or(expression.Name("OwnerID").Equal(expression.Value(m.OwnerID)))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(d.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return &models.AccessDeniedError{Kind: "map", ID: m.ID, UserID: m.OwnerID}
		}
		return wrap("put map", err)
	}

	d.logger.Debug("map saved", zap.String("id", m.ID), zap.String("owner_id", m.OwnerID))
	return nil
}

func (d *DynamoStore) PutStakeholder(ctx context.Context, st *models.Stakeholder) error {
	item, err := attributevalue.MarshalMap(stakeholderToItem(st))
	if err != nil {
		return fmt.Errorf("failed to marshal stakeholder: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	return wrap("put stakeholder", err)
}

func (d *DynamoStore) DeleteStakeholder(ctx context.Context, id string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.key(stakeholderPK(id), "STAKEHOLDER"),
	})
	return wrap("delete stakeholder", err)
}

// DeleteMap removes a map's stakeholders, then the map item. On partial
// failure the map item survives and a *CascadeError is returned.
func (d *DynamoStore) DeleteMap(ctx context.Context, mapID string) error {
	ids, keys, err := d.childKeys(ctx, mapID)
	if err != nil {
		return err
	}

	del := func(ctx context.Context, id string) error {
		_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(d.tableName),
			Key:       keys[id],
		})
		return wrap("delete stakeholder", err)
	}
	if cerr := deleteChildren(ctx, mapID, ids, del); cerr != nil {
		d.logger.Warn("partial map delete",
			zap.String("map_id", mapID),
			zap.Int("deleted", len(cerr.Deleted)),
			zap.Int("failed", len(cerr.Failed)))
		return cerr
	}

	_, err = d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.key(mapPK(mapID), "MAP"),
	})
	return wrap("delete map", err)
}

// childKeys lists the table keys of every item indexed under a map. Only
// PK and SK are read, so items that no longer decode are still found.
func (d *DynamoStore) childKeys(ctx context.Context, mapID string) ([]string, map[string]map[string]types.AttributeValue, error) {
	items, err := d.queryGSI1(ctx, mapPK(mapID), "PK", "SK")
	if err != nil {
		return nil, nil, wrap("list stakeholders", err)
	}

	ids := make([]string, 0, len(items))
	keys := make(map[string]map[string]types.AttributeValue, len(items))
	for _, item := range items {
		pk, ok := item["PK"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		sk, ok := item["SK"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		id := strings.TrimPrefix(pk.Value, stakeholderPK(""))
		ids = append(ids, id)
		keys[id] = d.key(pk.Value, sk.Value)
	}
	return ids, keys, nil
}

func (d *DynamoStore) UnlimitedAccess(ctx context.Context, userID string) (bool, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.key(userPK(userID), "PROFILE"),
	})
	if err != nil {
		return false, wrap("read user", err)
	}
	if out.Item == nil {
		return false, nil
	}
	var u ddbUser
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return false, wrap("read user", err)
	}
	return u.UnlimitedAiAccess, nil
}

func (d *DynamoStore) SetUnlimitedAccess(ctx context.Context, userID string, unlimited bool) error {
	update := expression.Set(expression.Name("unlimitedAiAccess"), expression.Value(unlimited))
	return d.update(ctx, "write user", d.key(userPK(userID), "PROFILE"), update)
}

func (d *DynamoStore) WeeklyCallLimit(ctx context.Context) (int, bool, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.key("CONFIG", "aiLimits"),
	})
	if err != nil {
		return 0, false, wrap("read limits", err)
	}
	if out.Item == nil {
		return 0, false, nil
	}
	var l ddbLimits
	if err := attributevalue.UnmarshalMap(out.Item, &l); err != nil {
		return 0, false, wrap("read limits", err)
	}
	if l.WeeklyCallLimit == nil {
		return 0, false, nil
	}
	return *l.WeeklyCallLimit, true, nil
}

func (d *DynamoStore) SetWeeklyCallLimit(ctx context.Context, limit int) error {
	update := expression.Set(expression.Name("weeklyCallLimit"), expression.Value(limit))
	return d.update(ctx, "write limits", d.key("CONFIG", "aiLimits"), update)
}

func (d *DynamoStore) GetWeeklyUsage(ctx context.Context, userID, weekID string) (*models.UsageCounter, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.key(usagePK(models.CounterKey(userID, weekID)), "WEEK"),
	})
	if err != nil {
		return nil, wrap("read weekly usage", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var c models.UsageCounter
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, wrap("read weekly usage", err)
	}
	return &c, nil
}

// IncrementWeeklyUsage issues one UpdateItem that adds 1 to callCount and
// sets the creation fields only when the item is new.
func (d *DynamoStore) IncrementWeeklyUsage(ctx context.Context, c *models.UsageCounter) (int, error) {
	now := time.Now().UTC()
	update := expression.Add(expression.Name("callCount"), expression.Value(1)).
		Set(expression.Name("userId"), expression.IfNotExists(expression.Name("userId"), expression.Value(c.UserID))).
		Set(expression.Name("weekId"), expression.IfNotExists(expression.Name("weekId"), expression.Value(c.WeekID))).
		Set(expression.Name("startDate"), expression.IfNotExists(expression.Name("startDate"), expression.Value(c.StartDate))).
		Set(expression.Name("endDate"), expression.IfNotExists(expression.Name("endDate"), expression.Value(c.EndDate))).
		Set(expression.Name("created"), expression.IfNotExists(expression.Name("created"), expression.Value(now))).
		Set(expression.Name("lastUpdated"), expression.Value(now))

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build expression: %w", err)
	}

	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tableName),
		Key:                       d.key(usagePK(c.Key()), "WEEK"),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, wrap("increment weekly usage", err)
	}

	n, ok := out.Attributes["callCount"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, &models.StoreError{Op: "increment weekly usage", Err: errors.New("callCount missing from response")}
	}
	count, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, &models.StoreError{Op: "increment weekly usage", Err: err}
	}
	return count, nil
}

func (d *DynamoStore) AppendUsageEvent(ctx context.Context, ev *models.UsageEvent) error {
	item, err := attributevalue.MarshalMap(ddbUsageEvent{
		PK:         usageEventPK(ev.ID),
		SK:         "EVENT",
		GSI1PK:     userUsageGSI(ev.UserID),
		GSI1SK:     createdSort(ev.Timestamp, ev.ID),
		UsageEvent: *ev,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal usage event: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	return wrap("append usage event", err)
}

func (d *DynamoStore) update(ctx context.Context, op string, key map[string]types.AttributeValue, update expression.UpdateBuilder) error {
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return wrap(op, err)
}

func mapToItem(m *models.Map) ddbMap {
	item := ddbMap{
		PK:          mapPK(m.ID),
		SK:          "MAP",
		EntityType:  "Map",
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		OwnerID:     m.OwnerID,
		Created:     formatTime(m.Created),
		Updated:     formatTime(m.Updated),
	}
	if m.OwnerID != "" {
		item.GSI1PK = ownerGSI(m.OwnerID)
		item.GSI1SK = createdSort(m.Created, m.ID)
	}
	return item
}

func mapFromItem(rec ddbMap) (*models.Map, error) {
	return models.MapFromObject(map[string]interface{}{
		models.FieldID:          rec.ID,
		models.FieldName:        rec.Name,
		models.FieldDescription: rec.Description,
		models.FieldOwnerID:     rec.OwnerID,
		models.FieldCreated:     rec.Created,
		models.FieldUpdated:     rec.Updated,
	})
}

func stakeholderToItem(s *models.Stakeholder) ddbStakeholder {
	interactions := make([]ddbInteraction, len(s.Interactions))
	for i, in := range s.Interactions {
		interactions[i] = ddbInteraction{ID: in.ID, Date: formatTime(in.Date), Text: in.Text}
	}
	return ddbStakeholder{
		PK:            stakeholderPK(s.ID),
		SK:            "STAKEHOLDER",
		GSI1PK:        mapPK(s.MapID),
		GSI1SK:        createdSort(s.Created, s.ID),
		EntityType:    "Stakeholder",
		ID:            s.ID,
		MapID:         s.MapID,
		Name:          s.Name,
		Influence:     s.Influence,
		Impact:        s.Impact,
		Relationship:  s.Relationship,
		Category:      s.Category,
		Interests:     s.Interests,
		Contribution:  s.Contribution,
		Risk:          s.Risk,
		Communication: s.Communication,
		Strategy:      s.Strategy,
		Measurement:   s.Measurement,
		Interactions:  interactions,
		Created:       formatTime(s.Created),
		Updated:       formatTime(s.Updated),
	}
}

func stakeholderFromItem(rec ddbStakeholder) (*models.Stakeholder, error) {
	interactions := make([]interface{}, len(rec.Interactions))
	for i, in := range rec.Interactions {
		interactions[i] = map[string]interface{}{
			models.FieldID:   in.ID,
			models.FieldDate: in.Date,
			models.FieldText: in.Text,
		}
	}
	obj := map[string]interface{}{
		models.FieldID:            rec.ID,
		models.FieldMapID:         rec.MapID,
		models.FieldName:          rec.Name,
		models.FieldCategory:      rec.Category,
		models.FieldInterests:     rec.Interests,
		models.FieldContribution:  rec.Contribution,
		models.FieldRisk:          rec.Risk,
		models.FieldCommunication: rec.Communication,
		models.FieldStrategy:      rec.Strategy,
		models.FieldMeasurement:   rec.Measurement,
		models.FieldInteractions:  interactions,
		models.FieldCreated:       rec.Created,
		models.FieldUpdated:       rec.Updated,
	}
	for field, v := range map[string]*int{
		models.FieldInfluence:    rec.Influence,
		models.FieldImpact:       rec.Impact,
		models.FieldRelationship: rec.Relationship,
	} {
		if v != nil {
			obj[field] = *v
		}
	}
	return models.StakeholderFromObject(obj)
}
