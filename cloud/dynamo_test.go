// ABOUTME: Tests for the DynamoDB cloud store
// ABOUTME: Unit tests use a fake client; the integration test needs STAKEMAP_DYNAMO_ENDPOINT
package cloud

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/harperreed/stakemap/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo records inputs and returns canned responses.
type fakeDynamo struct {
	DynamoAPI
	putErr    error
	puts      []*dynamodb.PutItemInput
	updates   []*dynamodb.UpdateItemInput
	updateOut *dynamodb.UpdateItemOutput

	queryItems []map[string]types.AttributeValue
	queries    []*dynamodb.QueryInput

	mu sync.Mutex
	// deleteErr fails deletes by PK.
	deleteErr map[string]error
	deleted   []string
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	return &dynamodb.QueryOutput{Items: f.queryItems}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[pk]; err != nil {
		return nil, err
	}
	f.deleted = append(f.deleted, pk)
	return &dynamodb.DeleteItemOutput{}, nil
}

func keyItem(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	return f.updateOut, nil
}

func TestDynamoPutMapConditionFailureIsAccessDenied(t *testing.T) {
	fake := &fakeDynamo{putErr: &types.ConditionalCheckFailedException{Message: aws.String("owned")}}
	store := NewDynamoStoreWithClient(fake, "stakemap", nil)

	m := ownedMap(t, "mallory", "Not yours")
	err := store.PutMap(context.Background(), m)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrAccessDenied)

	var denied *models.AccessDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "mallory", denied.UserID)

	require.Len(t, fake.puts, 1)
	assert.NotNil(t, fake.puts[0].ConditionExpression)
	assert.Equal(t, "stakemap", aws.ToString(fake.puts[0].TableName))
}

func TestDynamoPutMapOtherErrorsAreUnavailable(t *testing.T) {
	fake := &fakeDynamo{putErr: errors.New("throttled")}
	store := NewDynamoStoreWithClient(fake, "stakemap", nil)

	err := store.PutMap(context.Background(), ownedMap(t, "u1", "x"))
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}

func TestDynamoDeleteMapRemovesUndecodableChildren(t *testing.T) {
	// The second child would fail to decode as a stakeholder; only its keys matter.
	fake := &fakeDynamo{queryItems: []map[string]types.AttributeValue{
		keyItem("STAKEHOLDER#s1", "STAKEHOLDER"),
		keyItem("STAKEHOLDER#broken", "STAKEHOLDER"),
	}}
	store := NewDynamoStoreWithClient(fake, "stakemap", nil)

	require.NoError(t, store.DeleteMap(context.Background(), "m1"))

	require.Len(t, fake.queries, 1)
	proj := aws.ToString(fake.queries[0].ProjectionExpression)
	assert.NotEmpty(t, proj, "children are listed by key only")
	for _, name := range fake.queries[0].ExpressionAttributeNames {
		assert.Contains(t, []string{"GSI1PK", "PK", "SK"}, name)
	}

	sort.Strings(fake.deleted)
	assert.Equal(t, []string{"MAP#m1", "STAKEHOLDER#broken", "STAKEHOLDER#s1"}, fake.deleted)
}

func TestDynamoDeleteMapPartialFailureKeepsMap(t *testing.T) {
	fake := &fakeDynamo{
		queryItems: []map[string]types.AttributeValue{
			keyItem("STAKEHOLDER#s1", "STAKEHOLDER"),
			keyItem("STAKEHOLDER#s2", "STAKEHOLDER"),
		},
		deleteErr: map[string]error{"STAKEHOLDER#s2": errors.New("throttled")},
	}
	store := NewDynamoStoreWithClient(fake, "stakemap", nil)

	err := store.DeleteMap(context.Background(), "m1")
	var cerr *CascadeError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "m1", cerr.MapID)
	assert.Equal(t, []string{"s1"}, cerr.Deleted)
	require.Contains(t, cerr.Failed, "s2")
	assert.ErrorIs(t, cerr.Failed["s2"], models.ErrStoreUnavailable)

	assert.Equal(t, []string{"STAKEHOLDER#s1"}, fake.deleted, "map item survives for a retry")
}

func TestDynamoMapItemLayout(t *testing.T) {
	m := ownedMap(t, "u1", "Layout")
	item := mapToItem(m)
	assert.Equal(t, "MAP#"+m.ID, item.PK)
	assert.Equal(t, "MAP", item.SK)
	assert.Equal(t, "OWNER#u1", item.GSI1PK)
	assert.True(t, strings.HasSuffix(item.GSI1SK, "#"+m.ID))

	anon, err := models.NewMap(models.MapInput{Name: "Anon"})
	require.NoError(t, err)
	av, err := attributevalue.MarshalMap(mapToItem(anon))
	require.NoError(t, err)
	_, hasGSI := av["GSI1PK"]
	assert.False(t, hasGSI, "anonymous maps stay out of the owner index")
}

func TestDynamoStakeholderItemRoundTrip(t *testing.T) {
	s := stakeholderIn(t, "m1", "Round")
	s.Relationship = models.Score(3)
	in, err := models.NewInteraction("lunch", time.Time{})
	require.NoError(t, err)
	s.PrependInteraction(*in)

	av, err := attributevalue.MarshalMap(stakeholderToItem(s))
	require.NoError(t, err)
	_, hasInfluence := av["Influence"]
	assert.False(t, hasInfluence)

	var rec ddbStakeholder
	require.NoError(t, attributevalue.UnmarshalMap(av, &rec))
	back, err := stakeholderFromItem(rec)
	require.NoError(t, err)
	assert.Equal(t, *s, *back)
}

func TestCreatedSortOrdersByTime(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	keys := []string{
		createdSort(base.Add(1500*time.Millisecond), "c"),
		createdSort(base.Add(time.Second), "b"),
		createdSort(base.Add(10*time.Second), "d"),
		createdSort(base, "a"),
	}
	sort.Strings(keys)
	for i, want := range []string{"a", "b", "c", "d"} {
		assert.True(t, strings.HasSuffix(keys[i], "#"+want), "position %d: %s", i, keys[i])
	}
}

func TestDynamoIncrementWeeklyUsage(t *testing.T) {
	fake := &fakeDynamo{updateOut: &dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{
			"callCount": &types.AttributeValueMemberN{Value: "4"},
		},
	}}
	store := NewDynamoStoreWithClient(fake, "stakemap", nil)

	n, err := store.IncrementWeeklyUsage(context.Background(), &models.UsageCounter{UserID: "u1", WeekID: "2024-06-02"})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.Len(t, fake.updates, 1)
	expr := aws.ToString(fake.updates[0].UpdateExpression)
	assert.Contains(t, expr, "ADD")
	assert.Contains(t, expr, "if_not_exists")
	assert.Equal(t, types.ReturnValueUpdatedNew, fake.updates[0].ReturnValues)
}

func TestDynamoIntegration(t *testing.T) {
	endpoint := os.Getenv("STAKEMAP_DYNAMO_ENDPOINT")
	if endpoint == "" {
		t.Skip("STAKEMAP_DYNAMO_ENDPOINT not set")
	}
	ctx := context.Background()

	store, err := NewDynamoStore(ctx, DynamoConfig{
		Table:    "stakemap-test-" + models.NewID(),
		Region:   "us-east-1",
		Endpoint: endpoint,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, store.EnsureTable(ctx))

	m := ownedMap(t, "u1", "Integration")
	require.NoError(t, store.PutMap(ctx, m))
	require.NoError(t, store.PutStakeholder(ctx, stakeholderIn(t, m.ID, "one")))
	require.NoError(t, store.PutStakeholder(ctx, stakeholderIn(t, m.ID, "two")))

	maps, err := store.FetchMaps(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, maps, 1)

	stolen := *m
	stolen.OwnerID = "u2"
	assert.ErrorIs(t, store.PutMap(ctx, &stolen), models.ErrAccessDenied)

	list, err := store.FetchStakeholders(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	counter := &models.UsageCounter{UserID: "u1", WeekID: "2024-06-02", StartDate: time.Now(), EndDate: time.Now()}
	n, err := store.IncrementWeeklyUsage(ctx, counter)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := store.GetWeeklyUsage(ctx, "u1", "2024-06-02")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.CallCount)

	require.NoError(t, store.DeleteMap(ctx, m.ID))
	list, err = store.FetchStakeholders(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
