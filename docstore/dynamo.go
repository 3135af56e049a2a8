package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	dynamoParentAttr = "_parent"
	dynamoKeyAttr    = "_key"
	dynamoRevAttr    = "_rev"
	dynamoRootParent = "/"

	dynamoMaxTransactItems = 100
)

// DynamoAPI is the subset of the DynamoDB client the store calls.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore maps each path to one item keyed by (_parent, _key) with the
// document's fields stored as top-level attributes. Every write stamps _rev
// so the polling subscriber can detect changes cheaply.
type DynamoStore struct {
	client       DynamoAPI
	table        string
	pollInterval time.Duration
	now          func() time.Time
}

func NewDynamoStore(client DynamoAPI, table string, pollInterval time.Duration) *DynamoStore {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &DynamoStore{client: client, table: table, pollInterval: pollInterval, now: time.Now}
}

// CreateTableInput describes the table layout, for local setup and tests.
func (d *DynamoStore) CreateTableInput() *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName:   sdkaws.String(d.table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: sdkaws.String(dynamoParentAttr), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: sdkaws.String(dynamoKeyAttr), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: sdkaws.String(dynamoParentAttr), KeyType: types.KeyTypeHash},
			{AttributeName: sdkaws.String(dynamoKeyAttr), KeyType: types.KeyTypeRange},
		},
	}
}

func dynamoKey(path string) map[string]types.AttributeValue {
	parent, key := Split(path)
	if parent == "" {
		parent = dynamoRootParent
	}
	return map[string]types.AttributeValue{
		dynamoParentAttr: &types.AttributeValueMemberS{Value: parent},
		dynamoKeyAttr:    &types.AttributeValueMemberS{Value: key},
	}
}

func isReservedAttr(name string) bool {
	return name == dynamoParentAttr || name == dynamoKeyAttr || name == dynamoRevAttr
}

func itemToDocument(item map[string]types.AttributeValue) (Document, string, error) {
	rev := ""
	if v, ok := item[dynamoRevAttr].(*types.AttributeValueMemberS); ok {
		rev = v.Value
	}
	fields := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		if !isReservedAttr(k) {
			fields[k] = v
		}
	}
	doc := Document{}
	if err := attributevalue.UnmarshalMap(fields, &doc); err != nil {
		return nil, "", fmt.Errorf("dynamodb unmarshal item: %w", err)
	}
	return doc, rev, nil
}

func (d *DynamoStore) get(ctx context.Context, p string) (Document, string, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      sdkaws.String(d.table),
		Key:            dynamoKey(p),
		ConsistentRead: sdkaws.Bool(true),
	})
	if err != nil {
		return nil, "", fmt.Errorf("dynamodb GetItem %s: %w", p, err)
	}
	if len(out.Item) == 0 {
		return nil, "", ErrNotFound
	}
	return itemToDocument(out.Item)
}

func (d *DynamoStore) Get(ctx context.Context, path string) (Document, error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	doc, _, err := d.get(ctx, p)
	return doc, err
}

func (d *DynamoStore) Set(ctx context.Context, path string, doc Document) error {
	return d.Commit(ctx, NewBatch().Set(path, doc))
}

func (d *DynamoStore) Update(ctx context.Context, path string, fields Document) error {
	return d.Commit(ctx, NewBatch().Update(path, fields))
}

func (d *DynamoStore) revision() string {
	return strconv.FormatInt(d.now().UnixNano(), 10)
}

func (d *DynamoStore) putInput(w Write, rev string) (*types.Put, error) {
	item, err := attributevalue.MarshalMap(stripNil(clone(w.Fields)))
	if err != nil {
		return nil, fmt.Errorf("dynamodb marshal %s: %w", w.Path, err)
	}
	for k, v := range dynamoKey(w.Path) {
		item[k] = v
	}
	item[dynamoRevAttr] = &types.AttributeValueMemberS{Value: rev}
	return &types.Put{TableName: sdkaws.String(d.table), Item: item}, nil
}

// buildUpdate renders a merge as an UpdateItem expression. Field names are
// always aliased so reserved words never clash.
func buildUpdate(fields Document, rev string) (string, map[string]string, map[string]types.AttributeValue, error) {
	names := map[string]string{"#rev": dynamoRevAttr}
	values := map[string]types.AttributeValue{":rev": &types.AttributeValueMemberS{Value: rev}}
	sets := []string{"#rev = :rev"}
	var removes []string

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		name := fmt.Sprintf("#f%d", i)
		names[name] = k
		if fields[k] == nil {
			removes = append(removes, name)
			continue
		}
		av, err := attributevalue.Marshal(fields[k])
		if err != nil {
			return "", nil, nil, fmt.Errorf("dynamodb marshal field %s: %w", k, err)
		}
		value := fmt.Sprintf(":v%d", i)
		values[value] = av
		sets = append(sets, name+" = "+value)
	}

	expr := "SET " + strings.Join(sets, ", ")
	if len(removes) > 0 {
		expr += " REMOVE " + strings.Join(removes, ", ")
	}
	return expr, names, values, nil
}

func (d *DynamoStore) updateInput(w Write, rev string) (*types.Update, error) {
	expr, names, values, err := buildUpdate(w.Fields, rev)
	if err != nil {
		return nil, err
	}
	return &types.Update{
		TableName:                 sdkaws.String(d.table),
		Key:                       dynamoKey(w.Path),
		UpdateExpression:          sdkaws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}, nil
}

// collapse folds several writes to one path into one, since a DynamoDB
// transaction may touch each item only once. A set followed by merges
// becomes a set of the merged document; merges alone combine into one merge.
func collapse(writes []Write) []Write {
	var order []string
	byPath := map[string]Write{}
	for _, w := range writes {
		prev, ok := byPath[w.Path]
		if !ok {
			order = append(order, w.Path)
			byPath[w.Path] = Write{Kind: w.Kind, Path: w.Path, Fields: clone(w.Fields)}
			continue
		}
		switch {
		case w.Kind == OpSet:
			byPath[w.Path] = Write{Kind: OpSet, Path: w.Path, Fields: clone(w.Fields)}
		case prev.Kind == OpSet:
			byPath[w.Path] = Write{Kind: OpSet, Path: w.Path, Fields: merge(prev.Fields, w.Fields)}
		default:
			combined := clone(prev.Fields)
			if combined == nil {
				combined = Document{}
			}
			for k, v := range w.Fields {
				combined[k] = cloneValue(v)
			}
			byPath[w.Path] = Write{Kind: OpUpdate, Path: w.Path, Fields: combined}
		}
	}
	out := make([]Write, 0, len(order))
	for _, p := range order {
		out = append(out, byPath[p])
	}
	return out
}

func (d *DynamoStore) Commit(ctx context.Context, batch *Batch) error {
	writes, err := batch.normalize()
	if err != nil {
		return err
	}
	for _, w := range writes {
		for k := range w.Fields {
			if isReservedAttr(k) {
				return fmt.Errorf("%w: field name %q is reserved", ErrInvalidPath, k)
			}
		}
	}
	writes = collapse(writes)
	rev := d.revision()

	switch len(writes) {
	case 0:
		return nil
	case 1:
		return d.writeOne(ctx, writes[0], rev)
	}
	if len(writes) > dynamoMaxTransactItems {
		return fmt.Errorf("dynamodb commit: %d writes exceeds the transaction limit of %d", len(writes), dynamoMaxTransactItems)
	}

	items := make([]types.TransactWriteItem, 0, len(writes))
	for _, w := range writes {
		if w.Kind == OpSet {
			put, err := d.putInput(w, rev)
			if err != nil {
				return err
			}
			items = append(items, types.TransactWriteItem{Put: put})
			continue
		}
		upd, err := d.updateInput(w, rev)
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{Update: upd})
	}

	if _, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("dynamodb commit: %w", err)
	}
	return nil
}

func (d *DynamoStore) writeOne(ctx context.Context, w Write, rev string) error {
	if w.Kind == OpSet {
		put, err := d.putInput(w, rev)
		if err != nil {
			return err
		}
		if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: put.TableName, Item: put.Item}); err != nil {
			return fmt.Errorf("dynamodb PutItem %s: %w", w.Path, err)
		}
		return nil
	}

	upd, err := d.updateInput(w, rev)
	if err != nil {
		return err
	}
	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 upd.TableName,
		Key:                       upd.Key,
		UpdateExpression:          upd.UpdateExpression,
		ExpressionAttributeNames:  upd.ExpressionAttributeNames,
		ExpressionAttributeValues: upd.ExpressionAttributeValues,
	})
	if err != nil {
		return fmt.Errorf("dynamodb UpdateItem %s: %w", w.Path, err)
	}
	return nil
}

func (d *DynamoStore) List(ctx context.Context, parent string) (map[string]Document, error) {
	p, err := CleanPath(parent)
	if err != nil {
		return nil, err
	}

	paginator := dynamodb.NewQueryPaginator(d.client, &dynamodb.QueryInput{
		TableName:              sdkaws.String(d.table),
		KeyConditionExpression: sdkaws.String("#p = :p"),
		ExpressionAttributeNames: map[string]string{
			"#p": dynamoParentAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: p},
		},
	})

	out := map[string]Document{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb query %s: %w", p, err)
		}
		for _, item := range page.Items {
			key, ok := item[dynamoKeyAttr].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			doc, _, err := itemToDocument(item)
			if err != nil {
				return nil, err
			}
			out[key.Value] = doc
		}
	}
	return out, nil
}

// Subscribe polls the item and emits whenever its revision changes.
func (d *DynamoStore) Subscribe(ctx context.Context, path string) (<-chan Event, func(), error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, nil, err
	}

	doc, rev, err := d.get(ctx, p)
	exists := true
	if errors.Is(err, ErrNotFound) {
		exists, err = false, nil
	}
	if err != nil {
		return nil, nil, err
	}

	sub := newSubscription(p)
	sub.deliver(Event{Path: p, Doc: doc, Exists: exists})

	pollCtx, cancel := context.WithCancel(ctx)
	unsubscribe := func() {
		cancel()
		sub.close()
	}

	go func() {
		defer unsubscribe()
		ticker := time.NewTicker(d.pollInterval)
		defer ticker.Stop()
		last, lastExists := rev, exists
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
			}
			doc, rev, err := d.get(pollCtx, p)
			switch {
			case errors.Is(err, ErrNotFound):
				if lastExists {
					lastExists, last = false, ""
					sub.deliver(Event{Path: p})
				}
			case err != nil:
				continue
			case !lastExists || rev != last:
				last, lastExists = rev, true
				sub.deliver(Event{Path: p, Doc: doc, Exists: true})
			}
		}
	}()

	return sub.ch, unsubscribe, nil
}

func (d *DynamoStore) Close() error {
	return nil
}
