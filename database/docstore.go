package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Bames007/sauni/config"
	"github.com/Bames007/sauni/docstore"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Backend is an opened document store plus what it needs to shut down.
type Backend struct {
	Store docstore.Store
	Redis *redis.Client // set for the redis driver, reused by the redis locker
	Ping  func(ctx context.Context) error

	closers []func(ctx context.Context) error
}

// Close closes the store and any client opened for it.
func (b *Backend) Close(ctx context.Context) error {
	var first error
	if err := b.Store.Close(); err != nil {
		first = err
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenDocstore connects the backend named by cfg.DocstoreDriver.
func OpenDocstore(ctx context.Context, cfg *config.Config, awsCfg sdkaws.Config, logger *zap.Logger) (*Backend, error) {
	switch cfg.DocstoreDriver {
	case config.DocstoreMemory:
		logger.Warn("Using in-memory document store; data is lost on restart")
		return &Backend{
			Store: docstore.NewMemoryStore(),
			Ping:  func(context.Context) error { return nil },
		}, nil

	case config.DocstoreRedis:
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to Redis document store")
		return &Backend{
			Store:   docstore.NewRedisStore(client),
			Redis:   client,
			Ping:    func(ctx context.Context) error { return client.Ping(ctx).Err() },
			closers: []func(context.Context) error{func(context.Context) error { return client.Close() }},
		}, nil

	case config.DocstoreMongo:
		client, err := ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		store := docstore.NewMongoStore(client, cfg.MongoDB, cfg.MongoCollection, cfg.MongoTransaction)
		if err := store.EnsureIndexes(ctx); err != nil {
			logger.Warn("Failed to ensure mongo indexes", zap.Error(err))
		}
		logger.Info("Connected to MongoDB document store", zap.String("db", cfg.MongoDB))
		return &Backend{
			Store:   store,
			Ping:    func(ctx context.Context) error { return client.Ping(ctx, nil) },
			closers: []func(context.Context) error{client.Disconnect},
		}, nil

	case config.DocstoreDynamo:
		client := dynamodb.NewFromConfig(awsCfg)
		logger.Info("Using DynamoDB document store", zap.String("table", cfg.DynamoTable))
		return &Backend{
			Store: docstore.NewDynamoStore(client, cfg.DynamoTable, cfg.DynamoPoll),
			Ping: func(ctx context.Context) error {
				_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: sdkaws.String(cfg.DynamoTable)})
				return err
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown docstore driver %q", cfg.DocstoreDriver)
}

// NewRedisClient parses redisURL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// ConnectMongo connects and pings within ten seconds.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(timeoutCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(timeoutCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// EnsureDynamoTable creates the document table when it is missing.
func EnsureDynamoTable(ctx context.Context, client *dynamodb.Client, store *docstore.DynamoStore, table string) error {
	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: sdkaws.String(table)}); err == nil {
		return nil
	}
	if _, err := client.CreateTable(ctx, store.CreateTableInput()); err != nil {
		return fmt.Errorf("create dynamodb table %s: %w", table, err)
	}
	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: sdkaws.String(table)}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for dynamodb table %s: %w", table, err)
	}
	return nil
}
