package database

import (
	"context"
	"testing"

	"github.com/Bames007/sauni/config"
	"github.com/Bames007/sauni/docstore"
	"github.com/Bames007/sauni/models"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDSN(t *testing.T) {
	cfg := &config.Config{
		PostgresHost:     "db",
		PostgresUser:     "sau",
		PostgresPassword: "secret",
		PostgresDB:       "admissions",
		PostgresPort:     "5432",
		PostgresSSLMode:  "disable",
		PostgresTimeZone: "Africa/Lagos",
	}
	assert.Equal(t,
		"host=db user=sau password=secret dbname=admissions port=5432 sslmode=disable TimeZone=Africa/Lagos",
		DSN(cfg))
}

func TestConnectPostgres_RequiresConfig(t *testing.T) {
	_, err := ConnectPostgres(&config.Config{}, zap.NewNop())
	assert.ErrorContains(t, err, "incomplete")
}

func TestModels(t *testing.T) {
	got := Models()
	require.Len(t, got, 2)
	assert.IsType(t, &models.NotificationOutbox{}, got[0])
	assert.IsType(t, &models.WebhookLog{}, got[1])
}

func TestOpenDocstore_Memory(t *testing.T) {
	b, err := OpenDocstore(context.Background(), &config.Config{DocstoreDriver: config.DocstoreMemory}, sdkaws.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &docstore.MemoryStore{}, b.Store)
	assert.NoError(t, b.Ping(context.Background()))
	assert.NoError(t, b.Close(context.Background()))
}

func TestOpenDocstore_Unknown(t *testing.T) {
	_, err := OpenDocstore(context.Background(), &config.Config{DocstoreDriver: "firestore"}, sdkaws.Config{}, zap.NewNop())
	assert.Error(t, err)
}
