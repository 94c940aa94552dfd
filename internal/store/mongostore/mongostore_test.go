package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vital-route-api-server/config"
	"vital-route-api-server/internal/store"
	"vital-route-api-server/internal/store/storetest"
)

// Runs only against a real server: MONGO_TEST_URI=mongodb://localhost:27017 go test ./...
func TestConformance(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		dbName := fmt.Sprintf("vitalroute_test_%d", time.Now().UnixNano())
		s, err := Connect(ctx, config.MongoConfig{URI: uri, DBName: dbName})
		require.NoError(t, err)
		require.NoError(t, s.EnsureIndexes(ctx))

		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = s.Database().Drop(ctx)
			_ = s.Close(ctx)
		})
		return s
	})
}
