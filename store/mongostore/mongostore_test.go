package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/user/opinion-manager/store"
	"github.com/user/opinion-manager/store/storetest"
)

// Runs against a real server only when TEST_MONGO_URI is set, e.g.
// TEST_MONGO_URI=mongodb://localhost:27017 go test ./store/mongostore/
func TestConformance(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		// Each sub-test gets its own throwaway database.
		name := "opinionmanager_test_" + primitive.NewObjectID().Hex()
		s, err := Open(context.Background(), Options{URI: uri, Database: name, ConnectTimeout: 5 * time.Second})
		require.NoError(t, err)
		t.Cleanup(func() {
			ctx := context.Background()
			_ = s.Database().Drop(ctx)
			_ = s.Close(ctx)
		})
		return s
	})
}
