package mongox

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kcmvp/retail/store"
	"github.com/kcmvp/retail/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestDocumentRecord(t *testing.T) {
	d := document{Key: key("Order", "o1"), Category: "Order", ID: "o1", Version: "v1", Data: `{"a":1}`}
	assert.Equal(t, "Order/o1", d.Key)
	assert.Equal(t, store.Record{Category: "Order", ID: "o1", Version: "v1", Data: []byte(`{"a":1}`)}, d.record())
}

// TestStore_Contract needs a reachable server, e.g. MONGO_URI=mongodb://localhost:27017.
func TestStore_Contract(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbName := "retail_test_" + uuid.NewString()[:8]
	s, client, err := Connect(ctx, uri, dbName, "")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Database(dbName).Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	suite.Run(t, &storetest.Suite{New: func() store.Store { return s }})
}
