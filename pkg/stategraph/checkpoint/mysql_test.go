package checkpoint_test

import (
	"context"
	"os"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/stretchr/testify/require"
)

// mysqlTestDSN returns the DSN for MySQL integration tests.
//
// Example: STATEGRAPH_TEST_MYSQL_DSN="user:pass@tcp(localhost:3306)/stategraph_test"
func mysqlTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("STATEGRAPH_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("Skipping MySQL test: STATEGRAPH_TEST_MYSQL_DSN not set")
	}
	return dsn
}

// TestMySQLStore runs the store contract tests against a real MySQL
// server. Requires STATEGRAPH_TEST_MYSQL_DSN.
func TestMySQLStore(t *testing.T) {
	dsn := mysqlTestDSN(t)

	storeContractTest(t, "MySQLStore", func(t *testing.T) checkpoint.Store {
		store, err := checkpoint.NewMySQLStore(dsn)
		require.NoError(t, err)

		// Contract subtests assume an empty store; clear the threads
		// they use.
		ctx := context.Background()
		for _, threadID := range []string{"thread-1", "thread-2", "thread-a", "thread-b"} {
			require.NoError(t, store.DeleteThread(ctx, threadID))
		}
		return store
	})
}

func TestMySQLStore_InvalidDSN(t *testing.T) {
	_, err := checkpoint.NewMySQLStore("not-a-dsn")
	require.Error(t, err)
}
