package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

func backends(t *testing.T) map[string]backend {
	sqliteDB, err := NewSQLiteDB(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	out := map[string]backend{
		"memory": NewMemoryDB(),
		"sqlite": sqliteDB,
	}
	// Redis runs only against a live server.
	if url := os.Getenv("REDIS_TEST_URL"); url != "" {
		redisDB, err := NewRedisDB(context.Background(), url)
		require.NoError(t, err)
		redisDB.prefix = fmt.Sprintf("jobalert-test-%d:", time.Now().UnixNano())
		out["redis"] = redisDB
	}
	return out
}

func TestBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()

			_, ok, err := b.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Set(ctx, "jobAlerts", []byte(`[]`)))
			v, ok, err := b.Get(ctx, "jobAlerts")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[]`, string(v))

			require.NoError(t, b.Set(ctx, "jobAlerts", []byte(`[{"id":"1"}]`)))
			v, _, err = b.Get(ctx, "jobAlerts")
			require.NoError(t, err)
			assert.Equal(t, `[{"id":"1"}]`, string(v))

			require.NoError(t, b.Delete(ctx, "jobAlerts"))
			_, ok, err = b.Get(ctx, "jobAlerts")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Delete(ctx, "never-set"))
		})
	}
}

func TestBackendDistinctKeysDoNotInterfere(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					key := fmt.Sprintf("key-%d", i)
					assert.NoError(t, b.Set(ctx, key, []byte(key)))
				}(i)
			}
			wg.Wait()

			for i := 0; i < 20; i++ {
				key := fmt.Sprintf("key-%d", i)
				v, ok, err := b.Get(ctx, key)
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, key, string(v))
			}
		})
	}
}
