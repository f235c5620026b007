package cache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/xshopai/product-service/internal/cache"
)

func newTestInvalidator(t *testing.T) (*cache.Invalidator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.New(client), mr
}

func TestInvalidateProduct_DeletesCachedView(t *testing.T) {
	inv, mr := newTestInvalidator(t)
	require.NoError(t, mr.Set("product:prod-1", `{"id":"prod-1"}`))
	require.NoError(t, mr.Set("product:prod-2", `{"id":"prod-2"}`))

	inv.InvalidateProduct(context.Background(), "prod-1")

	require.False(t, mr.Exists("product:prod-1"))
	require.True(t, mr.Exists("product:prod-2"), "other products stay cached")
}

func TestInvalidateProduct_MissingKeyIsFine(t *testing.T) {
	inv, _ := newTestInvalidator(t)

	inv.InvalidateProduct(context.Background(), "prod-never-cached")
}

func TestInvalidateProduct_NilSafety(t *testing.T) {
	var inv *cache.Invalidator
	inv.InvalidateProduct(context.Background(), "prod-1")
	inv.Close()

	disabled := cache.New(nil)
	disabled.InvalidateProduct(context.Background(), "prod-1")
	disabled.Close()
}

func TestInvalidateProduct_EmptyIDIgnored(t *testing.T) {
	inv, mr := newTestInvalidator(t)
	require.NoError(t, mr.Set("product:", "oops"))

	inv.InvalidateProduct(context.Background(), "")

	require.True(t, mr.Exists("product:"))
}
