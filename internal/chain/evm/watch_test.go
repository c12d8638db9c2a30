package evm

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-core/internal/chain"
	"marketplace-core/pkg/cache"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedAddressSource(t *testing.T) {
	calls := 0
	src := func(context.Context, chain.Network) ([]string, error) {
		calls++
		return []string{"0x00000000000000000000000000000000000000cc"}, nil
	}
	cached := CachedAddressSource(cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, src)

	a := chain.Network{ScopeID: uuid.New()}
	b := chain.Network{ScopeID: uuid.New()}
	for i := 0; i < 3; i++ {
		got, err := cached(context.Background(), a)
		require.NoError(t, err)
		assert.Equal(t, []string{"0x00000000000000000000000000000000000000cc"}, got)
	}
	assert.Equal(t, 1, calls)

	_, err := cached(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCachedAddressSourceDoesNotCacheErrors(t *testing.T) {
	calls := 0
	src := func(context.Context, chain.Network) ([]string, error) {
		calls++
		return nil, errors.New("db down")
	}
	cached := CachedAddressSource(cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, src)

	network := chain.Network{ScopeID: uuid.New()}
	_, err := cached(context.Background(), network)
	assert.Error(t, err)
	_, err = cached(context.Background(), network)
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}
