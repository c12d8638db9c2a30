package evm

import (
	"context"
	"errors"
	"time"

	"marketplace-core/internal/chain"
	"marketplace-core/pkg/cache"
	"marketplace-core/pkg/logger"

	"go.uber.org/zap"
)

// CachedAddressSource memoizes src per scope for ttl. A marketplace confirmed meanwhile is
// picked up once the entry expires; the scan watermark still covers its transactions then.
func CachedAddressSource(c cache.Cache, ttl time.Duration, src AddressSource) AddressSource {
	return func(ctx context.Context, network chain.Network) ([]string, error) {
		key := "watch:" + network.ScopeID.String()

		var addrs []string
		err := c.Get(ctx, key, &addrs)
		if err == nil {
			return addrs, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			logger.Warn("watch cache read failed", zap.String("key", key), zap.Error(err))
		}

		addrs, err = src(ctx, network)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, addrs, ttl); err != nil {
			logger.Warn("watch cache write failed", zap.String("key", key), zap.Error(err))
		}
		return addrs, nil
	}
}
