package elastic

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/internal/config"
)

// NewClient creates an Elasticsearch client from configuration.
func NewClient(cfg config.StoreConfig) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.URLs,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
}

// Pinger is satisfied by the document store gateways.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Wait blocks until the store answers a ping or maxWait elapses, backing off
// exponentially between attempts.
func Wait(ctx context.Context, store Pinger, maxWait time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = maxWait

	attempt := 0
	op := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			logger.Warn("document store not ready", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("document store unreachable after %d attempts: %w", attempt, err)
	}
	return nil
}
