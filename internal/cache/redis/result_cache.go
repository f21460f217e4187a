package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantfold/updownbot/internal/domain"
)

// defaultResultTTL bounds how long a cached engine result stays valid. New
// signals arriving for the same window change the key, so staleness only
// matters for bounding memory.
const defaultResultTTL = 6 * time.Hour

// ResultCache implements domain.ResultCache using Redis string values. Each
// result is stored as JSON at "btresult:{key}".
type ResultCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResultCache creates a ResultCache backed by the given Client. A
// non-positive ttl takes the default of 6 hours.
func NewResultCache(c *Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	return &ResultCache{rdb: c.Underlying(), ttl: ttl}
}

func resultKey(key string) string {
	return "btresult:" + key
}

// Get retrieves a cached result. The second return is false on a cache miss.
func (rc *ResultCache) Get(ctx context.Context, key string) (domain.BacktestResult, bool, error) {
	data, err := rc.rdb.Get(ctx, resultKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.BacktestResult{}, false, nil
		}
		return domain.BacktestResult{}, false, fmt.Errorf("redis: get result %s: %w", key, err)
	}

	var res domain.BacktestResult
	if err := json.Unmarshal(data, &res); err != nil {
		return domain.BacktestResult{}, false, fmt.Errorf("redis: unmarshal result %s: %w", key, err)
	}
	return res, true, nil
}

// Set stores a result under key with the cache's TTL.
func (rc *ResultCache) Set(ctx context.Context, key string, res domain.BacktestResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("redis: marshal result %s: %w", key, err)
	}
	if err := rc.rdb.Set(ctx, resultKey(key), data, rc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set result %s: %w", key, err)
	}
	return nil
}

// RunKey derives a cache key from a strategy config, the trade size, and the
// content of every signal in the window. Any change to a row, including a
// settlement backfill flipping FinalPrice from nil to a value, changes the
// key, so a cached result is never served for an input the engine has not
// actually seen.
func RunKey(cfg domain.StrategyConfig, tradeSize float64, signals []domain.BacktestSignal) string {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		cfgJSON = []byte(cfg.Name)
	}

	h := sha256.New()
	h.Write(cfgJSON)
	fmt.Fprintf(h, "|%g|%d", tradeSize, len(signals))
	for i := range signals {
		s := &signals[i]
		fmt.Fprintf(h, "|%s|%s|%s|%s|%s|%g|%g|%g|%g|%g|%g|%g|%g|%g",
			s.Timestamp, s.Market, s.Side, s.Phase, s.Regime,
			s.Edge, s.EffectiveEdge, s.ModelUp, s.ModelDown,
			s.MarketUp, s.MarketDown, s.Confidence, s.Volatility15m,
			s.PriceToBeat)
		if s.FinalPrice != nil {
			fmt.Fprintf(h, "|%g", *s.FinalPrice)
		} else {
			h.Write([]byte("|unsettled"))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
