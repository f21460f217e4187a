package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfold/updownbot/internal/domain"
)

func TestRunKeyDeterministic(t *testing.T) {
	cfg := domain.StrategyConfig{Name: "base", MinConfidence: 0.5}
	signals := []domain.BacktestSignal{
		{Timestamp: "2026-08-01T10:00:00Z"},
		{Timestamp: "2026-08-01T10:15:00Z"},
	}

	assert.Equal(t, RunKey(cfg, 5, signals), RunKey(cfg, 5, signals))
	assert.Len(t, RunKey(cfg, 5, signals), 64)
}

func TestRunKeyDiscriminates(t *testing.T) {
	cfg := domain.StrategyConfig{Name: "base"}
	signals := []domain.BacktestSignal{
		{Timestamp: "2026-08-01T10:00:00Z"},
		{Timestamp: "2026-08-01T10:15:00Z"},
	}
	base := RunKey(cfg, 5, signals)

	other := cfg
	other.MinConfidence = 0.7
	assert.NotEqual(t, base, RunKey(other, 5, signals))

	assert.NotEqual(t, base, RunKey(cfg, 10, signals))
	assert.NotEqual(t, base, RunKey(cfg, 5, signals[:1]))
	assert.NotEqual(t, base, RunKey(cfg, 5, nil))
}

func TestRunKeyChangesOnSettlementBackfill(t *testing.T) {
	cfg := domain.StrategyConfig{Name: "base"}
	unsettled := []domain.BacktestSignal{
		{Timestamp: "2026-08-01T10:00:00Z", Market: "btc-updown", Side: domain.SideUp},
	}
	final := 101.0
	settled := []domain.BacktestSignal{
		{Timestamp: "2026-08-01T10:00:00Z", Market: "btc-updown", Side: domain.SideUp, FinalPrice: &final},
	}

	assert.NotEqual(t, RunKey(cfg, 5, unsettled), RunKey(cfg, 5, settled))
}

func TestRunKeyChangesOnInteriorRowEdit(t *testing.T) {
	cfg := domain.StrategyConfig{Name: "base"}
	window := func(midEdge float64) []domain.BacktestSignal {
		return []domain.BacktestSignal{
			{Timestamp: "2026-08-01T10:00:00Z"},
			{Timestamp: "2026-08-01T10:15:00Z", Edge: midEdge},
			{Timestamp: "2026-08-01T10:30:00Z"},
		}
	}

	// Same count and same first/last timestamps; only the middle row differs.
	assert.NotEqual(t, RunKey(cfg, 5, window(0.04)), RunKey(cfg, 5, window(0.06)))
}
