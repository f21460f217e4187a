package s3blob

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/updownbot/internal/domain"
)

type captureWriter struct {
	path    string
	payload []byte
}

func (w *captureWriter) PutReport(_ context.Context, path string, payload []byte) error {
	w.path = path
	w.payload = payload
	return nil
}

func TestArchiveRunKeyAndPayload(t *testing.T) {
	w := &captureWriter{}
	a := NewArchiver(w, "reports", nil)

	run := domain.RunRecord{
		ID:        "11111111-2222-3333-4444-555555555555",
		Mode:      "backtest",
		Config:    domain.StrategyConfig{Name: "base"},
		Report:    json.RawMessage(`{"win_rate":0.6}`),
		CreatedAt: time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC),
	}

	key, err := a.ArchiveRun(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, "reports/2026-08-29/11111111-2222-3333-4444-555555555555.json", key)
	assert.Equal(t, key, w.path)

	var stored domain.RunRecord
	require.NoError(t, json.Unmarshal(w.payload, &stored))
	assert.Equal(t, run.ID, stored.ID)
	assert.Equal(t, run.Mode, stored.Mode)
}

func TestArchiveRunDefaultPrefix(t *testing.T) {
	w := &captureWriter{}
	a := NewArchiver(w, "", nil)

	run := domain.RunRecord{
		ID:        "run-1",
		Mode:      "optimize",
		CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}

	key, err := a.ArchiveRun(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, "runs/2026-08-01/run-1.json", key)
}
