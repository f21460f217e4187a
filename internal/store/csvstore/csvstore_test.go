package csvstore

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/updownbot/internal/domain"
)

func ptr(f float64) *float64 { return &f }

func sampleSignal() domain.BacktestSignal {
	return domain.BacktestSignal{
		Timestamp:     "2026-08-01T10:00:00Z",
		Market:        "btc-updown",
		Side:          domain.SideUp,
		Phase:         domain.PhaseMid,
		Regime:        domain.RegimeRange,
		Edge:          0.05,
		EffectiveEdge: 0.045,
		ModelUp:       0.6,
		ModelDown:     0.4,
		MarketUp:      0.46,
		MarketDown:    0.54,
		Confidence:    0.7,
		Volatility15m: 0.02,
		PriceToBeat:   100,
		FinalPrice:    ptr(101),
		RSI:           ptr(65.5),
		VWAPSlope:     ptr(0.001),
	}
}

func TestRoundTrip(t *testing.T) {
	in := []domain.BacktestSignal{sampleSignal()}

	// An unsettled signal with a NaN effective edge and no optional context.
	second := sampleSignal()
	second.Timestamp = "2026-08-01T10:15:00Z"
	second.EffectiveEdge = math.NaN()
	second.FinalPrice = nil
	second.RSI = nil
	second.VWAPSlope = nil
	in = append(in, second)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, in))

	out, err := NewReader(nil).Read(&buf)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, in[0], out[0])

	assert.Equal(t, second.Timestamp, out[1].Timestamp)
	assert.True(t, math.IsNaN(out[1].EffectiveEdge))
	assert.Nil(t, out[1].FinalPrice)
	assert.Nil(t, out[1].RSI)
}

func TestWriteEmitsHeaderAndEmptyCells(t *testing.T) {
	sig := sampleSignal()
	sig.EffectiveEdge = math.NaN()
	sig.FinalPrice = nil

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []domain.BacktestSignal{sig}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(columns, ","), lines[0])

	cells := strings.Split(lines[1], ",")
	require.Len(t, cells, len(columns))
	assert.Empty(t, cells[6])  // effective_edge
	assert.Empty(t, cells[14]) // final_price
}

func TestReadSkipsMalformedRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []domain.BacktestSignal{sampleSignal()}))

	// Append a short row and a row with a non-numeric required cell.
	buf.WriteString("too,short,row\n")
	bad := strings.Split(strings.TrimSpace(strings.SplitN(buf.String(), "\n", 3)[1]), ",")
	bad[5] = "not-a-number"
	buf.WriteString(strings.Join(bad, ",") + "\n")

	out, err := NewReader(nil).Read(&buf)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestReadWithoutHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []domain.BacktestSignal{sampleSignal()}))

	// Strip the header line; the reader must still parse the data row.
	body := strings.SplitN(buf.String(), "\n", 2)[1]

	out, err := NewReader(nil).Read(strings.NewReader(body))
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestReadFileMissing(t *testing.T) {
	_, err := NewReader(nil).ReadFile("/nonexistent/signals.csv")
	assert.Error(t, err)
}
