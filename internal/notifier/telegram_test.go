package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/models"
	tele "gopkg.in/telebot.v3"
)

// fakeSender записывает отправленные сообщения вместо сети
type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(_ tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	text, _ := what.(string)
	f.sent = append(f.sent, text)
	return &tele.Message{}, nil
}

func testSignal(action string) *models.FusedSignal {
	return &models.FusedSignal{
		Symbol:       "BTC",
		Action:       action,
		Confidence:   models.ConfidenceHigh,
		Strength:     90,
		CurrentPrice: 100,
		StopLoss:     95,
		TakeProfits:  []float64{110, 120},
		Reasons:      []string{"Visual screener shows STRONG_LONG bias (momentum: 95)"},
		Timestamp:    time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
	}
}

func TestDeliverDeduplicatesWithinHour(t *testing.T) {
	sender := &fakeSender{}
	current := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	n := newWithSender(sender, 1, func() time.Time { return current })

	signal := testSignal(models.ActionLong)
	require.NoError(t, n.Deliver(signal))

	// Тот же сигнал через полчаса не уходит повторно
	current = current.Add(30 * time.Minute)
	require.NoError(t, n.Deliver(signal))

	assert.Len(t, sender.sent, 1)

	// В следующем часе сигнал уходит снова
	current = current.Add(31 * time.Minute)
	require.NoError(t, n.Deliver(signal))
	assert.Len(t, sender.sent, 2)
}

func TestDeliverSkipsNeutral(t *testing.T) {
	sender := &fakeSender{}
	n := newWithSender(sender, 1, time.Now)

	neutral := testSignal(models.ActionNeutral)
	neutral.StopLoss = neutral.CurrentPrice
	neutral.TakeProfits = []float64{neutral.CurrentPrice}

	require.NoError(t, n.Deliver(neutral))
	assert.Empty(t, sender.sent)
}

func TestDeliverDistinguishesActions(t *testing.T) {
	sender := &fakeSender{}
	current := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	n := newWithSender(sender, 1, func() time.Time { return current })

	long := testSignal(models.ActionLong)
	short := testSignal(models.ActionShort)
	short.StopLoss = 105
	short.TakeProfits = []float64{95}

	require.NoError(t, n.Deliver(long))
	require.NoError(t, n.Deliver(short))
	assert.Len(t, sender.sent, 2)
}

func TestCleanupOldAlerts(t *testing.T) {
	sender := &fakeSender{}
	current := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	n := newWithSender(sender, 1, func() time.Time { return current })

	require.NoError(t, n.Deliver(testSignal(models.ActionLong)))
	require.Len(t, n.sentAlerts, 1)

	// Запись моложе часа переживает чистку
	current = current.Add(30 * time.Minute)
	n.CleanupOldAlerts()
	assert.Len(t, n.sentAlerts, 1)

	current = current.Add(2 * time.Hour)
	n.CleanupOldAlerts()
	assert.Empty(t, n.sentAlerts)
}

func TestSendError(t *testing.T) {
	sender := &fakeSender{}
	n := newWithSender(sender, 1, time.Now)

	require.NoError(t, n.SendError("Scan cycle failed", "api down"))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "WHALE RADAR ERROR")
	assert.Contains(t, sender.sent[0], "api down")
}

func TestFormatSignal(t *testing.T) {
	signal := testSignal(models.ActionLong)
	signal.MomentumScore = 95
	signal.LiquidationDirection = models.DirectionUp
	signal.RSIStatus = models.RSIOversold
	signal.Liquidation = &models.LiquidationAnalysis{
		TotalLong:    20e6,
		TotalShort:   80e6,
		ImbalancePct: 60,
		WhaleTarget:  models.WhaleTarget{Price: 110, Direction: models.DirectionUp},
	}
	signal.RSI = &models.RSIData{
		Values:          map[string]float64{"1h": 25, "4h": 28, "1d": 32},
		ConfluenceScore: 100,
	}
	signal.ScaleInZones = []models.ScaleZone{
		{Price: 98, PositionPct: 60},
		{Price: 96, PositionPct: 40},
	}

	text := FormatSignal(signal)

	assert.Contains(t, text, "WHALE RADAR ALERT")
	assert.Contains(t, text, "$BTC - LONG SIGNAL")
	assert.Contains(t, text, "Momentum Score: 95/100")
	assert.Contains(t, text, "Whale Target: $110.00 (UP)")
	assert.Contains(t, text, "Imbalance: +60.0%")
	assert.Contains(t, text, "Entry 1: $98.00 (60%)")
	assert.Contains(t, text, "Stop Loss: $95.00")
	assert.Contains(t, text, "TP1: $110.00 (10.0%)")
	assert.Contains(t, text, "Signal Strength: 90/100")
	assert.Contains(t, text, "Risk/Reward: 2.0:1")
	assert.Contains(t, text, "coinglass.com/pro/futures/LiquidationHeatMapNew?coin=BTC")
}

func TestFormatSignalWithoutOptionalBlocks(t *testing.T) {
	text := FormatSignal(testSignal(models.ActionShort))

	assert.NotContains(t, text, "LIQUIDATION ANALYSIS")
	assert.NotContains(t, text, "RSI CONFIRMATION")
	assert.NotContains(t, text, "SCALE-IN ZONES")
	assert.Contains(t, text, "$BTC - SHORT SIGNAL")
}
