package rsianalysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/config"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/models"
)

func testConfig() config.RSIConfig {
	return config.RSIConfig{
		OversoldThreshold:   30,
		OverboughtThreshold: 70,
	}
}

func TestAnalyzeOversoldAcrossTimeframes(t *testing.T) {
	a := NewAnalyzer(testConfig())

	values := map[string]float64{"1h": 25, "4h": 25, "12h": 25, "1d": 25}
	data := a.Analyze("BTC", values)

	assert.Equal(t, models.RSIOversold, data.Status)
	// Нулевой разброс плюс бонус за экстремум, с ограничением сверху
	assert.Equal(t, 100, data.ConfluenceScore)
}

func TestAnalyzeTightOversoldSpread(t *testing.T) {
	a := NewAnalyzer(testConfig())

	// Три из четырех таймфреймов перепроданы при малом разбросе
	values := map[string]float64{"1h": 25, "4h": 28, "12h": 30, "1d": 35}
	data := a.Analyze("BTC", values)

	assert.Equal(t, models.RSIOversold, data.Status)
	assert.GreaterOrEqual(t, data.ConfluenceScore, 60)
}

func TestAnalyzeTieGoesToWeak(t *testing.T) {
	a := NewAnalyzer(testConfig())

	// Два перепроданных против двух перекупленных
	values := map[string]float64{"1h": 25, "4h": 25, "12h": 75, "1d": 75}
	data := a.Analyze("ETH", values)

	assert.Equal(t, models.RSIWeak, data.Status)
}

func TestAnalyzeOverbought(t *testing.T) {
	a := NewAnalyzer(testConfig())

	values := map[string]float64{"1h": 75, "4h": 75, "12h": 75, "1d": 50}
	data := a.Analyze("SOL", values)

	assert.Equal(t, models.RSIOverbought, data.Status)
}

func TestAnalyzeMissingTimeframesAreNeutral(t *testing.T) {
	a := NewAnalyzer(testConfig())

	data := a.Analyze("DOGE", map[string]float64{})

	assert.Equal(t, models.RSINeutral, data.Status)
	// Все таймфреймы сходятся на нейтральных 50
	assert.Equal(t, 100, data.ConfluenceScore)
}

func TestConfluenceScoreBands(t *testing.T) {
	a := NewAnalyzer(testConfig())

	// Разброс около 15 пунктов попадает в нижнюю середину шкалы
	data := a.Analyze("BTC", map[string]float64{"1h": 30, "4h": 45, "12h": 60, "1d": 70})
	assert.Equal(t, 40, data.ConfluenceScore)

	// Узкий разброс без экстремумов
	data = a.Analyze("BTC", map[string]float64{"1h": 48, "4h": 50, "12h": 52, "1d": 54})
	assert.Equal(t, 100, data.ConfluenceScore)
}

func TestConfirmUpOnOversold(t *testing.T) {
	a := NewAnalyzer(testConfig())

	data := a.Analyze("BTC", map[string]float64{"1h": 25, "4h": 25, "12h": 25, "1d": 25})
	confirm := a.Confirm(data, models.DirectionUp)

	assert.Equal(t, models.ConfidenceHigh, confirm.Confidence)
	assert.Contains(t, confirm.Reasons, "RSI indicates oversold conditions")
}

func TestConfirmDownWithBearishDivergence(t *testing.T) {
	a := NewAnalyzer(testConfig())

	data := a.Analyze("ETH", map[string]float64{"1h": 80, "4h": 75, "12h": 72, "1d": 70})
	confirm := a.Confirm(data, models.DirectionDown)

	assert.Equal(t, models.ConfidenceHigh, confirm.Confidence)
	assert.Contains(t, confirm.Reasons, "RSI showing potential bearish divergence")
}

func TestConfirmNeutralFourHourDowngrades(t *testing.T) {
	a := NewAnalyzer(testConfig())

	// 1h перепродан, но нейтральный 4h гасит уверенность в самом конце
	data := a.Analyze("XRP", map[string]float64{"1h": 25, "4h": 50, "12h": 40, "1d": 45})
	confirm := a.Confirm(data, models.DirectionUp)

	assert.Equal(t, models.ConfidenceLow, confirm.Confidence)
	assert.Contains(t, confirm.Reasons, "4H RSI is neutral")
}

func TestConfirmRangeDirection(t *testing.T) {
	a := NewAnalyzer(testConfig())

	data := a.Analyze("BTC", map[string]float64{"1h": 25, "4h": 25, "12h": 25, "1d": 25})
	confirm := a.Confirm(data, models.DirectionRange)

	// Для бокового рынка подтверждения нет
	assert.Equal(t, models.ConfidenceLow, confirm.Confidence)
}

func TestScanExtremes(t *testing.T) {
	a := NewAnalyzer(testConfig())

	heatmap := map[string]float64{"BTC": 25, "ETH": 50, "SOL": 75}
	extremes := a.ScanExtremes(heatmap, "1h")

	require.Len(t, extremes, 2)
	assert.NotContains(t, extremes, "ETH (1h RSI 50)")
}
