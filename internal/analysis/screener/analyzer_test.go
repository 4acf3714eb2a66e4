package screener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/config"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/models"
)

func testConfig() config.ScreenerConfig {
	return config.ScreenerConfig{
		VolumeSpikeThreshold: 200,
		OISpikeThreshold:     50,
		TimeframePriority:    []string{"1h", "4h", "24h"},
	}
}

func TestScoreConfluenceClampsAtHundred(t *testing.T) {
	a := NewAnalyzer(testConfig())

	// Рост цены, всплеск объема и рост ОИ одновременно
	m := models.ScreenerMetric{PriceChangePct: 10, VolumeChangePct: 500, OIChangePct: 50}

	score := a.Score(m)
	assert.Equal(t, 100, score)
	assert.Equal(t, models.BiasStrongLong, a.Bias(m, score))
}

func TestScoreIsPure(t *testing.T) {
	a := NewAnalyzer(testConfig())
	m := models.ScreenerMetric{PriceChangePct: 3.7, VolumeChangePct: 140, OIChangePct: -12}

	first := a.Score(m)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, a.Score(m))
	}
}

func TestScoreStaysWithinBounds(t *testing.T) {
	a := NewAnalyzer(testConfig())

	metrics := []models.ScreenerMetric{
		{PriceChangePct: 99, VolumeChangePct: 9999, OIChangePct: 999},
		{PriceChangePct: -99, VolumeChangePct: -90, OIChangePct: -999},
		{PriceChangePct: -50, VolumeChangePct: 5000, OIChangePct: 80},
		{},
	}
	for _, m := range metrics {
		score := a.Score(m)
		assert.GreaterOrEqual(t, score, 0)
		assert.LessOrEqual(t, score, 100)
	}
}

func TestScoreNeutralOnZeroMetric(t *testing.T) {
	a := NewAnalyzer(testConfig())
	m := models.ScreenerMetric{}

	assert.Equal(t, 50, a.Score(m))
	assert.Equal(t, models.BiasNeutral, a.Bias(m, 50))
}

func TestBiasTable(t *testing.T) {
	a := NewAnalyzer(testConfig())

	tests := []struct {
		name   string
		metric models.ScreenerMetric
		bias   string
	}{
		{
			name:   "long on momentum with positive price",
			metric: models.ScreenerMetric{PriceChangePct: 4, VolumeChangePct: 150, OIChangePct: 10},
			bias:   models.BiasLong,
		},
		{
			name:   "short on weak momentum with negative price",
			metric: models.ScreenerMetric{PriceChangePct: -6, VolumeChangePct: 0, OIChangePct: -20},
			bias:   models.BiasShort,
		},
		{
			name:   "weak long on price rise without volume",
			metric: models.ScreenerMetric{PriceChangePct: 4, VolumeChangePct: 20, OIChangePct: 0},
			bias:   models.BiasWeakLong,
		},
		{
			name:   "weak short on price drop without volume",
			metric: models.ScreenerMetric{PriceChangePct: -4, VolumeChangePct: 20, OIChangePct: 0},
			bias:   models.BiasWeakShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := a.Analyze("BTC", tt.metric)
			assert.Equal(t, tt.bias, data.Bias)
		})
	}
}

func TestExtractMetricTimeframePriority(t *testing.T) {
	a := NewAnalyzer(testConfig())

	fields := map[string]float64{
		"price_change_percent_4h":   5,
		"price_change_percent_24h":  9,
		"volume_change_percent_1h":  300,
		"volume_change_percent_4h":  50,
		"oi_change_percent_24h":     7,
		"unrelated_field":           42,
	}

	metric, ok := a.ExtractMetric(fields)
	require.True(t, ok)

	// 1h отсутствует - выигрывает 4h, но не 24h
	assert.Equal(t, 5.0, metric.PriceChangePct)
	// 1h присутствует и выигрывает
	assert.Equal(t, 300.0, metric.VolumeChangePct)
	// Есть только 24h
	assert.Equal(t, 7.0, metric.OIChangePct)
}

func TestExtractMetricEmptyFields(t *testing.T) {
	a := NewAnalyzer(testConfig())

	_, ok := a.ExtractMetric(map[string]float64{})
	assert.False(t, ok)

	_, ok = a.ExtractMetric(map[string]float64{"price_change_percent_5m": 3})
	assert.False(t, ok, "таймфреймы вне приоритета игнорируются")
}
