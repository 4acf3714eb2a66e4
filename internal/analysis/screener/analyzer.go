package screener

import (
	"fmt"
	"math"
	"time"

	"github.com/vincentortegajr/whale-radar-ai-1/internal/config"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/models"
)

// Analyzer реализует анализатор визуального скринера (моментум)
type Analyzer struct {
	config config.ScreenerConfig
}

// NewAnalyzer создает новый анализатор визуального скринера
func NewAnalyzer(cfg config.ScreenerConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Analyze рассчитывает моментум и смещение по дельтам скринера
func (a *Analyzer) Analyze(symbol string, metric models.ScreenerMetric) models.ScreenerData {
	score := a.Score(metric)
	return models.ScreenerData{
		Symbol:        symbol,
		Metric:        metric,
		MomentumScore: score,
		Bias:          a.Bias(metric, score),
		Timestamp:     time.Now().UTC(),
	}
}

// Score рассчитывает оценку моментума 0-100.
// Чистая функция: одинаковый вход всегда дает одинаковый результат.
func (a *Analyzer) Score(m models.ScreenerMetric) int {
	score := 50.0

	// Вклад изменения цены (до ±20 пунктов).
	// Малые движения удваиваются, а не обрезаются - несимметричная
	// чувствительность сохранена намеренно
	if math.Abs(m.PriceChangePct) > 10 {
		score += math.Min(20, math.Abs(m.PriceChangePct)) * sign(m.PriceChangePct)
	} else {
		score += m.PriceChangePct * 2
	}

	// Вклад всплеска объема (до +20 пунктов, штрафа за падение объема нет)
	if m.VolumeChangePct > a.config.VolumeSpikeThreshold {
		score += math.Min(20, m.VolumeChangePct/20)
	} else if m.VolumeChangePct > 100 {
		score += 10
	} else if m.VolumeChangePct > 50 {
		score += 5
	}

	// Вклад открытого интереса (до ±10 пунктов)
	if math.Abs(m.OIChangePct) > a.config.OISpikeThreshold {
		score += math.Min(10, math.Abs(m.OIChangePct)/10) * sign(m.OIChangePct)
	} else {
		score += m.OIChangePct / 5
	}

	// Бонус за конфлюэнс всех трех метрик
	if m.PriceChangePct > 0 && m.VolumeChangePct > 100 && m.OIChangePct > 20 {
		score += 10
	} else if m.PriceChangePct < 0 && m.VolumeChangePct > 100 && m.OIChangePct > 20 {
		score -= 10
	}

	return int(math.Max(0, math.Min(100, score)))
}

// Bias определяет смещение рынка, порядок проверок важен
func (a *Analyzer) Bias(m models.ScreenerMetric, momentumScore int) string {
	switch {
	case momentumScore > 80 && m.PriceChangePct > 5:
		return models.BiasStrongLong
	case momentumScore < 20 && m.PriceChangePct < -5:
		return models.BiasStrongShort
	case momentumScore > 65 && m.PriceChangePct > 0:
		return models.BiasLong
	case momentumScore < 35 && m.PriceChangePct < 0:
		return models.BiasShort
	case m.PriceChangePct > 3 && m.VolumeChangePct < 50:
		// Дивергенция: цена растет без объема
		return models.BiasWeakLong
	case m.PriceChangePct < -3 && m.VolumeChangePct < 50:
		return models.BiasWeakShort
	default:
		return models.BiasNeutral
	}
}

// ExtractMetric выбирает таймфреймовый вариант каждой метрики по
// настроенному порядку приоритета: первый ненулевой выигрывает.
// Возвращает false, когда данных по символу нет вовсе
func (a *Analyzer) ExtractMetric(fields map[string]float64) (models.ScreenerMetric, bool) {
	metric := models.ScreenerMetric{
		PriceChangePct:  a.firstNonZero(fields, "price_change_percent_%s"),
		VolumeChangePct: a.firstNonZero(fields, "volume_change_percent_%s"),
		OIChangePct:     a.firstNonZero(fields, "oi_change_percent_%s"),
	}

	if metric.PriceChangePct == 0 && metric.VolumeChangePct == 0 && metric.OIChangePct == 0 {
		return models.ScreenerMetric{}, false
	}
	return metric, true
}

func (a *Analyzer) firstNonZero(fields map[string]float64, pattern string) float64 {
	for _, tf := range a.config.TimeframePriority {
		if v := fields[fmt.Sprintf(pattern, tf)]; v != 0 {
			return v
		}
	}
	return 0
}

func sign(v float64) float64 {
	if v > 0 {
		return 1
	}
	return -1
}
