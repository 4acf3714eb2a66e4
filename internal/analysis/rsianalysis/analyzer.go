package rsianalysis

import (
	"fmt"
	"math"
	"time"

	"github.com/vincentortegajr/whale-radar-ai-1/internal/config"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/models"
)

// Ключевые таймфреймы для статуса и конфлюэнса
var importantTimeframes = []string{"1h", "4h", "12h", "1d"}

// Analyzer реализует анализатор мультитаймфреймового RSI
type Analyzer struct {
	config config.RSIConfig
}

// NewAnalyzer создает новый анализатор RSI
func NewAnalyzer(cfg config.RSIConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Analyze определяет статус и конфлюэнс RSI по таймфреймам.
// Отсутствующий таймфрейм трактуется как нейтральные 50 - это
// осознанный фолбэк, а не ошибка
func (a *Analyzer) Analyze(symbol string, values map[string]float64) *models.RSIData {
	return &models.RSIData{
		Symbol:          symbol,
		Values:          values,
		Status:          a.determineStatus(values),
		ConfluenceScore: a.confluenceScore(values),
		Timestamp:       time.Now().UTC(),
	}
}

// determineStatus считает перепроданные и перекупленные таймфреймы.
// Перепроданность проверяется раньше перекупленности на каждом ярусе,
// при равных счетчиках побеждает WEAK, а не STRONG
func (a *Analyzer) determineStatus(values map[string]float64) string {
	oversold := 0
	overbought := 0

	for _, tf := range importantTimeframes {
		rsi := valueOrNeutral(values, tf)
		if rsi <= a.config.OversoldThreshold {
			oversold++
		} else if rsi >= a.config.OverboughtThreshold {
			overbought++
		}
	}

	switch {
	case oversold >= 3:
		return models.RSIOversold
	case overbought >= 3:
		return models.RSIOverbought
	case oversold >= 2:
		return models.RSIWeak
	case overbought >= 2:
		return models.RSIStrong
	default:
		return models.RSINeutral
	}
}

// confluenceScore оценивает согласованность RSI между таймфреймами 0-100:
// чем меньше разброс, тем выше оценка
func (a *Analyzer) confluenceScore(values map[string]float64) int {
	sampled := make([]float64, 0, len(importantTimeframes))
	for _, tf := range importantTimeframes {
		sampled = append(sampled, valueOrNeutral(values, tf))
	}

	mean := 0.0
	for _, v := range sampled {
		mean += v
	}
	mean /= float64(len(sampled))

	variance := 0.0
	for _, v := range sampled {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(sampled))
	stddev := math.Sqrt(variance)

	var score int
	switch {
	case stddev < 5:
		score = 100
	case stddev < 10:
		score = 80
	case stddev < 15:
		score = 60
	case stddev < 20:
		score = 40
	default:
		score = 20
	}

	// Бонус за экстремумы в одну сторону на всех таймфреймах
	allOversold := true
	allOverbought := true
	for _, v := range sampled {
		if v > a.config.OversoldThreshold {
			allOversold = false
		}
		if v < a.config.OverboughtThreshold {
			allOverbought = false
		}
	}
	if allOversold || allOverbought {
		score += 20
		if score > 100 {
			score = 100
		}
	}

	return score
}

// Confirm подтверждает или опровергает предлагаемое направление по RSI
func (a *Analyzer) Confirm(data *models.RSIData, proposedDirection string) models.RSIConfirmation {
	confidence := models.ConfidenceLow
	var reasons []string

	switch proposedDirection {
	case models.DirectionUp:
		if data.Status == models.RSIOversold || data.Status == models.RSIWeak {
			confidence = models.ConfidenceHigh
			reasons = append(reasons, "RSI indicates oversold conditions")
		}
		if data.Value("4h") < 35 && data.Value("1d") < 40 {
			confidence = models.ConfidenceHigh
			reasons = append(reasons, "4H and 1D RSI both oversold")
		} else if data.Value("1h") < 30 && confidence != models.ConfidenceHigh {
			confidence = models.ConfidenceMedium
			reasons = append(reasons, "1H RSI oversold")
		}
		if data.Value("1h") < data.Value("4h") && data.Value("4h") < data.Value("1d") {
			reasons = append(reasons, "RSI showing potential bullish divergence")
		}

	case models.DirectionDown:
		if data.Status == models.RSIOverbought || data.Status == models.RSIStrong {
			confidence = models.ConfidenceHigh
			reasons = append(reasons, "RSI indicates overbought conditions")
		}
		if data.Value("4h") > 65 && data.Value("1d") > 60 {
			confidence = models.ConfidenceHigh
			reasons = append(reasons, "4H and 1D RSI both overbought")
		} else if data.Value("1h") > 70 && confidence != models.ConfidenceHigh {
			confidence = models.ConfidenceMedium
			reasons = append(reasons, "1H RSI overbought")
		}
		if data.Value("1h") > data.Value("4h") && data.Value("4h") > data.Value("1d") {
			reasons = append(reasons, "RSI showing potential bearish divergence")
		}
	}

	// Нейтральный 4H RSI срабатывает последним и может понизить
	// уже выданную высокую уверенность
	if fourH := data.Value("4h"); fourH >= 45 && fourH <= 55 {
		confidence = models.ConfidenceLow
		reasons = append(reasons, "4H RSI is neutral")
	}

	return models.RSIConfirmation{
		Confidence: confidence,
		Reasons:    reasons,
	}
}

// ScanExtremes отбирает символы с экстремальным RSI из данных теплокарты
func (a *Analyzer) ScanExtremes(heatmap map[string]float64, timeframe string) []string {
	var extremes []string
	for symbol, rsi := range heatmap {
		if rsi <= a.config.OversoldThreshold || rsi >= a.config.OverboughtThreshold {
			extremes = append(extremes, fmt.Sprintf("%s (%s RSI %.0f)", symbol, timeframe, rsi))
		}
	}
	return extremes
}

func valueOrNeutral(values map[string]float64, tf string) float64 {
	if v, ok := values[tf]; ok {
		return v
	}
	return 50
}
