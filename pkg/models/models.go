package models

import (
	"fmt"
	"math"
	"time"
)

// Направление сделки
const (
	ActionLong    = "LONG"
	ActionShort   = "SHORT"
	ActionNeutral = "NEUTRAL"
)

// Уверенность сигнала
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// Направление движения цены по ликвидациям
const (
	DirectionUp    = "UP"
	DirectionDown  = "DOWN"
	DirectionRange = "RANGE"
)

// Смещение по данным скринера
const (
	BiasStrongLong  = "STRONG_LONG"
	BiasLong        = "LONG"
	BiasWeakLong    = "WEAK_LONG"
	BiasNeutral     = "NEUTRAL"
	BiasWeakShort   = "WEAK_SHORT"
	BiasShort       = "SHORT"
	BiasStrongShort = "STRONG_SHORT"
)

// Статус RSI по совокупности таймфреймов
const (
	RSIOversold   = "OVERSOLD"
	RSIOverbought = "OVERBOUGHT"
	RSIWeak       = "WEAK"
	RSIStrong     = "STRONG"
	RSINeutral    = "NEUTRAL"
)

// Сторона ликвидаций
const (
	SideLong  = "long"
	SideShort = "short"
)

// HeatmapTimeframes таймфреймы карты ликвидаций CoinGlass
var HeatmapTimeframes = []string{"12h", "24h", "3d", "7d", "30d", "90d", "1y"}

// ScreenerRow сырая строка визуального скринера: символ и все числовые
// поля ответа как есть, включая таймфреймовые варианты метрик
type ScreenerRow struct {
	Symbol string
	Fields map[string]float64
}

// ScreenerMetric сырые дельты визуального скринера (проценты)
type ScreenerMetric struct {
	PriceChangePct  float64
	VolumeChangePct float64
	OIChangePct     float64
}

// ScreenerData результат анализа визуального скринера
type ScreenerData struct {
	Symbol        string
	Metric        ScreenerMetric
	MomentumScore int
	Bias          string
	Timestamp     time.Time
}

// HeatmapSlice сырой срез карты ликвидаций за один таймфрейм,
// ключи - цены в строковом виде, значения - объем ликвидаций в USD
type HeatmapSlice struct {
	Longs  map[string]float64
	Shorts map[string]float64
}

// LiquidationLevel один уровень ликвидаций
type LiquidationLevel struct {
	Price       float64
	ValueUSD    float64
	Side        string
	Timeframe   string
	DistancePct float64
}

// LiquidationCluster крупный кластер ликвидаций
type LiquidationCluster struct {
	Price       float64
	ValueUSD    float64
	DistancePct float64
	Timeframe   string
}

// ValueMillions объем кластера в миллионах USD
func (c LiquidationCluster) ValueMillions() float64 {
	return c.ValueUSD / 1e6
}

// WhaleTarget прогноз следующей цели крупных игроков
type WhaleTarget struct {
	Price      float64
	Direction  string
	Reasoning  string
	Confidence string
}

// ScaleZone зона ступенчатого входа в позицию
type ScaleZone struct {
	Price       float64
	PositionPct int
	Reasoning   string
}

// LiquidationAnalysis полный результат анализа ликвидаций по символу
type LiquidationAnalysis struct {
	Symbol            string
	CurrentPrice      float64
	LevelsByTimeframe map[string][]LiquidationLevel
	TotalLong         float64
	TotalShort        float64
	ImbalancePct      float64
	WhaleTarget       WhaleTarget
	Score             int
	LongClusters      []LiquidationCluster
	ShortClusters     []LiquidationCluster
	Direction         string
	Confidence        string
	ScaleInZones      []ScaleZone
	Timestamp         time.Time
}

// RSIData мультитаймфреймовый RSI для символа
type RSIData struct {
	Symbol          string
	Values          map[string]float64
	Status          string
	ConfluenceScore int
	Timestamp       time.Time
}

// Value возвращает RSI таймфрейма, 50 если данных нет
func (r *RSIData) Value(timeframe string) float64 {
	if v, ok := r.Values[timeframe]; ok {
		return v
	}
	return 50
}

// RSIConfirmation результат подтверждения направления по RSI
type RSIConfirmation struct {
	Confidence string
	Reasons    []string
}

// FusedSignal итоговый торговый сигнал, неизменяемый после построения
type FusedSignal struct {
	Symbol     string
	Action     string
	Confidence string
	Strength   int

	CurrentPrice float64
	StopLoss     float64
	TakeProfits  []float64
	ScaleInZones []ScaleZone

	MomentumScore        int
	LiquidationDirection string
	RSIStatus            string

	Screener    ScreenerData
	Liquidation *LiquidationAnalysis
	RSI         *RSIData

	Reasons   []string
	Timestamp time.Time
}

// Validate проверяет инварианты сигнала перед отправкой.
// Сигнал с нарушенными инвариантами отбрасывается, а не отправляется.
func (s *FusedSignal) Validate() error {
	switch s.Action {
	case ActionLong, ActionShort, ActionNeutral:
	default:
		return fmt.Errorf("неизвестное действие %q", s.Action)
	}

	switch s.Confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
	default:
		return fmt.Errorf("неизвестная уверенность %q", s.Confidence)
	}

	if s.Strength < 0 || s.Strength > 100 {
		return fmt.Errorf("сила сигнала %d вне диапазона [0,100]", s.Strength)
	}

	switch s.Action {
	case ActionLong:
		if s.StopLoss >= s.CurrentPrice {
			return fmt.Errorf("стоп-лосс %.4f не ниже цены %.4f для LONG", s.StopLoss, s.CurrentPrice)
		}
		for _, tp := range s.TakeProfits {
			if tp <= s.CurrentPrice {
				return fmt.Errorf("тейк-профит %.4f не выше цены %.4f для LONG", tp, s.CurrentPrice)
			}
		}
	case ActionShort:
		if s.StopLoss <= s.CurrentPrice {
			return fmt.Errorf("стоп-лосс %.4f не выше цены %.4f для SHORT", s.StopLoss, s.CurrentPrice)
		}
		for _, tp := range s.TakeProfits {
			if tp >= s.CurrentPrice {
				return fmt.Errorf("тейк-профит %.4f не ниже цены %.4f для SHORT", tp, s.CurrentPrice)
			}
		}
	case ActionNeutral:
		// Для NEUTRAL стоп и тейк равны текущей цене (маркер, не торговый уровень)
		if s.StopLoss != s.CurrentPrice || len(s.TakeProfits) == 0 || s.TakeProfits[0] != s.CurrentPrice {
			return fmt.Errorf("для NEUTRAL стоп и тейк должны равняться текущей цене")
		}
	}

	if len(s.ScaleInZones) > 0 {
		sum := 0
		for _, z := range s.ScaleInZones {
			sum += z.PositionPct
		}
		if math.Abs(float64(sum)-100) > 5 {
			return fmt.Errorf("сумма долей зон входа %d%% вне допуска 100±5%%", sum)
		}
	}

	return nil
}
