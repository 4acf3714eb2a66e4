package source

import (
	"context"
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/logger"
	"go.uber.org/zap"
)

// Соответствие таймфреймов RSI интервалам свечей Binance
var fallbackIntervals = map[string]string{
	"5m":  "5m",
	"15m": "15m",
	"1h":  "1h",
	"4h":  "4h",
	"12h": "12h",
	"1d":  "1d",
	"1w":  "1w",
}

// RSIFallback локальный расчет RSI по свечам Binance на случай,
// когда теплокарта CoinGlass не вернула данных по символу
type RSIFallback struct {
	klines interface {
		Klines(ctx context.Context, symbol, interval string, limit int) ([]float64, error)
	}
	period int
}

// NewRSIFallback создает локальный расчет RSI с заданным периодом
func NewRSIFallback(binance *BinancePriceSource, period int) *RSIFallback {
	return &RSIFallback{
		klines: binance,
		period: period,
	}
}

// Values считает RSI символа по всем таймфреймам.
// Недоступный таймфрейм просто отсутствует в результате
func (f *RSIFallback) Values(ctx context.Context, symbol string) (map[string]float64, error) {
	results := make(map[string]float64, len(rsiTimeframes))

	for _, tf := range rsiTimeframes {
		interval, ok := fallbackIntervals[tf]
		if !ok {
			continue
		}

		rsi, err := f.value(ctx, symbol, interval)
		if err != nil {
			logger.Debug("Локальный RSI недоступен",
				zap.String("symbol", symbol), zap.String("timeframe", tf), zap.Error(err))
			continue
		}
		results[tf] = rsi
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("локальный RSI недоступен для %s", symbol)
	}
	return results, nil
}

func (f *RSIFallback) value(ctx context.Context, symbol, interval string) (float64, error) {
	closes, err := f.klines.Klines(ctx, symbol, interval, f.period*4)
	if err != nil {
		return 0, err
	}
	if len(closes) < f.period+1 {
		return 0, fmt.Errorf("недостаточно свечей для расчета RSI: %d", len(closes))
	}

	rsi := talib.Rsi(closes, f.period)
	return rsi[len(rsi)-1], nil
}
