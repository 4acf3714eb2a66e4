package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/config"
)

// PriceSource источник текущей цены символа.
// Подключаемая способность: боевая реализация через Binance и
// фикстурная таблица для работы без биржевого фида
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// BinancePriceSource берет маркировочную цену бессрочного контракта
// с фьючерсов Binance
type BinancePriceSource struct {
	client *futures.Client
}

// NewBinancePriceSource создает источник цен Binance
func NewBinancePriceSource(cfg config.BinanceConfig) *BinancePriceSource {
	if cfg.Testnet {
		futures.UseTestnet = true
	}
	client := futures.NewClient(cfg.APIKey, cfg.APISecret)
	return &BinancePriceSource{client: client}
}

// CurrentPrice возвращает маркировочную цену контракта <symbol>USDT
func (s *BinancePriceSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	indexes, err := s.client.NewPremiumIndexService().
		Symbol(symbol + "USDT").
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения цены %s: %w", symbol, err)
	}
	if len(indexes) == 0 {
		return 0, fmt.Errorf("нет данных о цене для %s", symbol)
	}

	price, err := strconv.ParseFloat(indexes[0].MarkPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("ошибка разбора цены %s: %w", symbol, err)
	}
	return price, nil
}

// Klines возвращает цены закрытия последних свечей контракта,
// используется локальным расчетом RSI
func (s *BinancePriceSource) Klines(ctx context.Context, symbol, interval string, limit int) ([]float64, error) {
	klines, err := s.client.NewKlinesService().
		Symbol(symbol + "USDT").
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей %s %s: %w", symbol, interval, err)
	}

	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		closePrice, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			continue
		}
		closes = append(closes, closePrice)
	}
	return closes, nil
}

// StaticPriceSource фикстурная таблица цен для работы без фида
type StaticPriceSource struct {
	prices       map[string]float64
	defaultPrice float64
}

// NewStaticPriceSource создает фикстурный источник цен
func NewStaticPriceSource() *StaticPriceSource {
	return &StaticPriceSource{
		prices: map[string]float64{
			"BTC":   43250.0,
			"ETH":   2280.0,
			"SOL":   98.50,
			"BNB":   315.0,
			"XRP":   0.52,
			"DOGE":  0.081,
			"ADA":   0.285,
			"AVAX":  21.30,
			"MATIC": 0.72,
			"LINK":  14.25,
		},
		defaultPrice: 100.0,
	}
}

// CurrentPrice возвращает цену из таблицы или значение по умолчанию
func (s *StaticPriceSource) CurrentPrice(_ context.Context, symbol string) (float64, error) {
	if price, ok := s.prices[symbol]; ok {
		return price, nil
	}
	return s.defaultPrice, nil
}
