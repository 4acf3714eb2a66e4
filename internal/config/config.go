package config

import (
	"io/ioutil"

	"github.com/vincentortegajr/whale-radar-ai-1/pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	CoinGlass CoinGlassConfig `yaml:"coinglass"`
	Binance   BinanceConfig   `yaml:"binance"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Storage   StorageConfig   `yaml:"storage"`
	UI        UIConfig        `yaml:"ui"`
}

// CoinGlassConfig содержит настройки подключения к CoinGlass API
type CoinGlassConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	CallsPerMinute int    `yaml:"calls_per_minute"`
	RetryAttempts  int    `yaml:"retry_attempts"`
}

// BinanceConfig содержит настройки подключения к Binance
// (источник текущих цен и свечей для локального расчета RSI)
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// TelegramConfig настройки доставки оповещений
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// ScannerConfig настройки цикла сканирования рынка
type ScannerConfig struct {
	IntervalMinutes   int    `yaml:"interval_minutes"`
	TopN              int    `yaml:"top_n"`
	MinMomentumScore  int    `yaml:"min_momentum_score"`
	ScreenerTimeframe string `yaml:"screener_timeframe"`
	PriceSource       string `yaml:"price_source"` // "binance" или "static"
}

// AnalysisConfig содержит настройки аналитических модулей
type AnalysisConfig struct {
	Screener    ScreenerConfig    `yaml:"screener"`
	Liquidation LiquidationConfig `yaml:"liquidation"`
	RSI         RSIConfig         `yaml:"rsi"`
}

// ScreenerConfig настройки анализа визуального скринера
type ScreenerConfig struct {
	VolumeSpikeThreshold float64 `yaml:"volume_spike_threshold"`
	OISpikeThreshold     float64 `yaml:"oi_spike_threshold"`
	// Порядок выбора таймфреймового варианта метрики,
	// первый ненулевой по списку выигрывает
	TimeframePriority []string `yaml:"timeframe_priority"`
}

// LiquidationConfig настройки анализа карты ликвидаций
type LiquidationConfig struct {
	ImbalanceThreshold  float64 `yaml:"imbalance_threshold"`
	ConcentrationRatio  float64 `yaml:"concentration_ratio"`
	TopClusters         int     `yaml:"top_clusters"`
	MinClusterValueUSD  float64 `yaml:"min_cluster_value_usd"`
	MaxScaleZones       int     `yaml:"max_scale_zones"`
}

// RSIConfig настройки анализа RSI
type RSIConfig struct {
	OversoldThreshold   float64 `yaml:"oversold_threshold"`
	OverboughtThreshold float64 `yaml:"overbought_threshold"`
	// Период локального расчета RSI по свечам Binance,
	// используется когда CoinGlass не вернул данные
	FallbackPeriod int `yaml:"fallback_period"`
}

// StorageConfig настройки хранения сигналов
type StorageConfig struct {
	Type         string `yaml:"type"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	RefreshRate int  `yaml:"refresh_rate_ms"`
	ShowDetails bool `yaml:"show_details"`
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		logger.Fatal("Ошибка чтения файла конфигурации", zap.Error(err))
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		logger.Fatal("Ошибка разбора файла конфигурации", zap.Error(err))
	}

	config.applyDefaults()

	logger.Debug("Загружена конфигурация", zap.String("path", path), zap.Any("config", config))

	return &config, nil
}

// applyDefaults подставляет значения по умолчанию для незаполненных порогов
func (c *Config) applyDefaults() {
	if c.CoinGlass.BaseURL == "" {
		c.CoinGlass.BaseURL = "https://open-api-v4.coinglass.com"
	}
	if c.CoinGlass.CallsPerMinute == 0 {
		c.CoinGlass.CallsPerMinute = 600
	}
	if c.CoinGlass.RetryAttempts == 0 {
		c.CoinGlass.RetryAttempts = 3
	}
	if c.Scanner.IntervalMinutes == 0 {
		c.Scanner.IntervalMinutes = 5
	}
	if c.Scanner.TopN == 0 {
		c.Scanner.TopN = 20
	}
	if c.Scanner.MinMomentumScore == 0 {
		c.Scanner.MinMomentumScore = 60
	}
	if c.Scanner.ScreenerTimeframe == "" {
		c.Scanner.ScreenerTimeframe = "5m"
	}
	if c.Scanner.PriceSource == "" {
		c.Scanner.PriceSource = "static"
	}
	if c.Analysis.Screener.VolumeSpikeThreshold == 0 {
		c.Analysis.Screener.VolumeSpikeThreshold = 200
	}
	if c.Analysis.Screener.OISpikeThreshold == 0 {
		c.Analysis.Screener.OISpikeThreshold = 50
	}
	if len(c.Analysis.Screener.TimeframePriority) == 0 {
		c.Analysis.Screener.TimeframePriority = []string{"1h", "4h", "24h"}
	}
	if c.Analysis.Liquidation.ImbalanceThreshold == 0 {
		c.Analysis.Liquidation.ImbalanceThreshold = 30
	}
	if c.Analysis.Liquidation.ConcentrationRatio == 0 {
		c.Analysis.Liquidation.ConcentrationRatio = 2.0
	}
	if c.Analysis.Liquidation.TopClusters == 0 {
		c.Analysis.Liquidation.TopClusters = 10
	}
	if c.Analysis.Liquidation.MaxScaleZones == 0 {
		c.Analysis.Liquidation.MaxScaleZones = 4
	}
	if c.Analysis.RSI.OversoldThreshold == 0 {
		c.Analysis.RSI.OversoldThreshold = 30
	}
	if c.Analysis.RSI.OverboughtThreshold == 0 {
		c.Analysis.RSI.OverboughtThreshold = 70
	}
	if c.Analysis.RSI.FallbackPeriod == 0 {
		c.Analysis.RSI.FallbackPeriod = 14
	}
	if c.UI.RefreshRate == 0 {
		c.UI.RefreshRate = 1000
	}
}
