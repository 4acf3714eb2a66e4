package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vincentortegajr/whale-radar-ai-1/internal/analysis/aggregator"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/analysis/rsianalysis"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/config"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/notifier"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/source"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/storage"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/ui"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Init()
	defer logger.GetLogger().Sync()

	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	// Проверяем наличие файла конфигурации
	logger.Info("Проверка наличия файла конфигурации", zap.String("path", *configPath))
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logger.Fatal("Файл конфигурации не найден", zap.String("path", *configPath))
	}

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	// Создаем контекст с возможностью отмены через горутину
	ctx, cancel := context.WithCancel(context.Background())

	// Настраиваем обработку сигналов завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nЗавершение работы...")
		cancel()
		time.Sleep(5 * time.Second) // Даем горутинам время на завершение
		os.Exit(0)
	}()

	// Инициализируем хранилище
	store, err := storage.NewInfluxDBStorage(cfg.Storage)
	if err != nil {
		logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
	}
	defer store.Close()

	// Инициализируем клиент CoinGlass
	market := source.NewCoinGlassClient(cfg.CoinGlass)

	// Проверяем доступность API до запуска цикла сканирования
	symbols, err := market.PerpetualSymbols(ctx)
	if err != nil {
		logger.Fatal("CoinGlass API недоступен", zap.Error(err))
	}
	logger.Info("CoinGlass API доступен", zap.Int("symbols", len(symbols)))

	// Источник цен: боевой фид Binance или фикстурная таблица
	var prices source.PriceSource
	var rsiFallback aggregator.RSIFallbackSource
	if cfg.Scanner.PriceSource == "binance" {
		binance := source.NewBinancePriceSource(cfg.Binance)
		prices = binance
		rsiFallback = source.NewRSIFallback(binance, cfg.Analysis.RSI.FallbackPeriod)
	} else {
		prices = source.NewStaticPriceSource()
	}

	// Создаем агрегатор аналитики
	analyzer := aggregator.NewAnalyzer(cfg.Analysis, cfg.Scanner, store, market, prices, rsiFallback)

	// Нотификатор Telegram, может быть выключен в конфигурации
	var alerts *notifier.TelegramNotifier
	if cfg.Telegram.Enabled {
		alerts, err = notifier.NewTelegramNotifier(cfg.Telegram)
		if err != nil {
			logger.Fatal("Ошибка инициализации Telegram", zap.Error(err))
		}
	}

	// Инициализируем UI
	userInterface, err := ui.NewTermUI(cfg.UI)
	if err != nil {
		logger.Fatal("Ошибка инициализации пользовательского интерфейса", zap.Error(err))
	}

	// Запускаем цикл сканирования в горутине
	go scanLoop(ctx, cfg, analyzer, market, userInterface, alerts)

	// Запускаем UI в основном потоке (блокирующий вызов)
	// Это последняя инструкция в основном потоке
	userInterface.Start()
}

// scanLoop выполняет сканирование рынка раз в интервал.
// Первый цикл запускается сразу, без ожидания тика
func scanLoop(ctx context.Context, cfg *config.Config, analyzer *aggregator.Analyzer, market *source.CoinGlassClient, userInterface *ui.TermUI, alerts *notifier.TelegramNotifier) {
	interval := time.Duration(cfg.Scanner.IntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cycle := 0
	for {
		cycle++
		runScanCycle(ctx, cfg, analyzer, market, userInterface, alerts, cycle)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func runScanCycle(ctx context.Context, cfg *config.Config, analyzer *aggregator.Analyzer, market *source.CoinGlassClient, userInterface *ui.TermUI, alerts *notifier.TelegramNotifier, cycle int) {
	logger.Info("Начало цикла сканирования", zap.Int("cycle", cycle))
	started := time.Now()

	signals, err := analyzer.GenerateSignals(ctx)
	if err != nil {
		logger.Error("Ошибка генерации сигналов", zap.Error(err))
		if alerts != nil {
			if sendErr := alerts.SendError("Scan cycle failed", err.Error()); sendErr != nil {
				logger.Warn("Оповещение об ошибке не доставлено", zap.Error(sendErr))
			}
		}
		return
	}

	userInterface.UpdateSignals(signals)

	if alerts != nil {
		alerts.CleanupOldAlerts()
		alerts.DeliverBatch(signals)
	}

	// Обзорный проход по экстремумам RSI всего рынка для лога
	if heatmap, err := market.RSIHeatmap(ctx, "1h", 100); err == nil {
		extremes := rsianalysis.NewAnalyzer(cfg.Analysis.RSI).ScanExtremes(heatmap, "1h")
		for _, extreme := range extremes {
			logger.Info("Экстремум RSI", zap.String("detail", extreme))
		}
	}

	logger.Info("Цикл сканирования завершен",
		zap.Int("cycle", cycle),
		zap.Int("signals", len(signals)),
		zap.Duration("elapsed", time.Since(started)))
}
