package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vincentortegajr/whale-radar-ai-1/internal/analysis/liquidation"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/analysis/rsianalysis"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/analysis/screener"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/config"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/source"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/storage"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/logger"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/models"
	"go.uber.org/zap"
)

// MarketSource абстракция над CoinGlass API: каждая операция может не
// вернуть данных, тогда символ пропускается в текущем цикле
type MarketSource interface {
	ScreenerRows(ctx context.Context, timeframe string) ([]models.ScreenerRow, error)
	LiquidationHeatmaps(ctx context.Context, symbol string) (map[string]models.HeatmapSlice, error)
	RSIMultiTimeframe(ctx context.Context, symbol string) (map[string]float64, error)
	RSIHeatmap(ctx context.Context, timeframe string, limit int) (map[string]float64, error)
}

// RSIFallbackSource локальный расчет RSI, когда CoinGlass пуст
type RSIFallbackSource interface {
	Values(ctx context.Context, symbol string) (map[string]float64, error)
}

// Analyzer объединяет три аналитических компонента в итоговый сигнал
type Analyzer struct {
	scannerCfg   config.ScannerConfig
	storage      storage.Storage
	market       MarketSource
	prices       source.PriceSource
	rsiFallback  RSIFallbackSource
	screenerAnal *screener.Analyzer
	liqAnal      *liquidation.Analyzer
	rsiAnal      *rsianalysis.Analyzer
}

// NewAnalyzer создает новый агрегатор сигналов
func NewAnalyzer(cfg config.AnalysisConfig, scannerCfg config.ScannerConfig, store storage.Storage, market MarketSource, prices source.PriceSource, rsiFallback RSIFallbackSource) *Analyzer {
	return &Analyzer{
		scannerCfg:   scannerCfg,
		storage:      store,
		market:       market,
		prices:       prices,
		rsiFallback:  rsiFallback,
		screenerAnal: screener.NewAnalyzer(cfg.Screener),
		liqAnal:      liquidation.NewAnalyzer(cfg.Liquidation),
		rsiAnal:      rsianalysis.NewAnalyzer(cfg.RSI),
	}
}

// GenerateSignals выполняет один цикл сканирования рынка: отбирает
// лидеров моментума по скринеру, параллельно анализирует каждого и
// возвращает валидные сигналы, отсортированные по убыванию силы
func (a *Analyzer) GenerateSignals(ctx context.Context) ([]*models.FusedSignal, error) {
	rows, err := a.market.ScreenerRows(ctx, a.scannerCfg.ScreenerTimeframe)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения данных скринера: %w", err)
	}

	candidates := a.topMovers(rows)
	if len(candidates) == 0 {
		logger.Info("Нет кандидатов с достаточным моментумом в этом цикле")
		return nil, nil
	}

	var results []*models.FusedSignal
	var wg sync.WaitGroup
	var mutex sync.Mutex

	for _, candidate := range candidates {
		wg.Add(1)
		go func(sd models.ScreenerData) {
			defer wg.Done()

			signal, err := a.analyzeSymbol(ctx, sd)
			if err != nil {
				// Пропускаем символ в этом цикле, остальные продолжаются
				logger.Warn("Символ пропущен", zap.String("symbol", sd.Symbol), zap.Error(err))
				return
			}
			if signal == nil {
				return
			}

			mutex.Lock()
			results = append(results, signal)
			mutex.Unlock()
		}(candidate)
	}

	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Strength > results[j].Strength
	})

	if len(results) > a.scannerCfg.TopN {
		results = results[:a.scannerCfg.TopN]
	}

	for _, signal := range results {
		if err := a.storage.SaveSignal(ctx, signal); err != nil {
			logger.Warn("Не удалось сохранить сигнал", zap.String("symbol", signal.Symbol), zap.Error(err))
		}
	}

	return results, nil
}

// topMovers строит данные скринера для всех символов и отбирает
// лидеров по моментуму
func (a *Analyzer) topMovers(rows []models.ScreenerRow) []models.ScreenerData {
	var movers []models.ScreenerData
	for _, row := range rows {
		metric, ok := a.screenerAnal.ExtractMetric(row.Fields)
		if !ok {
			continue
		}
		data := a.screenerAnal.Analyze(row.Symbol, metric)
		if data.MomentumScore < a.scannerCfg.MinMomentumScore {
			continue
		}
		movers = append(movers, data)
	}

	sort.Slice(movers, func(i, j int) bool {
		return movers[i].MomentumScore > movers[j].MomentumScore
	})

	limit := a.scannerCfg.TopN * 2
	if len(movers) > limit {
		movers = movers[:limit]
	}
	return movers
}

// analyzeSymbol выполняет полный анализ одного символа.
// Отсутствие любого из трех компонентов - пропуск, частичный сигнал
// не строится
func (a *Analyzer) analyzeSymbol(ctx context.Context, sd models.ScreenerData) (*models.FusedSignal, error) {
	currentPrice, err := a.prices.CurrentPrice(ctx, sd.Symbol)
	if err != nil {
		return nil, fmt.Errorf("нет текущей цены: %w", err)
	}

	// Карта ликвидаций и RSI запрашиваются параллельно
	var heatmaps map[string]models.HeatmapSlice
	var rsiValues map[string]float64
	var heatmapErr, rsiErr error
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		heatmaps, heatmapErr = a.market.LiquidationHeatmaps(ctx, sd.Symbol)
	}()
	go func() {
		defer wg.Done()
		rsiValues, rsiErr = a.market.RSIMultiTimeframe(ctx, sd.Symbol)
		if (rsiErr != nil || len(rsiValues) == 0) && a.rsiFallback != nil {
			rsiValues, rsiErr = a.rsiFallback.Values(ctx, sd.Symbol)
		}
	}()
	wg.Wait()

	if heatmapErr != nil {
		return nil, fmt.Errorf("нет данных ликвидаций: %w", heatmapErr)
	}
	if rsiErr != nil || len(rsiValues) == 0 {
		return nil, fmt.Errorf("нет данных RSI: %w", rsiErr)
	}

	liq := a.liqAnal.Analyze(sd.Symbol, currentPrice, heatmaps)
	if liq == nil {
		// Не ошибка: символ без карты ликвидаций неанализируем в этом цикле
		logger.Debug("Нет уровней ликвидаций", zap.String("symbol", sd.Symbol))
		return nil, nil
	}

	rsi := a.rsiAnal.Analyze(sd.Symbol, rsiValues)

	signal := a.fuseSignal(sd.Symbol, currentPrice, sd, liq, rsi)

	if err := signal.Validate(); err != nil {
		// Нарушенный инвариант отбрасывает сигнал до отправки
		logger.Error("Сигнал отклонен валидацией", zap.String("symbol", sd.Symbol), zap.Error(err))
		return nil, nil
	}

	logger.Debug("AGGREGATOR: Сигнал построен",
		zap.String("symbol", sd.Symbol),
		zap.String("action", signal.Action),
		zap.Int("strength", signal.Strength))

	return signal, nil
}

// fuseSignal объединяет три независимых сигнала в итоговый.
// Последовательный аддитивный протокол: поздние шаги читают действие,
// выставленное ранними, порядок шагов менять нельзя
func (a *Analyzer) fuseSignal(symbol string, currentPrice float64, sd models.ScreenerData, liq *models.LiquidationAnalysis, rsi *models.RSIData) *models.FusedSignal {
	action := models.ActionNeutral
	confidence := models.ConfidenceLow
	strength := 0
	var reasons []string

	// Шаг 1: смещение скринера задает направление
	switch sd.Bias {
	case models.BiasStrongLong, models.BiasLong:
		action = models.ActionLong
		strength += 20
		reasons = append(reasons, fmt.Sprintf("Visual screener shows %s bias (momentum: %d)", sd.Bias, sd.MomentumScore))
	case models.BiasStrongShort, models.BiasShort:
		action = models.ActionShort
		strength += 20
		reasons = append(reasons, fmt.Sprintf("Visual screener shows %s bias (momentum: %d)", sd.Bias, sd.MomentumScore))
	}

	// Шаг 2: сверка с направлением ликвидаций
	liqDirection := liq.WhaleTarget.Direction
	switch {
	case liqDirection == models.DirectionUp && action == models.ActionLong:
		strength += 30
		confidence = liq.Confidence
		reasons = append(reasons, fmt.Sprintf("Liquidations confirm UP direction (imbalance: %+.1f%%)", liq.ImbalancePct))
	case liqDirection == models.DirectionDown && action == models.ActionShort:
		strength += 30
		confidence = liq.Confidence
		reasons = append(reasons, fmt.Sprintf("Liquidations confirm DOWN direction (imbalance: %+.1f%%)", liq.ImbalancePct))
	case liqDirection == models.DirectionRange:
		// Боковик отменяет любое направление
		action = models.ActionNeutral
		reasons = append(reasons, "Liquidations suggest range-bound market")
	default:
		strength -= 10
		confidence = models.ConfidenceLow
		reasons = append(reasons, "Screener and liquidations show conflicting signals")
	}

	// Шаг 3: подтверждение по RSI
	rsiConfirm := a.rsiAnal.Confirm(rsi, proposedDirection(action))
	switch rsiConfirm.Confidence {
	case models.ConfidenceHigh:
		strength += 20
		reasons = append(reasons, rsiConfirm.Reasons...)
	case models.ConfidenceMedium:
		strength += 10
		reasons = append(reasons, rsiConfirm.Reasons...)
	default:
		strength -= 5
		reasons = append(reasons, "RSI does not confirm direction")
	}

	// Шаг 4: бонусы за конфлюэнс
	if sd.Metric.VolumeChangePct > 300 && sd.Metric.OIChangePct > 50 {
		strength += 10
		reasons = append(reasons, fmt.Sprintf("High volume (%.0f%%) and OI (%.1f%%) spike", sd.Metric.VolumeChangePct, sd.Metric.OIChangePct))
	}
	if rsi.ConfluenceScore > 80 {
		strength += 10
		reasons = append(reasons, fmt.Sprintf("Strong RSI confluence across timeframes (score: %d)", rsi.ConfluenceScore))
	}

	// Шаг 5: итоговая уверенность выводится только из накопленной силы
	if strength > 100 {
		strength = 100
	}
	if strength < 0 {
		strength = 0
	}
	switch {
	case strength >= 70:
		confidence = models.ConfidenceHigh
	case strength >= 50:
		confidence = models.ConfidenceMedium
	default:
		confidence = models.ConfidenceLow
	}

	// Шаг 6: стоп и тейки по кластерам ликвидаций
	stopLoss, takeProfits := riskReward(action, currentPrice, liq)

	if len(reasons) > 5 {
		reasons = reasons[:5]
	}

	return &models.FusedSignal{
		Symbol:               symbol,
		Action:               action,
		Confidence:           confidence,
		Strength:             strength,
		CurrentPrice:         currentPrice,
		StopLoss:             stopLoss,
		TakeProfits:          takeProfits,
		ScaleInZones:         liq.ScaleInZones,
		MomentumScore:        sd.MomentumScore,
		LiquidationDirection: liqDirection,
		RSIStatus:            rsi.Status,
		Screener:             sd,
		Liquidation:          liq,
		RSI:                  rsi,
		Reasons:              reasons,
		Timestamp:            time.Now().UTC(),
	}
}

// riskReward рассчитывает стоп-лосс и лестницу тейк-профитов
func riskReward(action string, currentPrice float64, liq *models.LiquidationAnalysis) (float64, []float64) {
	switch action {
	case models.ActionLong:
		stopLoss := currentPrice * 0.97
		if len(liq.LongClusters) > 0 {
			// Чуть ниже крупнейшей поддержки из топ-3
			stopLoss = minClusterPrice(liq.LongClusters, 3) * 0.995
		}

		takeProfits := clusterPrices(liq.ShortClusters, 3)
		if len(takeProfits) == 0 {
			takeProfits = []float64{
				currentPrice * 1.02,
				currentPrice * 1.05,
				currentPrice * 1.10,
			}
		}
		return stopLoss, takeProfits

	case models.ActionShort:
		stopLoss := currentPrice * 1.03
		if len(liq.ShortClusters) > 0 {
			// Чуть выше крупнейшего сопротивления из топ-3
			stopLoss = maxClusterPrice(liq.ShortClusters, 3) * 1.005
		}

		takeProfits := clusterPrices(liq.LongClusters, 3)
		if len(takeProfits) == 0 {
			takeProfits = []float64{
				currentPrice * 0.98,
				currentPrice * 0.95,
				currentPrice * 0.90,
			}
		}
		return stopLoss, takeProfits

	default:
		// Маркер для NEUTRAL, не торговый уровень
		return currentPrice, []float64{currentPrice}
	}
}

func proposedDirection(action string) string {
	switch action {
	case models.ActionLong:
		return models.DirectionUp
	case models.ActionShort:
		return models.DirectionDown
	default:
		return models.DirectionRange
	}
}

func minClusterPrice(clusters []models.LiquidationCluster, n int) float64 {
	if len(clusters) < n {
		n = len(clusters)
	}
	minPrice := clusters[0].Price
	for _, c := range clusters[:n] {
		if c.Price < minPrice {
			minPrice = c.Price
		}
	}
	return minPrice
}

func maxClusterPrice(clusters []models.LiquidationCluster, n int) float64 {
	if len(clusters) < n {
		n = len(clusters)
	}
	maxPrice := clusters[0].Price
	for _, c := range clusters[:n] {
		if c.Price > maxPrice {
			maxPrice = c.Price
		}
	}
	return maxPrice
}

func clusterPrices(clusters []models.LiquidationCluster, n int) []float64 {
	if len(clusters) < n {
		n = len(clusters)
	}
	prices := make([]float64, 0, n)
	for _, c := range clusters[:n] {
		prices = append(prices, c.Price)
	}
	return prices
}

// GetSignalHistory возвращает историю сигналов для символа
func (a *Analyzer) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.FusedSignal, error) {
	return a.storage.GetSignalHistory(ctx, symbol, limit)
}
