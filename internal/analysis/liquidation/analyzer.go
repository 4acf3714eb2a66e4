package liquidation

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/vincentortegajr/whale-radar-ai-1/internal/config"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/models"
)

// Analyzer реализует анализатор карты ликвидаций: кластеризация уровней,
// дисбаланс, прогноз цели крупных игроков и зоны ступенчатого входа
type Analyzer struct {
	config config.LiquidationConfig
}

// NewAnalyzer создает новый анализатор ликвидаций
func NewAnalyzer(cfg config.LiquidationConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Analyze выполняет полный анализ ликвидаций для символа.
// Возвращает nil, когда данных нет вовсе - символ пропускается в этом
// цикле, это не ошибка
func (a *Analyzer) Analyze(symbol string, currentPrice float64, raw map[string]models.HeatmapSlice) *models.LiquidationAnalysis {
	levelsByTF := a.materializeLevels(raw, currentPrice)

	total := 0
	for _, levels := range levelsByTF {
		total += len(levels)
	}
	if total == 0 {
		return nil
	}

	totalLong, totalShort := calculateTotals(levelsByTF)

	imbalancePct := 0.0
	if totalLong+totalShort > 0 {
		imbalancePct = (totalShort - totalLong) / (totalShort + totalLong) * 100
	}

	longClusters := a.findMajorClusters(levelsByTF, models.SideLong, currentPrice)
	shortClusters := a.findMajorClusters(levelsByTF, models.SideShort, currentPrice)

	target := a.predictWhaleTarget(longClusters, shortClusters, imbalancePct, currentPrice)
	score := a.calculateScore(imbalancePct, longClusters, shortClusters)
	direction, confidence := determineDirection(imbalancePct, score)
	zones := a.calculateScaleZones(longClusters, shortClusters, direction, currentPrice)

	return &models.LiquidationAnalysis{
		Symbol:            symbol,
		CurrentPrice:      currentPrice,
		LevelsByTimeframe: levelsByTF,
		TotalLong:         totalLong,
		TotalShort:        totalShort,
		ImbalancePct:      imbalancePct,
		WhaleTarget:       target,
		Score:             score,
		LongClusters:      longClusters,
		ShortClusters:     shortClusters,
		Direction:         direction,
		Confidence:        confidence,
		ScaleInZones:      zones,
		Timestamp:         time.Now().UTC(),
	}
}

// materializeLevels превращает сырые срезы карты в уровни ликвидаций.
// Уровни с некорректной ценой молча отбрасываются
func (a *Analyzer) materializeLevels(raw map[string]models.HeatmapSlice, currentPrice float64) map[string][]models.LiquidationLevel {
	processed := make(map[string][]models.LiquidationLevel, len(raw))

	for tf, slice := range raw {
		var levels []models.LiquidationLevel

		for priceStr, value := range slice.Longs {
			if lvl, ok := makeLevel(priceStr, value, models.SideLong, tf, currentPrice); ok {
				levels = append(levels, lvl)
			}
		}
		for priceStr, value := range slice.Shorts {
			if lvl, ok := makeLevel(priceStr, value, models.SideShort, tf, currentPrice); ok {
				levels = append(levels, lvl)
			}
		}

		sort.Slice(levels, func(i, j int) bool {
			return levels[i].ValueUSD > levels[j].ValueUSD
		})
		processed[tf] = levels
	}

	return processed
}

func makeLevel(priceStr string, value float64, side, timeframe string, currentPrice float64) (models.LiquidationLevel, bool) {
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil || price <= 0 {
		return models.LiquidationLevel{}, false
	}
	return models.LiquidationLevel{
		Price:       price,
		ValueUSD:    value,
		Side:        side,
		Timeframe:   timeframe,
		DistancePct: math.Abs((price - currentPrice) / currentPrice * 100),
	}, true
}

// calculateTotals суммирует объемы ликвидаций по сторонам
func calculateTotals(levelsByTF map[string][]models.LiquidationLevel) (float64, float64) {
	var totalLong, totalShort float64
	for _, levels := range levelsByTF {
		for _, lvl := range levels {
			if lvl.Side == models.SideLong {
				totalLong += lvl.ValueUSD
			} else {
				totalShort += lvl.ValueUSD
			}
		}
	}
	return totalLong, totalShort
}

// findMajorClusters собирает крупнейшие кластеры стороны по всем
// таймфреймам сразу - киты работают на всех горизонтах. Лонговые
// кластеры лежат только ниже текущей цены (поддержка), шортовые -
// только выше (сопротивление)
func (a *Analyzer) findMajorClusters(levelsByTF map[string][]models.LiquidationLevel, side string, currentPrice float64) []models.LiquidationCluster {
	var all []models.LiquidationLevel
	for _, levels := range levelsByTF {
		for _, lvl := range levels {
			if lvl.Side != side {
				continue
			}
			if lvl.ValueUSD < a.config.MinClusterValueUSD {
				continue
			}
			if side == models.SideLong && lvl.Price >= currentPrice {
				continue
			}
			if side == models.SideShort && lvl.Price <= currentPrice {
				continue
			}
			all = append(all, lvl)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].ValueUSD > all[j].ValueUSD
	})

	top := a.config.TopClusters
	if len(all) < top {
		top = len(all)
	}

	clusters := make([]models.LiquidationCluster, 0, top)
	for _, lvl := range all[:top] {
		clusters = append(clusters, models.LiquidationCluster{
			Price:       lvl.Price,
			ValueUSD:    lvl.ValueUSD,
			DistancePct: lvl.DistancePct,
			Timeframe:   lvl.Timeframe,
		})
	}
	return clusters
}

// predictWhaleTarget прогнозирует, куда крупные игроки скорее всего
// двинут цену за ликвидациями
func (a *Analyzer) predictWhaleTarget(longClusters, shortClusters []models.LiquidationCluster, imbalance, currentPrice float64) models.WhaleTarget {
	nearestLong := nearestCluster(longClusters)
	nearestShort := nearestCluster(shortClusters)

	confidence := models.ConfidenceMedium
	if math.Abs(imbalance) > a.config.ImbalanceThreshold {
		confidence = models.ConfidenceHigh
	}

	switch {
	case imbalance > a.config.ImbalanceThreshold:
		// Перевес шортов - охота вверх
		target := currentPrice * 1.05
		reasoning := "Heavy short liquidations above current price"
		if nearestShort != nil {
			target = nearestShort.Price
			reasoning = fmt.Sprintf("Heavy short liquidations ($%.1fM) at $%.0f", nearestShort.ValueMillions(), target)
		}
		return models.WhaleTarget{Price: target, Direction: models.DirectionUp, Reasoning: reasoning, Confidence: confidence}

	case imbalance < -a.config.ImbalanceThreshold:
		// Перевес лонгов - охота вниз
		target := currentPrice * 0.95
		reasoning := "Heavy long liquidations below current price"
		if nearestLong != nil {
			target = nearestLong.Price
			reasoning = fmt.Sprintf("Heavy long liquidations ($%.1fM) at $%.0f", nearestLong.ValueMillions(), target)
		}
		return models.WhaleTarget{Price: target, Direction: models.DirectionDown, Reasoning: reasoning, Confidence: confidence}

	default:
		// Баланс - смотрим на больший из ближайших кластеров
		if nearestShort != nil && nearestLong != nil {
			if nearestShort.ValueUSD > nearestLong.ValueUSD {
				return models.WhaleTarget{
					Price:      nearestShort.Price,
					Direction:  models.DirectionUp,
					Reasoning:  fmt.Sprintf("Larger short cluster ($%.1fM) nearby", nearestShort.ValueMillions()),
					Confidence: confidence,
				}
			}
			return models.WhaleTarget{
				Price:      nearestLong.Price,
				Direction:  models.DirectionDown,
				Reasoning:  fmt.Sprintf("Larger long cluster ($%.1fM) nearby", nearestLong.ValueMillions()),
				Confidence: confidence,
			}
		}
		return models.WhaleTarget{
			Price:      currentPrice,
			Direction:  models.DirectionRange,
			Reasoning:  "Balanced liquidations - range likely",
			Confidence: confidence,
		}
	}
}

func nearestCluster(clusters []models.LiquidationCluster) *models.LiquidationCluster {
	var nearest *models.LiquidationCluster
	for i := range clusters {
		if nearest == nil || clusters[i].DistancePct < nearest.DistancePct {
			nearest = &clusters[i]
		}
	}
	return nearest
}

// calculateScore рассчитывает силу направленного смещения 0-100
func (a *Analyzer) calculateScore(imbalance float64, longClusters, shortClusters []models.LiquidationCluster) int {
	score := 50.0

	// Вклад дисбаланса (до ±30 пунктов)
	score += math.Min(30, math.Abs(imbalance)/2) * sign(imbalance)

	// Концентрация кластеров (±20 пунктов): сравниваем суммы топ-3 сторон
	if len(longClusters) > 0 && len(shortClusters) > 0 {
		longTop3 := topClusterValue(longClusters, 3)
		shortTop3 := topClusterValue(shortClusters, 3)

		if shortTop3 > longTop3*a.config.ConcentrationRatio {
			score += 20
		} else if longTop3 > shortTop3*a.config.ConcentrationRatio {
			score -= 20
		}
	}

	return int(math.Max(0, math.Min(100, score)))
}

func topClusterValue(clusters []models.LiquidationCluster, n int) float64 {
	if len(clusters) < n {
		n = len(clusters)
	}
	sum := 0.0
	for _, c := range clusters[:n] {
		sum += c.ValueUSD
	}
	return sum
}

// determineDirection решающая таблица направления и уверенности
func determineDirection(imbalance float64, score int) (string, string) {
	switch {
	case score > 70:
		if imbalance > 0 {
			return models.ActionLong, models.ConfidenceHigh
		}
		return models.ActionShort, models.ConfidenceHigh
	case score > 60:
		if imbalance > 0 {
			return models.ActionLong, models.ConfidenceMedium
		}
		return models.ActionShort, models.ConfidenceMedium
	case score < 30:
		if imbalance < 0 {
			return models.ActionShort, models.ConfidenceHigh
		}
		return models.ActionLong, models.ConfidenceHigh
	case score < 40:
		if imbalance < 0 {
			return models.ActionShort, models.ConfidenceMedium
		}
		return models.ActionLong, models.ConfidenceMedium
	default:
		return models.ActionNeutral, models.ConfidenceLow
	}
}

// calculateScaleZones строит зоны ступенчатого входа по кластерам.
// Для LONG входы на поддержках ниже цены, ближайшая - первой;
// для SHORT зеркально на сопротивлениях выше цены
func (a *Analyzer) calculateScaleZones(longClusters, shortClusters []models.LiquidationCluster, direction string, currentPrice float64) []models.ScaleZone {
	var targets []models.LiquidationCluster
	reasonFmt := ""

	switch direction {
	case models.ActionLong:
		for _, c := range longClusters {
			if c.Price < currentPrice {
				targets = append(targets, c)
			}
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i].Price > targets[j].Price })
		reasonFmt = "Support at $%.1fM liquidations"
	case models.ActionShort:
		for _, c := range shortClusters {
			if c.Price > currentPrice {
				targets = append(targets, c)
			}
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i].Price < targets[j].Price })
		reasonFmt = "Resistance at $%.1fM liquidations"
	default:
		return nil
	}

	if len(targets) > a.config.MaxScaleZones {
		targets = targets[:a.config.MaxScaleZones]
	}
	if len(targets) == 0 {
		return nil
	}

	pcts := DistributePosition(len(targets))
	zones := make([]models.ScaleZone, len(targets))
	for i, t := range targets {
		zones[i] = models.ScaleZone{
			Price:       t.Price,
			PositionPct: pcts[i],
			Reasoning:   fmt.Sprintf(reasonFmt, t.ValueMillions()),
		}
	}
	return zones
}

// DistributePosition распределяет 100% позиции по числу входов,
// сумма всегда равна ровно 100
func DistributePosition(n int) []int {
	switch n {
	case 1:
		return []int{100}
	case 2:
		return []int{60, 40}
	case 3:
		return []int{40, 35, 25}
	case 4:
		return []int{30, 30, 25, 15}
	}

	// Равномерное распределение с остатком по первым входам
	base := 100 / n
	remainder := 100 % n
	dist := make([]int, n)
	for i := range dist {
		dist[i] = base
		if i < remainder {
			dist[i]++
		}
	}
	return dist
}

func sign(v float64) float64 {
	if v > 0 {
		return 1
	}
	return -1
}
