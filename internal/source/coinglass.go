package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/config"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/logger"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/models"
	"go.uber.org/zap"
)

// Таймфреймы мультитаймфреймового RSI
var rsiTimeframes = []string{"5m", "15m", "1h", "4h", "12h", "1d", "1w"}

// CoinGlassClient клиент для работы с CoinGlass API v4.
// Любая ошибка запроса трактуется вызывающим кодом как "нет данных
// по символу в этом цикле", а не как фатальный сбой
type CoinGlassClient struct {
	cfg     config.CoinGlassConfig
	http    *http.Client
	limiter *RateLimiter
}

// NewCoinGlassClient создает новый клиент CoinGlass
func NewCoinGlassClient(cfg config.CoinGlassConfig) *CoinGlassClient {
	return &CoinGlassClient{
		cfg: cfg,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: NewRateLimiter(cfg.CallsPerMinute, time.Now),
	}
}

// ScreenerRows получает объединенные данные трех визуальных скринеров:
// цена/ОИ, цена/объем и объем/ОИ. Все три отдают одинаковый формат
// строк, поля объединяются по символу
func (c *CoinGlassClient) ScreenerRows(ctx context.Context, timeframe string) ([]models.ScreenerRow, error) {
	endpoints := []string{
		"/api/v4/perpetual/visual-screener/price-oi-change",
		"/api/v4/perpetual/visual-screener/price-volume-change",
		"/api/v4/perpetual/visual-screener/volume-oi-change",
	}

	merged := make(map[string]map[string]float64)
	var order []string
	gotAny := false

	for _, endpoint := range endpoints {
		var raw []map[string]interface{}
		params := url.Values{"timeframe": {timeframe}}
		if err := c.doRequest(ctx, endpoint, params, &raw); err != nil {
			logger.Warn("Скринер недоступен", zap.String("endpoint", endpoint), zap.Error(err))
			continue
		}
		gotAny = true

		for _, item := range raw {
			symbol, _ := item["symbol"].(string)
			if symbol == "" {
				continue
			}
			fields, ok := merged[symbol]
			if !ok {
				fields = make(map[string]float64)
				merged[symbol] = fields
				order = append(order, symbol)
			}
			for key, v := range item {
				if num, ok := v.(float64); ok {
					fields[key] = num
				}
			}
		}
	}

	if !gotAny {
		return nil, fmt.Errorf("все эндпоинты визуального скринера недоступны")
	}

	rows := make([]models.ScreenerRow, 0, len(order))
	for _, symbol := range order {
		rows = append(rows, models.ScreenerRow{Symbol: symbol, Fields: merged[symbol]})
	}
	return rows, nil
}

type heatmapResponse struct {
	Data struct {
		Longs  map[string]float64 `json:"longs"`
		Shorts map[string]float64 `json:"shorts"`
	} `json:"data"`
}

// LiquidationHeatmap получает карту ликвидаций символа за таймфрейм
func (c *CoinGlassClient) LiquidationHeatmap(ctx context.Context, symbol, timeframe string) (models.HeatmapSlice, error) {
	endpoint := fmt.Sprintf("/api/v4/futures/liquidation-heatmap/model2/%s", symbol)
	params := url.Values{"timeframe": {timeframe}}

	var resp heatmapResponse
	if err := c.doRequest(ctx, endpoint, params, &resp); err != nil {
		return models.HeatmapSlice{}, fmt.Errorf("ошибка получения карты ликвидаций %s %s: %w", symbol, timeframe, err)
	}

	return models.HeatmapSlice{
		Longs:  resp.Data.Longs,
		Shorts: resp.Data.Shorts,
	}, nil
}

// LiquidationHeatmaps получает карты ликвидаций по всем таймфреймам
// параллельно. Недоступный таймфрейм пропускается, пустой результат
// означает отсутствие данных по символу
func (c *CoinGlassClient) LiquidationHeatmaps(ctx context.Context, symbol string) (map[string]models.HeatmapSlice, error) {
	results := make(map[string]models.HeatmapSlice, len(models.HeatmapTimeframes))
	var wg sync.WaitGroup
	var mutex sync.Mutex

	for _, tf := range models.HeatmapTimeframes {
		wg.Add(1)
		go func(tf string) {
			defer wg.Done()

			slice, err := c.LiquidationHeatmap(ctx, symbol, tf)
			if err != nil {
				logger.Warn("Таймфрейм карты ликвидаций пропущен",
					zap.String("symbol", symbol), zap.String("timeframe", tf), zap.Error(err))
				return
			}

			mutex.Lock()
			results[tf] = slice
			mutex.Unlock()
		}(tf)
	}

	wg.Wait()
	return results, nil
}

// RSIHeatmap получает теплокарту RSI: символ -> значение RSI
func (c *CoinGlassClient) RSIHeatmap(ctx context.Context, timeframe string, limit int) (map[string]float64, error) {
	params := url.Values{
		"timeframe": {timeframe},
		"limit":     {fmt.Sprintf("%d", limit)},
	}

	var raw []map[string]interface{}
	if err := c.doRequest(ctx, "/api/v4/indicator/rsi-heatmap", params, &raw); err != nil {
		return nil, fmt.Errorf("ошибка получения теплокарты RSI %s: %w", timeframe, err)
	}

	result := make(map[string]float64, len(raw))
	for _, coin := range raw {
		symbol, _ := coin["symbol"].(string)
		rsi, ok := coin["rsi"].(float64)
		if symbol == "" || !ok {
			continue
		}
		result[symbol] = rsi
	}
	return result, nil
}

// RSIMultiTimeframe собирает RSI символа по всем таймфреймам.
// Недоступный таймфрейм отсутствует в результате и трактуется ниже
// по конвейеру как нейтральные 50
func (c *CoinGlassClient) RSIMultiTimeframe(ctx context.Context, symbol string) (map[string]float64, error) {
	results := make(map[string]float64, len(rsiTimeframes))

	for _, tf := range rsiTimeframes {
		heatmap, err := c.RSIHeatmap(ctx, tf, 200)
		if err != nil {
			logger.Warn("RSI таймфрейм пропущен",
				zap.String("symbol", symbol), zap.String("timeframe", tf), zap.Error(err))
			continue
		}
		if rsi, ok := heatmap[symbol]; ok {
			results[tf] = rsi
		}
	}

	return results, nil
}

// PerpetualSymbols возвращает список доступных бессрочных контрактов,
// используется для проверки соединения на старте
func (c *CoinGlassClient) PerpetualSymbols(ctx context.Context) ([]string, error) {
	var raw []map[string]interface{}
	if err := c.doRequest(ctx, "/api/v4/perpetual/symbols", nil, &raw); err != nil {
		return nil, fmt.Errorf("ошибка получения списка контрактов: %w", err)
	}

	symbols := make([]string, 0, len(raw))
	for _, item := range raw {
		symbol, _ := item["symbol"].(string)
		if symbol == "" {
			continue
		}
		if active, ok := item["active"].(bool); ok && !active {
			continue
		}
		symbols = append(symbols, symbol)
	}
	return symbols, nil
}

// doRequest выполняет GET-запрос с ограничением частоты и повторами
// с экспоненциальной задержкой на 429 и 5xx
func (c *CoinGlassClient) doRequest(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	retry := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, retry.Duration()); err != nil {
				return err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		body, retryable, err := c.once(ctx, endpoint, params)
		if err != nil {
			lastErr = err
			if !retryable {
				return err
			}
			logger.Warn("Запрос не удался, повтор",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("ошибка разбора ответа %s: %w", endpoint, err)
		}
		return nil
	}

	return fmt.Errorf("исчерпаны попытки запроса %s: %w", endpoint, lastErr)
}

func (c *CoinGlassClient) once(ctx context.Context, endpoint string, params url.Values) ([]byte, bool, error) {
	reqURL := c.cfg.BaseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("статус API %d: %s", resp.StatusCode, string(body))
	default:
		return nil, false, fmt.Errorf("статус API %d: %s", resp.StatusCode, string(body))
	}
}
