package storage

import (
	"context"
	"fmt"
	"strings"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/config"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/models"
)

// Storage интерфейс хранилища сигналов: только добавление и чтение
// истории, сигналы никогда не изменяются и не удаляются
type Storage interface {
	SaveSignal(ctx context.Context, signal *models.FusedSignal) error
	GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.FusedSignal, error)
	Close()
}

// InfluxDBStorage реализует интерфейс Storage с использованием InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPI
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(context.Background())
	if err != nil {
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPI(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.writeAPI.Flush()
	s.client.Close()
}

// SaveSignal сохраняет итоговый сигнал, только добавление
func (s *InfluxDBStorage) SaveSignal(ctx context.Context, signal *models.FusedSignal) error {
	takeProfits := make([]string, len(signal.TakeProfits))
	for i, tp := range signal.TakeProfits {
		takeProfits[i] = fmt.Sprintf("%.4f", tp)
	}

	point := influxdb2.NewPoint(
		"signals",
		map[string]string{
			"symbol": signal.Symbol,
			"action": signal.Action,
		},
		map[string]interface{}{
			"confidence":       signal.Confidence,
			"strength":         signal.Strength,
			"price":            signal.CurrentPrice,
			"stop_loss":        signal.StopLoss,
			"take_profits":     strings.Join(takeProfits, ","),
			"momentum_score":   signal.MomentumScore,
			"liq_direction":    signal.LiquidationDirection,
			"rsi_status":       signal.RSIStatus,
			"reasons":          strings.Join(signal.Reasons, "; "),
		},
		signal.Timestamp,
	)

	s.writeAPI.WritePoint(point)
	s.writeAPI.Flush()

	return nil
}

// GetSignalHistory получает историю сигналов по символу
func (s *InfluxDBStorage) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.FusedSignal, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -30d)
			|> filter(fn: (r) => r._measurement == "signals")
			|> filter(fn: (r) => r.symbol == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, s.bucket, symbol, limit)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории сигналов: %w", err)
	}

	var signals []*models.FusedSignal
	for result.Next() {
		record := result.Record()

		action, _ := record.ValueByKey("action").(string)
		confidence, _ := record.ValueByKey("confidence").(string)
		strength, _ := record.ValueByKey("strength").(int64)
		price, _ := record.ValueByKey("price").(float64)
		stopLoss, _ := record.ValueByKey("stop_loss").(float64)
		momentumScore, _ := record.ValueByKey("momentum_score").(int64)
		liqDirection, _ := record.ValueByKey("liq_direction").(string)
		rsiStatus, _ := record.ValueByKey("rsi_status").(string)

		signals = append(signals, &models.FusedSignal{
			Symbol:               symbol,
			Action:               action,
			Confidence:           confidence,
			Strength:             int(strength),
			CurrentPrice:         price,
			StopLoss:             stopLoss,
			MomentumScore:        int(momentumScore),
			LiquidationDirection: liqDirection,
			RSIStatus:            rsiStatus,
			Timestamp:            record.Time(),
		})
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return signals, nil
}
