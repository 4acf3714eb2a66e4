package notifier

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/vincentortegajr/whale-radar-ai-1/internal/config"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/logger"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/models"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// messageSender минимальная поверхность telebot, подменяется в тестах
type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramNotifier отправляет форматированные оповещения в Telegram.
// Дедупликация по ключу символ+действие+час: повторный сигнал в тот же
// час не отправляется
type TelegramNotifier struct {
	bot    messageSender
	chatID int64

	mu         sync.Mutex
	sentAlerts map[string]time.Time
	now        func() time.Time
}

// NewTelegramNotifier создает нотификатор и проверяет токен бота
func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token: cfg.BotToken,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram-бота: %w", err)
	}

	return &TelegramNotifier{
		bot:        bot,
		chatID:     cfg.ChatID,
		sentAlerts: make(map[string]time.Time),
		now:        time.Now,
	}, nil
}

// newWithSender конструктор для тестов с подменой отправителя и часов
func newWithSender(sender messageSender, chatID int64, now func() time.Time) *TelegramNotifier {
	return &TelegramNotifier{
		bot:        sender,
		chatID:     chatID,
		sentAlerts: make(map[string]time.Time),
		now:        now,
	}
}

// Deliver отправляет сигнал, если такой же не уходил в текущем часе.
// NEUTRAL-сигналы не отправляются
func (n *TelegramNotifier) Deliver(signal *models.FusedSignal) error {
	if signal.Action == models.ActionNeutral {
		return nil
	}

	key := alertKey(signal, n.now().UTC())

	n.mu.Lock()
	if _, seen := n.sentAlerts[key]; seen {
		n.mu.Unlock()
		logger.Info("Дубликат оповещения пропущен", zap.String("key", key))
		return nil
	}
	n.mu.Unlock()

	message := FormatSignal(signal)
	if _, err := n.bot.Send(tele.ChatID(n.chatID), message, tele.ModeMarkdown, tele.NoPreview); err != nil {
		return fmt.Errorf("ошибка отправки оповещения: %w", err)
	}

	n.mu.Lock()
	n.sentAlerts[key] = n.now().UTC()
	n.mu.Unlock()

	logger.Info("Оповещение отправлено",
		zap.String("symbol", signal.Symbol),
		zap.String("action", signal.Action))
	return nil
}

// DeliverBatch отправляет серию сигналов с паузой между сообщениями
func (n *TelegramNotifier) DeliverBatch(signals []*models.FusedSignal) {
	for _, signal := range signals {
		if err := n.Deliver(signal); err != nil {
			logger.Error("Оповещение не доставлено", zap.String("symbol", signal.Symbol), zap.Error(err))
		}
		time.Sleep(time.Second)
	}
}

// CleanupOldAlerts удаляет записи дедупликации старше часа,
// вызывается раз в цикл сканирования
func (n *TelegramNotifier) CleanupOldAlerts() {
	cutoff := n.now().UTC().Add(-time.Hour)

	n.mu.Lock()
	defer n.mu.Unlock()
	for key, sentAt := range n.sentAlerts {
		if sentAt.Before(cutoff) {
			delete(n.sentAlerts, key)
		}
	}
}

// SendError отправляет оповещение об ошибке сканирования
func (n *TelegramNotifier) SendError(errorType, message string) error {
	text := fmt.Sprintf("⚠️ *WHALE RADAR ERROR*\n\n*%s*\n%s", errorType, message)
	if _, err := n.bot.Send(tele.ChatID(n.chatID), text, tele.ModeMarkdown); err != nil {
		return fmt.Errorf("ошибка отправки оповещения об ошибке: %w", err)
	}
	return nil
}

func alertKey(signal *models.FusedSignal, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", signal.Symbol, signal.Action, now.Hour())
}

// FormatSignal превращает сигнал в человекочитаемое сообщение
func FormatSignal(signal *models.FusedSignal) string {
	var emoji string
	switch signal.Action {
	case models.ActionLong:
		emoji = "🟢"
	case models.ActionShort:
		emoji = "🔴"
	default:
		emoji = "⚪"
	}

	confEmoji := map[string]string{
		models.ConfidenceHigh:   "🔥",
		models.ConfidenceMedium: "⚡",
		models.ConfidenceLow:    "⚠️",
	}[signal.Confidence]

	var b strings.Builder
	fmt.Fprintf(&b, "🐋 *WHALE RADAR ALERT* 🎯\n\n")
	fmt.Fprintf(&b, "%s *$%s - %s SIGNAL*\n", emoji, signal.Symbol, signal.Action)
	fmt.Fprintf(&b, "━━━━━━━━━━━━━━━━━━━━━\n\n")

	fmt.Fprintf(&b, "📊 *MOMENTUM INDICATORS:*\n")
	fmt.Fprintf(&b, "• Price Change: %+.2f%%\n", signal.Screener.Metric.PriceChangePct)
	fmt.Fprintf(&b, "• Volume Spike: %+.0f%%\n", signal.Screener.Metric.VolumeChangePct)
	fmt.Fprintf(&b, "• Open Interest: %+.1f%%\n", signal.Screener.Metric.OIChangePct)
	fmt.Fprintf(&b, "• Momentum Score: %d/100\n\n", signal.MomentumScore)

	if liq := signal.Liquidation; liq != nil {
		fmt.Fprintf(&b, "💧 *LIQUIDATION ANALYSIS:*\n")
		fmt.Fprintf(&b, "• Direction: %s\n", signal.LiquidationDirection)
		fmt.Fprintf(&b, "• Short Liquidations: $%.1fM\n", liq.TotalShort/1e6)
		fmt.Fprintf(&b, "• Long Liquidations: $%.1fM\n", liq.TotalLong/1e6)
		fmt.Fprintf(&b, "• Imbalance: %+.1f%%\n", liq.ImbalancePct)
		fmt.Fprintf(&b, "• Whale Target: $%.2f (%s)\n", liq.WhaleTarget.Price, liq.WhaleTarget.Direction)
		if rr := riskRewardRatio(signal); rr > 0 {
			fmt.Fprintf(&b, "• Risk/Reward: %.1f:1\n", rr)
		}
		b.WriteString("\n")
	}

	if rsi := signal.RSI; rsi != nil {
		fmt.Fprintf(&b, "📈 *RSI CONFIRMATION:*\n")
		fmt.Fprintf(&b, "• 1h RSI: %.0f (%s)\n", rsi.Value("1h"), signal.RSIStatus)
		fmt.Fprintf(&b, "• 4h RSI: %.0f\n", rsi.Value("4h"))
		fmt.Fprintf(&b, "• 1d RSI: %.0f\n", rsi.Value("1d"))
		fmt.Fprintf(&b, "• Confluence Score: %d/100\n\n", rsi.ConfluenceScore)
	}

	if len(signal.ScaleInZones) > 0 {
		fmt.Fprintf(&b, "🎯 *SCALE-IN ZONES:*\n")
		for i, zone := range signal.ScaleInZones {
			fmt.Fprintf(&b, "• Entry %d: $%.2f (%d%%)\n", i+1, zone.Price, zone.PositionPct)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "• Stop Loss: $%.2f\n\n", signal.StopLoss)

	fmt.Fprintf(&b, "💰 *TAKE PROFIT TARGETS:*\n")
	for i, tp := range signal.TakeProfits {
		if i >= 3 {
			break
		}
		tpPct := math.Abs((tp - signal.CurrentPrice) / signal.CurrentPrice * 100)
		fmt.Fprintf(&b, "• TP%d: $%.2f (%.1f%%)\n", i+1, tp, tpPct)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s *Signal Strength: %d/100*\n", confEmoji, signal.Strength)
	fmt.Fprintf(&b, "*Confidence: %s*\n\n", signal.Confidence)

	if len(signal.Reasons) > 0 {
		fmt.Fprintf(&b, "📝 *Analysis:*\n")
		for _, reason := range signal.Reasons {
			fmt.Fprintf(&b, "• %s\n", reason)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "📊 *Quick Links:*\n")
	fmt.Fprintf(&b, "[Liquidation Map](https://www.coinglass.com/pro/futures/LiquidationHeatMapNew?coin=%s)\n", signal.Symbol)
	fmt.Fprintf(&b, "[Visual Screener](https://www.coinglass.com/pro/i/VisualScreener)\n\n")

	fmt.Fprintf(&b, "⏰ *Alert Time: %s*", signal.Timestamp.Format("15:04:05 UTC"))

	return b.String()
}

func riskRewardRatio(signal *models.FusedSignal) float64 {
	risk := math.Abs(signal.CurrentPrice - signal.StopLoss)
	if risk == 0 || len(signal.TakeProfits) == 0 {
		return 0
	}
	reward := math.Abs(signal.TakeProfits[0] - signal.CurrentPrice)
	return reward / risk
}
