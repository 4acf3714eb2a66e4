package ui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/config"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/logger"
	"github.com/vincentortegajr/whale-radar-ai-1/pkg/models"
	"go.uber.org/zap"
)

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")
	// Главный контейнер - будет адаптироваться к размеру экрана
	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	// Заголовок - будет адаптироваться к размеру экрана
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	// Секция сигналов
	signalsHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#ffffff")).
				Background(secondaryColor).
				Padding(0, 1)
	signalsSectionStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(secondaryColor).
				Padding(0, 1)
	// Секция логов
	logsHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(secondaryColor).
			Padding(0, 1)
	logsSectionStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(secondaryColor).
				Padding(0, 1)
	// Футер
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Padding(0, 1)
)

// TermUI представляет терминальный интерфейс
type TermUI struct {
	signals       []*models.FusedSignal
	signalsMutex  sync.RWMutex
	logs          []string
	logsMutex     sync.RWMutex
	config        config.UIConfig
	program       *tea.Program
	selectedIndex int
	width         int
	height        int
	logFile       string // Путь к файлу логов
}

// Сообщения для обновления UI
type refreshMsg struct{}

// bubbleModel - модель для bubbletea
type bubbleModel struct {
	ui *TermUI
}

func NewTermUI(cfg config.UIConfig) (*TermUI, error) {
	ui := &TermUI{
		logs:          []string{"Whale Radar запущен. Ожидание первого сканирования..."},
		config:        cfg,
		selectedIndex: 0,
		width:         120,
		height:        40,
		logFile:       "whaleradar.json.log",
	}

	// Загружаем логи из файла при запуске
	if err := ui.loadLogsFromFile(); err != nil {
		ui.logs = append(ui.logs, fmt.Sprintf("Ошибка загрузки логов: %v", err))
	}

	// Запускаем таймер для обновления логов
	go func() {
		refresh := time.Duration(cfg.RefreshRate) * time.Millisecond
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()

		for range ticker.C {
			if err := ui.loadLogsFromFile(); err != nil {
				logger.Warn("Ошибка загрузки логов", zap.Error(err))
			}
		}
	}()

	return ui, nil
}

func (ui *TermUI) Start() {
	model := bubbleModel{ui: ui}
	ui.program = tea.NewProgram(model, tea.WithAltScreen())

	// Запускаем UI
	if _, err := ui.program.Run(); err != nil {
		fmt.Printf("Ошибка запуска UI: %v\n", err)
	}
}

// UpdateSignals принимает свежий список сигналов, отсортированный по силе
func (ui *TermUI) UpdateSignals(signals []*models.FusedSignal) {
	ui.signalsMutex.Lock()
	defer ui.signalsMutex.Unlock()

	ui.signals = signals

	if ui.program != nil {
		ui.program.Send(refreshMsg{})
	}
}

// Чтение хвоста JSON-лога
func (ui *TermUI) loadLogsFromFile() error {
	file, err := os.Open(ui.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Файл не существует, это не ошибка
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var logs []string

	// Регулярное выражение для удаления ANSI-цветов
	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)

	// Читаем строки из файла
	for scanner.Scan() {
		line := scanner.Text()

		// Пытаемся распарсить JSON
		var zapLog map[string]interface{}
		if err := json.Unmarshal([]byte(line), &zapLog); err == nil {
			level, _ := zapLog["level"].(string)
			ts, _ := zapLog["ts"].(string)
			msg, _ := zapLog["msg"].(string)

			// Удаляем ANSI-цвета из уровня логирования
			level = ansiRegex.ReplaceAllString(level, "")

			timestamp := ""
			if t, err := time.Parse("02.01.2006 - 15:04:05.999999999Z07:00", ts); err == nil {
				timestamp = t.Format("15:04:05")
			}

			formattedMsg := fmt.Sprintf("[%s] [%s] %s", timestamp, level, msg)

			// Добавляем дополнительные поля, если они есть
			for k, v := range zapLog {
				if k != "level" && k != "ts" && k != "msg" && k != "caller" {
					formattedMsg += fmt.Sprintf(" (%s: %v)", k, v)
				}
			}

			logs = append(logs, formattedMsg)
		} else {
			// Не удалось распарсить JSON, добавляем как есть
			logs = append(logs, line)
		}

		// Ограничиваем количество логов
		if len(logs) > 50 {
			logs = logs[1:]
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	ui.logsMutex.Lock()
	defer ui.logsMutex.Unlock()

	if len(logs) > 0 {
		ui.logs = logs
		if len(ui.logs) > 50 {
			ui.logs = ui.logs[len(ui.logs)-50:]
		}
	}

	return nil
}

func renderLogsSection(logs []string) string {
	header := logsHeaderStyle.Render("ЛОГИ")
	content := strings.Builder{}

	maxLogsToShow := 50
	if logsSectionStyle.GetHeight() > 8 {
		maxLogsToShow = logsSectionStyle.GetHeight() - 2
	}

	start := 0
	if len(logs) > maxLogsToShow {
		start = len(logs) - maxLogsToShow
	}

	for i := start; i < len(logs); i++ {
		log := logs[i]

		// Выделение по уровню логирования
		if strings.Contains(log, "[ERROR]") {
			log = lipgloss.NewStyle().Foreground(errorColor).Render(log)
		} else if strings.Contains(log, "[INFO]") {
			log = lipgloss.NewStyle().Foreground(successColor).Render(log)
		} else if strings.Contains(log, "[WARN]") {
			log = lipgloss.NewStyle().Foreground(warningColor).Render(log)
		} else if strings.Contains(log, "[DEBUG]") {
			log = lipgloss.NewStyle().Foreground(lipgloss.Color("#9999ff")).Render(log)
		}

		content.WriteString("  " + log + "\n")
	}

	return logsSectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			content.String(),
		),
	)
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return nil
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up":
			if m.ui.selectedIndex > 0 {
				m.ui.selectedIndex--
			}
		case "down":
			m.ui.signalsMutex.RLock()
			last := len(m.ui.signals) - 1
			m.ui.signalsMutex.RUnlock()
			if m.ui.selectedIndex < last {
				m.ui.selectedIndex++
			}
		}

	case tea.WindowSizeMsg:
		m.ui.width = msg.Width
		m.ui.height = msg.Height

	case refreshMsg:
		// Просто обновляем UI
	}

	return m, nil
}

func (m bubbleModel) View() string {
	m.ui.signalsMutex.RLock()
	m.ui.logsMutex.RLock()
	defer m.ui.signalsMutex.RUnlock()
	defer m.ui.logsMutex.RUnlock()

	title := titleStyle.Render("WHALE RADAR - Liquidation Cluster Scanner")
	signals := renderSignalsSection(m.ui.signals, m.ui.selectedIndex, m.ui.config.ShowDetails)
	logs := renderLogsSection(m.ui.logs)
	footer := footerStyle.Render("Клавиши: ↑/↓ - навигация, Q - выход")

	return appStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"\n",
			signals,
			"\n",
			logs,
			"\n",
			footer,
		),
	)
}

func renderSignalsSection(signals []*models.FusedSignal, selectedIndex int, showDetails bool) string {
	header := signalsHeaderStyle.Render("СИГНАЛЫ")
	content := strings.Builder{}

	if len(signals) == 0 {
		content.WriteString("  Ожидание данных...\n")
	} else {
		for i, signal := range signals {
			actionText := formatActionText(signal.Action, signal.Confidence)

			line := fmt.Sprintf("  %-6s %s  Сила: %3d/100  Цена: %.2f  Стоп: %.2f",
				signal.Symbol, actionText, signal.Strength, signal.CurrentPrice, signal.StopLoss)

			if showDetails && signal.Liquidation != nil {
				line += fmt.Sprintf("  Цель китов: %.2f (%s)",
					signal.Liquidation.WhaleTarget.Price, signal.Liquidation.WhaleTarget.Direction)
			}

			// Выделяем выбранную строку
			if i == selectedIndex {
				line = "> " + line[2:]
				line = lipgloss.NewStyle().Background(lipgloss.Color("#222222")).Render(line)
			}

			content.WriteString(line + "\n")

			if showDetails && i == selectedIndex && len(signal.Reasons) > 0 {
				for _, reason := range signal.Reasons {
					content.WriteString("      " + reason + "\n")
				}
			}
		}
	}

	return signalsSectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			content.String(),
		),
	)
}

func formatActionText(action, confidence string) string {
	var style lipgloss.Style

	switch action {
	case models.ActionLong:
		style = lipgloss.NewStyle().Foreground(successColor)
	case models.ActionShort:
		style = lipgloss.NewStyle().Foreground(errorColor)
	default:
		style = lipgloss.NewStyle().Foreground(warningColor)
	}
	if confidence == models.ConfidenceHigh {
		style = style.Bold(true)
	}

	return style.Render(fmt.Sprintf("%-7s", action))
}
