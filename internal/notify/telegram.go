package notify

import (
	"fmt"

	"labkiosk/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier шлет сообщения в служебный чат персонала лаборатории.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zerolog.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug

	logger.Info().Str("bot", bot.Self.UserName).Int64("chat_id", cfg.StaffChatID).Msg("telegram notifier ready")

	return &TelegramNotifier{
		bot:    bot,
		chatID: cfg.StaffChatID,
		logger: logger,
	}, nil
}

func (n *TelegramNotifier) NotifyStaff(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send staff notification: %w", err)
	}
	return nil
}

// LogNotifier пишет уведомления в лог. Используется, когда Telegram выключен.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyStaff(text string) error {
	n.logger.Info().Str("notification", text).Msg("staff notification")
	return nil
}
