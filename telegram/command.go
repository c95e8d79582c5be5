package telegram

import (
	tgbotapi "github.com/yangrq1018/telegram-bot-api/v5"
)

// Command is a self-contained bot feature.
type Command interface {
	ID() tgbotapi.BotCommand

	// Serve registers the command's handlers on the bot.
	Serve(bot *Bot) error

	// Init runs after all commands are registered.
	Init()

	Authorize() Authorizer
}
