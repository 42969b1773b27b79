package bot

import (
	"fmt"

	mdsconfig "github.com/NikitaDmitryuk/media-download-server/internal/config"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Bot pushes engine notifications to a single configured Telegram chat.
type Bot struct {
	Api    *tgbotapi.BotAPI
	chatID int64
}

func InitBot(config *mdsconfig.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(config.Notify.TelegramToken)
	if err != nil {
		logrus.WithError(err).Error("Error creating bot")
		return nil, fmt.Errorf("error creating bot: %v", err)
	}
	logrus.Infof("Authorized on account %s", api.Self.UserName)
	return &Bot{Api: api, chatID: config.Notify.TelegramChatID}, nil
}

func (b *Bot) SendErrorMessage(message string) {
	logrus.Error(message)
	msg := tgbotapi.NewMessage(b.chatID, message)
	if smsg, err := b.Api.Send(msg); err != nil {
		logrus.WithError(err).Errorf("Message (%s) not sent", smsg.Text)
	}
}

func (b *Bot) SendSuccessMessage(message string) {
	msg := tgbotapi.NewMessage(b.chatID, message)
	if smsg, err := b.Api.Send(msg); err != nil {
		logrus.WithError(err).Errorf("Message (%s) not sent", smsg.Text)
	}
}
