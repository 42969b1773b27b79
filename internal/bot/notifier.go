package bot

import (
	"fmt"

	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

// Notifier adapts the Bot to the engine's notification interfaces.
type Notifier struct {
	bot *Bot
}

func NewNotifier(b *Bot) *Notifier {
	return &Notifier{bot: b}
}

func (n *Notifier) OnCompleted(_ uint, title string, files []string) {
	if len(files) > 1 {
		n.bot.SendSuccessMessage(fmt.Sprintf("Completed: %s (%d files)", title, len(files)))
		return
	}
	n.bot.SendSuccessMessage("Completed: " + title)
}

func (n *Notifier) OnFailed(_ uint, title string, err error) {
	n.bot.SendErrorMessage(fmt.Sprintf("Failed: %s (%s)", title, utils.DownloadErrorMessage(err)))
}

func (n *Notifier) OnStopped(_ uint, title string) {
	n.bot.SendSuccessMessage("Cancelled: " + title)
}

func (n *Notifier) OnQueued(title string, position int) {
	n.bot.SendSuccessMessage(fmt.Sprintf("Queued at position %d: %s", position, title))
}

func (n *Notifier) OnStarted(title string) {
	n.bot.SendSuccessMessage("Downloading: " + title)
}

func (n *Notifier) OnFallback(title string, attempt, total int) {
	n.bot.SendSuccessMessage(fmt.Sprintf("Retrying with fallback format (%d/%d): %s", attempt, total, title))
}
