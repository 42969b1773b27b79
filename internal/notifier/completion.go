package notifier

// CompletionNotifier is called when a download reaches a terminal state. The caller
// (API or Telegram bridge) provides an implementation; the engine does not know who
// started the download.
type CompletionNotifier interface {
	OnCompleted(mediaID uint, title string, files []string)
	OnFailed(mediaID uint, title string, err error)
	OnStopped(mediaID uint, title string)
}

// NoopCompletion is a CompletionNotifier that does nothing. Use when no
// notification channel is configured or in tests that only exercise the
// download flow.
var NoopCompletion CompletionNotifier = noopCompletionNotifier{}

type noopCompletionNotifier struct{}

func (noopCompletionNotifier) OnCompleted(uint, string, []string) {}
func (noopCompletionNotifier) OnFailed(uint, string, error)       {}
func (noopCompletionNotifier) OnStopped(uint, string)             {}
