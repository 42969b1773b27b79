package notifier

// QueueNotifier receives in-progress download events. Fallback events fire
// when one format attempt fails and the next poorer one starts, so a
// listener can show a single "retrying" line without seeing every attempt.
type QueueNotifier interface {
	OnQueued(title string, position int)
	OnStarted(title string)
	OnFallback(title string, attempt, total int)
}

// NoopQueue is a QueueNotifier that does nothing.
var NoopQueue QueueNotifier = noopQueueNotifier{}

type noopQueueNotifier struct{}

func (noopQueueNotifier) OnQueued(string, int)        {}
func (noopQueueNotifier) OnStarted(string)            {}
func (noopQueueNotifier) OnFallback(string, int, int) {}
