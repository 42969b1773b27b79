package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDetectsExternalEdit(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 10)
	if err != nil {
		t.Fatal(err)
	}
	store.Enqueue("https://a.example/1", MediaTypeVideo)

	notified := make(chan struct{}, 1)
	store.OnChange(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	NewWatcher(store, 20*time.Millisecond).Start(ctx)

	f, err := os.OpenFile(filepath.Join(dir, queueFileName), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("https://a.example/manual|audio|1700000000\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("Watcher did not report the external edit within 2s")
	}

	if got := store.Count(); got != 2 {
		t.Errorf("Count() after watcher reload = %d, want 2", got)
	}
}

func TestWatcherQuietWhenUnchanged(t *testing.T) {
	store := newTestStore(t)
	store.Enqueue("https://a.example/1", MediaTypeVideo)

	notified := make(chan struct{}, 8)
	store.OnChange(func() { notified <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	NewWatcher(store, 20*time.Millisecond).Start(ctx)

	select {
	case <-notified:
		t.Error("Watcher fired a change notification without any external edit")
	case <-time.After(150 * time.Millisecond):
	}
}
