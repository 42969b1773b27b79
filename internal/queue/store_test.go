package queue

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestEnqueueDequeueOrder(t *testing.T) {
	store := newTestStore(t)

	urls := []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"}
	for _, u := range urls {
		added, err := store.Enqueue(u, MediaTypeVideo)
		if err != nil {
			t.Fatalf("Enqueue(%s) error: %v", u, err)
		}
		if !added {
			t.Fatalf("Enqueue(%s) = false, want true", u)
		}
	}

	if got := store.Count(); got != 3 {
		t.Fatalf("Count() = %d, want 3", got)
	}

	for _, want := range urls {
		item, ok := store.DequeueNext()
		if !ok {
			t.Fatalf("DequeueNext() returned no item, want %s", want)
		}
		if item.URL != want {
			t.Errorf("DequeueNext().URL = %s, want %s", item.URL, want)
		}
		if removed, err := store.Remove("", ""); err != nil || !removed {
			t.Fatalf("Remove head failed: removed=%v err=%v", removed, err)
		}
	}

	if _, ok := store.DequeueNext(); ok {
		t.Error("DequeueNext() on empty queue returned an item")
	}
}

func TestEnqueueDuplicate(t *testing.T) {
	store := newTestStore(t)

	added, _ := store.Enqueue("https://a.example/1", MediaTypeVideo)
	if !added {
		t.Fatal("First enqueue rejected")
	}
	added, _ = store.Enqueue("https://a.example/1", MediaTypeVideo)
	if added {
		t.Error("Duplicate enqueue accepted, want rejection")
	}

	// Same URL with a different media type is a distinct request.
	added, _ = store.Enqueue("https://a.example/1", MediaTypeAudio)
	if !added {
		t.Error("Same URL with different media type rejected, want acceptance")
	}

	if got := store.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
}

func TestRemoveSpecificEntry(t *testing.T) {
	store := newTestStore(t)
	store.Enqueue("https://a.example/1", MediaTypeVideo)
	store.Enqueue("https://a.example/2", MediaTypeVideo)
	store.Enqueue("https://a.example/3", MediaTypeVideo)

	removed, err := store.Remove("https://a.example/2", MediaTypeVideo)
	if err != nil || !removed {
		t.Fatalf("Remove returned removed=%v err=%v", removed, err)
	}

	snapshot := store.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Snapshot length = %d, want 2", len(snapshot))
	}
	if snapshot[0].URL != "https://a.example/1" || snapshot[1].URL != "https://a.example/3" {
		t.Errorf("Remaining queue = [%s %s], want [1 3]", snapshot[0].URL, snapshot[1].URL)
	}

	removed, _ = store.Remove("https://a.example/99", "")
	if removed {
		t.Error("Remove of absent URL reported success")
	}
}

func TestQueueSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir, 10)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	store.Enqueue("https://a.example/1", MediaTypeVideo)
	store.Enqueue("https://a.example/2", MediaTypeAudio)

	reopened, err := NewStore(dir, 10)
	if err != nil {
		t.Fatalf("NewStore after restart failed: %v", err)
	}

	snapshot := reopened.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Queue length after restart = %d, want 2", len(snapshot))
	}
	if snapshot[0].URL != "https://a.example/1" || snapshot[0].MediaType != MediaTypeVideo {
		t.Errorf("First entry = %+v, want video https://a.example/1", snapshot[0])
	}
	if snapshot[1].URL != "https://a.example/2" || snapshot[1].MediaType != MediaTypeAudio {
		t.Errorf("Second entry = %+v, want audio https://a.example/2", snapshot[1])
	}
}

func TestRepairGluedRecords(t *testing.T) {
	dir := t.TempDir()
	raw := "https://a.example/1,https://a.example/2 https://a.example/3"
	if err := os.WriteFile(filepath.Join(dir, queueFileName), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(dir, 10)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	snapshot := store.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("Repaired queue length = %d, want 3", len(snapshot))
	}
	for i, want := range []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"} {
		if snapshot[i].URL != want {
			t.Errorf("Entry %d URL = %s, want %s", i, snapshot[i].URL, want)
		}
		if snapshot[i].MediaType != MediaTypeVideo {
			t.Errorf("Entry %d MediaType = %s, want video default", i, snapshot[i].MediaType)
		}
	}

	// The file must have been rewritten in normalized form.
	data, err := os.ReadFile(filepath.Join(dir, queueFileName))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Rewritten file has %d lines, want 3", len(lines))
	}
	for _, line := range lines {
		if strings.Count(line, "|") != 2 {
			t.Errorf("Rewritten line %q lacks normalized url|type|timestamp form", line)
		}
	}
}

func TestRepairMissingTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	raw := "https://a.example/1|video|1700000000"
	if err := os.WriteFile(filepath.Join(dir, queueFileName), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(dir, 10)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if got := store.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}

	data, err := os.ReadFile(filepath.Join(dir, queueFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("Repaired file still lacks trailing newline")
	}
}

func TestAddFailedSanitizesReason(t *testing.T) {
	store := newTestStore(t)

	reason := "line one\nline two | with pipe\rand more   spaces " + strings.Repeat("x", 300)
	item := Item{URL: "https://a.example/1", MediaType: MediaTypeVideo}
	if err := store.AddFailed(item, reason); err != nil {
		t.Fatalf("AddFailed error: %v", err)
	}

	failed := store.ListFailed()
	if len(failed) != 1 {
		t.Fatalf("ListFailed length = %d, want 1", len(failed))
	}
	got := failed[0].Reason
	if strings.ContainsAny(got, "|\n\r") {
		t.Errorf("Sanitized reason still contains separators: %q", got)
	}
	if len([]rune(got)) > 200 {
		t.Errorf("Sanitized reason length = %d, want <= 200", len([]rune(got)))
	}
	if !strings.HasPrefix(got, "line one line two") {
		t.Errorf("Sanitized reason = %q, want collapsed whitespace prefix", got)
	}
}

func TestRetryFailedAppendsToTail(t *testing.T) {
	store := newTestStore(t)
	store.Enqueue("https://a.example/queued", MediaTypeVideo)
	store.AddFailed(Item{URL: "https://a.example/failed1", MediaType: MediaTypeVideo}, "network error")
	store.AddFailed(Item{URL: "https://a.example/failed2", MediaType: MediaTypeAudio}, "network error")

	moved, err := store.RetryFailed()
	if err != nil {
		t.Fatalf("RetryFailed error: %v", err)
	}
	if moved != 2 {
		t.Errorf("RetryFailed moved %d, want 2", moved)
	}

	snapshot := store.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("Queue length = %d, want 3", len(snapshot))
	}
	if snapshot[0].URL != "https://a.example/queued" {
		t.Errorf("Head = %s, retried entries must go to the tail", snapshot[0].URL)
	}
	if snapshot[1].URL != "https://a.example/failed1" || snapshot[2].URL != "https://a.example/failed2" {
		t.Errorf("Tail = [%s %s], want failed entries in order", snapshot[1].URL, snapshot[2].URL)
	}
	if got := len(store.ListFailed()); got != 0 {
		t.Errorf("Failed list length after retry = %d, want 0", got)
	}
}

func TestRetryFailedItemMovesOneEntry(t *testing.T) {
	store := newTestStore(t)
	store.AddFailed(Item{URL: "https://a.example/failed1", MediaType: MediaTypeVideo}, "network error")
	store.AddFailed(Item{URL: "https://a.example/failed2", MediaType: MediaTypeVideo}, "format error")

	moved, err := store.RetryFailedItem("https://a.example/failed2", MediaTypeVideo)
	if err != nil {
		t.Fatalf("RetryFailedItem error: %v", err)
	}
	if !moved {
		t.Fatal("RetryFailedItem = false, want true")
	}

	snapshot := store.Snapshot()
	if len(snapshot) != 1 || snapshot[0].URL != "https://a.example/failed2" {
		t.Errorf("Queue = %v, want just the retried entry", snapshot)
	}
	failed := store.ListFailed()
	if len(failed) != 1 || failed[0].URL != "https://a.example/failed1" {
		t.Errorf("Failed = %v, want the untouched entry", failed)
	}

	if moved, _ := store.RetryFailedItem("https://a.example/unknown", ""); moved {
		t.Error("RetryFailedItem for an unknown URL = true, want false")
	}
}

func TestFailedSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir, 10)
	if err != nil {
		t.Fatal(err)
	}
	store.AddFailed(Item{URL: "https://a.example/1", MediaType: MediaTypeVideo}, "no formats found")

	reopened, err := NewStore(dir, 10)
	if err != nil {
		t.Fatal(err)
	}
	failed := reopened.ListFailed()
	if len(failed) != 1 {
		t.Fatalf("Failed length after restart = %d, want 1", len(failed))
	}
	if failed[0].Reason != "no formats found" {
		t.Errorf("Reason = %q, want %q", failed[0].Reason, "no formats found")
	}
}

func TestHistoryCapAndOrder(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 3)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		entry := HistoryEntry{
			ID:        strconv.Itoa(i),
			URL:       "https://a.example/" + strconv.Itoa(i),
			MediaType: MediaTypeVideo,
			Success:   true,
		}
		if err := store.AppendHistory(entry); err != nil {
			t.Fatalf("AppendHistory error: %v", err)
		}
	}

	history := store.ListHistory(0)
	if len(history) != 3 {
		t.Fatalf("History length = %d, want cap of 3", len(history))
	}
	if history[0].URL != "https://a.example/4" {
		t.Errorf("Newest entry = %s, want the last appended", history[0].URL)
	}

	limited := store.ListHistory(2)
	if len(limited) != 2 {
		t.Errorf("ListHistory(2) length = %d, want 2", len(limited))
	}

	reopened, err := NewStore(dir, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(reopened.ListHistory(0)); got != 3 {
		t.Errorf("History length after restart = %d, want 3", got)
	}
}

func TestCorruptHistoryToleratedOnLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, historyFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(dir, 10)
	if err != nil {
		t.Fatalf("NewStore failed on corrupt history: %v", err)
	}
	if got := len(store.ListHistory(0)); got != 0 {
		t.Errorf("History length = %d, want 0 after corrupt file", got)
	}
}

func TestChangeNotifications(t *testing.T) {
	store := newTestStore(t)

	var fired atomic.Int32
	store.OnChange(func() { fired.Add(1) })

	store.Enqueue("https://a.example/1", MediaTypeVideo)
	if fired.Load() == 0 {
		t.Error("OnChange not fired after Enqueue")
	}

	before := fired.Load()
	store.Remove("", "")
	if fired.Load() == before {
		t.Error("OnChange not fired after Remove")
	}
}

func TestReloadPicksUpExternalAppend(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 10)
	if err != nil {
		t.Fatal(err)
	}
	store.Enqueue("https://a.example/1", MediaTypeVideo)

	// Simulate an operator appending a record by hand.
	f, err := os.OpenFile(filepath.Join(dir, queueFileName), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("https://a.example/manual|video|1700000000\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	changed, err := store.Reload()
	if err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if !changed {
		t.Fatal("Reload did not detect the external append")
	}
	if got := store.Count(); got != 2 {
		t.Errorf("Count() after reload = %d, want 2", got)
	}

	changed, err = store.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("Reload reported a change with no external edit")
	}
}
