package ytdlp

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

// EventKind classifies one line of tool output.
type EventKind int

const (
	EventNone EventKind = iota
	EventDownloadedFile
	EventMediaPath
	EventPlaylistItem
	EventTitle
	EventSkip
	EventConverting
	EventMerging
	EventPostProcessing
	EventProgress
)

// Event is the parsed meaning of a single output line.
type Event struct {
	Kind    EventKind
	Percent float64
	Path    string
	Title   string
	Index   int
	Total   int
}

var (
	percentLine     = regexp.MustCompile(`^(\d+(?:\.\d+)?)%$`)
	playlistLine    = regexp.MustCompile(`^\[download\] Downloading (?:item|video) (\d+) of (\d+)`)
	destinationLine = regexp.MustCompile(`^\[download\] Destination:\s*(.+)$`)
	extractingLine  = regexp.MustCompile(`^\[[^\]]+\] Extracting URL:\s*(.+)$`)
)

// postProcessorEvents maps tool stage tags to session states.
var postProcessorEvents = map[string]EventKind{
	"[ExtractAudio]":   EventConverting,
	"[VideoConvertor]": EventConverting,
	"[Merger]":         EventMerging,
	"[EmbedThumbnail]": EventPostProcessing,
	"[Metadata]":       EventPostProcessing,
	"[MoveFiles]":      EventPostProcessing,
}

// LineClassifier turns raw output lines into events. The matching is tied to
// the wording of the current yt-dlp release; when the tool changes phrasing,
// this is the one place to adjust.
type LineClassifier struct{}

func NewLineClassifier() *LineClassifier {
	return &LineClassifier{}
}

// Classify evaluates the patterns in fixed priority order; the first match
// wins and anything unrecognized maps to EventNone.
func (c *LineClassifier) Classify(line string) Event {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{Kind: EventNone}
	}

	if rest, ok := strings.CutPrefix(trimmed, DownloadedFileMarker); ok {
		return Event{Kind: EventDownloadedFile, Path: strings.TrimSpace(rest)}
	}

	if !strings.HasPrefix(trimmed, "[") && utils.IsMediaFile(trimmed) && looksLikePath(trimmed) {
		return Event{Kind: EventMediaPath, Path: trimmed}
	}

	if m := playlistLine.FindStringSubmatch(trimmed); m != nil {
		index, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		return Event{Kind: EventPlaylistItem, Index: index, Total: total}
	}

	if m := destinationLine.FindStringSubmatch(trimmed); m != nil {
		return Event{Kind: EventTitle, Title: titleFromPath(m[1])}
	}
	if m := extractingLine.FindStringSubmatch(trimmed); m != nil {
		return Event{Kind: EventTitle, Title: strings.TrimSpace(m[1])}
	}

	if isSkipLine(trimmed) {
		return Event{Kind: EventSkip}
	}

	for tag, kind := range postProcessorEvents {
		if strings.HasPrefix(trimmed, tag) {
			return Event{Kind: kind}
		}
	}
	if strings.HasPrefix(trimmed, "[Fixup") {
		return Event{Kind: EventPostProcessing}
	}

	if m := percentLine.FindStringSubmatch(trimmed); m != nil {
		percent, err := strconv.ParseFloat(m[1], 64)
		if err == nil && percent >= 0 && percent <= 100 {
			return Event{Kind: EventProgress, Percent: percent}
		}
	}

	return Event{Kind: EventNone}
}

func looksLikePath(s string) bool {
	return strings.ContainsAny(s, `/\`) || !strings.Contains(s, " ")
}

func isSkipLine(line string) bool {
	if strings.Contains(line, "has already been downloaded") ||
		strings.Contains(line, "is already present") ||
		strings.Contains(line, "already in archive") ||
		strings.Contains(line, "has already been recorded in the archive") {
		return true
	}
	return strings.HasPrefix(line, "[download]") && strings.Contains(line, "Skipping")
}

func titleFromPath(path string) string {
	return utils.BaseNameFromToolFile(strings.TrimSpace(path))
}
