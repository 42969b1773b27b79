package ytdlp

// Attempt is one rung of the format fallback ladder: a stream selector and
// an optional merge container. PauseAllowed is false when the attempt ends
// in a non-resumable merge, so a mid-merge suspend cannot corrupt the output.
type Attempt struct {
	Selector       string
	MergeContainer string
	PauseAllowed   bool
}

const (
	selectorBaseline   = "b"
	selectorBestMerged = "bestvideo+bestaudio/best"
	selectorAudioM4A   = "bestaudio[ext=m4a]/bestaudio[ext=mp4]/bestaudio[acodec=aac]/bestaudio"
	selectorAudioAny   = "bestaudio"
)

// baselineAttempt requests the best pre-merged single file. It closes every
// ladder so a download can still succeed without the transcode tool.
var baselineAttempt = Attempt{Selector: selectorBaseline, PauseAllowed: true}

// PlanAttempts builds the ordered fallback ladder for one download. Richer
// formats come first and degrade toward the pre-merged baseline; a later
// rung is only tried after the previous subprocess exited non-zero.
func PlanAttempts(audioOnly bool, videoFormat, audioFormat string, hasFFmpeg bool) []Attempt {
	if !hasFFmpeg {
		// Without the transcode tool neither merging nor audio extraction
		// can run, so only the pre-merged baseline is usable.
		return []Attempt{baselineAttempt}
	}

	if audioOnly {
		if audioFormat == "m4a" {
			return []Attempt{{Selector: selectorAudioM4A, PauseAllowed: true}}
		}
		return []Attempt{{Selector: selectorAudioAny, PauseAllowed: true}}
	}

	switch videoFormat {
	case "best":
		return []Attempt{baselineAttempt}
	case "mp4":
		return []Attempt{
			{Selector: selectorBestMerged, MergeContainer: "mp4"},
			baselineAttempt,
		}
	default: // mkv
		return []Attempt{
			{Selector: selectorBestMerged, MergeContainer: "mkv", PauseAllowed: true},
			{Selector: selectorBestMerged, MergeContainer: "mp4"},
			baselineAttempt,
		}
	}
}
