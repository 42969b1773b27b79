package ytdlp

const defaultBinary = "yt-dlp"

// DownloadedFileMarker prefixes the resolved output path printed after each
// file is moved into place. The progress parser keys on it.
const DownloadedFileMarker = "DownloadedFile:"

// outputTemplate names files by title and source id so different sources
// with identical titles never collide on disk.
const outputTemplate = "%(title)s-%(id)s.%(ext)s"

// progressTemplate reduces progress output to one bare percent token per
// line, which keeps the parser independent of the tool's bar rendering.
const progressTemplate = "%(progress._percent_str)s"

// Options carries the per-job invocation parameters.
type Options struct {
	URL            string
	AudioOnly      bool
	OutputDir      string
	TempDir        string
	RateLimit      string
	Playlist       bool
	AudioFormat    string
	EmbedThumbnail bool
	CookiesFile    string
	CookiesBrowser string
	ArchiveFile    string
	FfmpegPath     string
}

// BuildArgs assembles the tool argv for one fallback attempt. The URL is
// always the final argument.
func BuildArgs(opts Options, attempt Attempt) []string {
	args := []string{
		"--newline",
		"--progress",
		"--progress-template", progressTemplate,
		"--print", "after_move:" + DownloadedFileMarker + "%(filepath)s",
		"--no-simulate",
		"--no-overwrites",
		"--continue",
		"-f", attempt.Selector,
		"-o", outputTemplate,
		"--restrict-filenames",
		"--trim-filenames", "100",
		"--retries", "15",
		"--fragment-retries", "15",
		"--retry-sleep", "3",
		"--socket-timeout", "30",
		"--extractor-retries", "3",
		"--paths", "home:" + opts.OutputDir,
		"--paths", "temp:" + opts.TempDir,
	}

	if opts.RateLimit != "" {
		args = append(args, "--limit-rate", opts.RateLimit)
	}
	if opts.Playlist {
		args = append(args, "--yes-playlist")
	} else {
		args = append(args, "--no-playlist")
	}
	if attempt.MergeContainer != "" {
		args = append(args, "--merge-output-format", attempt.MergeContainer)
	}
	if opts.AudioOnly {
		args = append(args, "-x", "--audio-format", opts.AudioFormat)
		if opts.EmbedThumbnail {
			args = append(args, "--embed-thumbnail")
		}
	}
	if opts.CookiesFile != "" {
		args = append(args, "--cookies", opts.CookiesFile)
	} else if opts.CookiesBrowser != "" {
		args = append(args, "--cookies-from-browser", opts.CookiesBrowser)
	}
	if opts.ArchiveFile != "" {
		args = append(args, "--download-archive", opts.ArchiveFile)
	}
	if opts.FfmpegPath != "" && opts.FfmpegPath != "ffmpeg" {
		args = append(args, "--ffmpeg-location", opts.FfmpegPath)
	}

	return append(args, opts.URL)
}
