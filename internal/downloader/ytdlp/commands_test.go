package ytdlp

import (
	"slices"
	"testing"
)

func baseOptions() Options {
	return Options{
		URL:         "https://example.com/watch?v=abc123",
		OutputDir:   "/tmp/downloads",
		TempDir:     "/tmp/temp",
		AudioFormat: "m4a",
	}
}

func argValue(t *testing.T, args []string, flag string) string {
	t.Helper()
	i := slices.Index(args, flag)
	if i < 0 {
		t.Fatalf("Args missing %s: %v", flag, args)
	}
	if i+1 >= len(args) {
		t.Fatalf("Flag %s has no value: %v", flag, args)
	}
	return args[i+1]
}

func TestBuildArgsVideo(t *testing.T) {
	opts := baseOptions()
	opts.RateLimit = "5M"
	attempt := Attempt{Selector: selectorBestMerged, MergeContainer: "mkv", PauseAllowed: true}

	args := BuildArgs(opts, attempt)

	if got := args[len(args)-1]; got != opts.URL {
		t.Errorf("Last arg = %q, want the URL %q", got, opts.URL)
	}
	if got := argValue(t, args, "-f"); got != selectorBestMerged {
		t.Errorf("Format selector = %q, want %q", got, selectorBestMerged)
	}
	if got := argValue(t, args, "--merge-output-format"); got != "mkv" {
		t.Errorf("Merge container = %q, want mkv", got)
	}
	if got := argValue(t, args, "--limit-rate"); got != "5M" {
		t.Errorf("Rate limit = %q, want 5M", got)
	}
	if !slices.Contains(args, "--no-playlist") {
		t.Errorf("Args missing --no-playlist: %v", args)
	}
	if slices.Contains(args, "-x") {
		t.Errorf("Video args must not extract audio: %v", args)
	}
	if !slices.Contains(args, "home:"+opts.OutputDir) || !slices.Contains(args, "temp:"+opts.TempDir) {
		t.Errorf("Args missing output or temp paths: %v", args)
	}
}

func TestBuildArgsBaselineHasNoMergeContainer(t *testing.T) {
	args := BuildArgs(baseOptions(), baselineAttempt)

	if slices.Contains(args, "--merge-output-format") {
		t.Errorf("Baseline attempt must not request a merge container: %v", args)
	}
	if got := argValue(t, args, "-f"); got != "b" {
		t.Errorf("Format selector = %q, want b", got)
	}
}

func TestBuildArgsAudio(t *testing.T) {
	opts := baseOptions()
	opts.AudioOnly = true
	opts.EmbedThumbnail = true

	args := BuildArgs(opts, Attempt{Selector: selectorAudioM4A, PauseAllowed: true})

	if !slices.Contains(args, "-x") {
		t.Errorf("Audio args missing -x: %v", args)
	}
	if got := argValue(t, args, "--audio-format"); got != "m4a" {
		t.Errorf("Audio format = %q, want m4a", got)
	}
	if !slices.Contains(args, "--embed-thumbnail") {
		t.Errorf("Audio args missing --embed-thumbnail: %v", args)
	}
}

func TestBuildArgsCookiesFileWinsOverBrowser(t *testing.T) {
	opts := baseOptions()
	opts.CookiesFile = "/etc/mds/cookies.txt"
	opts.CookiesBrowser = "firefox"

	args := BuildArgs(opts, baselineAttempt)

	if got := argValue(t, args, "--cookies"); got != "/etc/mds/cookies.txt" {
		t.Errorf("Cookies file = %q, want /etc/mds/cookies.txt", got)
	}
	if slices.Contains(args, "--cookies-from-browser") {
		t.Errorf("Cookies file must suppress --cookies-from-browser: %v", args)
	}
}

func TestBuildArgsCookiesBrowser(t *testing.T) {
	opts := baseOptions()
	opts.CookiesBrowser = "firefox"

	args := BuildArgs(opts, baselineAttempt)

	if got := argValue(t, args, "--cookies-from-browser"); got != "firefox" {
		t.Errorf("Cookies browser = %q, want firefox", got)
	}
}

func TestBuildArgsOptionalFlags(t *testing.T) {
	opts := baseOptions()
	opts.Playlist = true
	opts.ArchiveFile = "/var/lib/mds/archive.txt"
	opts.FfmpegPath = "/opt/ffmpeg/bin/ffmpeg"

	args := BuildArgs(opts, baselineAttempt)

	if !slices.Contains(args, "--yes-playlist") {
		t.Errorf("Args missing --yes-playlist: %v", args)
	}
	if got := argValue(t, args, "--download-archive"); got != opts.ArchiveFile {
		t.Errorf("Archive file = %q, want %q", got, opts.ArchiveFile)
	}
	if got := argValue(t, args, "--ffmpeg-location"); got != opts.FfmpegPath {
		t.Errorf("Ffmpeg location = %q, want %q", got, opts.FfmpegPath)
	}
}

func TestBuildArgsDefaultFfmpegOmitted(t *testing.T) {
	opts := baseOptions()
	opts.FfmpegPath = "ffmpeg"

	args := BuildArgs(opts, baselineAttempt)

	if slices.Contains(args, "--ffmpeg-location") {
		t.Errorf("PATH-resolved ffmpeg must not pin a location: %v", args)
	}
}
