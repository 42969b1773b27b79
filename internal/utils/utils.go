package utils

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

const maxFilenameRunes = 250

var (
	unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.()&]`)
	spaceRuns           = regexp.MustCompile(`\s+`)
	streamSuffix        = regexp.MustCompile(`\.f\d+(-\d+)?$`)
	fragmentSuffix      = regexp.MustCompile(`\.part-Frag\d+$`)
)

// artifactExts are extensions the external tool appends to output files while
// working: partials, merge temporaries, media containers and thumbnails.
var artifactExts = map[string]bool{
	".part": true, ".ytdl": true, ".ytdlp": true, ".temp": true, ".tmp": true,
	".mp4": true, ".mkv": true, ".webm": true, ".m4a": true, ".mp3": true,
	".opus": true, ".flac": true, ".wav": true, ".aac": true, ".ogg": true,
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
}

// SanitizeFilename strips characters unsafe for a filename, collapses
// whitespace and caps the result so it fits common filesystem limits.
func SanitizeFilename(name string) string {
	s := unsafeFilenameChars.ReplaceAllString(name, "")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > maxFilenameRunes {
		s = string(runes[:maxFilenameRunes])
	}
	return strings.TrimRight(s, " .")
}

// BaseNameFromToolFile recovers the output base name from any intermediate
// artifact the external tool leaves behind, e.g.
// "Title-abc.f137.mp4.part" and "Title-abc.temp.mkv" both yield "Title-abc".
func BaseNameFromToolFile(name string) string {
	base := filepath.Base(name)
	for {
		if m := fragmentSuffix.FindString(base); m != "" {
			base = strings.TrimSuffix(base, m)
			continue
		}
		if ext := filepath.Ext(base); ext != "" && artifactExts[strings.ToLower(ext)] {
			base = strings.TrimSuffix(base, ext)
			continue
		}
		if m := streamSuffix.FindString(base); m != "" {
			base = strings.TrimSuffix(base, m)
			continue
		}
		return base
	}
}

// IsIntermediateFile reports whether name looks like a tool working file
// rather than a final output: partials, split streams, merge temporaries,
// fragments and thumbnails.
func IsIntermediateFile(name string) bool {
	base := filepath.Base(name)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".part", ".ytdl", ".ytdlp", ".temp", ".tmp", ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	if strings.Contains(strings.ToLower(base), ".temp.") {
		return true
	}
	trimmed := strings.TrimSuffix(base, filepath.Ext(base))
	if streamSuffix.MatchString(trimmed) {
		return true
	}
	return fragmentSuffix.MatchString(base) || strings.Contains(base, ".part-Frag")
}

// IsMediaFile reports whether the path carries a known media extension.
func IsMediaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mkv", ".webm", ".m4a", ".mp3", ".opus", ".flac", ".wav", ".aac", ".ogg":
		return true
	}
	return false
}

func IsValidLink(text string) bool {
	parsedURL, err := url.ParseRequestURI(text)
	if err != nil {
		return false
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false
	}

	re := regexp.MustCompile(`^[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return re.MatchString(parsedURL.Host)
}
