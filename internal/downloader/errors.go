package downloader

import "errors"

// ErrStoppedByUser marks a download cancelled through the control surface.
// The worker treats it as a clean stop (no failure record), not an error.
var ErrStoppedByUser = errors.New("download stopped by user")

// ErrNoActiveDownload is returned by pause/resume/cancel when the worker is idle.
var ErrNoActiveDownload = errors.New("no download is currently active")

// ErrPauseNotAllowed is returned when the running attempt ends in a merge
// that cannot survive a mid-write suspend.
var ErrPauseNotAllowed = errors.New("pausing is not allowed during this format attempt")

// ErrEntryActive is returned when a queue removal targets the entry the
// worker is currently executing.
var ErrEntryActive = errors.New("entry is currently downloading, cancel it instead")
