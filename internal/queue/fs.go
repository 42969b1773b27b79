package queue

import (
	"os"
	"path/filepath"

	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

// writeFileAtomic stages the content in a temp file next to the target and
// renames it over, so readers never observe a partially written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".queue-tmp-*")
	if err != nil {
		return utils.WrapError(err, "failed to create temp file", map[string]any{
			"target": path,
		})
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return utils.WrapError(err, "failed to write temp file", map[string]any{
			"target": path,
		})
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return utils.WrapError(err, "failed to chmod temp file", map[string]any{
			"target": path,
		})
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return utils.WrapError(err, "failed to close temp file", map[string]any{
			"target": path,
		})
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return utils.WrapError(err, "failed to rename temp file over target", map[string]any{
			"target": path,
		})
	}
	return nil
}
