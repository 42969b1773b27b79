//go:build !windows

package filemanager

import (
	"syscall"

	"github.com/sirupsen/logrus"
)

func HasEnoughSpace(path string, requiredSpace int64) bool {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		logrus.WithError(err).Error("Failed to get filesystem stats")
		return false
	}
	availableSpace := stat.Bavail * uint64(stat.Bsize)

	logrus.WithFields(logrus.Fields{
		"required_space":  requiredSpace,
		"available_space": availableSpace,
	}).Debug("Checking available disk space")

	return availableSpace >= uint64(requiredSpace)
}
