//go:build windows

package filemanager

import (
	"syscall"
	"unsafe"

	"github.com/sirupsen/logrus"
)

func HasEnoughSpace(path string, requiredSpace int64) bool {
	kernel32, err := syscall.LoadDLL("kernel32.dll")
	if err != nil {
		logrus.WithError(err).Error("Failed to load kernel32")
		return true
	}
	getDiskFreeSpaceEx, err := kernel32.FindProc("GetDiskFreeSpaceExW")
	if err != nil {
		logrus.WithError(err).Error("Failed to resolve GetDiskFreeSpaceExW")
		return true
	}

	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return true
	}

	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	ret, _, callErr := getDiskFreeSpaceEx.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&freeBytesAvailable)),
		uintptr(unsafe.Pointer(&totalBytes)),
		uintptr(unsafe.Pointer(&totalFreeBytes)),
	)
	if ret == 0 {
		logrus.WithError(callErr).Error("Failed to get filesystem stats")
		return false
	}

	logrus.WithFields(logrus.Fields{
		"required_space":  requiredSpace,
		"available_space": freeBytesAvailable,
	}).Debug("Checking available disk space")

	return freeBytesAvailable >= uint64(requiredSpace)
}
