//go:build windows

package notification

import (
	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

const (
	iconError       = windows.MB_ICONERROR
	iconInformation = windows.MB_ICONINFORMATION
)

func showMessageBox(title, message string, icon uint32) {
	titlePtr, err := windows.UTF16PtrFromString(title)
	if err != nil {
		zap.L().Warn("notification: bad title", zap.Error(err))
		return
	}
	messagePtr, err := windows.UTF16PtrFromString(message)
	if err != nil {
		zap.L().Warn("notification: bad message", zap.Error(err))
		return
	}
	if _, err := windows.MessageBox(0, messagePtr, titlePtr, windows.MB_OK|windows.MB_SETFOREGROUND|icon); err != nil {
		zap.L().Warn("notification: MessageBox failed", zap.Error(err))
	}
}
