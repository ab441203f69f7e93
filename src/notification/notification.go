// Package notification shows modal messages that must not go unnoticed, such
// as a failed startup check.
package notification

import (
	"strings"

	"go.uber.org/zap"
)

const maxMessageLen = 1000

// ShowBlockingError displays an error dialog and waits for the user to close it.
func ShowBlockingError(title, message string) {
	message = truncate(message)
	zap.L().Error("notification: "+title, zap.String("message", message))
	showMessageBox(title, message, iconError)
}

// ShowInfo displays an informational dialog and waits for the user to close it.
func ShowInfo(title, message string) {
	showMessageBox(title, truncate(message), iconInformation)
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen] + "..."
}
