//go:build !windows

package notification

import (
	"fmt"
	"os"
)

const (
	iconError       = 0
	iconInformation = 1
)

func showMessageBox(title, message string, _ uint32) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", title, message)
}
