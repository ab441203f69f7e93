// Package singleinstance lets a second invocation hand its work to the
// resident process over loopback TCP.
package singleinstance

import (
	"context"
)

// Server owns the TCP endpoint and answers delegated translate requests.
type Server interface {
	// Start binds the first port of the configured range and starts accepting.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted request, or ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one delegated request waiting for its answer.
type Conn interface {
	Request() Request
	RespondSuccess(text string) error
	RespondError(msg string) error
	Close() error
}

// Request asks the resident to run one screen translation.
type Request struct {
	// TargetLanguage overrides the saved setting when not empty.
	TargetLanguage string
	// Copy asks the resident to also put the translation on the clipboard.
	Copy bool
}

// Client delegates a translate request to a running resident.
type Client interface {
	// TryStart returns delegated=false, err=nil when no resident answers.
	TryStart(ctx context.Context, req Request) (delegated bool, text string, err error)
}

func NewServer() Server { return newTCPServer() }

func NewClient() Client { return newTCPClient() }
