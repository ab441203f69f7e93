// Package session delivers the outcome of a capture session to whoever asked
// for it: the on-screen panel, a delegated CLI invocation or stdout.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"

	"screen-translate-llm/src/singleinstance"
)

type ResultTarget interface {
	OnSuccess(text string) error
	OnFailure(err error) error
}

// Clipboard is the subset of the system clipboard targets need.
type Clipboard interface {
	WriteText(text string) error
}

// PanelTarget is used for hotkey and tray sessions. The result panel already
// shows the translation, so nothing else happens.
type PanelTarget struct{}

func (PanelTarget) OnSuccess(string) error { return nil }

func (PanelTarget) OnFailure(error) error { return nil }

// StdoutTarget prints the translation for a standalone run-once session,
// copying it first when Clipboard is set.
type StdoutTarget struct {
	Writer    io.Writer
	Clipboard Clipboard
}

func (t StdoutTarget) OnSuccess(text string) error {
	if t.Clipboard != nil {
		if err := t.Clipboard.WriteText(text); err != nil {
			return fmt.Errorf("failed to write to clipboard: %w", err)
		}
	}
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func (t StdoutTarget) OnFailure(error) error {
	return nil
}

// DelegatedTarget answers a second invocation waiting on the resident.
type DelegatedTarget struct {
	Conn      singleinstance.Conn
	Copy      bool
	Clipboard Clipboard
}

func (t DelegatedTarget) OnSuccess(text string) error {
	if t.Conn == nil {
		return errors.New("delegated target missing connection")
	}
	if t.Copy {
		if t.Clipboard == nil {
			return errors.New("clipboard unavailable")
		}
		if err := t.Clipboard.WriteText(text); err != nil {
			return fmt.Errorf("clipboard error: %w", err)
		}
	}
	return t.Conn.RespondSuccess(text)
}

func (t DelegatedTarget) OnFailure(err error) error {
	if t.Conn == nil {
		return nil
	}
	if err == nil {
		return t.Conn.RespondError("unknown session error")
	}
	return t.Conn.RespondError(err.Error())
}

// Deliver sends a finished session to target. A delivery failure is reported
// to the target as a failure.
func Deliver(target ResultTarget, text string, err error) error {
	if err != nil {
		return target.OnFailure(err)
	}
	if derr := target.OnSuccess(text); derr != nil {
		_ = target.OnFailure(derr)
		return derr
	}
	return nil
}
