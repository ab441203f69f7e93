package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-translate-llm/src/messages"
)

func TestSendDelivers(t *testing.T) {
	r := NewRouter()
	defer r.Shutdown()

	inbox, err := r.Register(messages.ContextPrivileged, 1)
	require.NoError(t, err)

	env := messages.Envelope{
		ID:      "req-1",
		From:    messages.ContextPage,
		To:      messages.ContextPrivileged,
		Message: messages.StartCapture{},
	}
	require.NoError(t, r.Send(env))

	got := <-inbox
	assert.Equal(t, "req-1", got.ID)
	assert.Equal(t, messages.TypeStartCapture, got.Message.Type())
	assert.Equal(t, map[string]int{messages.ContextPrivileged: 0}, r.Stats())
}

func TestRegisterTwice(t *testing.T) {
	r := NewRouter()
	defer r.Shutdown()

	_, err := r.Register(messages.ContextPage, 1)
	require.NoError(t, err)
	_, err = r.Register(messages.ContextPage, 1)
	assert.Error(t, err)
}

func TestSendUnknownContext(t *testing.T) {
	r := NewRouter()
	defer r.Shutdown()

	err := r.Send(messages.Envelope{To: "nowhere", Message: messages.StartCapture{}})
	assert.Error(t, err)
}

func TestUnregisterClosesInbox(t *testing.T) {
	r := NewRouter()
	defer r.Shutdown()

	inbox, err := r.Register(messages.ContextPage, 1)
	require.NoError(t, err)
	r.Unregister(messages.ContextPage)

	_, ok := <-inbox
	assert.False(t, ok)
	assert.Empty(t, r.ActiveContexts())
}

func TestShutdown(t *testing.T) {
	r := NewRouter()
	_, err := r.Register(messages.ContextPage, 1)
	require.NoError(t, err)

	r.Shutdown()
	assert.False(t, r.IsHealthy())
	assert.Error(t, r.Send(messages.Envelope{To: messages.ContextPage, Message: messages.StartCapture{}}))
}
