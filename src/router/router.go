package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"screen-translate-llm/src/messages"
)

const sendTimeout = 5 * time.Second

// ChannelInfo holds information about a context's inbox
type ChannelInfo struct {
	Channel   chan messages.Envelope
	ContextID string
	Active    bool
}

// Router delivers envelopes between the page and privileged contexts
type Router struct {
	channels    map[string]*ChannelInfo
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	logMessages bool
}

// NewRouter creates a new message router
func NewRouter() *Router {
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		channels:    make(map[string]*ChannelInfo),
		ctx:         ctx,
		cancel:      cancel,
		logMessages: true,
	}
}

// Register creates the inbox for a context
func (r *Router) Register(contextID string, bufferSize int) (<-chan messages.Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[contextID]; exists {
		return nil, fmt.Errorf("context %s already registered", contextID)
	}

	ch := make(chan messages.Envelope, bufferSize)
	r.channels[contextID] = &ChannelInfo{
		Channel:   ch,
		ContextID: contextID,
		Active:    true,
	}

	zap.L().Debug("Router: registered context", zap.String("context", contextID), zap.Int("buffer", bufferSize))
	return ch, nil
}

// Unregister removes a context and closes its inbox
func (r *Router) Unregister(contextID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, exists := r.channels[contextID]; exists {
		info.Active = false
		close(info.Channel)
		delete(r.channels, contextID)
		zap.L().Debug("Router: unregistered context", zap.String("context", contextID))
	}
}

// Send delivers an envelope to envelope.To
func (r *Router) Send(envelope messages.Envelope) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.logMessages {
		zap.L().Debug("Router: send",
			zap.String("from", envelope.From),
			zap.String("to", envelope.To),
			zap.String("type", envelope.Message.Type()),
			zap.String("id", envelope.ID))
	}

	info, exists := r.channels[envelope.To]
	if !exists {
		return fmt.Errorf("context %s not found", envelope.To)
	}
	if !info.Active {
		return fmt.Errorf("context %s is not active", envelope.To)
	}

	select {
	case info.Channel <- envelope:
		return nil
	case <-time.After(sendTimeout):
		return fmt.Errorf("timeout sending message to context %s", envelope.To)
	case <-r.ctx.Done():
		return fmt.Errorf("router is shutting down")
	}
}

// ActiveContexts returns the registered context IDs
func (r *Router) ActiveContexts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []string
	for id, info := range r.channels {
		if info.Active {
			active = append(active, id)
		}
	}
	return active
}

// Stats returns the queued message count per context
func (r *Router) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]int)
	for id, info := range r.channels {
		if info.Active {
			stats[id] = len(info.Channel)
		}
	}
	return stats
}

// SetMessageLogging enables or disables per-message debug logging
func (r *Router) SetMessageLogging(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logMessages = enabled
}

// Shutdown closes every inbox
func (r *Router) Shutdown() {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, info := range r.channels {
		if info.Active {
			info.Active = false
			close(info.Channel)
			zap.L().Debug("Router: closed channel", zap.String("context", id))
		}
	}
	r.channels = make(map[string]*ChannelInfo)
}

// IsHealthy returns false once Shutdown was called
func (r *Router) IsHealthy() bool {
	select {
	case <-r.ctx.Done():
		return false
	default:
		return true
	}
}
