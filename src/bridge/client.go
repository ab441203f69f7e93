package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"screen-translate-llm/src/messages"
	"screen-translate-llm/src/router"
)

// Client is the page-context end of the bridge. Every request gets a UUID and
// settles exactly once, either with the privileged reply or with a failure.
type Client struct {
	router  *router.Router
	from    string
	to      string
	mu      sync.Mutex
	pending map[string]chan messages.CaptureResponse
}

// NewClient creates a client sending from contextID to the privileged context.
// Whoever reads contextID's inbox must pass envelopes to Deliver.
func NewClient(r *router.Router, contextID string) *Client {
	return &Client{
		router:  r,
		from:    contextID,
		to:      messages.ContextPrivileged,
		pending: make(map[string]chan messages.CaptureResponse),
	}
}

// NewRequestID returns a fresh correlation identifier.
func NewRequestID() string { return uuid.NewString() }

// Request sends msg and blocks until its reply arrives or ctx is done.
// It never returns without a response.
func (c *Client) Request(ctx context.Context, id string, msg messages.Message) messages.CaptureResponse {
	if id == "" {
		id = NewRequestID()
	}
	ch := make(chan messages.CaptureResponse, 1)

	c.mu.Lock()
	if _, dup := c.pending[id]; dup {
		c.mu.Unlock()
		return messages.Failure(fmt.Errorf("request %s already in flight", id))
	}
	c.pending[id] = ch
	c.mu.Unlock()

	err := c.router.Send(messages.Envelope{ID: id, From: c.from, To: c.to, Message: msg})
	if err != nil {
		c.forget(id)
		return messages.Failure(fmt.Errorf("failed to reach capture service: %w", err))
	}

	select {
	case resp := <-ch:
		return resp
	case <-ctx.Done():
		c.forget(id)
		return messages.Failure(ctx.Err())
	}
}

// Go runs Request on its own goroutine and hands the response to done.
// done is called exactly once.
func (c *Client) Go(ctx context.Context, id string, msg messages.Message, done func(messages.CaptureResponse)) {
	go func() {
		done(c.Request(ctx, id, msg))
	}()
}

// Deliver hands a reply to its waiting Request. It reports false for
// envelopes that are not replies so the caller can handle pushes itself.
func (c *Client) Deliver(env messages.Envelope) bool {
	if !env.Reply {
		return false
	}
	resp, ok := env.Message.(messages.CaptureResponse)
	if !ok {
		resp = messages.Failure(fmt.Errorf("unexpected reply type %s", env.Message.Type()))
	}

	c.mu.Lock()
	ch, found := c.pending[env.ID]
	delete(c.pending, env.ID)
	c.mu.Unlock()

	if !found {
		zap.L().Info("bridge: discarding reply for unknown request", zap.String("id", env.ID))
		return true
	}
	ch <- resp
	return true
}

// Pump reads inbox until it closes or ctx is done, delivering replies and
// passing everything else to onPush.
func (c *Client) Pump(ctx context.Context, inbox <-chan messages.Envelope, onPush func(messages.Envelope)) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-inbox:
			if !ok {
				return
			}
			if !c.Deliver(env) && onPush != nil {
				onPush(env)
			}
		}
	}
}

// Pending returns the number of requests awaiting a reply.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
