// Package bridge connects the page context, which owns the selection UI, to
// the privileged context, which owns screen capture and the network.
package bridge

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"screen-translate-llm/src/messages"
	"screen-translate-llm/src/router"
)

// Link is a running Server plus the page-side Client talking to it.
type Link struct {
	Client *Client
	router *router.Router
	done   chan struct{}
}

// Start registers both contexts, then serves requests and pumps the page
// inbox until ctx is done. Pushes that are not replies go to onPush.
func Start(ctx context.Context, opts ServerOptions, onPush func(messages.Envelope)) (*Link, error) {
	if opts.Router == nil {
		opts.Router = router.NewRouter()
	}
	srv, err := NewServer(opts)
	if err != nil {
		return nil, err
	}
	inbox, err := opts.Router.Register(messages.ContextPage, 8)
	if err != nil {
		opts.Router.Unregister(messages.ContextPrivileged)
		return nil, err
	}

	l := &Link{
		Client: NewClient(opts.Router, messages.ContextPage),
		router: opts.Router,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(l.done)
		if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zap.L().Warn("bridge: server stopped", zap.Error(err))
		}
	}()
	go l.Client.Pump(ctx, inbox, onPush)
	return l, nil
}

// Wait blocks until the server has stopped, then closes the router.
// Cancel the context passed to Start first.
func (l *Link) Wait() {
	<-l.done
	l.router.Shutdown()
}
