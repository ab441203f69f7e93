package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"screen-translate-llm/src/llm"
	"screen-translate-llm/src/messages"
	"screen-translate-llm/src/router"
	"screen-translate-llm/src/screenshot"
	"screen-translate-llm/src/worker"
)

// ErrBusy is returned when a request arrives while another one is queued.
var ErrBusy = errors.New("busy, please retry")

type ServerOptions struct {
	Router       *router.Router
	Capturer     screenshot.Capturer
	Translator   llm.Translator
	MaxImageEdge int
	// Timeout bounds one capture-crop-translate job. Zero means no bound.
	Timeout time.Duration
}

// Server is the privileged end of the bridge. It owns screen capture and the
// network, runs one job at a time and answers every request exactly once.
type Server struct {
	router     *router.Router
	inbox      <-chan messages.Envelope
	capturer   screenshot.Capturer
	translator llm.Translator
	maxEdge    int
	timeout    time.Duration
	pool       *worker.Pool
}

// NewServer registers the privileged context with the router.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Router == nil {
		return nil, errors.New("router is required")
	}
	if opts.Capturer == nil {
		return nil, errors.New("capturer is required")
	}
	if opts.Translator == nil {
		return nil, errors.New("translator is required")
	}
	inbox, err := opts.Router.Register(messages.ContextPrivileged, 8)
	if err != nil {
		return nil, err
	}
	return &Server{
		router:     opts.Router,
		inbox:      inbox,
		capturer:   opts.Capturer,
		translator: opts.Translator,
		maxEdge:    opts.MaxImageEdge,
		timeout:    opts.Timeout,
		pool:       worker.New(1),
	}, nil
}

// Serve handles requests until ctx is done or the inbox closes.
func (s *Server) Serve(ctx context.Context) error {
	defer s.pool.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-s.inbox:
			if !ok {
				return nil
			}
			s.handle(ctx, env)
		}
	}
}

func (s *Server) handle(ctx context.Context, env messages.Envelope) {
	var run func(ctx context.Context) messages.CaptureResponse
	switch msg := env.Message.(type) {
	case messages.CaptureVisibleTab:
		zap.L().Info("bridge: capture requested",
			zap.String("id", env.ID),
			zap.Any("area", msg.Area),
			zap.Any("original_area", msg.OriginalArea),
			zap.Float64("pixel_ratio", msg.PixelRatio))
		run = func(ctx context.Context) messages.CaptureResponse { return s.captureAndTranslate(ctx, msg) }
	case messages.TranslateImage:
		zap.L().Info("bridge: image translation requested", zap.String("id", env.ID), zap.Int("bytes", len(msg.ImageData)))
		run = func(ctx context.Context) messages.CaptureResponse { return s.translateImage(ctx, msg) }
	default:
		s.reply(env, messages.Failure(fmt.Errorf("unsupported action %s", env.Message.Type())))
		return
	}

	submitted := s.pool.Submit(ctx, env.Message.Type(), func(ctx context.Context) {
		s.runJob(ctx, env, run)
	})
	if !submitted {
		s.reply(env, messages.Failure(ErrBusy))
	}
}

// runJob executes run and guarantees a single reply, even if run panics.
func (s *Server) runJob(ctx context.Context, env messages.Envelope, run func(context.Context) messages.CaptureResponse) {
	replied := false
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("bridge: job panicked", zap.String("id", env.ID), zap.Any("panic", r))
			if !replied {
				s.reply(env, messages.Failure(fmt.Errorf("internal error: %v", r)))
			}
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp := run(ctx)
	if resp.Success {
		s.push(env, messages.ShowTranslation{Translation: resp.Translation, ImageData: resp.ImageData})
	} else {
		zap.L().Warn("bridge: request failed", zap.String("id", env.ID), zap.String("error", resp.Error))
	}
	replied = true
	s.reply(env, resp)
}

// captureAndTranslate runs capture -> crop -> encode -> translate, strictly in order.
func (s *Server) captureAndTranslate(ctx context.Context, msg messages.CaptureVisibleTab) messages.CaptureResponse {
	full, err := s.capturer.CaptureViewport(ctx)
	if err != nil {
		return messages.Failure(fmt.Errorf("capture failed: %w", err))
	}
	cropped, err := screenshot.Crop(full, msg.Area)
	if err != nil {
		return messages.Failure(fmt.Errorf("crop failed: %w", err))
	}
	png, err := screenshot.EncodePNG(screenshot.FitWithin(cropped, s.maxEdge))
	if err != nil {
		return messages.Failure(err)
	}
	return s.translate(ctx, png, msg.TranslationParams)
}

func (s *Server) translateImage(ctx context.Context, msg messages.TranslateImage) messages.CaptureResponse {
	png, err := screenshot.ToPNG(msg.ImageData, s.maxEdge)
	if err != nil {
		return messages.Failure(err)
	}
	return s.translate(ctx, png, msg.TranslationParams)
}

func (s *Server) translate(ctx context.Context, png []byte, p messages.TranslationParams) messages.CaptureResponse {
	text, err := s.translator.Translate(ctx, llm.Request{
		Image:          png,
		APIKey:         p.APIKey,
		TargetLanguage: p.TargetLanguage,
		Model:          p.Model,
	})
	if err != nil {
		return messages.Failure(err)
	}
	return messages.CaptureResponse{Success: true, Translation: text, ImageData: png}
}

func (s *Server) reply(req messages.Envelope, resp messages.CaptureResponse) {
	err := s.router.Send(messages.Envelope{
		ID:      req.ID,
		From:    messages.ContextPrivileged,
		To:      req.From,
		Reply:   true,
		Message: resp,
	})
	if err != nil {
		zap.L().Warn("bridge: reply not delivered", zap.String("id", req.ID), zap.Error(err))
	}
}

func (s *Server) push(req messages.Envelope, msg messages.Message) {
	err := s.router.Send(messages.Envelope{
		ID:      req.ID,
		From:    messages.ContextPrivileged,
		To:      req.From,
		Message: msg,
	})
	if err != nil {
		zap.L().Warn("bridge: push not delivered", zap.String("id", req.ID), zap.Error(err))
	}
}
