package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

type tcpServer struct {
	mu       sync.Mutex
	lis      net.Listener
	incoming chan *tcpConn
	port     int
	closed   bool
}

func newTCPServer() *tcpServer { return &tcpServer{incoming: make(chan *tcpConn, 8)} }

// Start binds ONLY the start port of the configured range. If occupied, fail.
func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	start, _ := getPortRange()
	addr := fmt.Sprintf("%s:%d", residentHost, start)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		zap.L().Warn("singleinstance: failed to bind", zap.String("addr", addr), zap.Error(err))
		return err
	}
	s.lis = lis
	s.port = start
	zap.L().Info("singleinstance: listening", zap.String("addr", addr))
	go s.acceptLoop(ctx, lis)
	return nil
}

func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		s.handshake(ctx, c)
	}
}

func (s *tcpServer) handshake(ctx context.Context, c net.Conn) {
	remote := c.RemoteAddr().String()
	_ = c.SetDeadline(time.Now().Add(3 * time.Second))
	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)
	line, _ := br.ReadString('\n')

	if line == pingRequest {
		zap.L().Debug("singleinstance: PING -> PONG", zap.String("remote", remote))
		_, _ = bw.WriteString(pongResponse)
		_ = bw.Flush()
		_ = c.Close()
		return
	}

	req, err := decodeRequest(line)
	if err != nil {
		zap.L().Warn("singleinstance: bad request", zap.String("remote", remote), zap.Error(err))
		_, _ = bw.WriteString(statusError + err.Error())
		_ = bw.Flush()
		_ = c.Close()
		return
	}

	// The answer comes after a human finishes selecting, so no deadline.
	_ = c.SetDeadline(time.Time{})
	zap.L().Info("singleinstance: translate request",
		zap.String("remote", remote),
		zap.String("language", req.TargetLanguage),
		zap.Bool("copy", req.Copy))

	select {
	case s.incoming <- &tcpConn{c: c, r: req, w: bw}:
	case <-ctx.Done():
		_ = c.Close()
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tc, ok := <-s.incoming:
		if !ok {
			return nil, net.ErrClosed
		}
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.lis != nil {
		_ = s.lis.Close()
		s.lis = nil
	}
	return nil
}

type tcpConn struct {
	c    net.Conn
	r    Request
	w    *bufio.Writer
	once sync.Once
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess(text string) error {
	return tc.respond(statusSuccess + text)
}

func (tc *tcpConn) RespondError(msg string) error {
	return tc.respond(statusError + msg)
}

func (tc *tcpConn) respond(payload string) error {
	var err error
	sent := false
	tc.once.Do(func() {
		sent = true
		if _, err = tc.w.WriteString(payload); err == nil {
			err = tc.w.Flush()
		}
	})
	if !sent {
		return fmt.Errorf("response already sent")
	}
	return err
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
