package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type tcpClient struct{}

func newTCPClient() Client { return &tcpClient{} }

// TryStart finds the resident with PING, sends the request and waits for the
// whole selection and translation to finish. ctx bounds the wait.
func (c *tcpClient) TryStart(ctx context.Context, req Request) (bool, string, error) {
	probe := dialTimeout(ctx, 300*time.Millisecond)
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, probe) {
			continue
		}
		zap.L().Debug("singleinstance: resident found", zap.String("addr", addr))
		text, err := c.send(ctx, addr, req)
		return true, text, err
	}
	return false, "", nil
}

func (c *tcpClient) send(ctx context.Context, addr string, req Request) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to reach resident: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(encodeRequest(req)); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("no answer from resident: %w", err)
	}
	body, _ := io.ReadAll(br)
	switch status {
	case statusSuccess:
		return string(body), nil
	case statusError:
		return "", errors.New(string(body))
	default:
		return "", fmt.Errorf("unexpected resident status %q", status)
	}
}
