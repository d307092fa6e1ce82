package service

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/gridclaim/game/engine"
	"github.com/wricardo/gridclaim/game/lobby"
	"github.com/wricardo/gridclaim/game/record"
	"github.com/wricardo/gridclaim/transport/tcp"
)

const frameTimeout = 2 * time.Second

func fastOptions() Options {
	opts := DefaultOptions()
	opts.Lobby = lobby.Options{
		CountdownSeconds: 3,
		TickInterval:     20 * time.Millisecond,
		Duration:         time.Hour,
	}
	opts.EndCheckInterval = 10 * time.Millisecond
	opts.CommandRate = 0
	return opts
}

func newTestServer(t *testing.T, opts Options, recorder record.Recorder) *Server {
	t.Helper()
	s, err := NewServer(engine.DefaultBoardConfig(10), opts, recorder, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
	done   chan error
}

func connect(t *testing.T, ctx context.Context, s *Server) *testClient {
	t.Helper()
	client, server := net.Pipe()
	c := &testClient{
		t:      t,
		conn:   client,
		reader: bufio.NewReader(client),
		done:   make(chan error, 1),
	}
	go func() { c.done <- s.Serve(ctx, tcp.NewConn(server)) }()
	t.Cleanup(func() { client.Close() })
	return c
}

func (c *testClient) send(line string) {
	c.t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(frameTimeout))
	_, err := fmt.Fprintf(c.conn, "%s\n", line)
	require.NoError(c.t, err, "send %q", line)
}

func (c *testClient) next() string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(frameTimeout))
	line, err := c.reader.ReadString('\n')
	require.NoError(c.t, err, "waiting for a frame")
	return strings.TrimRight(line, "\n")
}

// expect reads frames until want arrives, skipping anything else.
func (c *testClient) expect(want string) {
	c.t.Helper()
	var skipped []string
	deadline := time.Now().Add(frameTimeout)
	for time.Now().Before(deadline) {
		got := c.next()
		if got == want {
			return
		}
		skipped = append(skipped, got)
	}
	c.t.Fatalf("never received %q; got %v", want, skipped)
}

// expectPrefix reads frames until one starts with prefix and returns it.
func (c *testClient) expectPrefix(prefix string) string {
	c.t.Helper()
	deadline := time.Now().Add(frameTimeout)
	for time.Now().Before(deadline) {
		if got := c.next(); strings.HasPrefix(got, prefix) {
			return got
		}
	}
	c.t.Fatalf("never received a frame starting with %q", prefix)
	return ""
}

func (c *testClient) close() {
	c.t.Helper()
	c.conn.Close()
	select {
	case <-c.done:
	case <-time.After(frameTimeout):
		c.t.Fatal("Serve did not return after the client closed")
	}
}

// discardConn is a hub.Conn for players driven directly through the Server.
type discardConn struct{}

func (discardConn) WriteFrame(string) error { return nil }
func (discardConn) Close() error            { return nil }
