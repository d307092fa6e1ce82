// Package tcp carries the game protocol over a plain stream socket: one
// frame per line, newline terminated.
package tcp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/gridclaim/transport/protocol"
)

// writeWait bounds a single frame write.
const writeWait = 10 * time.Second

// Conn frames a net.Conn as newline-delimited text.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps c.
func NewConn(c net.Conn) *Conn {
	return &Conn{conn: c, reader: bufio.NewReaderSize(c, protocol.MaxFrameSize)}
}

// ReadFrame returns the next line without its terminator. It returns io.EOF
// once the peer has closed. A line longer than protocol.MaxFrameSize is read
// to its end and discarded, and ReadFrame reports protocol.ErrFrameTooLong;
// the connection stays usable.
func (c *Conn) ReadFrame() (string, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := c.reader.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			// Leave room for a "\r\n" terminator.
			if len(line) > protocol.MaxFrameSize+2 {
				tooLong = true
				line = nil
			}
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && !tooLong && len(line) > 0 {
			// Final line without a terminator.
			break
		}
		return "", err
	}

	frame := strings.TrimRight(string(line), "\r\n")
	if tooLong || len(frame) > protocol.MaxFrameSize {
		return "", fmt.Errorf("%w: over %d bytes", protocol.ErrFrameTooLong, protocol.MaxFrameSize)
	}
	return frame, nil
}

// WriteFrame writes frame followed by a newline.
func (c *Conn) WriteFrame(frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_, err := c.conn.Write([]byte(frame + "\n"))
	return err
}

// Close closes the socket once; later calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.conn.Close() })
	return c.closeErr
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
