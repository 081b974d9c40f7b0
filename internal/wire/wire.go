// Package wire reads and writes newline-delimited JSON messages over a
// stream: the daemon's Unix socket or the clipboard helper's stdio pipes.
//
// Wire format:
//
//	<json>\n
//
// Every line is a single message.message.Message.
package wire

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/AKuederle/soundvibes/internal/message"
)

const (
	// MaxMessageSize is the default read limit (16 MiB).
	MaxMessageSize = 16 * 1024 * 1024

	writeDeadline = 5 * time.Second
)

// deadliner is implemented by net.Conn and *os.File.
type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Conn wraps a stream with buffered newline-delimited JSON framing.
type Conn struct {
	r  io.Reader
	w  io.Writer
	c  io.Closer
	br *bufio.Reader

	maxSize int
}

// New wraps a net.Conn.
func New(conn net.Conn) *Conn {
	return NewStream(conn, conn, conn)
}

// NewStream wraps separate read and write halves, e.g. a child's stdout and
// stdin. closer may be nil.
func NewStream(r io.Reader, w io.Writer, closer io.Closer) *Conn {
	return &Conn{
		r:  r,
		w:  w,
		c:  closer,
		br: bufio.NewReaderSize(r, 64*1024),

		maxSize: MaxMessageSize,
	}
}

// SetMaxMessageSize changes the read limit. Zero removes it; only use that
// when the peer is trusted, like a child process started by this one.
func (c *Conn) SetMaxMessageSize(n int) {
	c.maxSize = n
}

// SetReadDeadline sets or clears the read deadline where supported.
func (c *Conn) SetReadDeadline(d time.Duration) {
	dl, ok := c.r.(deadliner)
	if !ok {
		return
	}
	if d == 0 {
		_ = dl.SetReadDeadline(time.Time{})
	} else {
		_ = dl.SetReadDeadline(time.Now().Add(d))
	}
}

// SetWriteDeadline sets or clears the write deadline where supported.
func (c *Conn) SetWriteDeadline(d time.Duration) {
	dl, ok := c.w.(deadliner)
	if !ok {
		return
	}
	if d == 0 {
		_ = dl.SetWriteDeadline(time.Time{})
	} else {
		_ = dl.SetWriteDeadline(time.Now().Add(d))
	}
}

// Close closes the underlying stream.
func (c *Conn) Close() error {
	if c.c == nil {
		return nil
	}
	return c.c.Close()
}

// WriteMsg serialises msg to JSON and writes it followed by a newline.
func (c *Conn) WriteMsg(msg *message.Message) error {
	raw, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	line := append(raw, '\n')

	c.SetWriteDeadline(writeDeadline)
	_, err = c.w.Write(line)
	c.SetWriteDeadline(0)
	return err
}

// ReadMsg reads one newline-terminated line and deserialises it into a
// Message.
func (c *Conn) ReadMsg() (*message.Message, error) {
	line, err := c.readLine()
	if err != nil {
		return nil, err
	}
	return message.Decode(line)
}

func (c *Conn) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := c.br.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if c.maxSize > 0 && len(line) > c.maxSize {
			return nil, fmt.Errorf("message too large (%d bytes)", len(line))
		}
		if !isPrefix {
			return line, nil
		}
	}
}
