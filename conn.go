package main

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
)

// How long a single write may take before we consider the connection
// stuck.
const writeWait = 30 * time.Second

// Conn is a connection to a client.
type Conn struct {
	conn net.Conn
	rw   *bufio.ReadWriter

	// Hostname is the remote host as derived from the socket.
	Hostname string
}

// NewConn initializes a Conn struct.
func NewConn(conn net.Conn) Conn {
	hostname := "localhost"
	if tcpAddr, err := net.ResolveTCPAddr("tcp",
		conn.RemoteAddr().String()); err == nil {
		hostname = tcpAddr.IP.String()
	}

	return Conn{
		conn:     conn,
		rw:       bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
		Hostname: hostname,
	}
}

// Close closes the underlying connection.
func (c Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote network address.
func (c Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Read reads a line from the connection. It blocks until a line
// arrives or the connection closes; cancellation works by closing the
// connection.
func (c Conn) Read() (string, error) {
	line, err := c.rw.ReadString('\n')
	if err != nil {
		return line, errors.Wrap(err, "error reading")
	}

	return line, nil
}

// Write writes a string to the connection.
func (c Conn) Write(s string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return errors.Wrap(err, "error setting write deadline")
	}

	sz, err := c.rw.WriteString(s)
	if err != nil {
		return errors.Wrap(err, "error writing")
	}

	if sz != len(s) {
		return fmt.Errorf("short write")
	}

	if err := c.rw.Flush(); err != nil {
		return errors.Wrap(err, "flush error")
	}

	return nil
}
