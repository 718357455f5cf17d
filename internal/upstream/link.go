// Package upstream implements the DAPNET-facing components: the
// line-oriented TCP link and the tagged-record protocol engine layered
// on top of it.
package upstream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// ReadStatus classifies the outcome of a single Link.ReadLine call.
type ReadStatus int

const (
	ReadLine ReadStatus = iota
	ReadTimeout
	ReadClosed
	ReadError
)

// Link is a single TCP connection to the DAPNET upstream. Framing is
// line-based: lines end with "\r\n". Reconnection is the supervisor's job
// (internal/gateway), not Link's.
type Link struct {
	Address string
	Port    int
	Debug   bool

	conn    net.Conn
	reader  *bufio.Reader
	partial string
}

// NewLink constructs a Link for the given host/port. Call Open before any
// other method.
func NewLink(address string, port int, debug bool) *Link {
	return &Link{Address: address, Port: port, Debug: debug}
}

// Open dials the upstream with TCP_NODELAY and SO_KEEPALIVE set.
func (l *Link) Open() error {
	dialer := net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	conn, err := dialer.Dial("tcp", fmt.Sprintf("%s:%d", l.Address, l.Port))
	if err != nil {
		return fmt.Errorf("upstream: connect failed: %w", err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
		_ = tcpConn.SetKeepAlive(true)
	}

	l.conn = conn
	l.reader = bufio.NewReader(conn)
	l.partial = ""

	log.Info("Opening DAPNET connection")
	return nil
}

// ReadLine returns one CRLF-terminated line (CRLF stripped), or a status
// describing why none was available. timeout of 0 approximates the
// "return immediately if no data" non-blocking contract with
// a minimal deadline; the event loop calls this once per ~10ms tick so a
// short deadline is indistinguishable from true non-blocking at that
// cadence.
func (l *Link) ReadLine(timeout time.Duration) (string, ReadStatus) {
	if l.conn == nil {
		return "", ReadClosed
	}

	deadline := timeout
	if deadline <= 0 {
		deadline = time.Millisecond
	}
	_ = l.conn.SetReadDeadline(time.Now().Add(deadline))

	line, err := l.reader.ReadString('\n')
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			// Hold on to any partial line so the next read continues it.
			l.partial += line
			return "", ReadTimeout
		}
		if errors.Is(err, io.EOF) {
			return "", ReadClosed
		}
		return "", ReadError
	}

	line = l.partial + line
	l.partial = ""
	line = strings.TrimRight(line, "\r\n")

	if l.Debug {
		log.Debugf("DAPNET Data Received: %q", line)
	}

	return line, ReadLine
}

// WriteLine appends "\r\n" and writes line to the upstream.
func (l *Link) WriteLine(line string) error {
	if l.conn == nil {
		return fmt.Errorf("upstream: not open")
	}

	if l.Debug {
		log.Debugf("DAPNET Data Transmitted: %q", line)
	}

	_, err := l.conn.Write([]byte(line + "\r\n"))
	if err != nil {
		log.Warnf("Error when writing to DAPNET: %v", err)
	}
	return err
}

// Close releases the connection. It is safe to call on an unopened or
// already-closed Link.
func (l *Link) Close() {
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	log.Info("Closing DAPNET connection")
}
