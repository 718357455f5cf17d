package upstream

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer accepts exactly one connection on the loopback interface and
// hands it to the test.
func startServer(t *testing.T) (addr *net.TCPAddr, accepted <-chan net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ch := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ch <- conn
	}()

	return ln.Addr().(*net.TCPAddr), ch
}

func TestReadLineStripsCRLF(t *testing.T) {
	addr, accepted := startServer(t)

	l := NewLink("127.0.0.1", addr.Port, false)
	require.NoError(t, l.Open())
	defer l.Close()

	server := <-accepted
	defer server.Close()

	_, err := server.Write([]byte("2 1234567890\r\n"))
	require.NoError(t, err)

	line, status := l.ReadLine(time.Second)
	require.Equal(t, ReadLine, status)
	assert.Equal(t, "2 1234567890", line)
}

func TestReadLineTimeoutKeepsPartialLine(t *testing.T) {
	addr, accepted := startServer(t)

	l := NewLink("127.0.0.1", addr.Port, false)
	require.NoError(t, l.Open())
	defer l.Close()

	server := <-accepted
	defer server.Close()

	// First half of a line arrives, then nothing until after a timeout.
	_, err := server.Write([]byte("4 0123"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	_, status := l.ReadLine(10 * time.Millisecond)
	assert.Equal(t, ReadTimeout, status)

	_, err = server.Write([]byte("456789ABCDEF\r\n"))
	require.NoError(t, err)

	line, status := l.ReadLine(time.Second)
	require.Equal(t, ReadLine, status)
	assert.Equal(t, "4 0123456789ABCDEF", line)
}

func TestReadLineReportsClosed(t *testing.T) {
	addr, accepted := startServer(t)

	l := NewLink("127.0.0.1", addr.Port, false)
	require.NoError(t, l.Open())
	defer l.Close()

	server := <-accepted
	server.Close()

	// Allow the close to propagate, then read until the link sees it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, status := l.ReadLine(50 * time.Millisecond)
		if status == ReadClosed {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("link never reported the closed connection")
		}
	}
}

func TestWriteLineAppendsCRLF(t *testing.T) {
	addr, accepted := startServer(t)

	l := NewLink("127.0.0.1", addr.Port, false)
	require.NoError(t, l.Open())
	defer l.Close()

	server := <-accepted
	defer server.Close()

	require.NoError(t, l.WriteLine("#02 +"))

	reader := bufio.NewReader(server)
	_ = server.SetReadDeadline(time.Now().Add(time.Second))
	got, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "#02 +\r\n", got)
}

func TestReadLineOnUnopenedLink(t *testing.T) {
	l := NewLink("127.0.0.1", 1, false)
	_, status := l.ReadLine(time.Millisecond)
	assert.Equal(t, ReadClosed, status)
}

func TestWriteLineOnUnopenedLink(t *testing.T) {
	l := NewLink("127.0.0.1", 1, false)
	assert.Error(t, l.WriteLine("+"))
}
