package httpclient

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulaginds/sans/internal/config"
	"github.com/kulaginds/sans/transport"
)

func testTransport() *transport.Transport {
	return transport.New(&config.Config{
		Transport: config.TransportConfig{
			SendWindowSize:    1,
			PeerBookCapacity:  8,
			HandshakeTimeout:  20 * time.Millisecond,
			RetransmitTimeout: 100 * time.Millisecond,
			RetransmitBackoff: 5 * time.Millisecond,
			WorkerIdlePoll:    time.Millisecond,
			MaxDatagramSize:   1024,
		},
		Logging: config.LoggingConfig{Level: "error"},
	})
}

func TestParseContentLength(t *testing.T) {
	n, ok := parseContentLength("HTTP/1.1 200 OK\r\nContent-Length: 13\r\nContent-Type: text/plain\r\n")
	require.True(t, ok)
	assert.Equal(t, 13, n)

	n, ok = parseContentLength("HTTP/1.1 200 OK\r\ncontent-length:   42\r\n")
	require.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = parseContentLength("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n")
	assert.False(t, ok)
}

func TestFetchReadsExactContentLength(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 1024)
		_, _ = conn.Read(buf) // discard the request line/headers

		body := "hello world!!"
		response := "HTTP/1.1 200 OK\r\nContent-Length: 13\r\n\r\n" + body
		conn.Write([]byte(response))
	}()

	tr := testTransport()

	var out bytes.Buffer
	err = Fetch(tr, "127.0.0.1", port, transport.ProtoTCP, Request{Method: "GET", Path: "/"}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "hello world!!")
}
