// Package httpclient implements a minimal HTTP/1.1 client agent driven
// entirely through the transport package: one request, one response, one
// connection.
package httpclient

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kulaginds/sans/internal/logging"
	"github.com/kulaginds/sans/internal/wire"
	"github.com/kulaginds/sans/transport"
)

// Request is the method and path to issue; method defaults to GET and path
// to "/" if empty.
type Request struct {
	Method string
	Path   string
}

const chunkSize = wire.MaxDatagramSize - wire.HeaderSize

// Fetch connects to host:port over proto, sends one HTTP/1.1 request, and
// streams the response to out as it arrives, returning once the full
// response has been read (bounded by Content-Length when the server sends
// one).
func Fetch(tr *transport.Transport, host string, port int, proto transport.Protocol, req Request, out io.Writer) error {
	log := logging.Default()

	method := req.Method
	if method == "" {
		method = "GET"
	}
	path := strings.TrimPrefix(req.Path, "/")

	handle, err := tr.Connect(host, port, proto)
	if err != nil {
		return fmt.Errorf("httpclient: connect: %w", err)
	}
	defer func() {
		if err := tr.Disconnect(handle); err != nil {
			log.Warn("httpclient: disconnect: %v", err)
		}
	}()

	request := fmt.Sprintf(
		"%s /%s HTTP/1.1\r\n"+
			"Host: %s:%d\r\n"+
			"User-Agent: sans/1.0\r\n"+
			"Cache-Control: no-cache\r\n"+
			"Connection: close\r\n"+
			"Accept: */*\r\n"+
			"\r\n",
		method, path, host, port,
	)

	if err := sendAll(tr, handle, []byte(request)); err != nil {
		return fmt.Errorf("httpclient: send request: %w", err)
	}

	return readResponse(tr, handle, out)
}

func sendAll(tr *transport.Transport, handle transport.Handle, buf []byte) error {
	for len(buf) > 0 {
		n := len(buf)
		if n > chunkSize {
			n = chunkSize
		}

		if _, err := tr.SendPacket(handle, buf[:n]); err != nil {
			return err
		}

		buf = buf[n:]
	}

	return nil
}

// readResponse accumulates bytes until the header terminator is found,
// parses Content-Length case-insensitively, and reads exactly that many
// additional body bytes (or drains to orderly close if absent).
func readResponse(tr *transport.Transport, handle transport.Handle, out io.Writer) error {
	var accum strings.Builder
	buf := make([]byte, chunkSize)

	headerEnd := -1
	for headerEnd == -1 {
		n, err := tr.RecvPacket(handle, buf)
		if err != nil {
			return fmt.Errorf("httpclient: receive: %w", err)
		}
		if n == 0 {
			break
		}

		out.Write(buf[:n])
		accum.Write(buf[:n])

		if idx := strings.Index(accum.String(), "\r\n\r\n"); idx != -1 {
			headerEnd = idx + 4
		}
	}

	full := accum.String()
	if headerEnd == -1 {
		return drain(tr, handle, out)
	}

	contentLength, hasLength := parseContentLength(full[:headerEnd])
	if !hasLength {
		return drain(tr, handle, out)
	}

	alreadyHave := len(full) - headerEnd
	if alreadyHave < 0 {
		alreadyHave = 0
	}
	if alreadyHave > contentLength {
		alreadyHave = contentLength
	}
	remaining := contentLength - alreadyHave

	for remaining > 0 {
		toRead := remaining
		if toRead > chunkSize {
			toRead = chunkSize
		}

		n, err := tr.RecvPacket(handle, buf[:toRead])
		if err != nil {
			return fmt.Errorf("httpclient: receive body: %w", err)
		}
		if n == 0 {
			break
		}

		out.Write(buf[:n])
		remaining -= n
	}

	return nil
}

func drain(tr *transport.Transport, handle transport.Handle, out io.Writer) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := tr.RecvPacket(handle, buf)
		if err != nil {
			return fmt.Errorf("httpclient: drain: %w", err)
		}
		if n == 0 {
			return nil
		}

		out.Write(buf[:n])
	}
}

func parseContentLength(headers string) (int, bool) {
	scanner := bufio.NewScanner(strings.NewReader(headers))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		const key = "content-length:"
		if len(line) < len(key) || !strings.EqualFold(line[:len(key)], key) {
			continue
		}

		value := strings.TrimSpace(line[len(key):])
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, false
		}

		return n, true
	}

	return 0, false
}
