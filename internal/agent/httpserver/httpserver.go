// Package httpserver implements a minimal HTTP/1.1 static-file server
// agent: one accepted connection, one request, GET-only, served entirely
// through the transport package.
package httpserver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kulaginds/sans/internal/logging"
	"github.com/kulaginds/sans/internal/wire"
	"github.com/kulaginds/sans/transport"
)

const chunkSize = wire.MaxDatagramSize - wire.HeaderSize

const notFoundBody = "<html><body><h1>404 Not Found</h1></body></html>"

// ServeOne accepts exactly one connection on iface:port over proto, serves
// a single GET request from root, and disconnects before returning.
func ServeOne(tr *transport.Transport, iface string, port int, proto transport.Protocol, root string) error {
	log := logging.Default()

	handle, err := tr.Accept(iface, port, proto)
	if err != nil {
		return fmt.Errorf("httpserver: accept: %w", err)
	}
	defer func() {
		if err := tr.Disconnect(handle); err != nil {
			log.Warn("httpserver: disconnect: %v", err)
		}
	}()

	req := make([]byte, wire.MaxDatagramSize)
	n, err := tr.RecvPacket(handle, req)
	if err != nil {
		return fmt.Errorf("httpserver: receive request: %w", err)
	}
	if n == 0 {
		return nil
	}

	method, rawPath, ok := parseRequestLine(string(req[:n]))
	if !ok || method != "GET" {
		return sendNotFound(tr, handle)
	}

	servedPath, ok := resolvePath(rawPath)
	if !ok {
		return sendNotFound(tr, handle)
	}

	fullPath := filepath.Join(root, servedPath)

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		return sendNotFound(tr, handle)
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return sendNotFound(tr, handle)
	}
	defer f.Close()

	header := fmt.Sprintf(
		"HTTP/1.1 200 OK\r\nContent-Length: %d\r\nContent-Type: text/html; charset=utf-8\r\n\r\n",
		info.Size(),
	)
	if err := sendAll(tr, handle, []byte(header)); err != nil {
		return fmt.Errorf("httpserver: send header: %w", err)
	}

	buf := make([]byte, chunkSize)
	for {
		r, err := f.Read(buf)
		if r > 0 {
			if _, sendErr := tr.SendPacket(handle, buf[:r]); sendErr != nil {
				return fmt.Errorf("httpserver: send body: %w", sendErr)
			}
		}
		if err != nil {
			break
		}
	}

	return nil
}

func sendNotFound(tr *transport.Transport, handle transport.Handle) error {
	header := fmt.Sprintf(
		"HTTP/1.1 404 Not Found\r\nContent-Length: %d\r\nContent-Type: text/html; charset=utf-8\r\n\r\n",
		len(notFoundBody),
	)

	if err := sendAll(tr, handle, []byte(header)); err != nil {
		return fmt.Errorf("httpserver: send 404 header: %w", err)
	}

	return sendAll(tr, handle, []byte(notFoundBody))
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

func parseRequestLine(req string) (method, path string, ok bool) {
	line := req
	if idx := strings.IndexAny(req, "\r\n"); idx != -1 {
		line = req[:idx]
	}

	fields := strings.Fields(line)
	if len(fields) != 3 {
		return "", "", false
	}

	return fields[0], fields[1], true
}

// resolvePath maps a request path to a path under the served root,
// rejecting traversal attempts.
func resolvePath(rawPath string) (string, bool) {
	if rawPath == "/" {
		return "index.html", true
	}

	p := strings.TrimPrefix(rawPath, "/")
	if p == "" || strings.Contains(p, "..") {
		return "", false
	}

	return p, true
}
