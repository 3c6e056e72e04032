// Package smtp implements a minimal submission agent: HELO/MAIL FROM/RCPT
// TO/DATA dialogue over the transport package, with dot-stuffing on the
// message body.
package smtp

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kulaginds/sans/transport"
)

const recvChunk = 256 // matches the protocol's short control-line responses
const sendChunk = 1024

// ErrUnexpectedResponse is returned when a command's reply doesn't start
// with the expected three-digit code.
var ErrUnexpectedResponse = errors.New("smtp: unexpected server response")

// Send connects to host:port, submits the message at bodyPath to rcpt, and
// writes the post-DATA 250 response line to out.
func Send(tr *transport.Transport, host string, port int, rcpt, bodyPath string, out io.Writer) error {
	handle, err := tr.Connect(host, port, transport.ProtoTCP)
	if err != nil {
		return fmt.Errorf("smtp: connect: %w", err)
	}
	defer tr.Disconnect(handle)

	if err := expectGreeting(tr, handle); err != nil {
		return err
	}

	if err := commandExpect(tr, handle, fmt.Sprintf("HELO %s\r\n", host), "250"); err != nil {
		return err
	}
	if err := commandExpect(tr, handle, fmt.Sprintf("MAIL FROM:<%s>\r\n", rcpt), "250"); err != nil {
		return err
	}
	if err := commandExpect(tr, handle, fmt.Sprintf("RCPT TO:<%s>\r\n", rcpt), "250"); err != nil {
		return err
	}
	if err := commandExpect(tr, handle, "DATA\r\n", "354"); err != nil {
		return err
	}

	endsWithCRLF, err := streamBodyDotStuffed(tr, handle, bodyPath)
	if err != nil {
		return fmt.Errorf("smtp: send body: %w", err)
	}

	if !endsWithCRLF {
		if err := sendAll(tr, handle, []byte("\r\n")); err != nil {
			return fmt.Errorf("smtp: send: %w", err)
		}
	}
	if err := sendAll(tr, handle, []byte(".\r\n")); err != nil {
		return fmt.Errorf("smtp: send terminator: %w", err)
	}

	resp, err := recvOne(tr, handle)
	if err != nil {
		return fmt.Errorf("smtp: receive completion: %w", err)
	}
	fmt.Fprint(out, resp)

	_ = sendAll(tr, handle, []byte("QUIT\r\n"))
	_, _ = recvOne(tr, handle)

	return nil
}

func expectGreeting(tr *transport.Transport, handle transport.Handle) error {
	resp, err := recvOne(tr, handle)
	if err != nil {
		return fmt.Errorf("smtp: greeting: %w", err)
	}
	if !hasCode(resp, "220") {
		return fmt.Errorf("%w: greeting %q", ErrUnexpectedResponse, resp)
	}

	return nil
}

func commandExpect(tr *transport.Transport, handle transport.Handle, cmd, code string) error {
	if err := sendAll(tr, handle, []byte(cmd)); err != nil {
		return fmt.Errorf("smtp: send %q: %w", cmd, err)
	}

	resp, err := recvOne(tr, handle)
	if err != nil {
		return fmt.Errorf("smtp: response to %q: %w", cmd, err)
	}
	if !hasCode(resp, code) {
		return fmt.Errorf("%w: %q to %q", ErrUnexpectedResponse, resp, cmd)
	}

	return nil
}

func hasCode(resp, code string) bool {
	return len(resp) >= 3 && resp[:3] == code
}

func recvOne(tr *transport.Transport, handle transport.Handle) (string, error) {
	buf := make([]byte, recvChunk)
	n, err := tr.RecvPacket(handle, buf)
	if err != nil {
		return "", err
	}

	return string(buf[:n]), nil
}

func sendAll(tr *transport.Transport, handle transport.Handle, buf []byte) error {
	for len(buf) > 0 {
		n := len(buf)
		if n > sendChunk {
			n = sendChunk
		}

		if _, err := tr.SendPacket(handle, buf[:n]); err != nil {
			return err
		}

		buf = buf[n:]
	}

	return nil
}

// streamBodyDotStuffed reads bodyPath and sends it with lines beginning
// with '.' doubled, reporting whether the stream ended on a bare CRLF.
func streamBodyDotStuffed(tr *transport.Transport, handle transport.Handle, bodyPath string) (bool, error) {
	f, err := os.Open(bodyPath)
	if err != nil {
		return false, nil // matches the original: a missing body is not fatal
	}
	defer f.Close()

	in := make([]byte, 2048)
	out := make([]byte, 0, sendChunk)

	bol := true
	prevCR := false
	endsWithCRLF := false

	for {
		got, readErr := f.Read(in)
		if got > 0 {
			for i := 0; i < got; i++ {
				c := in[i]

				if bol && c == '.' {
					if len(out) >= sendChunk {
						if err := sendAll(tr, handle, out); err != nil {
							return false, err
						}
						out = out[:0]
					}
					out = append(out, '.')
				}

				if len(out) >= sendChunk {
					if err := sendAll(tr, handle, out); err != nil {
						return false, err
					}
					out = out[:0]
				}
				out = append(out, c)

				switch c {
				case '\r':
					prevCR = true
					bol = false
					endsWithCRLF = false
				case '\n':
					bol = true
					endsWithCRLF = prevCR
					prevCR = false
				default:
					bol = false
					prevCR = false
					endsWithCRLF = false
				}
			}

			if len(out) > 0 {
				if err := sendAll(tr, handle, out); err != nil {
					return false, err
				}
				out = out[:0]
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return false, readErr
		}
	}

	return endsWithCRLF, nil
}
