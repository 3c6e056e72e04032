// Package transport is the socket-like API: Connect, Accept, SendPacket,
// RecvPacket, and Disconnect, dispatching on a protocol selector between
// plain TCP and a homegrown reliable-UDP (RUDP) protocol.
package transport

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"

	"github.com/kulaginds/sans/internal/config"
	"github.com/kulaginds/sans/internal/logging"
	"github.com/kulaginds/sans/internal/metrics"
	"github.com/kulaginds/sans/internal/peerbook"
	"github.com/kulaginds/sans/internal/wire"
)

// Handle is an opaque socket handle. Created by Connect/Accept, released
// exclusively by Disconnect; not reused by the transport while open.
type Handle int64

// Protocol selects the transport backend.
type Protocol int

const (
	// ProtoTCP matches the platform's IPPROTO_TCP value.
	ProtoTCP Protocol = 6
	// ProtoRUDP is the library's own selector; the reference source uses 63
	// when no system constant is defined.
	ProtoRUDP Protocol = 63
)

// Transport owns the handle table, the peer address book, and the shared
// metrics collector for every connection it creates.
type Transport struct {
	cfg     *config.Config
	peers   *peerbook.Book
	metrics *metrics.Collector
	log     *logging.Logger

	mu         sync.Mutex
	conns      map[Handle]*connection
	nextHandle int64
}

// New constructs a Transport from cfg.
func New(cfg *config.Config) *Transport {
	return &Transport{
		cfg:     cfg,
		peers:   peerbook.New(cfg.Transport.PeerBookCapacity),
		metrics: metrics.New(),
		log:     logging.Default(),
		conns:   make(map[Handle]*connection),
	}
}

// Metrics returns the transport's prometheus collector, for registration
// with an exporter.
func (t *Transport) Metrics() *metrics.Collector { return t.metrics }

var (
	defaultOnce      sync.Once
	defaultTransport *Transport
)

// Default returns a process-wide Transport built from config.Load(),
// constructed lazily on first use.
func Default() *Transport {
	defaultOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			cfg, _ = config.LoadWithOverrides(config.LoadOptions{})
		}
		defaultTransport = New(cfg)
	})

	return defaultTransport
}

func (t *Transport) newHandle() Handle {
	return Handle(atomic.AddInt64(&t.nextHandle, 1))
}

func (t *Transport) newConnRecord(handle Handle, proto Protocol) *connection {
	return &connection{handle: handle, proto: proto, id: xid.New()}
}

func validPort(port int) bool {
	return port >= 1 && port <= 65535
}

// Connect resolves host:port and opens a connection over proto, returning
// its handle.
func (t *Transport) Connect(host string, port int, proto Protocol) (Handle, error) {
	if host == "" {
		return 0, ErrInvalidArgument
	}
	if !validPort(port) {
		return 0, ErrInvalidArgument
	}

	switch proto {
	case ProtoTCP:
		return t.connectTCP(host, port)
	case ProtoRUDP:
		return t.connectRUDP(host, port)
	default:
		return 0, ErrInvalidArgument
	}
}

// Accept binds iface:port and waits for exactly one incoming connection
// over proto, returning its handle.
func (t *Transport) Accept(iface string, port int, proto Protocol) (Handle, error) {
	if !validPort(port) {
		return 0, ErrInvalidArgument
	}

	switch proto {
	case ProtoTCP:
		return t.acceptTCP(iface, port)
	case ProtoRUDP:
		return t.acceptRUDP(iface, port)
	default:
		return 0, ErrInvalidArgument
	}
}

func (t *Transport) lookup(h Handle) (*connection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.conns[h]
	return c, ok
}

// SendPacket enqueues buf as one application packet on handle's connection
// and returns once queued; actual transmission and acknowledgement (for
// RUDP) happen asynchronously. len(buf) should stay within
// wire.MaxDatagramSize-wire.HeaderSize; callers chunk larger payloads.
func (t *Transport) SendPacket(h Handle, buf []byte) (int, error) {
	c, ok := t.lookup(h)
	if !ok {
		return 0, ErrNoPeer
	}

	if c.proto == ProtoTCP {
		n, err := c.tcp.Write(buf)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrSocket, err)
		}

		return n, nil
	}

	if _, err := t.peers.Get(int64(h)); err != nil {
		return 0, ErrNoPeer
	}

	c.queue.Enqueue(buf)

	return len(buf), nil
}

// RecvPacket blocks for one application packet delivered to handle and
// copies it (truncated to len(buf)) into buf, returning the delivered
// length. A return of (0, nil) indicates orderly close.
func (t *Transport) RecvPacket(h Handle, buf []byte) (int, error) {
	c, ok := t.lookup(h)
	if !ok {
		return 0, ErrNoPeer
	}

	if c.proto == ProtoTCP {
		n, err := c.tcp.Read(buf)
		if err != nil {
			if err == io.EOF {
				return 0, nil
			}
			return 0, fmt.Errorf("%w: %v", ErrReceive, err)
		}

		return n, nil
	}

	return t.recvRUDP(c, buf)
}

// recvRUDP implements spec.md §4.4.5: read one datagram (preferring the
// handshake carry-over buffer first), validate its sequence number against
// recv_seq, re-acknowledge and loop on mismatch, otherwise deliver the
// payload and advance.
func (t *Transport) recvRUDP(c *connection, out []byte) (int, error) {
	scratch := make([]byte, wire.MaxDatagramSize)

	for {
		var n int

		if c.pending != nil {
			n = copy(scratch, c.pending)
			c.pending = nil
		} else {
			read, _, err := c.udp.ReadFromUDP(scratch)
			if err != nil {
				return 0, fmt.Errorf("%w: %v", ErrReceive, err)
			}
			n = read
		}

		pkt, err := wire.Decode(scratch[:n])
		if err != nil {
			continue
		}

		if pkt.Seq != c.recvSeq {
			t.reack(c, c.recvSeq-1)
			continue
		}

		payload := pkt.Payload
		if len(payload) > len(out) {
			payload = payload[:len(out)]
		}
		copied := copy(out, payload)

		t.reack(c, c.recvSeq)
		c.recvSeq++

		return copied, nil
	}
}

func (t *Transport) reack(c *connection, seq uint32) {
	ackBuf, err := wire.Encode(wire.Ack(seq))
	if err != nil {
		return
	}

	if _, err := c.udp.WriteToUDP(ackBuf, c.peerAddr); err != nil {
		t.log.Debug("recv: ACK send failed (id=%s): %v", c.id, err)
	}
}

// Disconnect releases handle's underlying socket and stops its
// retransmitter. The peer address-book entry is not removed.
func (t *Transport) Disconnect(h Handle) error {
	t.mu.Lock()
	c, ok := t.conns[h]
	if ok {
		delete(t.conns, h)
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: handle %d", ErrNoPeer, h)
	}

	t.log.Debug("disconnect: id=%s handle=%d", c.id, h)
	t.metrics.ConnectionClosed(int64(h))

	if c.queue != nil {
		c.queue.Stop()
	}

	var err error
	switch {
	case c.tcp != nil:
		err = c.tcp.Close()
	case c.udp != nil:
		err = c.udp.Close()
	}

	if err != nil {
		return fmt.Errorf("%w: %v", ErrSocket, err)
	}

	return nil
}
