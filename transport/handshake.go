package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/kulaginds/sans/internal/peerbook"
	"github.com/kulaginds/sans/internal/sendqueue"
	"github.com/kulaginds/sans/internal/wire"
)

func resolveHosts(host string) ([]string, error) {
	addrs, err := net.DefaultResolver.LookupHost(context.Background(), host)
	if err != nil || len(addrs) == 0 {
		return nil, ErrNoAddresses
	}

	return addrs, nil
}

func (t *Transport) connectTCP(host string, port int) (Handle, error) {
	addrs, err := resolveHosts(host)
	if err != nil {
		return 0, err
	}

	dialer := net.Dialer{Timeout: t.cfg.Transport.HandshakeTimeout * 10}

	for _, a := range addrs {
		conn, err := dialer.Dial("tcp", net.JoinHostPort(a, strconv.Itoa(port)))
		if err != nil {
			continue
		}

		return t.registerTCP(conn), nil
	}

	return 0, fmt.Errorf("%w: no candidate accepted connection", ErrSocket)
}

func (t *Transport) acceptTCP(iface string, port int) (Handle, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(iface, strconv.Itoa(port)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSocket, err)
	}
	defer ln.Close()

	conn, err := ln.Accept()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSocket, err)
	}

	return t.registerTCP(conn), nil
}

func (t *Transport) registerTCP(conn net.Conn) Handle {
	handle := t.newHandle()
	c := t.newConnRecord(handle, ProtoTCP)
	c.tcp = conn

	t.mu.Lock()
	t.conns[handle] = c
	t.mu.Unlock()

	t.log.Debug("tcp: connection registered id=%s handle=%d peer=%s", c.id, handle, conn.RemoteAddr())
	t.metrics.ConnectionOpened(int64(handle), c.id.String(), "tcp")

	return handle
}

func (t *Transport) connectRUDP(host string, port int) (Handle, error) {
	addrs, err := resolveHosts(host)
	if err != nil {
		return 0, err
	}

	for _, a := range addrs {
		raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(a, strconv.Itoa(port)))
		if err != nil {
			continue
		}

		conn, err := net.ListenUDP("udp", nil)
		if err != nil {
			continue
		}

		handle, err := t.clientHandshake(conn, raddr)
		if err != nil {
			conn.Close()
			t.metrics.HandshakeFailed()
			continue
		}

		return handle, nil
	}

	return 0, ErrHandshakeFailed
}

// clientHandshake drives spec.md §4.4.3's client side: send SYN, wait for
// SYN-ACK (any other reply or timeout just retries), then send the final
// ACK and declare the handshake complete.
func (t *Transport) clientHandshake(conn *net.UDPConn, raddr *net.UDPAddr) (Handle, error) {
	synBuf, err := wire.Encode(wire.Syn(0))
	if err != nil {
		return 0, err
	}

	buf := make([]byte, wire.MaxDatagramSize)

	for {
		if _, err := conn.WriteToUDP(synBuf, raddr); err != nil {
			t.log.Debug("connect: SYN send failed: %v", err)
		}

		if err := conn.SetReadDeadline(time.Now().Add(t.cfg.Transport.HandshakeTimeout)); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrSocket, err)
		}

		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue // timeout: resend SYN
		}

		pkt, err := wire.Decode(buf[:n])
		if err != nil {
			continue
		}

		if !pkt.HasFlag(wire.FlagSYN) || !pkt.HasFlag(wire.FlagACK) {
			continue
		}

		handle := t.newHandle()
		if err := t.peers.Save(int64(handle), from); err != nil {
			t.metrics.PeerBookRejection()
			if errors.Is(err, peerbook.ErrFull) {
				return 0, ErrPeerBookFull
			}
			return 0, err
		}

		ackBuf, err := wire.Encode(wire.Ack(0))
		if err != nil {
			return 0, err
		}
		if _, err := conn.WriteToUDP(ackBuf, from); err != nil {
			t.log.Debug("connect: final ACK send failed: %v", err)
		}

		c := t.newConnRecord(handle, ProtoRUDP)
		c.udp = conn
		c.peerAddr = from
		t.startRUDPWorker(c)

		t.mu.Lock()
		t.conns[handle] = c
		t.mu.Unlock()

		t.log.Info("connect: rudp handshake complete id=%s peer=%s", c.id, from)
		t.metrics.HandshakeCompleted()
		t.metrics.ConnectionOpened(int64(handle), c.id.String(), "rudp")

		return handle, nil
	}
}

func (t *Transport) acceptRUDP(iface string, port int) (Handle, error) {
	bindAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(iface, strconv.Itoa(port)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSocket, err)
	}

	conn, err := net.ListenUDP("udp", bindAddr)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSocket, err)
	}

	handle, err := t.serverHandshake(conn)
	if err != nil {
		conn.Close()
		t.metrics.HandshakeFailed()
		return 0, err
	}

	return handle, nil
}

// serverHandshake drives spec.md §4.4.3's server side: wait for SYN, reply
// with SYN-ACK until any datagram arrives (the loose completion condition
// spec.md §9 calls out), buffering that datagram if it turns out to be the
// first DATA packet rather than the expected final ACK.
func (t *Transport) serverHandshake(conn *net.UDPConn) (Handle, error) {
	buf := make([]byte, wire.MaxDatagramSize)

	var peerAddr *net.UDPAddr

	for peerAddr == nil {
		if err := conn.SetReadDeadline(time.Now().Add(t.cfg.Transport.HandshakeTimeout)); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrSocket, err)
		}

		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}

		pkt, err := wire.Decode(buf[:n])
		if err != nil {
			continue
		}

		if pkt.HasFlag(wire.FlagSYN) {
			peerAddr = from
		}
	}

	handle := t.newHandle()
	if err := t.peers.Save(int64(handle), peerAddr); err != nil {
		t.metrics.PeerBookRejection()
		if errors.Is(err, peerbook.ErrFull) {
			return 0, ErrPeerBookFull
		}
		return 0, err
	}

	synAckBuf, err := wire.Encode(wire.SynAck(0))
	if err != nil {
		return 0, err
	}

	var pending []byte

	for {
		if _, err := conn.WriteToUDP(synAckBuf, peerAddr); err != nil {
			t.log.Debug("accept: SYN-ACK send failed: %v", err)
		}

		if err := conn.SetReadDeadline(time.Now().Add(t.cfg.Transport.HandshakeTimeout)); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrSocket, err)
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue // timeout: resend SYN-ACK
		}

		if pkt, decErr := wire.Decode(buf[:n]); decErr == nil && pkt.Type == wire.FlagDATA {
			pending = append([]byte(nil), buf[:n]...)
		}

		break // any datagram completes the handshake
	}

	c := t.newConnRecord(handle, ProtoRUDP)
	c.udp = conn
	c.peerAddr = peerAddr
	c.pending = pending
	t.startRUDPWorker(c)

	t.mu.Lock()
	t.conns[handle] = c
	t.mu.Unlock()

	t.log.Info("accept: rudp handshake complete id=%s peer=%s", c.id, peerAddr)
	t.metrics.HandshakeCompleted()
	t.metrics.ConnectionOpened(int64(handle), c.id.String(), "rudp")

	return handle, nil
}

func (t *Transport) startRUDPWorker(c *connection) {
	tx := &udpTransmitter{conn: c.udp, addr: c.peerAddr, timeout: t.cfg.Transport.RetransmitTimeout}
	c.queue = sendqueue.New(sendqueue.Config{
		WindowSize:        t.cfg.Transport.SendWindowSize,
		RetransmitBackoff: t.cfg.Transport.RetransmitBackoff,
		WorkerIdlePoll:    t.cfg.Transport.WorkerIdlePoll,
		MaxRetransmits:    t.cfg.Transport.MaxRetransmits,
	}, tx)
	c.queue.SetHooks(t.metrics.DatagramSent, t.metrics.AckReceived, t.metrics.Retransmit)

	go c.queue.Run()
}
