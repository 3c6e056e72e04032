package transport

import (
	"net"
	"time"

	"github.com/rs/xid"

	"github.com/kulaginds/sans/internal/sendqueue"
)

// connection is the handle table's per-handle record: the underlying
// socket, per-handle sequence counters (spec.md §9's recommended
// generalization of the reference's process-wide counters), and, for RUDP,
// the send queue and its retransmitter goroutine.
type connection struct {
	handle Handle
	proto  Protocol
	id     xid.ID

	// TCP
	tcp net.Conn

	// RUDP
	udp      *net.UDPConn
	peerAddr *net.UDPAddr
	recvSeq  uint32
	pending  []byte // one datagram carried over from the accept-side handshake
	queue    *sendqueue.Queue
}

// udpTransmitter adapts a bound *net.UDPConn and a fixed peer address to the
// sendqueue.Transmitter interface the retransmitter drives.
type udpTransmitter struct {
	conn    *net.UDPConn
	addr    *net.UDPAddr
	timeout time.Duration
}

func (u *udpTransmitter) Transmit(buf []byte) error {
	_, err := u.conn.WriteToUDP(buf, u.addr)
	return err
}

func (u *udpTransmitter) Receive(buf []byte) (int, error) {
	if err := u.conn.SetReadDeadline(time.Now().Add(u.timeout)); err != nil {
		return 0, err
	}

	n, _, err := u.conn.ReadFromUDP(buf)
	return n, err
}
