package transport

import "errors"

// Sentinel errors surfaced by the transport API. Recoverable protocol-level
// conditions (stale ACKs, timeouts, duplicate/out-of-order datagrams) are
// handled internally by the send queue and RecvPacket and are never
// reported through these.
var (
	ErrInvalidArgument = errors.New("sans: invalid argument")
	ErrNoAddresses     = errors.New("sans: name resolution returned no addresses")
	ErrSocket          = errors.New("sans: socket creation/bind/listen/accept failed")
	ErrNoPeer          = errors.New("sans: no peer registered for handle")
	ErrPeerBookFull    = errors.New("sans: peer address book is full")
	ErrReceive         = errors.New("sans: receive failed")
	ErrHandshakeFailed = errors.New("sans: handshake did not complete")
)
