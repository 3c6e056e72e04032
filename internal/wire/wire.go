// Package wire implements the RUDP datagram header: encoding, decoding, and
// the type-flag bitmask shared by every packet on the wire.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Type flags. A SYN-ACK is FlagSYN|FlagACK.
const (
	FlagDATA byte = 0
	FlagSYN  byte = 1
	FlagACK  byte = 2
	FlagFIN  byte = 4
)

// HeaderSize is the fixed on-wire header length: type (1 byte) + seqnum (4 bytes).
const HeaderSize = 5

// MaxDatagramSize is the largest datagram the transport will ever produce,
// header included.
const MaxDatagramSize = 1024

// ErrShortPacket is returned by Decode when the input is too small to hold a header.
var ErrShortPacket = errors.New("wire: packet shorter than header")

// ErrPayloadTooLarge is returned by Encode when payload would push the
// datagram past MaxDatagramSize.
var ErrPayloadTooLarge = errors.New("wire: payload too large for one datagram")

// Packet is one RUDP datagram: header plus opaque application payload.
type Packet struct {
	Type    byte
	Seq     uint32
	Payload []byte
}

// HasFlag reports whether all bits in flag are set in the packet's type.
func (p Packet) HasFlag(flag byte) bool {
	return p.Type&flag == flag
}

// Encode serializes p into a freshly allocated buffer, little-endian.
func Encode(p Packet) ([]byte, error) {
	if HeaderSize+len(p.Payload) > MaxDatagramSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(p.Payload))
	}

	buf := make([]byte, HeaderSize+len(p.Payload))
	buf[0] = p.Type
	binary.LittleEndian.PutUint32(buf[1:5], p.Seq)
	copy(buf[5:], p.Payload)

	return buf, nil
}

// Decode parses a Packet out of a received datagram. The returned Payload
// aliases buf; callers that retain it past the next receive must copy it.
func Decode(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: got %d bytes", ErrShortPacket, len(buf))
	}

	return Packet{
		Type:    buf[0],
		Seq:     binary.LittleEndian.Uint32(buf[1:5]),
		Payload: buf[HeaderSize:],
	}, nil
}

// SynAck builds a SYN-ACK header-only packet for the given sequence number.
func SynAck(seq uint32) Packet {
	return Packet{Type: FlagSYN | FlagACK, Seq: seq}
}

// Syn builds a SYN header-only packet.
func Syn(seq uint32) Packet {
	return Packet{Type: FlagSYN, Seq: seq}
}

// Ack builds an ACK header-only packet acknowledging seq.
func Ack(seq uint32) Packet {
	return Packet{Type: FlagACK, Seq: seq}
}

// Data builds a DATA packet carrying payload at sequence seq.
func Data(seq uint32, payload []byte) Packet {
	return Packet{Type: FlagDATA, Seq: seq, Payload: payload}
}
