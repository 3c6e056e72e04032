package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pkt  Packet
	}{
		{"data with payload", Data(7, []byte("hello"))},
		{"syn", Syn(0)},
		{"synack", SynAck(0)},
		{"ack", Ack(41)},
		{"empty payload data", Data(3, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Encode(tt.pkt)
			require.NoError(t, err)
			assert.Equal(t, HeaderSize+len(tt.pkt.Payload), len(buf))

			got, err := Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.pkt.Type, got.Type)
			assert.Equal(t, tt.pkt.Seq, got.Seq)
			assert.Equal(t, len(tt.pkt.Payload), len(got.Payload))
		})
	}
}

func TestDecodeShortPacket(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestEncodePayloadTooLarge(t *testing.T) {
	_, err := Encode(Data(0, make([]byte, MaxDatagramSize)))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestSynAckHasBothFlags(t *testing.T) {
	p := SynAck(5)
	assert.True(t, p.HasFlag(FlagSYN))
	assert.True(t, p.HasFlag(FlagACK))
	assert.False(t, p.HasFlag(FlagFIN))
}

func TestDecodeAliasesInput(t *testing.T) {
	buf, err := Encode(Data(1, []byte("payload")))
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)

	buf[HeaderSize] = 'X'
	assert.Equal(t, byte('X'), got.Payload[0], "Decode should alias the input buffer")
}
