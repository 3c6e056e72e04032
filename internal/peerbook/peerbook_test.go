package peerbook

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(s string) net.Addr {
	a, _ := net.ResolveUDPAddr("udp", s)
	return a
}

func TestSaveAndGet(t *testing.T) {
	b := New(4)

	err := b.Save(1, addr("127.0.0.1:9000"))
	require.NoError(t, err)

	got, err := b.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", got.String())
}

func TestGetUnknownHandle(t *testing.T) {
	b := New(4)

	_, err := b.Get(99)
	assert.ErrorIs(t, err, ErrNoPeer)
}

func TestSaveUpdatesExistingEntry(t *testing.T) {
	b := New(1)

	require.NoError(t, b.Save(1, addr("127.0.0.1:9000")))
	require.NoError(t, b.Save(1, addr("127.0.0.1:9001")))

	got, err := b.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9001", got.String())
	assert.Equal(t, 1, b.Len(), "rebinding the same handle must not grow the table")
}

func TestSaveFullRejectsOnlyNewHandles(t *testing.T) {
	b := New(2)

	require.NoError(t, b.Save(1, addr("127.0.0.1:9000")))
	require.NoError(t, b.Save(2, addr("127.0.0.1:9001")))

	// Table is full, but handle 1 already has an entry: update must succeed.
	require.NoError(t, b.Save(1, addr("127.0.0.1:9002")))

	// A brand new handle must be rejected.
	err := b.Save(3, addr("127.0.0.1:9003"))
	assert.ErrorIs(t, err, ErrFull)
}

func TestAtMostOneEntryPerHandle(t *testing.T) {
	b := New(8)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Save(1, addr("127.0.0.1:9000")))
	}

	assert.Equal(t, 1, b.Len())
}
