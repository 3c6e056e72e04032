// Package peerbook implements the fixed-capacity table mapping a transport
// handle to its last-known remote address, populated during the RUDP
// handshake.
package peerbook

import (
	"errors"
	"net"
	"sync"
)

// ErrFull is returned by Save when the table has no free slot and handle
// has no existing entry.
var ErrFull = errors.New("peerbook: address book is full")

// ErrNoPeer is returned by Get when handle has no entry.
var ErrNoPeer = errors.New("peerbook: no peer registered for handle")

// Book is a fixed-capacity, mutex-guarded handle-to-address table. The zero
// value is not usable; construct with New.
type Book struct {
	mu       sync.Mutex
	capacity int
	order    []int64 // insertion order of handles; capacity is checked on len(entries)
	entries  map[int64]net.Addr
}

// New returns a Book that holds at most capacity entries.
func New(capacity int) *Book {
	return &Book{
		capacity: capacity,
		entries:  make(map[int64]net.Addr, capacity),
	}
}

// Save inserts or updates the entry for handle. It fails with ErrFull only
// when the table is at capacity and handle has no existing entry.
func (b *Book) Save(handle int64, addr net.Addr) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.entries[handle]; exists {
		b.entries[handle] = addr
		return nil
	}

	if len(b.entries) >= b.capacity {
		return ErrFull
	}

	b.entries[handle] = addr
	b.order = append(b.order, handle)

	return nil
}

// Get returns the last-saved address for handle, or ErrNoPeer if unknown.
func (b *Book) Get(handle int64) (net.Addr, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	addr, exists := b.entries[handle]
	if !exists {
		return nil, ErrNoPeer
	}

	return addr, nil
}

// Len returns the current number of distinct handles in the book. Intended
// for metrics and tests; it is never consulted by Save/Get (capacity
// enforcement tracks the map itself, not this accessor).
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.entries)
}
