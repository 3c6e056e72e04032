// Package sendqueue implements the bounded send window and the background
// retransmitter that drives the RUDP stop-and-wait protocol.
package sendqueue

import (
	"sync"
	"time"

	"github.com/kulaginds/sans/internal/logging"
	"github.com/kulaginds/sans/internal/wire"
)

// Transmitter is the underlying primitive the worker drives: send one
// datagram, and receive one datagram (with whatever deadline the caller has
// already configured on the connection).
type Transmitter interface {
	Transmit(buf []byte) error
	Receive(buf []byte) (int, error)
}

// Clock abstracts time so tests can avoid sleeping through real timeouts.
type Clock interface {
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// entry is one queued outbound DATA packet awaiting acknowledgement.
type entry struct {
	payload []byte
}

// Config holds the retransmitter's timing knobs.
type Config struct {
	WindowSize        int
	RetransmitBackoff time.Duration
	WorkerIdlePoll    time.Duration
	MaxRetransmits    int // 0 = unlimited
}

// Queue is a bounded FIFO of outbound DATA packets, capacity WindowSize
// (spec default: 1, stop-and-wait). One Queue belongs to exactly one RUDP
// connection and owns that connection's send_seq counter.
type Queue struct {
	cfg   Config
	tx    Transmitter
	clock Clock
	log   *logging.Logger

	mu      sync.Mutex
	notFull *sync.Cond
	entries []entry

	sendSeq uint32

	stopped bool
	done    chan struct{}

	onSent func() // metrics hooks, may be nil
	onAck  func()
	onRetx func()
}

// New constructs a Queue bound to tx, with its own background worker not
// yet started (call Run in a goroutine).
func New(cfg Config, tx Transmitter) *Queue {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 1
	}

	q := &Queue{
		cfg:   cfg,
		tx:    tx,
		clock: realClock{},
		log:   logging.Default(),
		done:  make(chan struct{}),
	}
	q.notFull = sync.NewCond(&q.mu)

	return q
}

// SetClock overrides the queue's clock, for tests that want to avoid real
// sleeps. Must be called before Run.
func (q *Queue) SetClock(c Clock) { q.clock = c }

// SetHooks installs optional metrics callbacks invoked as the worker makes
// progress. Must be called before Run.
func (q *Queue) SetHooks(onSent, onAck, onRetx func()) {
	q.onSent, q.onAck, q.onRetx = onSent, onAck, onRetx
}

// SendSeq returns the queue's current send sequence number.
func (q *Queue) SendSeq() uint32 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.sendSeq
}

// Enqueue blocks while the queue is full, then appends payload and returns.
// It does not wait for transmission or acknowledgement.
func (q *Queue) Enqueue(payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.entries) >= q.cfg.WindowSize && !q.stopped {
		q.notFull.Wait()
	}

	if q.stopped {
		return
	}

	q.entries = append(q.entries, entry{payload: cp})
}

// Stop halts the background worker. Safe to call once; further Enqueue
// calls return without blocking.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.notFull.Broadcast()
	q.mu.Unlock()

	close(q.done)
}

// Run drives the stop-and-wait loop described in spec.md §4.3: stamp the
// head entry with the current send sequence, transmit, await a matching
// ACK with a receive timeout, and only then dequeue and advance. Run
// returns when Stop is called.
func (q *Queue) Run() {
	ackBuf := make([]byte, wire.MaxDatagramSize)
	retries := 0

	for {
		select {
		case <-q.done:
			return
		default:
		}

		q.mu.Lock()
		if q.stopped {
			q.mu.Unlock()
			return
		}
		if len(q.entries) == 0 {
			q.mu.Unlock()
			q.clock.Sleep(q.cfg.WorkerIdlePoll)
			continue
		}
		head := q.entries[0]
		seq := q.sendSeq
		q.mu.Unlock()

		pkt := wire.Data(seq, head.payload)
		buf, err := wire.Encode(pkt)
		if err != nil {
			q.log.Error("sendqueue: failed to encode packet seq=%d: %v", seq, err)
			q.dequeueLocked()
			continue
		}

		if err := q.tx.Transmit(buf); err != nil {
			q.log.Debug("sendqueue: transmit failed, backing off: %v", err)
			q.clock.Sleep(q.cfg.RetransmitBackoff)
			continue
		}
		if q.onSent != nil {
			q.onSent()
		}

		n, err := q.tx.Receive(ackBuf)
		if err != nil {
			// Timeout or receive error: the outer loop retransmits.
			retries++
			if q.onRetx != nil {
				q.onRetx()
			}
			if q.cfg.MaxRetransmits > 0 && retries >= q.cfg.MaxRetransmits {
				q.log.Warn("sendqueue: giving up on seq=%d after %d retries", seq, retries)
				q.dequeueLocked()
				retries = 0
			}
			continue
		}

		ack, err := wire.Decode(ackBuf[:n])
		if err != nil || !ack.HasFlag(wire.FlagACK) || ack.Seq != seq {
			// Stale or malformed ACK: do not advance, do not dequeue.
			retries++
			if q.onRetx != nil {
				q.onRetx()
			}
			continue
		}

		q.mu.Lock()
		q.sendSeq++
		if len(q.entries) > 0 {
			q.entries = q.entries[1:]
		}
		q.notFull.Signal()
		q.mu.Unlock()
		if q.onAck != nil {
			q.onAck()
		}
		retries = 0
	}
}

func (q *Queue) dequeueLocked() {
	q.mu.Lock()
	if len(q.entries) > 0 {
		q.entries = q.entries[1:]
	}
	q.notFull.Signal()
	q.mu.Unlock()
}

// Len reports the current queue depth. Intended for metrics and tests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.entries)
}
