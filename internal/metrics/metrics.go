// Package metrics exposes transport-core counters as a prometheus.Collector:
// datagrams sent, retransmits, ACKs received, handshakes completed/failed,
// peer-book rejections, and a per-connection gauge labeled by correlation ID.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector tracks process-wide transport counters plus a per-connection
// gauge labeled by correlation ID. The zero value is not usable; construct
// with New.
type Collector struct {
	datagramsSent        uint64
	retransmits          uint64
	acksReceived         uint64
	handshakesCompleted  uint64
	handshakesFailed     uint64
	peerBookRejections   uint64

	mu    sync.Mutex
	descs []*prometheus.Desc
	conns map[int64]connLabel // handle -> correlation id, proto; removed on Closed
}

type connLabel struct {
	id    string
	proto string
}

var connOpenDesc = prometheus.NewDesc(
	"sans_connection_open",
	"One per currently open connection, labeled by its correlation ID.",
	[]string{"id", "proto"}, nil,
)

// New returns a Collector ready to register with a prometheus.Registry.
func New() *Collector {
	c := &Collector{conns: make(map[int64]connLabel)}
	c.descs = []*prometheus.Desc{
		prometheus.NewDesc("sans_datagrams_sent_total", "RUDP datagrams transmitted.", nil, nil),
		prometheus.NewDesc("sans_retransmits_total", "RUDP retransmissions due to timeout or bad ACK.", nil, nil),
		prometheus.NewDesc("sans_acks_received_total", "RUDP ACKs that matched the current send sequence.", nil, nil),
		prometheus.NewDesc("sans_handshakes_completed_total", "RUDP handshakes that completed successfully.", nil, nil),
		prometheus.NewDesc("sans_handshakes_failed_total", "RUDP handshakes that never completed.", nil, nil),
		prometheus.NewDesc("sans_peerbook_rejections_total", "Peer address book Save calls rejected because the table was full.", nil, nil),
	}

	return c
}

// ConnectionOpened registers handle under connOpenDesc, labeled with its
// correlation id and protocol name, until ConnectionClosed removes it.
func (c *Collector) ConnectionOpened(handle int64, id, proto string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conns[handle] = connLabel{id: id, proto: proto}
}

// ConnectionClosed removes handle's entry, matching exporter_example2's
// Add/Remove pairing around http.StateNew/http.StateClosed.
func (c *Collector) ConnectionClosed(handle int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.conns, handle)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range c.descs {
		ch <- d
	}
	ch <- connOpenDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	descs := c.descs
	conns := make(map[int64]connLabel, len(c.conns))
	for h, l := range c.conns {
		conns[h] = l
	}
	c.mu.Unlock()

	values := []uint64{
		atomic.LoadUint64(&c.datagramsSent),
		atomic.LoadUint64(&c.retransmits),
		atomic.LoadUint64(&c.acksReceived),
		atomic.LoadUint64(&c.handshakesCompleted),
		atomic.LoadUint64(&c.handshakesFailed),
		atomic.LoadUint64(&c.peerBookRejections),
	}

	for i, d := range descs {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(values[i]))
	}

	for _, l := range conns {
		ch <- prometheus.MustNewConstMetric(connOpenDesc, prometheus.GaugeValue, 1, l.id, l.proto)
	}
}

func (c *Collector) DatagramSent()       { atomic.AddUint64(&c.datagramsSent, 1) }
func (c *Collector) Retransmit()         { atomic.AddUint64(&c.retransmits, 1) }
func (c *Collector) AckReceived()        { atomic.AddUint64(&c.acksReceived, 1) }
func (c *Collector) HandshakeCompleted() { atomic.AddUint64(&c.handshakesCompleted, 1) }
func (c *Collector) HandshakeFailed()    { atomic.AddUint64(&c.handshakesFailed, 1) }
func (c *Collector) PeerBookRejection()  { atomic.AddUint64(&c.peerBookRejections, 1) }
