// Package mailbox hands the latest pipeline result from the orchestrator to the
// render consumer. Only the newest message is kept.
package mailbox

import (
	"sync"
	"time"

	"github.com/brunoga/deep"

	"github.com/yegors/overhead/internal/connectivity"
	"github.com/yegors/overhead/internal/flight"
)

// Kind tells the consumer what a message carries
type Kind string

const (
	KindFlight Kind = "flight"
	KindLink   Kind = "link"
)

// Message is one publication. Valid is false when the cycle produced no flight;
// Reason then says why.
type Message struct {
	Seq         uint64             `json:"seq"`
	Kind        Kind               `json:"kind"`
	Valid       bool               `json:"valid"`
	Flight      flight.Flight      `json:"flight"`
	Tier        string             `json:"tier,omitempty"`
	Link        connectivity.State `json:"link"`
	Reason      string             `json:"reason,omitempty"`
	PublishedAt time.Time          `json:"published_at"`
}

// Mailbox is a single-slot, copy-in copy-out store with a strictly increasing
// sequence number
type Mailbox struct {
	mu     sync.Mutex
	msg    Message
	seq    uint64
	notify chan struct{}
	now    func() time.Time
}

// New creates an empty mailbox
func New() *Mailbox {
	return &Mailbox{
		notify: make(chan struct{}, 1),
		now:    time.Now,
	}
}

// Publish stores a copy of msg with the next sequence number and returns that number
func (m *Mailbox) Publish(msg Message) uint64 {
	cp := clone(msg)
	cp.PublishedAt = m.now()

	m.mu.Lock()
	m.seq++
	cp.Seq = m.seq
	m.msg = cp
	seq := m.seq
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return seq
}

// Latest returns a copy of the newest message; ok is false before the first publish
func (m *Mailbox) Latest() (Message, bool) {
	m.mu.Lock()
	msg := m.msg
	seq := m.seq
	m.mu.Unlock()

	if seq == 0 {
		return Message{}, false
	}
	// The stored message is never mutated, so copying outside the lock is safe
	return clone(msg), true
}

// Seq returns the sequence number of the newest message
func (m *Mailbox) Seq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

// Updated signals after a publish. Multiple publishes may coalesce into one signal.
func (m *Mailbox) Updated() <-chan struct{} {
	return m.notify
}

func clone(msg Message) Message {
	cp, err := deep.Copy(msg)
	if err != nil {
		// Flight holds only plain data; fall back to copying the position by hand
		cp = msg
		if msg.Flight.Position != nil {
			p := *msg.Flight.Position
			cp.Flight.Position = &p
		}
	}
	return cp
}
