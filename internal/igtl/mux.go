package igtl

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"io"
	"sync"
)

// Conner is the minimal connection a Mux reads poses from.
type Conner interface {
	io.Reader
	Close() error
}

// Mux reads poses from a single tracker connection and fans them out
// to any number of subscribers. Slow subscribers drop frames rather
// than stalling the read loop.
type Mux[T Conner] struct {
	conn         T
	subscribers  map[string]chan Pose
	subscriberMu sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// Source is the surface the rest of the program uses.
type Source interface {
	// Subscribe creates a channel receiving decoded poses. The id
	// identifies the channel when unsubscribing.
	Subscribe() (string, chan Pose)
	// Unsubscribe removes and closes a subscriber channel.
	Unsubscribe(string)
	// Monitor reads poses from the connection until the context is
	// cancelled or the connection fails.
	Monitor(context.Context) error
	// Close closes all subscriber channels and the connection.
	Close() error
}

// NewMux wraps a tracker connection.
func NewMux[T Conner](conn T) *Mux[T] {
	return &Mux[T]{
		conn:        conn,
		subscribers: make(map[string]chan Pose),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (m *Mux[T]) Subscribe() (string, chan Pose) {
	id := randomID()
	ch := make(chan Pose, 16)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the mux.
func (m *Mux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Monitor decodes poses and sends them to subscribers.
func (m *Mux[T]) Monitor(ctx context.Context) error {
	poseChan := make(chan Pose)
	readErrChan := make(chan error, 1)

	// The blocking read happens in its own goroutine so the outer loop
	// stays responsive to context cancellation.
	go func() {
		defer close(poseChan)
		for {
			p, err := ReadPose(m.conn)
			if err != nil {
				select {
				case readErrChan <- err:
				case <-ctx.Done():
				}
				return
			}
			select {
			case poseChan <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErrChan:
			if err == io.EOF {
				return nil
			}
			return err

		case p, ok := <-poseChan:
			if !ok {
				return nil
			}
			m.closingMu.Lock()
			if m.closing {
				m.closingMu.Unlock()
				return nil
			}
			m.closingMu.Unlock()

			m.subscriberMu.Lock()
			for _, ch := range m.subscribers {
				select {
				case ch <- p:
				default:
					// drop the frame rather than block the reader
				}
			}
			m.subscriberMu.Unlock()
		}
	}
}

func (m *Mux[T]) Close() error {
	m.closingMu.Lock()
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	m.subscriberMu.Unlock()
	return m.conn.Close()
}
