package api

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/session"
)

// recentEvents bounds the replay buffer handed to new subscribers.
const recentEvents = 64

// Event is one entry of the session event feed.
type Event struct {
	Time   time.Time `json:"time"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// Feed records session milestones and fans them out to subscribers.
// Controller hubs fire on the pose-processing goroutine; subscriber
// channels decouple the HTTP side from it.
type Feed struct {
	mu          sync.Mutex
	subscribers map[string]chan Event
	recent      []Event
	closing     bool
}

// NewFeed wires a feed to the controller's session hubs.
func NewFeed(c *session.Controller) *Feed {
	f := &Feed{subscribers: make(map[string]chan Event)}

	c.TestNamesUpdated.Subscribe(func(names []string) {
		f.publish(Event{Kind: "tests", Detail: strings.Join(names, ",")})
	})
	c.GuidanceStarted.Subscribe(func(struct{}) {
		f.publish(Event{Kind: "guidance_started"})
	})
	c.LocationFinished.Subscribe(func(loc string) {
		f.publish(Event{Kind: "location_finished", Detail: loc})
	})
	c.TestStarted.Subscribe(func(k session.TestKind) {
		f.publish(Event{Kind: "test_started", Detail: k.String()})
	})
	c.TestFinished.Subscribe(func(k session.TestKind) {
		f.publish(Event{Kind: "test_finished", Detail: k.String()})
	})
	c.SessionEnded.Subscribe(func(struct{}) {
		f.publish(Event{Kind: "session_ended"})
	})

	return f
}

func randomID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new subscriber and returns its id and channel.
func (f *Feed) Subscribe() (string, chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := randomID()
	c := make(chan Event, 16)
	f.subscribers[id] = c
	return id, c
}

// Unsubscribe removes a subscriber and closes its channel.
func (f *Feed) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.subscribers[id]; ok {
		close(c)
		delete(f.subscribers, id)
	}
}

// Recent returns a copy of the buffered event tail.
func (f *Feed) Recent() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.recent))
	copy(out, f.recent)
	return out
}

// Close drops all subscribers. Further publishes are discarded.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closing = true
	for id, c := range f.subscribers {
		close(c)
		delete(f.subscribers, id)
	}
}

func (f *Feed) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closing {
		return
	}

	f.recent = append(f.recent, ev)
	if len(f.recent) > recentEvents {
		f.recent = f.recent[len(f.recent)-recentEvents:]
	}

	for _, c := range f.subscribers {
		select {
		case c <- ev:
		default:
			// Slow subscriber, drop the event.
		}
	}
}
