// Package bustest provides an in-memory bus.Bus for tests of components that
// sit on top of the connection manager.
package bustest

import (
	"sync"

	"cat_feeder/internal/bus"
)

// Message is one publish recorded by the fake.
type Message struct {
	Topic   string
	Payload []byte
}

// Fake is a bus.Bus whose state is driven by the test. Publishes are recorded
// only while connected, like the real manager. Inbound traffic is injected with
// Deliver.
type Fake struct {
	mu           sync.Mutex
	state        bus.State
	lastErr      error
	listeners    []func(bus.Status)
	subs         map[string]bus.Handler
	subscribes   map[string]int
	unsubscribes []string
	published    []Message
	publishErr   error
}

var _ bus.Bus = (*Fake)(nil)

// New returns a fake in the given state.
func New(state bus.State) *Fake {
	return &Fake{
		state:      state,
		subs:       make(map[string]bus.Handler),
		subscribes: make(map[string]int),
	}
}

func (f *Fake) State() bus.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Fake) OnStateChange(fn func(bus.Status)) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

// SetState plays the part of the transport lifecycle.
func (f *Fake) SetState(s bus.State, err error) {
	f.mu.Lock()
	f.state = s
	if err != nil {
		f.lastErr = err
	}
	listeners := append([]func(bus.Status){}, f.listeners...)
	f.mu.Unlock()
	st := bus.Status{State: s}
	if s == bus.StateError {
		st.Err = err
	}
	for _, fn := range listeners {
		fn(st)
	}
}

// Status returns the state with its error, as bus.Manager does.
func (f *Fake) Status() bus.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := bus.Status{State: f.state}
	if f.state == bus.StateError {
		st.Err = f.lastErr
	}
	return st
}

// FailPublishes makes every later connected publish return err.
func (f *Fake) FailPublishes(err error) {
	f.mu.Lock()
	f.publishErr = err
	f.mu.Unlock()
}

func (f *Fake) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != bus.StateConnected {
		return bus.ErrNotConnected
	}
	if f.publishErr != nil {
		return f.publishErr
	}
	cp := append([]byte(nil), payload...)
	f.published = append(f.published, Message{Topic: topic, Payload: cp})
	return nil
}

func (f *Fake) Subscribe(filter string, h bus.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[filter] = h
	f.subscribes[filter]++
	return nil
}

func (f *Fake) Unsubscribe(filters ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, filter := range filters {
		delete(f.subs, filter)
		f.unsubscribes = append(f.unsubscribes, filter)
	}
	return nil
}

// Deliver hands payload to every handler whose filter matches topic.
func (f *Fake) Deliver(topic string, payload []byte) {
	f.mu.Lock()
	var handlers []bus.Handler
	for filter, h := range f.subs {
		if bus.Match(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(topic, payload)
	}
}

// Published returns every recorded publish, optionally only for one topic.
func (f *Fake) Published(topic ...string) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, m := range f.published {
		if len(topic) == 0 || m.Topic == topic[0] {
			out = append(out, m)
		}
	}
	return out
}

// SubscribeCount is how many times filter was subscribed.
func (f *Fake) SubscribeCount(filter string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes[filter]
}

// Subscribed reports whether filter currently has a handler.
func (f *Fake) Subscribed(filter string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[filter]
	return ok
}

// Unsubscribed lists every filter passed to Unsubscribe, in order.
func (f *Fake) Unsubscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unsubscribes...)
}
