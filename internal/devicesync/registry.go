package devicesync

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"cat_feeder/internal/bus"
)

// Registry owns one Client per device id on a shared bus.
type Registry struct {
	bus  bus.Bus
	opts Options
	cfg  settings

	mu        sync.RWMutex
	clients   map[string]*Client
	listeners []func(Snapshot)
	closed    bool
}

// NewRegistry returns an empty registry. With opts.FetchOnConnect every known
// device is fetched whenever the bus reports CONNECTED.
func NewRegistry(b bus.Bus, opts Options, options ...Option) *Registry {
	cfg := defaultSettings()
	for _, o := range options {
		o(&cfg)
	}
	r := &Registry{
		bus:     b,
		opts:    opts.withDefaults(),
		cfg:     cfg,
		clients: make(map[string]*Client),
	}
	r.cfg.notify = r.broadcast
	if r.opts.FetchOnConnect {
		b.OnStateChange(func(st bus.Status) {
			if st.State == bus.StateConnected {
				go r.FetchAll()
			}
		})
	}
	return r
}

// Get returns the client for id, creating and attaching it on first use. A new
// id beyond opts.MaxDevices fails with ErrTooManyDevices.
func (r *Registry) Get(id string) (*Client, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	c, ok := r.clients[id]
	closed := r.closed
	r.mu.RUnlock()
	if ok {
		return c, nil
	}
	if closed {
		return nil, ErrClosed
	}

	r.mu.Lock()
	if c, ok := r.clients[id]; ok {
		r.mu.Unlock()
		return c, nil
	}
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if len(r.clients) >= r.opts.MaxDevices {
		r.mu.Unlock()
		r.cfg.log.Warnw("device_limit_reached", "device_id", id, "max", r.opts.MaxDevices)
		return nil, ErrTooManyDevices
	}
	c = newClient(r.bus, id, r.opts, r.cfg)
	r.clients[id] = c
	r.mu.Unlock()

	if err := c.Attach(); err != nil {
		r.cfg.log.Warnw("device_attach_failed", "device_id", c.id, "err", err)
		return c, err
	}
	r.cfg.log.Infow("device_tracked", "device_id", c.id)
	return c, nil
}

// Lookup returns the client for id without creating it.
func (r *Registry) Lookup(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[strings.TrimSpace(id)]
	return c, ok
}

// Snapshots returns one snapshot per tracked device, ordered by id.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(clients))
	for _, c := range clients {
		out = append(out, c.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OnChange registers fn to receive every snapshot change of every device.
func (r *Registry) OnChange(fn func(Snapshot)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) broadcast(s Snapshot) {
	r.mu.RLock()
	listeners := make([]func(Snapshot), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(s)
	}
}

// FetchAll starts a fetch on every tracked device. Devices that cannot fetch
// right now are skipped.
func (r *Registry) FetchAll() {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	for _, c := range clients {
		if err := c.Fetch(); err != nil && !errors.Is(err, bus.ErrNotConnected) {
			r.cfg.log.Warnw("device_fetch_failed", "device_id", c.id, "err", err)
		}
	}
}

// Close closes every client. Later Get calls fail with ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	var errs []error
	for _, c := range clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
