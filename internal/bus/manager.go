package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"cat_feeder/internal/logger"
	"cat_feeder/internal/metrics"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

var (
	ErrNotConnected       = errors.New("bus: not connected")
	ErrMissingEndpoint    = errors.New("bus: broker endpoint is not configured")
	ErrInvalidEndpoint    = errors.New("bus: invalid broker endpoint")
	ErrSubscriptionFailed = errors.New("bus: subscription failed")
)

const (
	qosAtMostOnce      byte = 0
	tokenWait               = 5 * time.Second
	disconnectQuiesce       = 250 // ms
	pingTimeout             = 10 * time.Second
	defaultClientIDPre      = "feeder-hub-"
	pingMissingErrFragment  = "pingresp not received"
)

// Handler receives one inbound message.
type Handler func(topic string, payload []byte)

// Bus is the slice of the connection that device clients and listeners use.
type Bus interface {
	State() State
	OnStateChange(fn func(Status))
	Publish(topic string, payload []byte) error
	Subscribe(filter string, h Handler) error
	Unsubscribe(filters ...string) error
}

// Options configures a Manager.
type Options struct {
	URL                    string
	ClientID               string
	ReconnectPeriod        time.Duration
	KeepAlive              time.Duration
	ConnectTimeout         time.Duration
	CleanSession           bool
	ResubscribeOnReconnect bool
}

// Option tweaks a Manager at construction.
type Option func(*Manager)

// WithLogger sets the component logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = logger.OrNop(l) }
}

// WithMetrics records state transitions and publish results.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// withClientFactory swaps the paho client, used by tests.
func withClientFactory(f func(*mqtt.ClientOptions) mqtt.Client) Option {
	return func(m *Manager) { m.newClient = f }
}

type subscription struct {
	handler     Handler
	established bool // SUBSCRIBE acknowledged on the current session
}

// Manager owns one MQTT connection. It is safe for concurrent use.
type Manager struct {
	opts      Options
	log       *logger.Logger
	metrics   *metrics.Metrics
	newClient func(*mqtt.ClientOptions) mqtt.Client
	client    mqtt.Client

	mu        sync.RWMutex
	state     State
	lastErr   error
	listeners []func(Status)
	subs      map[string]*subscription

	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	connectMu sync.Mutex // one connect loop at a time
	stop      chan struct{}
}

// New validates the options and builds the paho client. It does not connect;
// call Start. A missing endpoint is a configuration error and is returned as
// ErrMissingEndpoint.
func New(opts Options, options ...Option) (*Manager, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, ErrMissingEndpoint
	}
	if err := validateEndpoint(opts.URL); err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.ClientID = defaultClientIDPre + uuid.NewString()[:8]
	}

	m := &Manager{
		opts:      opts,
		log:       logger.Nop(),
		newClient: mqtt.NewClient,
		state:     StateConnecting,
		subs:      make(map[string]*subscription),
		stop:      make(chan struct{}),
	}
	for _, o := range options {
		o(m)
	}
	m.client = m.newClient(m.clientOptions())
	return m, nil
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, raw)
	}
	return nil
}

func (m *Manager) clientOptions() *mqtt.ClientOptions {
	o := mqtt.NewClientOptions().
		AddBroker(m.opts.URL).
		SetClientID(m.opts.ClientID).
		SetCleanSession(m.opts.CleanSession).
		SetKeepAlive(m.opts.KeepAlive).
		SetPingTimeout(pingTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetResumeSubs(false).
		SetOrderMatters(false).
		SetOnConnectHandler(func(mqtt.Client) { m.handleConnect() }).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) { m.handleConnectionLost(err) })
	if m.opts.ConnectTimeout > 0 {
		o.SetConnectTimeout(m.opts.ConnectTimeout)
	}
	return o
}

// Start connects in the background and retries every ReconnectPeriod until
// it succeeds or ctx ends. A lost connection is retried the same way. Calling
// Start again is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.ctx = ctx
		m.log.Infow("bus_connecting", "url", m.opts.URL, "client_id", m.opts.ClientID)
		go m.connectLoop(ctx, false)
	})
}

// connectLoop dials until a connect succeeds. Every attempt after the first,
// and the first one too when reconnecting, waits ReconnectPeriod and reports
// RECONNECTING; every failure reports ERROR with the cause.
func (m *Manager) connectLoop(ctx context.Context, reconnect bool) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()
	for attempt := 0; ; attempt++ {
		if attempt > 0 || reconnect {
			if !m.sleep(ctx, m.opts.ReconnectPeriod) {
				return
			}
			m.handleReconnecting()
		}
		err := m.waitToken(ctx, m.client.Connect())
		if err == nil {
			return
		}
		if ctx.Err() != nil || m.stopped() {
			return
		}
		m.log.Warnw("bus_connect_failed", "url", m.opts.URL, "attempt", attempt+1, "err", err)
		m.setState(StateError, err)
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-m.stop:
		return false
	case <-timer.C:
		return true
	}
}

func (m *Manager) waitToken(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stop:
		return ErrNotConnected
	}
}

func (m *Manager) stopped() bool {
	select {
	case <-m.stop:
		return true
	default:
		return false
	}
}

// Disconnect closes the connection and stops reconnecting. The state becomes
// DISCONNECTED.
func (m *Manager) Disconnect() {
	m.stopOnce.Do(func() {
		close(m.stop)
		if m.client.IsConnectionOpen() {
			m.client.Disconnect(disconnectQuiesce)
		}
		m.mu.Lock()
		for _, s := range m.subs {
			s.established = false
		}
		m.mu.Unlock()
		m.setState(StateDisconnected, nil)
		m.log.Infow("bus_disconnected")
	})
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Status returns the state with the error that caused it, if any.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Status{State: m.state}
	if m.state == StateError {
		st.Err = m.lastErr
	}
	return st
}

// LastError is the most recent transport error, kept after recovery.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// OnStateChange registers fn to run after every state transition. Callbacks run
// on the transport's goroutine and must not block.
func (m *Manager) OnStateChange(fn func(Status)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Manager) setState(s State, err error) {
	m.mu.Lock()
	if m.state == StateDisconnected && m.stopped() && s != StateDisconnected {
		// late callback after Disconnect
		m.mu.Unlock()
		return
	}
	m.state = s
	if err != nil {
		m.lastErr = err
	}
	listeners := make([]func(Status), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	m.metrics.BusState(s.String())
	st := Status{State: s}
	if s == StateError {
		st.Err = err
	}
	for _, fn := range listeners {
		fn(st)
	}
}

func (m *Manager) handleConnect() {
	m.log.Infow("bus_connected", "url", m.opts.URL)
	// listeners may publish requests as soon as they see CONNECTED, so the
	// reply subscriptions go out first
	m.restoreSubscriptions()
	m.setState(StateConnected, nil)
	m.restoreSubscriptions()
}

func (m *Manager) handleConnectionLost(err error) {
	next := classifyLoss(err)
	if m.opts.ResubscribeOnReconnect {
		m.mu.Lock()
		for _, s := range m.subs {
			s.established = false
		}
		m.mu.Unlock()
	}
	m.log.Warnw("bus_connection_lost", "state", next.String(), "err", err)
	if next == StateError {
		m.setState(next, err)
	} else {
		m.setState(next, nil)
	}

	if m.ctx != nil && !m.stopped() {
		go m.connectLoop(m.ctx, true)
	}
}

func (m *Manager) handleReconnecting() {
	m.log.Infow("bus_reconnecting", "url", m.opts.URL)
	m.setState(StateReconnecting, nil)
}

// classifyLoss maps the error paho reports on a dropped connection to the
// state it represents.
func classifyLoss(err error) State {
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return StateDisconnected
	case strings.Contains(err.Error(), pingMissingErrFragment):
		return StateOffline
	default:
		return StateError
	}
}

// restoreSubscriptions sends SUBSCRIBE for registry entries that are not live
// on this session: everything when resubscribing is enabled, otherwise only
// filters registered while disconnected.
func (m *Manager) restoreSubscriptions() {
	m.mu.RLock()
	pending := make(map[string]Handler)
	for filter, s := range m.subs {
		if !s.established {
			pending[filter] = s.handler
		}
	}
	m.mu.RUnlock()

	for filter, h := range pending {
		if err := m.subscribeWire(filter, h); err != nil {
			m.log.Warnw("bus_resubscribe_failed", "topic", filter, "err", err)
		}
	}
}

// Publish sends payload at QoS 0. It returns ErrNotConnected, and sends
// nothing, unless the state is CONNECTED.
func (m *Manager) Publish(topic string, payload []byte) error {
	if m.State() != StateConnected {
		m.metrics.Published("dropped")
		m.log.Debugw("bus_publish_dropped", "topic", topic, "state", m.State().String())
		return ErrNotConnected
	}
	tok := m.client.Publish(topic, qosAtMostOnce, false, payload)
	if !tok.WaitTimeout(tokenWait) {
		m.metrics.Published("failed")
		return fmt.Errorf("publish %s: timed out waiting for the client", topic)
	}
	if err := tok.Error(); err != nil {
		m.metrics.Published("failed")
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	m.metrics.Published("sent")
	return nil
}

// Subscribe registers h for filter. A later Subscribe on the same filter
// replaces the handler. The SUBSCRIBE goes out now when connected, otherwise
// on the next successful connect.
func (m *Manager) Subscribe(filter string, h Handler) error {
	m.mu.Lock()
	m.subs[filter] = &subscription{handler: h}
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected {
		m.log.Debugw("bus_subscribe_deferred", "topic", filter)
		return nil
	}
	return m.subscribeWire(filter, h)
}

func (m *Manager) subscribeWire(filter string, h Handler) error {
	tok := m.client.Subscribe(filter, qosAtMostOnce, m.wrap(filter, h))
	if !tok.WaitTimeout(tokenWait) {
		return fmt.Errorf("%w: %s: timed out", ErrSubscriptionFailed, filter)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSubscriptionFailed, filter, err)
	}
	m.mu.Lock()
	if s, ok := m.subs[filter]; ok {
		s.established = true
	}
	m.mu.Unlock()
	m.log.Debugw("bus_subscribed", "topic", filter)
	return nil
}

// wrap adapts h to paho and keeps a panicking handler from taking down the
// client's router goroutine.
func (m *Manager) wrap(filter string, h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				m.log.Errorw("bus_handler_panic", "topic", msg.Topic(), "filter", filter, "panic", r)
			}
		}()
		h(msg.Topic(), msg.Payload())
	}
}

// Unsubscribe forgets the filters and unsubscribes on the wire when connected.
func (m *Manager) Unsubscribe(filters ...string) error {
	if len(filters) == 0 {
		return nil
	}
	m.mu.Lock()
	live := make([]string, 0, len(filters))
	for _, f := range filters {
		if s, ok := m.subs[f]; ok && s.established {
			live = append(live, f)
		}
		delete(m.subs, f)
	}
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || len(live) == 0 {
		return nil
	}
	tok := m.client.Unsubscribe(live...)
	if !tok.WaitTimeout(tokenWait) {
		return fmt.Errorf("unsubscribe %v: timed out", live)
	}
	return tok.Error()
}
