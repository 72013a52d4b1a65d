package service

import (
	"cat_feeder/internal/bus"
)

// ConnectionSource is what monitoring needs from the bus handle.
type ConnectionSource interface {
	Status() bus.Status
	OnStateChange(fn func(bus.Status))
}

// ConnectionView is the connection state as the API reports it.
type ConnectionView struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

func viewOf(st bus.Status) ConnectionView {
	return ConnectionView{State: st.State.String(), Error: st.ErrorText()}
}

type MonitoringService struct {
	conn ConnectionSource
}

func NewMonitoringService(conn ConnectionSource) *MonitoringService {
	return &MonitoringService{conn: conn}
}

// GetConnection returns the current bus state.
func (s *MonitoringService) GetConnection() ConnectionView {
	return viewOf(s.conn.Status())
}

// Connected reports whether the bus is usable right now.
func (s *MonitoringService) Connected() bool {
	return s.conn.Status().State == bus.StateConnected
}

// WatchConnection registers fn for every state transition.
func (s *MonitoringService) WatchConnection(fn func(ConnectionView)) {
	s.conn.OnStateChange(func(st bus.Status) { fn(viewOf(st)) })
}
