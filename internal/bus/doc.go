// Package bus owns the single MQTT connection the hub shares between all device
// clients and the log ingestion listener.
//
// The Manager tracks the connection as one of six states (see State) and moves
// between them only in response to the transport's own lifecycle callbacks:
//
//	handshake ok              -> CONNECTED
//	connect / transport error -> ERROR (LastError holds the detail)
//	ping response missing     -> OFFLINE
//	stream closed, Disconnect -> DISCONNECTED
//	reconnect attempt         -> RECONNECTING
//
// After a loss the Manager redials every ReconnectPeriod, reporting
// RECONNECTING before and ERROR after each failed attempt.
//
// Publishes issued while not CONNECTED are dropped and reported as
// ErrNotConnected; delivery is at-most-once and scoped to a connection.
// Subscriptions are remembered by the Manager and re-established after every
// reconnect when ResubscribeOnReconnect is set.
package bus
