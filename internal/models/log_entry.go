package models

// LogEntry is a single device log line. Time is unix milliseconds.
type LogEntry struct {
	Time    int64  `json:"time"`
	Message string `json:"message"`
}

// LogStore maps device id to its entries, newest first.
type LogStore map[string][]LogEntry

// Clone deep-copies the store so callers can hand it to a writer without
// holding the owner's lock.
func (s LogStore) Clone() LogStore {
	out := make(LogStore, len(s))
	for id, entries := range s {
		cp := make([]LogEntry, len(entries))
		copy(cp, entries)
		out[id] = cp
	}
	return out
}

// LogBody is the payload a device publishes on its logs topic, and the body of
// POST /logs.
type LogBody struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
