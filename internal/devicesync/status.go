package devicesync

import "fmt"

// FetchStatus is where a device client is in the schedule request/reply
// exchange.
type FetchStatus int

const (
	FetchIdle FetchStatus = iota
	FetchPending
	FetchSuccess
	FetchTimedOut
)

var fetchStatusNames = map[FetchStatus]string{
	FetchIdle:     "IDLE",
	FetchPending:  "PENDING",
	FetchSuccess:  "SUCCESS",
	FetchTimedOut: "TIMED_OUT",
}

func (s FetchStatus) String() string {
	if name, ok := fetchStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("FetchStatus(%d)", int(s))
}

func (s FetchStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *FetchStatus) UnmarshalText(text []byte) error {
	for k, name := range fetchStatusNames {
		if name == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown fetch status %q", text)
}
