package devicesync

const topicRoot = "devices"

// Topic suffixes under devices/{id}/. They match the feeder firmware.
const (
	SuffixFeedingSchedule    = "feedingSchedule"
	SuffixGetFeedingSchedule = "getFeedingSchedule"
	SuffixSetFeedingSchedule = "setFeedingSchedule"
	SuffixStateChange        = "stateChange"
	SuffixIPAddress          = "ipAddress"
	SuffixCommand            = "command"
	SuffixLogs               = "logs"
)

// Topics builds device topic names.
//
//	Topics{}.GetFeedingSchedule("loki") // devices/loki/getFeedingSchedule
type Topics struct{}

func (Topics) device(id, suffix string) string {
	return topicRoot + "/" + id + "/" + suffix
}

// FeedingSchedule is where a feeder answers a schedule request.
func (t Topics) FeedingSchedule(id string) string { return t.device(id, SuffixFeedingSchedule) }

// GetFeedingSchedule asks a feeder for its schedule; the payload is empty.
func (t Topics) GetFeedingSchedule(id string) string { return t.device(id, SuffixGetFeedingSchedule) }

// SetFeedingSchedule replaces a feeder's schedule.
func (t Topics) SetFeedingSchedule(id string) string { return t.device(id, SuffixSetFeedingSchedule) }

func (t Topics) StateChange(id string) string { return t.device(id, SuffixStateChange) }

func (t Topics) IPAddress(id string) string { return t.device(id, SuffixIPAddress) }

func (t Topics) Command(id string) string { return t.device(id, SuffixCommand) }

func (t Topics) Logs(id string) string { return t.device(id, SuffixLogs) }

// AllLogs matches the log topic of every device.
func (t Topics) AllLogs() string { return t.device("+", SuffixLogs) }
