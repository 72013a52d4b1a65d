package devicesync

import (
	"testing"

	"cat_feeder/internal/bus"

	"github.com/stretchr/testify/assert"
)

func TestTopics(t *testing.T) {
	var tp Topics
	assert.Equal(t, "devices/loki/feedingSchedule", tp.FeedingSchedule("loki"))
	assert.Equal(t, "devices/loki/getFeedingSchedule", tp.GetFeedingSchedule("loki"))
	assert.Equal(t, "devices/loki/setFeedingSchedule", tp.SetFeedingSchedule("loki"))
	assert.Equal(t, "devices/loki/stateChange", tp.StateChange("loki"))
	assert.Equal(t, "devices/loki/ipAddress", tp.IPAddress("loki"))
	assert.Equal(t, "devices/loki/command", tp.Command("loki"))
	assert.Equal(t, "devices/loki/logs", tp.Logs("loki"))
	assert.Equal(t, "devices/+/logs", tp.AllLogs())
	assert.True(t, bus.Match(tp.AllLogs(), tp.Logs("gatito")))
}
