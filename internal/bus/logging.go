package bus

import (
	"fmt"
	"strings"

	"cat_feeder/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// pahoLogger adapts a zap level to paho's Println/Printf logger.
type pahoLogger struct {
	logf func(template string, args ...interface{})
}

func (p pahoLogger) Println(v ...interface{}) {
	p.logf("%s", strings.TrimSpace(fmt.Sprintln(v...)))
}

func (p pahoLogger) Printf(format string, v ...interface{}) {
	p.logf(strings.TrimSpace(format), v...)
}

// RouteClientLogs sends the paho client's own error and warning output through
// l. paho keeps these loggers in package globals, so call it once from main.
func RouteClientLogs(l *logger.Logger) {
	l = logger.OrNop(l).Named("paho")
	mqtt.CRITICAL = pahoLogger{logf: l.Errorf}
	mqtt.ERROR = pahoLogger{logf: l.Errorf}
	mqtt.WARN = pahoLogger{logf: l.Warnf}
}
