package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/jonathan/content-engine/internal/logging"
)

// cronLogger routes cron's own log lines into the service logger.
// Cron's info output (schedule, wake, run) is chatty and goes to debug.
type cronLogger struct {
	logger logging.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, cronFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(cronFields(keysAndValues), logging.Error(err))...)
}

func cronFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, logging.Any("extra", keysAndValues[i]))
			break
		}
		fields = append(fields, logging.Any(key, keysAndValues[i+1]))
	}
	return fields
}
