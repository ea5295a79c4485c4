package reminders

import "github.com/rs/zerolog"

// ZerologLogger adapts a zerolog logger to Logger. Fields are key/value pairs.
type ZerologLogger struct {
	log *zerolog.Logger
}

func NewZerologLogger(log *zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log}
}

func (l *ZerologLogger) Info(msg string, fields ...interface{}) {
	l.log.Info().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Error(msg string, fields ...interface{}) {
	l.log.Error().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Debug(msg string, fields ...interface{}) {
	l.log.Debug().Fields(fields).Msg(msg)
}
