package whatsapp

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	waLog "go.mau.fi/whatsmeow/util/log"
)

type zeroLogger struct {
	module string
	logger zerolog.Logger
}

// NewLogger bridges whatsmeow logging into the global zerolog logger.
func NewLogger(module, level string) waLog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	return &zeroLogger{
		module: module,
		logger: log.Logger.With().Str("module", module).Logger().Level(lvl),
	}
}

func (l *zeroLogger) Errorf(msg string, args ...interface{}) { l.logger.Error().Msgf(msg, args...) }
func (l *zeroLogger) Warnf(msg string, args ...interface{})  { l.logger.Warn().Msgf(msg, args...) }
func (l *zeroLogger) Infof(msg string, args ...interface{})  { l.logger.Info().Msgf(msg, args...) }
func (l *zeroLogger) Debugf(msg string, args ...interface{}) { l.logger.Debug().Msgf(msg, args...) }

func (l *zeroLogger) Sub(module string) waLog.Logger {
	sub := l.module + "/" + module
	return &zeroLogger{
		module: sub,
		logger: l.logger.With().Str("module", sub).Logger(),
	}
}
