package messaging

import (
	"fmt"

	"github.com/rs/zerolog"
	waLog "go.mau.fi/whatsmeow/util/log"
)

type zeroLogger struct {
	log zerolog.Logger
}

// NewLogger bridges whatsmeow's printf-style logger onto zerolog. The
// module name ends up in the "module" field.
func NewLogger(log zerolog.Logger, module string) waLog.Logger {
	return &zeroLogger{log: log.With().Str("module", module).Logger()}
}

func (z *zeroLogger) Warnf(msg string, args ...interface{}) {
	z.log.Warn().Msg(fmt.Sprintf(msg, args...))
}

func (z *zeroLogger) Errorf(msg string, args ...interface{}) {
	z.log.Error().Msg(fmt.Sprintf(msg, args...))
}

func (z *zeroLogger) Infof(msg string, args ...interface{}) {
	z.log.Info().Msg(fmt.Sprintf(msg, args...))
}

func (z *zeroLogger) Debugf(msg string, args ...interface{}) {
	z.log.Debug().Msg(fmt.Sprintf(msg, args...))
}

func (z *zeroLogger) Sub(module string) waLog.Logger {
	return &zeroLogger{log: z.log.With().Str("sub", module).Logger()}
}
