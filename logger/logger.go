package logger

import (
	"go.uber.org/zap"
)

// Log defaults to a no-op logger so packages can log before Init (and so
// tests do not have to initialize logging at all).
var Log *zap.SugaredLogger = zap.NewNop().Sugar()

func Init(debug bool) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}
