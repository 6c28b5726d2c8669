package cli

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the logger handed to the library packages. Verbose runs
// log JSON at debug level; otherwise only warnings reach stderr.
func newLogger(globals *Globals) *zap.Logger {
	if globals == nil || globals.Stderr == nil {
		return zap.NewNop()
	}
	level := zapcore.WarnLevel
	if globals.Verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(globals.Stderr)),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core).Named("dbgwire")
}
